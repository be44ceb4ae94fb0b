package snapshot

import (
	"fmt"
	"strings"
)

// NetworkError reports a transport failure or a non-2xx response. Status is 0
// when no HTTP response was received.
type NetworkError struct {
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("graphql transport: %v", e.Err)
	}
	return fmt.Sprintf("graphql http status %d", e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// GraphQLError reports a query the endpoint rejected.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return strings.Join(e.Messages, "\n")
}

// SpaceNotFoundError reports a space id the hub does not know.
type SpaceNotFoundError struct {
	ID string
}

func (e *SpaceNotFoundError) Error() string {
	return fmt.Sprintf("snapshot space %q not found", e.ID)
}
