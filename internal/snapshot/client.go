// Package snapshot is a GraphQL client for the Snapshot governance hub.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultURL is the public Snapshot hub endpoint.
const DefaultURL = "https://hub.snapshot.org/graphql"

// DefaultTimeout bounds a single query when the caller's context has no deadline.
const DefaultTimeout = 15 * time.Second

// Client issues GraphQL queries. It performs no retries; callers decide.
type Client struct {
	http     *resty.Client
	endpoint string
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithHTTPClient swaps the underlying resty client (tests, proxies).
func WithHTTPClient(rc *resty.Client) Option {
	return func(c *Client) { c.http = rc }
}

// New creates a client for endpoint; an empty endpoint means DefaultURL.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	c := &Client{
		endpoint: endpoint,
		http: resty.New().
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetTimeout(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query posts document with variables and decodes the data member into out.
// out may be nil when only success matters.
func (c *Client) Query(ctx context.Context, document string, variables map[string]any, out any) error {
	op := operationName(document)
	if variables == nil {
		variables = map[string]any{}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request{Query: document, Variables: variables}).
		Post(c.endpoint)
	if err != nil {
		queriesTotal.WithLabelValues(op, "network_error").Inc()
		return &NetworkError{Err: err}
	}
	if !resp.IsSuccess() {
		queriesTotal.WithLabelValues(op, "network_error").Inc()
		return &NetworkError{Status: resp.StatusCode(), Err: fmt.Errorf("%s", resp.Status())}
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		queriesTotal.WithLabelValues(op, "decode_error").Inc()
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(env.Errors) > 0 {
		messages := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			messages = append(messages, e.Message)
		}
		queriesTotal.WithLabelValues(op, "graphql_error").Inc()
		return &GraphQLError{Messages: messages}
	}

	queriesTotal.WithLabelValues(op, "ok").Inc()
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}

// Space fetches one space by id. A space the hub does not return yields
// SpaceNotFoundError.
func (c *Client) Space(ctx context.Context, id string) (Space, error) {
	var data struct {
		Space *Space `json:"space"`
	}
	if err := c.Query(ctx, SpaceQuery, map[string]any{"id": id}, &data); err != nil {
		return Space{}, err
	}
	if data.Space == nil {
		return Space{}, &SpaceNotFoundError{ID: id}
	}
	return *data.Space, nil
}

// Proposals fetches up to limit proposals for space ordered by creation descending.
func (c *Client) Proposals(ctx context.Context, space string, limit int) ([]Proposal, error) {
	var data struct {
		Proposals []Proposal `json:"proposals"`
	}
	if err := c.Query(ctx, ProposalsQuery, map[string]any{"space": space, "limit": limit}, &data); err != nil {
		return nil, err
	}
	if data.Proposals == nil {
		return []Proposal{}, nil
	}
	return data.Proposals, nil
}

var operationPattern = regexp.MustCompile(`(?:query|mutation)\s+([A-Za-z_][A-Za-z0-9_]*)`)

func operationName(document string) string {
	if m := operationPattern.FindStringSubmatch(document); m != nil {
		return m[1]
	}
	return "anonymous"
}
