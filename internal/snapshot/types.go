package snapshot

import (
	"encoding/json"
	"strings"
	"time"
)

// State is the lifecycle state of a proposal as reported by the hub.
type State string

const (
	StateActive  State = "active"
	StatePending State = "pending"
	StateClosed  State = "closed"
	StateOther   State = "other"
)

// ParseState maps hub strings onto the known states; anything else is StateOther.
func ParseState(raw string) State {
	switch State(strings.ToLower(strings.TrimSpace(raw))) {
	case StateActive:
		return StateActive
	case StatePending:
		return StatePending
	case StateClosed:
		return StateClosed
	default:
		return StateOther
	}
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseState(raw)
	return nil
}

// Space is a governance space snapshot. It is never mutated locally.
type Space struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	About          string     `json:"about"`
	Avatar         string     `json:"avatar"`
	Network        string     `json:"network"`
	Symbol         string     `json:"symbol"`
	Members        []string   `json:"members"`
	Admins         []string   `json:"admins"`
	Strategies     []Strategy `json:"strategies"`
	ProposalsCount int        `json:"proposalsCount"`
	VotesCount     int        `json:"votesCount"`
	FollowersCount int        `json:"followersCount"`
}

type Strategy struct {
	Name string `json:"name"`
}

// SpaceRef is the embedded space reference on a proposal.
type SpaceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Proposal is a governance item. Start and End are unix seconds.
type Proposal struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Choices     []string  `json:"choices"`
	Start       int64     `json:"start"`
	End         int64     `json:"end"`
	Snapshot    string    `json:"snapshot"`
	State       State     `json:"state"`
	Author      string    `json:"author"`
	Space       *SpaceRef `json:"space,omitempty"`
	Scores      []float64 `json:"scores"`
	ScoresTotal float64   `json:"scores_total"`
	Votes       int       `json:"votes"`
}

// StartTime returns Start as a time.Time.
func (p Proposal) StartTime() time.Time { return time.Unix(p.Start, 0).UTC() }

// EndTime returns End as a time.Time.
func (p Proposal) EndTime() time.Time { return time.Unix(p.End, 0).UTC() }

// Age is how long ago voting opened relative to now; negative for future starts.
func (p Proposal) Age(now time.Time) time.Duration {
	return time.Duration(now.Unix()-p.Start) * time.Second
}

// Outcome is "Passed" or "Failed" for closed proposals and empty otherwise.
func (p Proposal) Outcome() string {
	if p.State != StateClosed {
		return ""
	}
	if p.ScoresTotal > 0 {
		return "Passed"
	}
	return "Failed"
}

// LeadingChoice returns the choice with the highest score, if any.
func (p Proposal) LeadingChoice() (string, float64, bool) {
	best := -1
	for i, score := range p.Scores {
		if i >= len(p.Choices) {
			break
		}
		if best < 0 || score > p.Scores[best] {
			best = i
		}
	}
	if best < 0 {
		return "", 0, false
	}
	return p.Choices[best], p.Scores[best], true
}
