// Package search indexes proposals in Meilisearch and falls back to in-memory
// matching when it is not configured or unreachable.
package search

import "delegate/api/internal/snapshot"

// Query describes a search request.
type Query struct {
	Text  string
	Space string         // empty = all spaces
	State snapshot.State // empty = all states
	Limit int
}

// Result is a single search hit.
type Result struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Snippet string         `json:"snippet"`
	Space   string         `json:"space"`
	State   snapshot.State `json:"state"`
	End     int64          `json:"end"`
}

// Response is the envelope returned by the search endpoint. Engine names the
// backend that answered.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// ProposalRecord is the data we index for a proposal.
type ProposalRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Space  string `json:"space"`
	State  string `json:"state"`
	Author string `json:"author"`
	End    int64  `json:"end"`
}

func recordFromProposal(space string, p snapshot.Proposal) ProposalRecord {
	return ProposalRecord{
		ID:     p.ID,
		Title:  p.Title,
		Body:   p.Body,
		Space:  space,
		State:  string(p.State),
		Author: p.Author,
		End:    p.End,
	}
}
