package digest

import (
	"context"
	"errors"
	"fmt"

	"delegate/api/internal/llm"
	"delegate/api/internal/snapshot"
	"delegate/api/internal/summary"
)

// Summary is a generated text with the cache key it is stored under.
type Summary struct {
	Text string `json:"text"`
	Key  string `json:"key"`
}

// ProposalSummary summarises a single proposal.
func (s *Service) ProposalSummary(ctx context.Context, p snapshot.Proposal) (Summary, error) {
	content := ""
	if p.Body != "" || p.Title != "" {
		content = fmt.Sprintf("\"%s\" - %s", p.Title, p.Body)
	}
	return s.summarize(ctx, ProposalDirective, content, p.ID)
}

// FilteredSummary summarises the proposals currently selected in a view.
func (s *Service) FilteredSummary(ctx context.Context, hint string, proposals []snapshot.Proposal) (Summary, error) {
	return s.summarize(ctx, FilteredProposalDirective, recentContent(proposals), hint)
}

func (s *Service) summarize(ctx context.Context, directive, content, hint string) (Summary, error) {
	text, err := s.summaries.GetOrGenerate(ctx, directive, content, hint)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Text: text, Key: summary.Key(directive, content)}, nil
}

// Suggestion is a vote recommendation. Available is false when the model
// output could not be used; Reason then explains why.
type Suggestion struct {
	ProposalID string `json:"proposalId"`
	Vote       string `json:"vote,omitempty"`
	Reason     string `json:"reason"`
	Available  bool   `json:"available"`
}

// SuggestVote recommends a vote on p from identity's ethos. Unparseable model
// output yields an unavailable suggestion; generation failures are returned.
func (s *Service) SuggestVote(ctx context.Context, identity string, p snapshot.Proposal) (Suggestion, error) {
	ethos, err := s.ethos(ctx, identity)
	if err != nil {
		return Suggestion{}, err
	}
	directive := fmt.Sprintf("This is the user ethos: %s. %s", ethos, llm.SuggestionDirective)

	text, err := s.summaries.GetOrGenerate(ctx, directive, p.Body, identity)
	if errors.Is(err, summary.ErrIdle) {
		return Suggestion{ProposalID: p.ID, Reason: "Proposal has no content to evaluate."}, nil
	}
	if err != nil {
		return Suggestion{}, err
	}

	vote, err := llm.ParseVote(text)
	if err != nil {
		s.log.Warn().Err(err).Str("proposal", p.ID).Msg("vote suggestion unparseable")
		return Suggestion{ProposalID: p.ID, Reason: suggestionFailed}, nil
	}
	return Suggestion{ProposalID: p.ID, Vote: vote.Vote, Reason: vote.Reason, Available: true}, nil
}
