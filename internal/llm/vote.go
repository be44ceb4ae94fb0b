package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SuggestionDirective asks the model for a JSON vote; the caller prefixes it
// with the user's ethos.
const SuggestionDirective = "Suggest a vote for the passed proposal based on the ethos of the user. " +
	"The result must be a only a JSON with two elements: 'vote' which can be yes or no and 'reason' " +
	"which is the explanation of the reasons considered for the voting decision. " +
	`The JSON must be formatted as follows: {"vote": "yes", "reason": "..."}.`

// Vote is a parsed vote suggestion.
type Vote struct {
	Vote   string `json:"vote"`
	Reason string `json:"reason"`
}

// ParseError reports model output that is not a usable vote.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse vote suggestion: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseVote decodes {"vote":"yes"|"no","reason":"..."} from model output,
// tolerating a surrounding markdown code fence.
func ParseVote(text string) (Vote, error) {
	body := stripFence(strings.TrimSpace(text))

	var v Vote
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return Vote{}, &ParseError{Raw: text, Err: err}
	}
	v.Vote = strings.ToLower(strings.TrimSpace(v.Vote))
	switch v.Vote {
	case "yes", "no":
	default:
		return Vote{}, &ParseError{Raw: text, Err: fmt.Errorf("unexpected vote %q", v.Vote)}
	}
	return v, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line ("json")
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
