package interview

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Question is one entry of a session's fixed, ordered question set.
type Question struct {
	Index           int    `json:"-"`
	Prompt          string `json:"question"`
	ReferenceAnswer string `json:"answer,omitempty"`
}

// ParseError reports a malformed serialized question list.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("interview: parse questions: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// ParseQuestions decodes a JSON array of {question, answer} objects. Entries
// with a blank prompt are dropped and the remaining questions are indexed
// densely from zero in input order.
func ParseQuestions(raw string) ([]Question, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []Question{}, nil
	}
	var items []Question
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &ParseError{Err: err}
	}
	out := make([]Question, 0, len(items))
	for _, q := range items {
		q.Prompt = strings.TrimSpace(q.Prompt)
		if q.Prompt == "" {
			continue
		}
		q.ReferenceAnswer = strings.TrimSpace(q.ReferenceAnswer)
		q.Index = len(out)
		out = append(out, q)
	}
	return out, nil
}

// LoadQuestions is ParseQuestions for session start: malformed input yields an
// empty set, which the state machine finalizes immediately.
func LoadQuestions(raw string) []Question {
	qs, err := ParseQuestions(raw)
	if err != nil {
		return []Question{}
	}
	return qs
}

// EncodeQuestions serializes qs in the format ParseQuestions accepts.
func EncodeQuestions(qs []Question) string {
	if qs == nil {
		qs = []Question{}
	}
	data, err := json.Marshal(qs)
	if err != nil {
		return "[]"
	}
	return string(data)
}
