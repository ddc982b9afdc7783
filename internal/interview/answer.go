package interview

import (
	"encoding/json"
	"sort"
	"strings"
)

// Outcome tags how an answer record came to be.
type Outcome string

const (
	OutcomeAnswered    Outcome = "answered"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeTimeExpired Outcome = "time_expired"
	OutcomeEndedEarly  Outcome = "ended_early"
	OutcomeNoAnswer    Outcome = "no_answer"
)

// Sentinel answer texts. They mark records without genuine answer content and
// are recognised by the feedback scorer.
const (
	SentinelSkipped     = "[Skipped]"
	SentinelTimeExpired = "[Time expired - no answer]"
	SentinelEndedEarly  = "[Interview ended before an answer was given]"
	SentinelNoAnswer    = "[No answer detected]"
)

// IsSentinel reports whether text is one of the reserved placeholder answers.
func IsSentinel(text string) bool {
	switch strings.TrimSpace(text) {
	case SentinelSkipped, SentinelTimeExpired, SentinelEndedEarly, SentinelNoAnswer:
		return true
	}
	return false
}

// AnswerRecord is the committed answer for one question index.
type AnswerRecord struct {
	QuestionIndex         int     `json:"questionIndex"`
	QuestionText          string  `json:"question"`
	AnswerText            string  `json:"answer"`
	RecordedAtEpochMillis int64   `json:"recordedAt"`
	Outcome               Outcome `json:"outcome,omitempty"`
}

// AnswerSet is an append-only collection holding at most one record per
// question index. It is not safe for concurrent use.
type AnswerSet struct {
	byIndex map[int]AnswerRecord
}

// NewAnswerSet returns an empty set.
func NewAnswerSet() *AnswerSet {
	return &AnswerSet{byIndex: make(map[int]AnswerRecord)}
}

// Add stores r unless a record for r.QuestionIndex already exists. It reports
// whether r was stored; an existing record is never overwritten.
func (s *AnswerSet) Add(r AnswerRecord) bool {
	if _, ok := s.byIndex[r.QuestionIndex]; ok {
		return false
	}
	s.byIndex[r.QuestionIndex] = r
	return true
}

// Has reports whether a record exists for index.
func (s *AnswerSet) Has(index int) bool {
	_, ok := s.byIndex[index]
	return ok
}

// Len returns the number of records.
func (s *AnswerSet) Len() int { return len(s.byIndex) }

// Records returns a copy of all records ordered by question index.
func (s *AnswerSet) Records() []AnswerRecord {
	out := make([]AnswerRecord, 0, len(s.byIndex))
	for _, r := range s.byIndex {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionIndex < out[j].QuestionIndex })
	return out
}

// EncodeAnswers serializes records as a JSON array.
func EncodeAnswers(records []AnswerRecord) string {
	if records == nil {
		records = []AnswerRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// ParseAnswers decodes a JSON array of answer records. Malformed input yields
// an empty slice.
func ParseAnswers(raw string) []AnswerRecord {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []AnswerRecord{}
	}
	var out []AnswerRecord
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []AnswerRecord{}
	}
	if out == nil {
		out = []AnswerRecord{}
	}
	return out
}
