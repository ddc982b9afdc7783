// Package feedback scores recorded interview answers and summarizes the
// result.
//
// Placeholder answers (skipped, timed out, "I don't know") are scored by
// fixed rules without a model call. The remaining answers are sent in a
// single batch to an LLM, which returns a 1–10 score and short feedback per
// answer.
package feedback

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// MaxScore is the best score a single answer can receive.
const MaxScore = 10

// Ratings, from best to worst.
const (
	RatingExcellent = "Excellent Performance"
	RatingGood      = "Good Performance"
	RatingAverage   = "Average"
	RatingFail      = "Does Not Qualify"
)

// Item is the scored feedback for one question.
type Item struct {
	QuestionIndex int    `json:"questionIndex"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	Score         int    `json:"score"`
	Feedback      string `json:"feedback"`

	// Automatic is set when the score came from a fixed rule rather than the
	// model.
	Automatic bool `json:"automatic,omitempty"`
}

// Report is the stored feedback document for an interview.
type Report struct {
	Items      []Item    `json:"items"`
	Total      int       `json:"total"`
	MaxTotal   int       `json:"maxTotal"`
	Percentage int       `json:"percentage"`
	Rating     string    `json:"rating"`
	ScoredAt   time.Time `json:"scoredAt"`
}

// Summarize totals items and assigns a rating. Percentage is rounded to the
// nearest integer.
func Summarize(items []Item, scoredAt time.Time) Report {
	r := Report{Items: items, MaxTotal: MaxScore * len(items), ScoredAt: scoredAt}
	if r.Items == nil {
		r.Items = []Item{}
	}
	for _, it := range items {
		r.Total += it.Score
	}
	if r.MaxTotal > 0 {
		r.Percentage = int(math.Round(float64(r.Total) / float64(r.MaxTotal) * 100))
	}
	r.Rating = Rate(r.Percentage)
	return r
}

// Rate maps a percentage to a rating label.
func Rate(percentage int) string {
	switch {
	case percentage >= 100:
		return RatingExcellent
	case percentage >= 70:
		return RatingGood
	case percentage >= 50:
		return RatingAverage
	default:
		return RatingFail
	}
}

// Encode serializes r for storage.
func (r Report) Encode() (json.RawMessage, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("feedback: encode: %w", err)
	}
	return data, nil
}

// Decode parses a stored report. An empty document yields a nil report.
func Decode(raw json.RawMessage) (*Report, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("feedback: decode: %w", err)
	}
	return &r, nil
}
