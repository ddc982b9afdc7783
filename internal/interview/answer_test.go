package interview_test

import (
	"testing"

	"github.com/karanmishra2003/HoloHire/internal/interview"
)

func TestAnswerSet_AddRejectsDuplicates(t *testing.T) {
	t.Parallel()

	s := interview.NewAnswerSet()
	if !s.Add(interview.AnswerRecord{QuestionIndex: 1, AnswerText: "first"}) {
		t.Fatal("first Add returned false")
	}
	if s.Add(interview.AnswerRecord{QuestionIndex: 1, AnswerText: "second"}) {
		t.Error("duplicate Add returned true")
	}
	s.Add(interview.AnswerRecord{QuestionIndex: 0, AnswerText: "zero"})

	recs := s.Records()
	if len(recs) != 2 || s.Len() != 2 {
		t.Fatalf("len = %d; want 2", len(recs))
	}
	if recs[0].QuestionIndex != 0 || recs[1].QuestionIndex != 1 {
		t.Errorf("records not ordered by index: %+v", recs)
	}
	if recs[1].AnswerText != "first" {
		t.Errorf("existing record overwritten: %q", recs[1].AnswerText)
	}
	if !s.Has(0) || s.Has(2) {
		t.Error("Has reported wrong membership")
	}

	recs[0].AnswerText = "mutated"
	if s.Records()[0].AnswerText != "zero" {
		t.Error("Records returned shared storage")
	}
}

func TestIsSentinel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{interview.SentinelSkipped, true},
		{interview.SentinelTimeExpired, true},
		{" " + interview.SentinelEndedEarly + " ", true},
		{interview.SentinelNoAnswer, true},
		{"I would use a mutex.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := interview.IsSentinel(tt.text); got != tt.want {
			t.Errorf("IsSentinel(%q) = %v; want %v", tt.text, got, tt.want)
		}
	}
}

func TestParseAnswers(t *testing.T) {
	t.Parallel()

	recs := []interview.AnswerRecord{
		{QuestionIndex: 0, QuestionText: "Q1", AnswerText: "A1", RecordedAtEpochMillis: 1700000000000, Outcome: interview.OutcomeAnswered},
		{QuestionIndex: 1, QuestionText: "Q2", AnswerText: interview.SentinelSkipped, Outcome: interview.OutcomeSkipped},
	}
	got := interview.ParseAnswers(interview.EncodeAnswers(recs))
	if len(got) != 2 || got[0] != recs[0] || got[1] != recs[1] {
		t.Errorf("round trip = %+v", got)
	}

	for _, raw := range []string{"", "null", "not json", `{"a":1}`} {
		if got := interview.ParseAnswers(raw); got == nil || len(got) != 0 {
			t.Errorf("ParseAnswers(%q) = %#v; want empty non-nil", raw, got)
		}
	}
}
