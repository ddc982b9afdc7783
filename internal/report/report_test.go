package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/karanmishra2003/HoloHire/internal/feedback"
	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/store"
)

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleInterview() store.Interview {
	return store.Interview{
		ID:             "iv-1",
		Name:           "Backend role",
		JobDescription: "Go developer",
		Status:         store.StatusCompleted,
		CreatedAt:      created,
		Questions: []interview.Question{
			{Index: 0, Prompt: "Why Go?"},
			{Index: 1, Prompt: "Explain channels."},
		},
		Answers: []interview.AnswerRecord{
			{QuestionIndex: 0, AnswerText: "Simplicity.", Outcome: interview.OutcomeAnswered},
			{QuestionIndex: 1, AnswerText: interview.SentinelSkipped, Outcome: interview.OutcomeSkipped},
		},
	}
}

func TestBuild_Scored(t *testing.T) {
	t.Parallel()

	rep := feedback.Summarize([]feedback.Item{
		{QuestionIndex: 0, Score: 7, Feedback: "Good start."},
		{QuestionIndex: 1, Score: 1, Feedback: "Skipped.", Automatic: true},
	}, created)

	f, err := Build(sampleInterview(), &rep)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != SummarySheet || got[1] != AnswersSheet {
		t.Fatalf("sheets = %v", got)
	}

	rows, err := f.GetRows(AnswersSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("answer rows = %d, want header + 2", len(rows))
	}
	want := []string{"1", "Why Go?", "Simplicity.", "answered", "7", "Good start."}
	for i, w := range want {
		if rows[1][i] != w {
			t.Errorf("row 2 col %d = %q, want %q", i, rows[1][i], w)
		}
	}
	if rows[2][3] != "skipped" || rows[2][4] != "1" {
		t.Errorf("row 3 = %v", rows[2])
	}

	summary, err := f.GetRows(SummarySheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	found := map[string]string{}
	for _, r := range summary {
		if len(r) >= 2 {
			found[r[0]] = r[1]
		}
	}
	if found["Interview"] != "Backend role" || found["Total score"] != "8 / 20" || found["Rating"] != feedback.RatingFail {
		t.Errorf("summary = %v", found)
	}
}

func TestWrite_Unscored(t *testing.T) {
	t.Parallel()

	iv := sampleInterview()
	iv.Name = ""
	var buf bytes.Buffer
	if err := Write(&buf, iv, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	name, _ := f.GetCellValue(SummarySheet, "B3")
	if name != "iv-1" {
		t.Errorf("interview name cell = %q, want fallback to id", name)
	}
	score, _ := f.GetCellValue(AnswersSheet, "E2")
	if score != "" {
		t.Errorf("score cell = %q, want empty when unscored", score)
	}
	rows, _ := f.GetRows(SummarySheet)
	last := rows[len(rows)-1]
	if last[0] != "Rating" || last[1] != "Not scored yet" {
		t.Errorf("last summary row = %v", last)
	}
}

func TestWriteSheets_ReportStyleErrors(t *testing.T) {
	// A workbook without the expected sheets makes the first formatting
	// call fail; the error must surface instead of being dropped.
	f := excelize.NewFile()
	defer f.Close()
	st, err := newStyles(f)
	if err != nil {
		t.Fatalf("newStyles: %v", err)
	}

	tests := []struct {
		name string
		fn   func() error
	}{
		{"summary", func() error { return writeSummary(f, st, sampleInterview(), nil) }},
		{"answers", func() error { return writeAnswers(f, st, sampleInterview(), nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if err == nil {
				t.Fatal("expected error for missing sheet")
			}
			if !strings.Contains(err.Error(), "column width") {
				t.Errorf("err = %v, want column width failure", err)
			}
		})
	}
}

func TestSetColWidths(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := setColWidths(f, "Sheet1", 5, 40); err != nil {
		t.Fatalf("setColWidths: %v", err)
	}
	w, err := f.GetColWidth("Sheet1", "B")
	if err != nil {
		t.Fatalf("GetColWidth: %v", err)
	}
	if w != 40 {
		t.Errorf("width B = %v, want 40", w)
	}
}
