// Package report exports an interview and its feedback as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/karanmishra2003/HoloHire/internal/feedback"
	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/store"
)

// Sheet names.
const (
	SummarySheet = "Summary"
	AnswersSheet = "Answers"
)

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var answerHeaders = []string{"#", "Question", "Answer", "Outcome", "Score", "Feedback"}

// Build creates the workbook. rep may be nil when the interview has not been
// scored; the score columns are then left empty.
func Build(iv store.Interview, rep *feedback.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	if _, err := f.NewSheet(AnswersSheet); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	if err := writeSummary(f, st, iv, rep); err != nil {
		return nil, err
	}
	if err := writeAnswers(f, st, iv, rep); err != nil {
		return nil, err
	}
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, iv store.Interview, rep *feedback.Report) error {
	f, err := Build(iv, rep)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

type styles struct {
	title, header, label, wrap int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	if st.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	}); err != nil {
		return st, fmt.Errorf("report: title style: %w", err)
	}
	if st.header, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "4472C4", Style: 2}},
	}); err != nil {
		return st, fmt.Errorf("report: header style: %w", err)
	}
	if st.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return st, fmt.Errorf("report: label style: %w", err)
	}
	if st.wrap, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	}); err != nil {
		return st, fmt.Errorf("report: wrap style: %w", err)
	}
	return st, nil
}

func writeSummary(f *excelize.File, st styles, iv store.Interview, rep *feedback.Report) error {
	sh := SummarySheet
	if err := setColWidths(f, sh, 22, 60); err != nil {
		return err
	}

	if err := setCell(f, sh, 1, 1, "HoloHire Interview Report", st.title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, "A1", "B1", st.title); err != nil {
		return fmt.Errorf("report: title style: %w", err)
	}
	if err := f.MergeCell(sh, "A1", "B1"); err != nil {
		return fmt.Errorf("report: merge title: %w", err)
	}

	rows := [][2]any{
		{"Interview", displayName(iv)},
		{"Status", iv.Status},
		{"Created", iv.CreatedAt.UTC().Format(time.DateTime)},
		{"Questions", len(iv.Questions)},
		{"Answers recorded", len(iv.Answers)},
	}
	if iv.JobDescription != "" {
		rows = append(rows, [2]any{"Job description", iv.JobDescription})
	}
	if iv.ResumeFileName != "" {
		rows = append(rows, [2]any{"Resume", iv.ResumeFileName})
	}
	if rep != nil {
		rows = append(rows,
			[2]any{"Total score", fmt.Sprintf("%d / %d", rep.Total, rep.MaxTotal)},
			[2]any{"Percentage", fmt.Sprintf("%d%%", rep.Percentage)},
			[2]any{"Rating", rep.Rating},
			[2]any{"Scored", rep.ScoredAt.UTC().Format(time.DateTime)},
		)
	} else {
		rows = append(rows, [2]any{"Rating", "Not scored yet"})
	}

	for i, r := range rows {
		if err := setCell(f, sh, 1, i+3, r[0], st.label); err != nil {
			return err
		}
		if err := setCell(f, sh, 2, i+3, r[1], st.wrap); err != nil {
			return err
		}
	}
	return nil
}

func writeAnswers(f *excelize.File, st styles, iv store.Interview, rep *feedback.Report) error {
	sh := AnswersSheet
	if err := setColWidths(f, sh, 5, 45, 60, 14, 8, 60); err != nil {
		return err
	}
	if err := f.SetSheetRow(sh, "A1", &answerHeaders); err != nil {
		return fmt.Errorf("report: header row: %w", err)
	}
	if err := f.SetCellStyle(sh, "A1", "F1", st.header); err != nil {
		return fmt.Errorf("report: header style: %w", err)
	}

	answers := make(map[int]interview.AnswerRecord, len(iv.Answers))
	for _, a := range iv.Answers {
		answers[a.QuestionIndex] = a
	}
	scores := make(map[int]feedback.Item)
	if rep != nil {
		for _, it := range rep.Items {
			scores[it.QuestionIndex] = it
		}
	}

	for i, q := range iv.Questions {
		a := answers[i]
		row := []any{i + 1, q.Prompt, a.AnswerText, string(a.Outcome), nil, nil}
		if it, ok := scores[i]; ok {
			row[4], row[5] = it.Score, it.Feedback
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("report: row %d: %w", i+1, err)
		}
		end, err := excelize.CoordinatesToCellName(len(answerHeaders), i+2)
		if err != nil {
			return fmt.Errorf("report: row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sh, start, &row); err != nil {
			return fmt.Errorf("report: row %d: %w", i+1, err)
		}
		if err := f.SetCellStyle(sh, start, end, st.wrap); err != nil {
			return fmt.Errorf("report: row %d style: %w", i+1, err)
		}
	}
	if err := f.SetPanes(sh, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("report: freeze header: %w", err)
	}
	return nil
}

// setColWidths sets the widths of columns A, B, ... in order.
func setColWidths(f *excelize.File, sheet string, widths ...float64) error {
	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("report: column width: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, w); err != nil {
			return fmt.Errorf("report: column width %s: %w", name, err)
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("report: cell: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("report: cell %s: %w", cell, err)
	}
	if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
		return fmt.Errorf("report: cell %s style: %w", cell, err)
	}
	return nil
}

func displayName(iv store.Interview) string {
	if iv.Name != "" {
		return iv.Name
	}
	return iv.ID
}
