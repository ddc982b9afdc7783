package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/karanmishra2003/HoloHire/internal/interview"
)

// ---------------------------------------------------------------------------
// Mock DB types
// ---------------------------------------------------------------------------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// assign copies values into scan destinations.
func assign(dest []any, values ...any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			if v == nil {
				*d = nil
			} else {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

// mockRows implements pgx.Rows for testing.
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error { return assign(dest, r.data[r.idx-1]...) }

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func interviewRow(id string, questions, answers, feedback []byte, status string) []any {
	var fb any
	if feedback != nil {
		fb = feedback
	}
	return []any{
		id, "user-1", "Backend role", "Go developer", "cv.pdf", "https://ik.example/cv.pdf",
		questions, answers, fb, status, testTime, testTime,
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func TestPostgresStore_UpsertUser(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	var gotSQL string
	db := &mockDB{
		queryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
			gotSQL, gotArgs = sql, args
			return &mockRow{scanFunc: func(dest ...any) error {
				return assign(dest, "existing-id", "Ada", "ada@example.com", "")
			}}
		},
	}
	s := NewPostgresStore(db)

	u, err := s.UpsertUser(context.Background(), User{Name: "Ada L", Email: "  Ada@Example.com "})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if u.ID != "existing-id" || u.Name != "Ada" {
		t.Errorf("user = %+v; want stored row", u)
	}
	if !strings.Contains(gotSQL, "ON CONFLICT (email)") {
		t.Errorf("query missing conflict clause: %s", gotSQL)
	}
	if gotArgs[2] != "ada@example.com" {
		t.Errorf("email arg = %v; want normalized", gotArgs[2])
	}

	if _, err := s.UpsertUser(context.Background(), User{Name: "No email"}); err == nil {
		t.Error("expected error for empty email")
	}
}

func TestPostgresStore_GetUser_NotFound(t *testing.T) {
	t.Parallel()

	s := NewPostgresStore(&mockDB{})
	if _, err := s.GetUser(context.Background(), "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Interviews
// ---------------------------------------------------------------------------

func TestPostgresStore_CreateInterview(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			gotArgs = args
			return &mockRow{scanFunc: func(dest ...any) error {
				return assign(dest, testTime, testTime)
			}}
		},
	}
	s := NewPostgresStore(db)

	iv, err := s.CreateInterview(context.Background(), Interview{
		UserID:         "user-1",
		JobDescription: "Go developer",
		Questions:      []interview.Question{{Prompt: "Why Go?"}},
	})
	if err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	if iv.ID == "" || iv.Status != StatusPending || !iv.CreatedAt.Equal(testTime) {
		t.Errorf("interview = %+v", iv)
	}
	if got := string(gotArgs[6].([]byte)); got != `[{"question":"Why Go?"}]` {
		t.Errorf("questions arg = %s", got)
	}
	if got := string(gotArgs[7].([]byte)); got != "[]" {
		t.Errorf("answers arg = %s; want []", got)
	}
	if iv.Answers == nil {
		t.Error("answers should be an empty slice")
	}
}

func TestPostgresStore_CreateInterview_Invalid(t *testing.T) {
	t.Parallel()

	s := NewPostgresStore(&mockDB{})
	_, err := s.CreateInterview(context.Background(), Interview{Status: "archived"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"user id is required", `unknown status "archived"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestPostgresStore_GetInterview(t *testing.T) {
	t.Parallel()

	answers := interview.EncodeAnswers([]interview.AnswerRecord{{QuestionIndex: 0, QuestionText: "Why Go?", AnswerText: "It is simple.", Outcome: interview.OutcomeAnswered}})
	tests := []struct {
		name     string
		scan     func(dest ...any) error
		wantErr  error
		feedback bool
	}{
		{
			name: "found with feedback",
			scan: func(dest ...any) error {
				return assign(dest, interviewRow("iv-1", []byte(`[{"question":"Why Go?"}]`), []byte(answers), []byte(`{"total":7}`), StatusCompleted)...)
			},
			feedback: true,
		},
		{
			name: "found without feedback",
			scan: func(dest ...any) error {
				return assign(dest, interviewRow("iv-1", []byte(`[{"question":"Why Go?"}]`), []byte(answers), nil, StatusCompleted)...)
			},
		},
		{
			name:    "not found",
			scan:    func(...any) error { return pgx.ErrNoRows },
			wantErr: ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := &mockDB{queryRowFunc: func(context.Context, string, ...any) pgx.Row {
				return &mockRow{scanFunc: tt.scan}
			}}
			iv, err := NewPostgresStore(db).GetInterview(context.Background(), "iv-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v; want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetInterview: %v", err)
			}
			if len(iv.Questions) != 1 || iv.Questions[0].Prompt != "Why Go?" {
				t.Errorf("questions = %+v", iv.Questions)
			}
			if len(iv.Answers) != 1 || iv.Answers[0].AnswerText != "It is simple." {
				t.Errorf("answers = %+v", iv.Answers)
			}
			if (iv.Feedback != nil) != tt.feedback {
				t.Errorf("feedback = %s", iv.Feedback)
			}
		})
	}
}

func TestPostgresStore_ListInterviews(t *testing.T) {
	t.Parallel()

	rows := &mockRows{data: [][]any{
		interviewRow("iv-2", []byte("[]"), []byte("[]"), nil, StatusPending),
		interviewRow("iv-1", []byte("[]"), []byte("[]"), nil, StatusCompleted),
	}}
	var gotSQL string
	db := &mockDB{queryFunc: func(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
		gotSQL = sql
		return rows, nil
	}}

	list, err := NewPostgresStore(db).ListInterviews(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListInterviews: %v", err)
	}
	if len(list) != 2 || list[0].ID != "iv-2" {
		t.Errorf("list = %+v", list)
	}
	if !strings.Contains(gotSQL, "ORDER BY created_at DESC") {
		t.Errorf("query not ordered newest first: %s", gotSQL)
	}
	if !rows.closed {
		t.Error("rows not closed")
	}

	empty, err := NewPostgresStore(&mockDB{}).ListInterviews(context.Background(), "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("empty list = %#v, err = %v", empty, err)
	}
}

func TestPostgresStore_WriteSessionResult(t *testing.T) {
	t.Parallel()

	var gotSQL string
	var gotArgs []any
	db := &mockDB{execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		gotSQL, gotArgs = sql, args
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}}
	s := NewPostgresStore(db)

	recs := []interview.AnswerRecord{{QuestionIndex: 0, AnswerText: interview.SentinelSkipped, Outcome: interview.OutcomeSkipped}}
	if err := s.WriteSessionResult(context.Background(), "iv-1", recs, StatusCompleted); err != nil {
		t.Fatalf("WriteSessionResult: %v", err)
	}
	if !strings.Contains(gotSQL, "feedback = NULL") {
		t.Errorf("query does not reset feedback: %s", gotSQL)
	}
	var decoded []interview.AnswerRecord
	if err := json.Unmarshal(gotArgs[1].([]byte), &decoded); err != nil || len(decoded) != 1 {
		t.Errorf("answers arg = %s", gotArgs[1])
	}

	if err := s.WriteSessionResult(context.Background(), "iv-1", nil, "archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestPostgresStore_UpdatesReportNotFound(t *testing.T) {
	t.Parallel()

	db := &mockDB{execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	s := NewPostgresStore(db)
	ctx := context.Background()

	checks := map[string]error{
		"rename":    s.RenameInterview(ctx, "missing", "x"),
		"questions": s.UpdateQuestions(ctx, "missing", nil),
		"result":    s.WriteSessionResult(ctx, "missing", nil, StatusCompleted),
		"feedback":  s.UpdateFeedback(ctx, "missing", json.RawMessage(`{}`)),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: err = %v; want ErrNotFound", name, err)
		}
	}
	if err := s.DeleteInterview(ctx, "missing"); err != nil {
		t.Errorf("DeleteInterview(missing) = %v; want nil", err)
	}
	if err := s.UpdateFeedback(ctx, "iv-1", json.RawMessage(`{broken`)); err == nil {
		t.Error("expected error for invalid feedback JSON")
	}
}

func TestPostgresStore_ExecError(t *testing.T) {
	t.Parallel()

	errDB := errors.New("connection refused")
	db := &mockDB{execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errDB
	}}
	err := NewPostgresStore(db).RenameInterview(context.Background(), "iv-1", "x")
	if !errors.Is(err, errDB) {
		t.Errorf("err = %v; want wrapping %v", err, errDB)
	}
}

func TestMigrations_Embedded(t *testing.T) {
	t.Parallel()

	fsys := Migrations()
	for _, name := range []string{"00001_create_users.sql", "00002_create_interviews.sql"} {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
			t.Errorf("%s missing goose annotations", name)
		}
	}
}
