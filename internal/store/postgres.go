package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karanmishra2003/HoloHire/internal/interview"
)

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. Questions, answers and
// feedback are stored as JSONB.
type PostgresStore struct {
	db   DB
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing connection or pool. The schema must
// already exist; see [Migrate].
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open creates a connection pool for dsn and verifies connectivity.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &PostgresStore{db: pool, pool: pool}, nil
}

// Close releases the pool created by [Open]. It is a no-op for stores built
// with [NewPostgresStore].
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity when the underlying DB supports it.
func (s *PostgresStore) Ping(ctx context.Context) error {
	p, ok := s.db.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// UpsertUser inserts u unless a user with the same email exists, in which
// case the stored user is returned unchanged.
func (s *PostgresStore) UpsertUser(ctx context.Context, u User) (User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return User{}, fmt.Errorf("%w: upsert user: email is required", ErrInvalid)
	}

	const query = `
		INSERT INTO users (id, name, email, image_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, name, email, image_url`

	var out User
	err := s.db.QueryRow(ctx, query, uuid.NewString(), u.Name, u.Email, u.ImageURL).
		Scan(&out.ID, &out.Name, &out.Email, &out.ImageURL)
	if err != nil {
		return User{}, fmt.Errorf("store: upsert user: %w", err)
	}
	return out, nil
}

// GetUser looks a user up by email.
func (s *PostgresStore) GetUser(ctx context.Context, email string) (User, error) {
	const query = `SELECT id, name, email, image_url FROM users WHERE email = $1`

	var out User
	err := s.db.QueryRow(ctx, query, normalizeEmail(email)).Scan(&out.ID, &out.Name, &out.Email, &out.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("store: get user: %w", err)
	}
	return out, nil
}

// CreateInterview inserts iv with a fresh ID.
func (s *PostgresStore) CreateInterview(ctx context.Context, iv Interview) (Interview, error) {
	if err := iv.Validate(); err != nil {
		return Interview{}, err
	}
	if iv.Status == "" {
		iv.Status = StatusPending
	}
	iv.ID = uuid.NewString()

	questions, err := json.Marshal(emptyQuestions(iv.Questions))
	if err != nil {
		return Interview{}, fmt.Errorf("store: marshal questions: %w", err)
	}
	answers, err := json.Marshal(emptyAnswers(iv.Answers))
	if err != nil {
		return Interview{}, fmt.Errorf("store: marshal answers: %w", err)
	}

	const query = `
		INSERT INTO interviews (
			id, user_id, name, job_description, resume_file_name, resume_url,
			questions, answers, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		iv.ID, iv.UserID, iv.Name, iv.JobDescription, iv.ResumeFileName, iv.ResumeURL,
		questions, answers, iv.Status,
	).Scan(&iv.CreatedAt, &iv.UpdatedAt)
	if err != nil {
		return Interview{}, fmt.Errorf("store: create interview: %w", err)
	}
	iv.Questions = emptyQuestions(iv.Questions)
	iv.Answers = emptyAnswers(iv.Answers)
	return iv, nil
}

const interviewColumns = `
	id, user_id, name, job_description, resume_file_name, resume_url,
	questions, answers, feedback, status, created_at, updated_at`

// GetInterview retrieves an interview by ID.
func (s *PostgresStore) GetInterview(ctx context.Context, id string) (Interview, error) {
	query := `SELECT` + interviewColumns + ` FROM interviews WHERE id = $1`

	iv, err := scanInterview(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Interview{}, ErrNotFound
		}
		return Interview{}, fmt.Errorf("store: get interview %q: %w", id, err)
	}
	return iv, nil
}

// ListInterviews returns a user's interviews, newest first.
func (s *PostgresStore) ListInterviews(ctx context.Context, userID string) ([]Interview, error) {
	query := `SELECT` + interviewColumns + ` FROM interviews WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list interviews: %w", err)
	}
	defer rows.Close()

	out := []Interview{}
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list interviews scan: %w", err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list interviews: %w", err)
	}
	return out, nil
}

// UpdateQuestions replaces the question set.
func (s *PostgresStore) UpdateQuestions(ctx context.Context, id string, qs []interview.Question) error {
	data, err := json.Marshal(emptyQuestions(qs))
	if err != nil {
		return fmt.Errorf("store: marshal questions: %w", err)
	}
	const query = `UPDATE interviews SET questions = $2, updated_at = now() WHERE id = $1`
	return s.execOne(ctx, "update questions", query, id, data)
}

// RenameInterview sets the display name.
func (s *PostgresStore) RenameInterview(ctx context.Context, id, name string) error {
	const query = `UPDATE interviews SET name = $2, updated_at = now() WHERE id = $1`
	return s.execOne(ctx, "rename interview", query, id, name)
}

// DeleteInterview removes an interview by ID.
func (s *PostgresStore) DeleteInterview(ctx context.Context, id string) error {
	const query = `DELETE FROM interviews WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("store: delete interview %q: %w", id, err)
	}
	return nil
}

// WriteSessionResult stores the answers of a finished live session. Feedback
// is reset so that scoring runs against the new answers.
func (s *PostgresStore) WriteSessionResult(ctx context.Context, sessionID string, answers []interview.AnswerRecord, status string) error {
	if err := validStatus(status); err != nil {
		return err
	}
	data, err := json.Marshal(emptyAnswers(answers))
	if err != nil {
		return fmt.Errorf("store: marshal answers: %w", err)
	}
	const query = `
		UPDATE interviews
		SET answers = $2, status = $3, feedback = NULL, updated_at = now()
		WHERE id = $1`
	return s.execOne(ctx, "write session result", query, sessionID, data, status)
}

// UpdateFeedback stores scored feedback.
func (s *PostgresStore) UpdateFeedback(ctx context.Context, id string, feedback json.RawMessage) error {
	if !json.Valid(feedback) {
		return fmt.Errorf("%w: update feedback: malformed JSON", ErrInvalid)
	}
	const query = `UPDATE interviews SET feedback = $2, updated_at = now() WHERE id = $1`
	return s.execOne(ctx, "update feedback", query, id, []byte(feedback))
}

// execOne runs an UPDATE that must touch exactly one row.
func (s *PostgresStore) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: %s: %w", op, ErrNotFound)
	}
	return nil
}

// scanInterview reads one row selected with interviewColumns.
func scanInterview(row pgx.Row) (Interview, error) {
	var iv Interview
	var questions, answers, feedback []byte
	err := row.Scan(
		&iv.ID, &iv.UserID, &iv.Name, &iv.JobDescription, &iv.ResumeFileName, &iv.ResumeURL,
		&questions, &answers, &feedback, &iv.Status, &iv.CreatedAt, &iv.UpdatedAt,
	)
	if err != nil {
		return Interview{}, err
	}

	qs, err := interview.ParseQuestions(string(questions))
	if err != nil {
		return Interview{}, fmt.Errorf("store: decode questions: %w", err)
	}
	iv.Questions = qs
	iv.Answers = interview.ParseAnswers(string(answers))
	if len(feedback) > 0 {
		iv.Feedback = json.RawMessage(feedback)
	}
	return iv, nil
}

func emptyQuestions(qs []interview.Question) []interview.Question {
	if qs == nil {
		return []interview.Question{}
	}
	return qs
}

func emptyAnswers(as []interview.AnswerRecord) []interview.AnswerRecord {
	if as == nil {
		return []interview.AnswerRecord{}
	}
	return as
}
