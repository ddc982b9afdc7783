// Package store persists users and interviews.
//
// [PostgresStore] is the production implementation; [MemStore] serves local
// development and tests. Both implement [Store], which also satisfies
// interview.Gateway so the live session can write its result directly.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/karanmishra2003/HoloHire/internal/interview"
)

// Interview statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// ErrNotFound is returned when a user or interview does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrInvalid is wrapped by validation failures.
var ErrInvalid = errors.New("store: invalid input")

// User is a registered candidate. Email is the natural key.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
}

// Interview is one mock interview with its questions, the recorded answers of
// its live session and, once scored, its feedback.
type Interview struct {
	ID             string                   `json:"id"`
	UserID         string                   `json:"userId"`
	Name           string                   `json:"name"`
	JobDescription string                   `json:"jobDescription"`
	ResumeFileName string                   `json:"resumeFileName"`
	ResumeURL      string                   `json:"resumeUrl,omitempty"`
	Questions      []interview.Question     `json:"questions"`
	Answers        []interview.AnswerRecord `json:"answers"`

	// Feedback is the scorer's JSON output. Nil until scored.
	Feedback json.RawMessage `json:"feedback,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the fields required to create an interview.
func (iv *Interview) Validate() error {
	var errs []error
	if strings.TrimSpace(iv.UserID) == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	switch iv.Status {
	case "", StatusPending, StatusCompleted:
	default:
		errs = append(errs, fmt.Errorf("unknown status %q", iv.Status))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: interview: %w", ErrInvalid, err)
	}
	return nil
}

// Store is the data layer. Implementations must be safe for concurrent use.
type Store interface {
	// UpsertUser returns the existing user with u.Email, or creates one.
	UpsertUser(ctx context.Context, u User) (User, error)

	// GetUser looks a user up by email.
	GetUser(ctx context.Context, email string) (User, error)

	// CreateInterview inserts iv, assigning ID, status and timestamps.
	CreateInterview(ctx context.Context, iv Interview) (Interview, error)

	GetInterview(ctx context.Context, id string) (Interview, error)

	// ListInterviews returns the user's interviews, newest first.
	ListInterviews(ctx context.Context, userID string) ([]Interview, error)

	UpdateQuestions(ctx context.Context, id string, qs []interview.Question) error
	RenameInterview(ctx context.Context, id, name string) error

	// DeleteInterview removes an interview. Deleting a missing interview is
	// not an error.
	DeleteInterview(ctx context.Context, id string) error

	// WriteSessionResult stores the answers of a finished live session, sets
	// the status and clears any previous feedback.
	WriteSessionResult(ctx context.Context, sessionID string, answers []interview.AnswerRecord, status string) error

	UpdateFeedback(ctx context.Context, id string, feedback json.RawMessage) error

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
}

var _ interview.Gateway = Store(nil)

// normalizeEmail is the canonical form used for lookups.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validStatus(s string) error {
	if s != StatusPending && s != StatusCompleted {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, s)
	}
	return nil
}
