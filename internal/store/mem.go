package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/karanmishra2003/HoloHire/internal/interview"
)

// MemStore is an in-memory [Store]. Data is lost on restart.
type MemStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	users      map[string]User // by normalized email
	interviews map[string]*memInterview
	seq        int
}

type memInterview struct {
	iv  Interview
	seq int
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		now:        time.Now,
		users:      make(map[string]User),
		interviews: make(map[string]*memInterview),
	}
}

// Ping always succeeds.
func (s *MemStore) Ping(context.Context) error { return nil }

func (s *MemStore) UpsertUser(_ context.Context, u User) (User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return User{}, fmt.Errorf("%w: upsert user: email is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.Email]; ok {
		return existing, nil
	}
	u.ID = uuid.NewString()
	s.users[u.Email] = u
	return u, nil
}

func (s *MemStore) GetUser(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[normalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemStore) CreateInterview(_ context.Context, iv Interview) (Interview, error) {
	if err := iv.Validate(); err != nil {
		return Interview{}, err
	}
	if iv.Status == "" {
		iv.Status = StatusPending
	}
	iv.ID = uuid.NewString()
	iv.Questions = slices.Clone(emptyQuestions(iv.Questions))
	iv.Answers = slices.Clone(emptyAnswers(iv.Answers))

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	iv.CreatedAt, iv.UpdatedAt = now, now
	s.seq++
	s.interviews[iv.ID] = &memInterview{iv: iv, seq: s.seq}
	return cloneInterview(iv), nil
}

func (s *MemStore) GetInterview(_ context.Context, id string) (Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.interviews[id]
	if !ok {
		return Interview{}, ErrNotFound
	}
	return cloneInterview(m.iv), nil
}

func (s *MemStore) ListInterviews(_ context.Context, userID string) ([]Interview, error) {
	// Copy under the lock; update mutates entries in place.
	s.mu.RLock()
	var matched []memInterview
	for _, m := range s.interviews {
		if m.iv.UserID == userID {
			matched = append(matched, memInterview{iv: cloneInterview(m.iv), seq: m.seq})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b memInterview) int {
		if c := b.iv.CreatedAt.Compare(a.iv.CreatedAt); c != 0 {
			return c
		}
		return b.seq - a.seq
	})
	out := make([]Interview, 0, len(matched))
	for _, m := range matched {
		out = append(out, m.iv)
	}
	return out, nil
}

func (s *MemStore) UpdateQuestions(_ context.Context, id string, qs []interview.Question) error {
	return s.update(id, "update questions", func(iv *Interview) {
		iv.Questions = slices.Clone(emptyQuestions(qs))
	})
}

func (s *MemStore) RenameInterview(_ context.Context, id, name string) error {
	return s.update(id, "rename interview", func(iv *Interview) { iv.Name = name })
}

func (s *MemStore) DeleteInterview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.interviews, id)
	return nil
}

func (s *MemStore) WriteSessionResult(_ context.Context, sessionID string, answers []interview.AnswerRecord, status string) error {
	if err := validStatus(status); err != nil {
		return err
	}
	return s.update(sessionID, "write session result", func(iv *Interview) {
		iv.Answers = slices.Clone(emptyAnswers(answers))
		iv.Status = status
		iv.Feedback = nil
	})
}

func (s *MemStore) UpdateFeedback(_ context.Context, id string, feedback json.RawMessage) error {
	if !json.Valid(feedback) {
		return fmt.Errorf("%w: update feedback: malformed JSON", ErrInvalid)
	}
	return s.update(id, "update feedback", func(iv *Interview) {
		iv.Feedback = slices.Clone(feedback)
	})
}

func (s *MemStore) update(id, op string, fn func(*Interview)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.interviews[id]
	if !ok {
		return fmt.Errorf("store: %s: %w", op, ErrNotFound)
	}
	fn(&m.iv)
	m.iv.UpdatedAt = s.now()
	return nil
}

func cloneInterview(iv Interview) Interview {
	iv.Questions = slices.Clone(iv.Questions)
	iv.Answers = slices.Clone(iv.Answers)
	iv.Feedback = slices.Clone(iv.Feedback)
	return iv
}
