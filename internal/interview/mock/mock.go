// Package mock provides a test double for interview.Gateway.
package mock

import (
	"context"
	"sync"

	"github.com/karanmishra2003/HoloHire/internal/interview"
)

// WriteCall records a single WriteSessionResult invocation.
type WriteCall struct {
	SessionID string
	Answers   []interview.AnswerRecord
	Status    string

	// CtxErr is ctx.Err() observed at call time.
	CtxErr error
}

// Gateway is a mock implementation of interview.Gateway.
type Gateway struct {
	mu sync.Mutex

	// WriteErr, if non-nil, is returned from every write.
	WriteErr error

	// WriteFunc, if set, is called instead of returning WriteErr.
	WriteFunc func(ctx context.Context, sessionID string, answers []interview.AnswerRecord, status string) error

	writes []WriteCall
}

// WriteSessionResult records the call.
func (g *Gateway) WriteSessionResult(ctx context.Context, sessionID string, answers []interview.AnswerRecord, status string) error {
	g.mu.Lock()
	cp := make([]interview.AnswerRecord, len(answers))
	copy(cp, answers)
	g.writes = append(g.writes, WriteCall{SessionID: sessionID, Answers: cp, Status: status, CtxErr: ctx.Err()})
	fn, err := g.WriteFunc, g.WriteErr
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, sessionID, answers, status)
	}
	return err
}

// Writes returns a copy of every recorded call. Thread-safe.
func (g *Gateway) Writes() []WriteCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]WriteCall, len(g.writes))
	copy(out, g.writes)
	return out
}

var _ interview.Gateway = (*Gateway)(nil)
