package questions

import (
	"context"

	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/resilience"
)

// Fallback tries several generators in order, each behind its own circuit
// breaker.
type Fallback struct {
	group *resilience.FallbackGroup[Generator]
}

var _ Generator = (*Fallback)(nil)

// NewFallback creates a [Fallback] preferring primary.
func NewFallback(primary Generator, primaryName string, cfg resilience.FallbackConfig) *Fallback {
	return &Fallback{group: resilience.NewFallbackGroup(primary, primaryName, cfg)}
}

// Add registers another generator.
func (f *Fallback) Add(name string, g Generator) { f.group.AddFallback(name, g) }

// Generate implements [Generator]. An invalid request fails immediately
// without touching any breaker.
func (f *Fallback) Generate(ctx context.Context, req Request) ([]interview.Question, error) {
	if _, err := req.Source(); err != nil {
		return nil, err
	}
	return resilience.ExecuteWithResult(ctx, f.group, func(g Generator) ([]interview.Question, error) {
		return g.Generate(ctx, req)
	})
}

// States reports each generator's breaker state.
func (f *Fallback) States() []resilience.EntryState { return f.group.States() }
