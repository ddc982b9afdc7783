package interview

import "fmt"

// AnswerTimer is the per-question countdown. It has no clock of its own: the
// owner calls Tick once per second, which keeps it deterministic under test.
//
// Expiry is reported exactly once per Start/Reset cycle.
type AnswerTimer struct {
	budget    int
	remaining int
	running   bool
	started   bool
	expired   bool
}

// NewAnswerTimer returns a stopped timer holding the full budget.
func NewAnswerTimer(budgetSeconds int) *AnswerTimer {
	t := &AnswerTimer{}
	t.Reset(budgetSeconds)
	return t
}

// Start sets the remaining time to budget and begins counting.
func (t *AnswerTimer) Start(budgetSeconds int) {
	t.budget = budgetSeconds
	t.remaining = budgetSeconds
	t.running = true
	t.started = true
	t.expired = false
}

// Pause stops counting. No-op when already paused.
func (t *AnswerTimer) Pause() { t.running = false }

// Resume continues counting after Pause. No-op when running, when the timer
// was never started, or after expiry.
func (t *AnswerTimer) Resume() {
	if !t.started || t.expired {
		return
	}
	t.running = true
}

// Reset restores the full budget and leaves the timer stopped and unstarted.
func (t *AnswerTimer) Reset(budgetSeconds int) {
	t.budget = budgetSeconds
	t.remaining = budgetSeconds
	t.running = false
	t.started = false
	t.expired = false
}

// Tick advances the countdown by one second while running. It returns true on
// the tick that brings the remaining time to zero, and never again until the
// next Start or Reset.
func (t *AnswerTimer) Tick() bool {
	if !t.running || t.expired {
		return false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining == 0 {
		t.running = false
		t.expired = true
		return true
	}
	return false
}

// Remaining returns the seconds left.
func (t *AnswerTimer) Remaining() int { return t.remaining }

// Running reports whether the countdown is active.
func (t *AnswerTimer) Running() bool { return t.running }

// Started reports whether Start has been called since the last Reset.
func (t *AnswerTimer) Started() bool { return t.started }

// Budget returns the per-question allowance.
func (t *AnswerTimer) Budget() int { return t.budget }

// FormatClock renders seconds as M:SS. Negative values render as 0:00.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
