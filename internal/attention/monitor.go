// Package attention aggregates head-pose samples posted by the browser into a
// best-effort attentiveness signal for the live interview view.
//
// The monitor is informational only. Nothing in the interview state machine
// reads it, and dropped or missing samples never affect a session.
package attention

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Defaults for [Config].
const (
	DefaultInterval = 2 * time.Second
	DefaultMaxYaw   = 25.0
	DefaultMaxPitch = 20.0

	sampleBuffer = 64
)

// State is the classification of one sample.
type State int

const (
	NoFace State = iota
	Attentive
	LookingAway
)

func (s State) String() string {
	switch s {
	case Attentive:
		return "attentive"
	case LookingAway:
		return "looking_away"
	default:
		return "no_face"
	}
}

// Sample is one head-pose estimate. Yaw and pitch are in degrees, zero facing
// the camera.
type Sample struct {
	HasFace bool    `json:"hasFace"`
	Yaw     float64 `json:"yaw"`
	Pitch   float64 `json:"pitch"`
}

// Thresholds bound the head angles still counted as attentive.
type Thresholds struct {
	MaxYaw   float64
	MaxPitch float64
}

// Classify maps a sample to a [State].
func Classify(s Sample, th Thresholds) State {
	if !s.HasFace || math.IsNaN(s.Yaw) || math.IsNaN(s.Pitch) {
		return NoFace
	}
	if math.Abs(s.Yaw) > th.MaxYaw || math.Abs(s.Pitch) > th.MaxPitch {
		return LookingAway
	}
	return Attentive
}

// Report summarises the samples seen in one interval, or cumulatively from
// [Monitor.Totals].
type Report struct {
	Attentive int     `json:"attentive"`
	Away      int     `json:"away"`
	NoFace    int     `json:"noFace"`
	Ratio     float64 `json:"ratio"`
	Current   string  `json:"current"`
}

func (r *Report) add(st State) {
	switch st {
	case Attentive:
		r.Attentive++
	case LookingAway:
		r.Away++
	default:
		r.NoFace++
	}
	r.Current = st.String()
	if total := r.Attentive + r.Away + r.NoFace; total > 0 {
		r.Ratio = float64(r.Attentive) / float64(total)
	}
}

func (r *Report) merge(o Report) {
	r.Attentive += o.Attentive
	r.Away += o.Away
	r.NoFace += o.NoFace
	r.Current = o.Current
	if total := r.Attentive + r.Away + r.NoFace; total > 0 {
		r.Ratio = float64(r.Attentive) / float64(total)
	}
}

// Config configures a [Monitor].
type Config struct {
	// Interval between reports. Defaults to 2s.
	Interval time.Duration

	// Thresholds default to 25 degrees yaw and 20 degrees pitch.
	Thresholds Thresholds

	// OnReport receives one report per interval that saw samples. It is called
	// from the monitor goroutine.
	OnReport func(Report)

	// OnSample, if set, is called with every classified sample.
	OnSample func(State)
}

// Monitor classifies samples and reports periodically. Observe is safe for
// concurrent use.
type Monitor struct {
	interval time.Duration
	th       Thresholds
	onReport func(Report)
	onSample func(State)

	samples  chan Sample
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	totals Report
}

// New returns a monitor. Call Run to start it.
func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Thresholds.MaxYaw <= 0 {
		cfg.Thresholds.MaxYaw = DefaultMaxYaw
	}
	if cfg.Thresholds.MaxPitch <= 0 {
		cfg.Thresholds.MaxPitch = DefaultMaxPitch
	}
	return &Monitor{
		interval: cfg.Interval,
		th:       cfg.Thresholds,
		onReport: cfg.OnReport,
		onSample: cfg.OnSample,
		samples:  make(chan Sample, sampleBuffer),
		done:     make(chan struct{}),
	}
}

// Observe queues a sample. It never blocks: samples are dropped when the
// buffer is full or the monitor has stopped, and Observe reports false.
func (m *Monitor) Observe(s Sample) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.samples <- s:
		return true
	default:
		return false
	}
}

// Run processes samples until ctx is cancelled or Stop is called.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var window Report
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case s := <-m.samples:
			st := Classify(s, m.th)
			window.add(st)
			if m.onSample != nil {
				m.onSample(st)
			}
		case <-ticker.C:
			if window.Attentive+window.Away+window.NoFace == 0 {
				continue
			}
			m.mu.Lock()
			m.totals.merge(window)
			m.mu.Unlock()
			if m.onReport != nil {
				m.onReport(window)
			}
			slog.Debug("attention window", "attentive", window.Attentive, "away", window.Away, "no_face", window.NoFace)
			window = Report{}
		}
	}
}

// Stop halts Run. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

// Totals returns the cumulative counts over all completed intervals.
func (m *Monitor) Totals() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}
