package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/karanmishra2003/HoloHire/internal/attention"
	"github.com/karanmishra2003/HoloHire/internal/config"
	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/observe"
	"github.com/karanmishra2003/HoloHire/internal/voicecmd"
	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s"
)

var (
	// ErrSessionActive is returned by Start when the interview already has a
	// live session.
	ErrSessionActive = errors.New("app: interview already has a live session")

	// ErrNoSession is returned when no live session exists for an interview.
	ErrNoSession = errors.New("app: no live session for interview")

	// ErrVoiceUnavailable is returned by Start when no voice provider is
	// configured.
	ErrVoiceUnavailable = errors.New("app: voice provider is not configured")
)

// SessionInfo describes a running live session.
type SessionInfo struct {
	InterviewID string
	UserID      string
	StartedAt   time.Time
	Questions   int
}

// Hooks receive session output. Every hook is optional and must not block.
type Hooks struct {
	// Audio receives interviewer audio chunks.
	Audio func([]byte)

	// Snapshot receives every changed session state.
	Snapshot func(interview.Snapshot)

	// Attention receives one report per monitor interval.
	Attention func(attention.Report)

	// Done receives the result once the session has ended.
	Done func(interview.Result, error)
}

// Live is a handle on one running session.
type Live struct {
	info    SessionInfo
	ctrl    *interview.Controller
	monitor *attention.Monitor
	cancel  context.CancelFunc
	done    chan struct{}
}

// Info returns the session metadata.
func (l *Live) Info() SessionInfo { return l.info }

// SendAudio forwards candidate microphone audio.
func (l *Live) SendAudio(chunk []byte) error { return l.ctrl.SendAudio(chunk) }

// ObserveGaze queues a head-pose sample for the attention monitor.
func (l *Live) ObserveGaze(s attention.Sample) bool { return l.monitor.Observe(s) }

// End finalizes the session as if the candidate pressed End.
func (l *Live) End() { l.ctrl.End() }

// Cancel tears the session down without persisting answers.
func (l *Live) Cancel() { l.cancel() }

// Snapshot returns the latest published state.
func (l *Live) Snapshot() interview.Snapshot { return l.ctrl.Snapshot() }

// Attention returns the cumulative attention report.
func (l *Live) Attention() attention.Report { return l.monitor.Totals() }

// Done is closed once the session has ended, been removed from the manager
// and its Done hook has returned.
func (l *Live) Done() <-chan struct{} { return l.done }

// SessionManagerConfig holds the dependencies of a [SessionManager].
type SessionManagerConfig struct {
	Provider s2s.Provider
	Gateway  interview.Gateway

	// Settings returns the interview and attention settings for a new
	// session. It is called on every Start so reloaded values apply to the
	// next session.
	Settings func() (config.InterviewConfig, config.AttentionConfig)

	Metrics *observe.Metrics
	Logger  *slog.Logger

	// TickInterval overrides the one second timer tick.
	TickInterval time.Duration
}

// SessionManager tracks live sessions, at most one per interview. All
// methods are safe for concurrent use.
type SessionManager struct {
	cfg SessionManagerConfig

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Live
	wg       sync.WaitGroup
}

// NewSessionManager returns an empty manager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Settings == nil {
		cfg.Settings = func() (config.InterviewConfig, config.AttentionConfig) {
			return config.InterviewConfig{}, config.AttentionConfig{}
		}
	}
	base, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		cfg:      cfg,
		base:     base,
		cancel:   cancel,
		sessions: make(map[string]*Live),
	}
}

// Start begins a live session for interviewID with the given questions. The
// session runs in the background until it finalizes, is cancelled, or the
// manager stops.
func (sm *SessionManager) Start(interviewID, userID string, questions []interview.Question, hooks Hooks) (*Live, error) {
	if sm.cfg.Provider == nil {
		return nil, ErrVoiceUnavailable
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if err := sm.base.Err(); err != nil {
		return nil, fmt.Errorf("app: session manager stopped: %w", err)
	}
	if _, ok := sm.sessions[interviewID]; ok {
		return nil, fmt.Errorf("%w (id=%s)", ErrSessionActive, interviewID)
	}

	ivCfg, attCfg := sm.cfg.Settings()
	machine := interview.NewMachine(interview.MachineConfig{
		Questions:       questions,
		QuestionSeconds: ivCfg.QuestionSeconds,
		DetectionPrefix: ivCfg.DetectionPrefix,
		Commands:        voicecmd.New(ivCfg.SkipPhrases, ivCfg.RepeatPhrases, ivCfg.BlockedPhrases),
	})

	ctx, cancel := context.WithCancel(sm.base)
	monitor := attention.New(attention.Config{
		Interval:   attCfg.Interval,
		Thresholds: attention.Thresholds{MaxYaw: attCfg.MaxYaw, MaxPitch: attCfg.MaxPitch},
		OnReport:   hooks.Attention,
		OnSample: func(st attention.State) {
			sm.cfg.Metrics.RecordAttention(ctx, st.String())
		},
	})

	greeting := ivCfg.Greeting
	if greeting == "" {
		greeting = interview.DefaultGreeting
	}
	sessCfg := s2s.SessionConfig{
		Instructions: interview.SystemPrompt(questions),
		Greeting:     greeting,
		Voice:        s2s.VoiceProfile{ID: ivCfg.Voice},
	}

	opts := []interview.Option{
		interview.WithLogger(sm.cfg.Logger.With("interview_id", interviewID)),
		interview.WithMetrics(sm.cfg.Metrics),
		interview.WithRetry(s2s.RetryConfig{MaxAttempts: ivCfg.ConnectAttempts}),
		interview.WithCleanup(monitor.Stop),
	}
	if ivCfg.PersistTimeout > 0 {
		opts = append(opts, interview.WithPersistTimeout(ivCfg.PersistTimeout))
	}
	if sm.cfg.TickInterval > 0 {
		opts = append(opts, interview.WithTickInterval(sm.cfg.TickInterval))
	}
	if hooks.Audio != nil {
		opts = append(opts, interview.WithAudioSink(hooks.Audio))
	}
	if hooks.Snapshot != nil {
		opts = append(opts, interview.WithObserver(hooks.Snapshot))
	}

	ctrl := interview.NewController(interviewID, machine, sm.cfg.Provider, sm.cfg.Gateway, sessCfg, opts...)
	live := &Live{
		info: SessionInfo{
			InterviewID: interviewID,
			UserID:      userID,
			StartedAt:   time.Now().UTC(),
			Questions:   len(questions),
		},
		ctrl:    ctrl,
		monitor: monitor,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	sm.sessions[interviewID] = live

	sm.wg.Add(2)
	go func() {
		defer sm.wg.Done()
		monitor.Run(ctx)
	}()
	go func() {
		defer sm.wg.Done()
		defer close(live.done)
		defer cancel()
		res, err := ctrl.Run(ctx)
		monitor.Stop()
		sm.remove(interviewID, live)
		sm.cfg.Logger.Info("live session ended",
			"interview_id", interviewID,
			"outcome", res.Outcome,
			"answers", len(res.Answers),
		)
		if hooks.Done != nil {
			hooks.Done(res, err)
		}
	}()

	sm.cfg.Logger.Info("live session started",
		"interview_id", interviewID,
		"user_id", userID,
		"questions", len(questions),
	)
	return live, nil
}

func (sm *SessionManager) remove(id string, l *Live) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.sessions[id] == l {
		delete(sm.sessions, id)
	}
}

// Get returns the live session for interviewID.
func (sm *SessionManager) Get(interviewID string) (*Live, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	l, ok := sm.sessions[interviewID]
	return l, ok
}

// End asks the live session for interviewID to finalize.
func (sm *SessionManager) End(interviewID string) error {
	l, ok := sm.Get(interviewID)
	if !ok {
		return fmt.Errorf("%w (id=%s)", ErrNoSession, interviewID)
	}
	l.End()
	return nil
}

// Snapshot returns the current state of the live session for interviewID.
func (sm *SessionManager) Snapshot(interviewID string) (interview.Snapshot, error) {
	l, ok := sm.Get(interviewID)
	if !ok {
		return interview.Snapshot{}, fmt.Errorf("%w (id=%s)", ErrNoSession, interviewID)
	}
	return l.Snapshot(), nil
}

// Active lists running sessions ordered by start time.
func (sm *SessionManager) Active() []SessionInfo {
	sm.mu.Lock()
	out := make([]SessionInfo, 0, len(sm.sessions))
	for _, l := range sm.sessions {
		out = append(out, l.info)
	}
	sm.mu.Unlock()
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.InterviewID, b.InterviewID)
	})
	return out
}

// StopAll cancels every live session and waits for them to tear down or for
// ctx to expire. Start fails afterwards.
func (sm *SessionManager) StopAll(ctx context.Context) error {
	sm.mu.Lock()
	n := len(sm.sessions)
	sm.cancel()
	sm.mu.Unlock()
	if n > 0 {
		sm.cfg.Logger.Info("stopping live sessions", "count", n)
	}

	done := make(chan struct{})
	go func() {
		sm.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("app: stop sessions: %w", ctx.Err())
	}
}
