package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/karanmishra2003/HoloHire/internal/observe"
	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s"
)

// StatusCompleted is the interview status written when a session finalizes.
const StatusCompleted = "completed"

// Result outcomes.
const (
	OutcomeCompleted     = "completed"
	OutcomeCancelled     = "cancelled"
	OutcomeConnectFailed = "connect_failed"
)

const (
	defaultPersistTimeout = 10 * time.Second
	defaultTickInterval   = time.Second
)

// ErrNotConnected is returned by [Controller.SendAudio] before the voice
// session is up or after it has been torn down.
var ErrNotConnected = errors.New("interview: voice session not connected")

// Gateway persists the outcome of a finished session.
type Gateway interface {
	WriteSessionResult(ctx context.Context, sessionID string, answers []AnswerRecord, status string) error
}

// Result describes how a session run ended.
type Result struct {
	SessionID string
	Outcome   string

	// Answers is the persisted record set. Empty unless the session finalized.
	Answers []AnswerRecord

	// PersistErr is the gateway error, if the final write failed. The session
	// still counts as completed.
	PersistErr error
}

// Option configures a [Controller].
type Option func(*Controller)

// WithLogger sets the base logger. The session ID is attached automatically.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithPersistTimeout bounds the final gateway write. Default 10s.
func WithPersistTimeout(d time.Duration) Option {
	return func(c *Controller) { c.persistTimeout = d }
}

// WithTickInterval overrides the one-second timer tick. Useful in tests.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tickInterval = d }
}

// WithRetry sets the connect retry policy.
func WithRetry(rc s2s.RetryConfig) Option {
	return func(c *Controller) { c.retry = rc }
}

// WithAudioSink receives every synthesised audio chunk from the voice session.
// It is called from a dedicated goroutine.
func WithAudioSink(fn func([]byte)) Option {
	return func(c *Controller) { c.audioSink = fn }
}

// WithObserver is called from the event loop with every changed snapshot.
// It must not block.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// WithCleanup registers a teardown hook. Hooks run once, in reverse order of
// registration, after the voice session is closed.
func WithCleanup(fn func()) Option {
	return func(c *Controller) { c.cleanups = append(c.cleanups, fn) }
}

// Controller runs one live interview session: it owns the voice session,
// feeds its events and a one-second tick into a [Machine] from a single
// goroutine, and executes the returned directives.
//
// Run must be called exactly once. All other methods are safe for concurrent
// use.
type Controller struct {
	id         string
	machine    *Machine
	provider   s2s.Provider
	gateway    Gateway
	sessionCfg s2s.SessionConfig
	caps       s2s.Capabilities

	log            *slog.Logger
	metrics        *observe.Metrics
	persistTimeout time.Duration
	tickInterval   time.Duration
	retry          s2s.RetryConfig
	audioSink      func([]byte)
	observers      []func(Snapshot)
	cleanups       []func()

	endReq   chan struct{}
	done     chan struct{}
	snapshot atomic.Pointer[Snapshot]

	mu        sync.Mutex
	session   s2s.SessionHandle
	voiceOnce sync.Once
	result    Result

	cleanupOnce sync.Once
	pumps       sync.WaitGroup
	completed   bool
}

// NewController prepares a session. Nothing connects until [Controller.Run].
func NewController(sessionID string, m *Machine, p s2s.Provider, gw Gateway, cfg s2s.SessionConfig, opts ...Option) *Controller {
	c := &Controller{
		id:             sessionID,
		machine:        m,
		provider:       p,
		gateway:        gw,
		sessionCfg:     cfg,
		caps:           p.Capabilities(),
		log:            slog.Default(),
		persistTimeout: defaultPersistTimeout,
		tickInterval:   defaultTickInterval,
		endReq:         make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.log = c.log.With("session_id", sessionID)
	c.result.SessionID = sessionID
	snap := m.Snapshot()
	c.snapshot.Store(&snap)
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Run connects the voice session and processes events until the session
// finalizes or ctx is cancelled. Cancellation tears everything down without
// finalizing, so nothing is persisted. The returned error is non-nil only
// when the voice session could not be established.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	defer close(c.done)

	c.metrics.ActiveSessions.Add(ctx, 1)
	defer c.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	c.apply(ctx, c.machine.Begin())
	if c.completed {
		c.cleanup()
		return c.finish(ctx, OutcomeCompleted), nil
	}

	if limit := c.caps.MaxSessionDuration; limit > 0 {
		if planned := c.machine.plannedDuration(); planned > limit {
			c.log.Warn("interview may outlast the voice session limit", "planned", planned, "limit", limit)
		}
	}

	start := time.Now()
	sess, endedEarly, err := c.connect(ctx)
	c.metrics.S2SConnectDuration.Record(ctx, time.Since(start).Seconds())
	if endedEarly {
		c.log.Info("session ended while connecting")
		c.apply(ctx, c.machine.OnUserRequestedEnd())
		c.cleanup()
		return c.finish(ctx, OutcomeCompleted), nil
	}
	if err != nil {
		c.cleanup()
		if ctx.Err() != nil {
			return c.finish(ctx, OutcomeCancelled), nil
		}
		c.metrics.RecordProviderError(ctx, "s2s", "connect")
		c.log.Error("voice session connect failed", "err", err)
		return c.finish(ctx, OutcomeConnectFailed), fmt.Errorf("interview: connect voice session: %w", err)
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.startAudioPump(sess.Audio())
	c.log.Info("voice session connected", "questions", c.machine.Snapshot().QuestionCount)

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	events := sess.Events()
	for !c.completed {
		select {
		case <-ctx.Done():
			c.log.Info("session cancelled before completion")
			c.cleanup()
			return c.finish(ctx, OutcomeCancelled), nil

		case <-c.endReq:
			c.apply(ctx, c.machine.OnUserRequestedEnd())

		case <-ticker.C:
			c.apply(ctx, c.machine.Tick())

		case ev, ok := <-events:
			if !ok {
				events = nil
				if err := sess.Err(); err != nil && !s2s.IsTransportNoise(err) {
					c.log.Warn("voice session closed with error", "err", err)
				}
				c.apply(ctx, c.machine.OnCallEnded())
				break
			}
			c.handleEvent(ctx, ev)
		}
		c.publish()
	}

	c.cleanup()
	return c.finish(ctx, OutcomeCompleted), nil
}

// connect dials the voice session. An End request that arrives while dialing
// abandons the dial; endedEarly then reports that the caller must finalize.
func (c *Controller) connect(ctx context.Context) (sess s2s.SessionHandle, endedEarly bool, err error) {
	type dialed struct {
		sess s2s.SessionHandle
		err  error
	}
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan dialed, 1)
	go func() {
		s, err := s2s.ConnectWithRetry(dctx, c.provider, c.sessionCfg, c.retry)
		ch <- dialed{s, err}
	}()

	select {
	case d := <-ch:
		return d.sess, false, d.err
	case <-c.endReq:
		cancel()
		if d := <-ch; d.sess != nil {
			if err := d.sess.Close(); err != nil && !s2s.IsTransportNoise(err) {
				c.log.Warn("failed to close abandoned voice session", "err", err)
			}
		}
		return nil, true, nil
	}
}

func (c *Controller) handleEvent(ctx context.Context, ev s2s.Event) {
	switch ev.Kind {
	case s2s.EventConnected:
		c.apply(ctx, c.machine.OnConnected())
	case s2s.EventAssistantSpeechStart:
		c.apply(ctx, c.machine.OnAssistantSpeechStart())
	case s2s.EventAssistantSpeechEnd:
		c.apply(ctx, c.machine.OnAssistantSpeechEnd())
	case s2s.EventAssistantTranscript:
		c.apply(ctx, c.machine.OnAssistantTranscript(ev.Text))
	case s2s.EventUserTranscript:
		c.apply(ctx, c.machine.OnUserTranscript(ev.Text, ev.Final))
	case s2s.EventEnded:
		if ev.Err != nil && !s2s.IsTransportNoise(ev.Err) {
			c.log.Warn("voice session ended with error", "err", ev.Err)
		}
		c.apply(ctx, c.machine.OnCallEnded())
	case s2s.EventError:
		if s2s.IsTransportNoise(ev.Err) {
			c.log.Debug("voice transport noise", "err", ev.Err)
			return
		}
		c.metrics.RecordProviderError(ctx, "s2s", "session")
		c.log.Warn("voice session error", "err", ev.Err)
	}
}

// apply executes directives in order.
func (c *Controller) apply(ctx context.Context, ds []Directive) {
	for _, d := range ds {
		switch d.Kind {
		case DirectiveInstruct:
			c.instruct(ctx, d)
		case DirectiveAdvanced:
			c.metrics.RecordAdvance(ctx, d.Trigger)
			c.log.Debug("question advanced", "index", d.Index, "trigger", d.Trigger)
		case DirectiveStopVoice:
			c.closeVoice()
		case DirectivePersist:
			c.persist(ctx, d.Answers)
		case DirectiveComplete:
			c.completed = true
		}
	}
}

func (c *Controller) instruct(ctx context.Context, d Directive) {
	switch d.Reason {
	case ReasonRepeat, ReasonBlocked, ReasonSkip:
		c.metrics.RecordVoiceCommand(ctx, d.Reason)
	}
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return
	}
	// Skip and time-up move on immediately, so cut off any reply in progress.
	if c.caps.SupportsInterrupt && (d.Reason == ReasonSkip || d.Reason == ReasonTimeUp) {
		if err := sess.Interrupt(); err != nil && !s2s.IsTransportNoise(err) {
			c.log.Debug("failed to interrupt response", "reason", d.Reason, "err", err)
		}
	}
	err := sess.InjectTextContext([]s2s.ContextItem{{Role: "system", Content: d.Text}})
	if err != nil && !s2s.IsTransportNoise(err) {
		c.log.Warn("failed to send control message", "reason", d.Reason, "err", err)
	}
}

// persist writes the final answers on a context detached from ctx so that a
// navigation-away during teardown cannot abort the write.
func (c *Controller) persist(ctx context.Context, answers []AnswerRecord) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.persistTimeout)
	defer cancel()

	start := time.Now()
	err := c.gateway.WriteSessionResult(pctx, c.id, answers, StatusCompleted)
	c.metrics.PersistDuration.Record(pctx, time.Since(start).Seconds())

	c.mu.Lock()
	c.result.Answers = answers
	c.result.PersistErr = err
	c.mu.Unlock()

	for _, a := range answers {
		c.metrics.RecordAnswer(pctx, string(a.Outcome))
	}
	if err != nil {
		c.metrics.PersistFailures.Add(pctx, 1)
		c.log.Error("failed to persist session result", "answers", len(answers), "err", err)
		return
	}
	c.log.Info("session result persisted", "answers", len(answers))
}

func (c *Controller) startAudioPump(src <-chan []byte) {
	if src == nil {
		return
	}
	c.pumps.Go(func() {
		for chunk := range src {
			if c.audioSink != nil {
				c.audioSink(chunk)
			}
		}
	})
}

// closeVoice closes the voice session at most once.
func (c *Controller) closeVoice() {
	c.voiceOnce.Do(func() {
		c.mu.Lock()
		sess := c.session
		c.mu.Unlock()
		if sess == nil {
			return
		}
		if err := sess.Close(); err != nil && !s2s.IsTransportNoise(err) {
			c.log.Warn("failed to close voice session", "err", err)
		}
	})
}

// cleanup runs teardown exactly once, independently of whether the machine
// finalized.
func (c *Controller) cleanup() {
	c.cleanupOnce.Do(func() {
		c.closeVoice()
		c.pumps.Wait()
		for i := len(c.cleanups) - 1; i >= 0; i-- {
			c.cleanups[i]()
		}
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
	})
}

func (c *Controller) finish(ctx context.Context, outcome string) Result {
	c.publish()
	c.metrics.RecordSessionOutcome(context.WithoutCancel(ctx), outcome)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Outcome = outcome
	return c.result
}

// publish stores the current snapshot and notifies observers when it changed.
func (c *Controller) publish() {
	snap := c.machine.Snapshot()
	if prev := c.snapshot.Load(); prev != nil && *prev == snap {
		return
	}
	c.snapshot.Store(&snap)
	for _, fn := range c.observers {
		fn(snap)
	}
}

// End asks the session to finalize as if the candidate pressed End. It does
// not block and is a no-op once the session is over.
func (c *Controller) End() {
	select {
	case c.endReq <- struct{}{}:
	default:
	}
}

// SendAudio forwards candidate microphone audio to the voice session.
func (c *Controller) SendAudio(chunk []byte) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.SendAudio(chunk)
}

// Snapshot returns the most recently published session state.
func (c *Controller) Snapshot() Snapshot { return *c.snapshot.Load() }

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} { return c.done }
