// Package app wires the HoloHire subsystems into a running server.
//
// New builds the store, the LLM fallback chain, question generators, the
// feedback scorer, the upload signer, the avatar client and the live session
// manager from the config. Run serves HTTP until its context ends and
// Shutdown tears everything down in order.
//
// Tests inject doubles through functional options (WithStore, WithHandler).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/karanmishra2003/HoloHire/internal/avatar"
	"github.com/karanmishra2003/HoloHire/internal/config"
	"github.com/karanmishra2003/HoloHire/internal/feedback"
	"github.com/karanmishra2003/HoloHire/internal/health"
	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/observe"
	"github.com/karanmishra2003/HoloHire/internal/questions"
	"github.com/karanmishra2003/HoloHire/internal/resilience"
	"github.com/karanmishra2003/HoloHire/internal/store"
	"github.com/karanmishra2003/HoloHire/internal/upload"
	"github.com/karanmishra2003/HoloHire/pkg/provider/llm"
	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s"
)

var (
	// ErrUnavailable is returned when a feature's backing service is not
	// configured.
	ErrUnavailable = errors.New("app: feature is not configured")

	// ErrNoAnswers is returned when scoring an interview that has no
	// recorded answers yet.
	ErrNoAnswers = errors.New("app: interview has no answers to score")
)

// NamedLLM is an LLM backend with the name used in logs and metrics.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// Providers holds the provider instances built from the config registry.
// Nil values mean the provider is not configured.
type Providers struct {
	LLM         *NamedLLM
	LLMFallback []NamedLLM
	S2S         s2s.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       atomic.Pointer[config.Config]
	providers *Providers
	metrics   *observe.Metrics
	log       *slog.Logger

	store     store.Store
	llm       *resilience.LLMFallback
	generator atomic.Pointer[questions.Fallback]
	scorer    *feedback.Scorer
	signer    *upload.Signer
	avatar    *avatar.Client
	sessions  *SessionManager

	handler    http.Handler
	newHandler func(*App) http.Handler

	srvMu  sync.Mutex
	server *http.Server
	addr   net.Addr
	ready  chan struct{}

	// closers run in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option configures New.
type Option func(*App)

// WithStore injects a store instead of opening one from the config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithHandler sets the HTTP handler factory. It is called once at the end of
// New with the fully built App.
func WithHandler(fn func(*App) http.Handler) Option {
	return func(a *App) { a.newHandler = fn }
}

// WithMetrics overrides [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// New creates an App from cfg and the instantiated providers.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		providers: providers,
		log:       slog.Default(),
		ready:     make(chan struct{}),
	}
	a.cfg.Store(cfg)
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	a.initLLM()
	a.generator.Store(a.buildGenerator(cfg.Questions))

	if err := a.initUpload(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init upload: %w", err)
	}
	if err := a.initAvatar(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init avatar: %w", err)
	}

	a.sessions = NewSessionManager(SessionManagerConfig{
		Provider: providers.S2S,
		Gateway:  a.store,
		Settings: func() (config.InterviewConfig, config.AttentionConfig) {
			c := a.cfg.Load()
			return c.Interview, c.Attention
		},
		Metrics: a.metrics,
		Logger:  a.log,
	})

	if a.newHandler != nil {
		a.handler = a.newHandler(a)
	}
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	sc := a.cfg.Load().Store
	if sc.PostgresDSN == "" {
		a.store = store.NewMemStore()
		a.log.Info("using in-memory store")
		return nil
	}
	if sc.AutoMigrate {
		n, err := store.Migrate(ctx, sc.PostgresDSN)
		if err != nil {
			return err
		}
		a.log.Info("database migrated", "applied", n)
	}
	pg, err := store.Open(ctx, sc.PostgresDSN)
	if err != nil {
		return err
	}
	a.store = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	a.log.Info("connected to postgres store")
	return nil
}

func (a *App) breakerConfig() resilience.FallbackConfig {
	return resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, from, to resilience.State) {
			a.log.Warn("circuit breaker state changed", "name", name, "from", from, "to", to)
		},
	}}
}

func (a *App) initLLM() {
	primary := a.providers.LLM
	if primary == nil || primary.Provider == nil {
		return
	}
	a.llm = resilience.NewLLMFallback(primary.Provider, primary.Name, a.breakerConfig())
	for _, fb := range a.providers.LLMFallback {
		if fb.Provider != nil {
			a.llm.AddFallback(fb.Name, fb.Provider)
		}
	}
	a.scorer = feedback.NewScorer(a.llm, primary.Name)
}

// buildGenerator returns the question generator chain for qc: the webhook
// first when configured, then the LLM. It returns nil when neither exists.
func (a *App) buildGenerator(qc config.QuestionsConfig) *questions.Fallback {
	var gens []NamedGenerator
	if qc.WebhookURL != "" {
		wh, err := questions.NewWebhook(qc.WebhookURL,
			questions.WithHTTPClient(&http.Client{Timeout: qc.Timeout}),
			questions.WithCount(qc.Count),
			questions.WithWebhookMetrics(a.metrics),
		)
		if err != nil {
			a.log.Warn("question webhook disabled", "err", err)
		} else {
			gens = append(gens, NamedGenerator{Name: "webhook", Generator: wh})
		}
	}
	if a.llm != nil {
		gens = append(gens, NamedGenerator{Name: "llm", Generator: questions.NewLLM(a.llm, a.providers.LLM.Name, qc.Count)})
	}
	if len(gens) == 0 {
		return nil
	}
	fb := questions.NewFallback(gens[0].Generator, gens[0].Name, a.breakerConfig())
	for _, g := range gens[1:] {
		fb.Add(g.Name, g.Generator)
	}
	return fb
}

// NamedGenerator pairs a question generator with its breaker name.
type NamedGenerator struct {
	Name      string
	Generator questions.Generator
}

func (a *App) initUpload() error {
	uc := a.cfg.Load().Upload
	if uc.PublicKey == "" && uc.PrivateKey == "" {
		return nil
	}
	s, err := upload.NewSigner(upload.Config{
		PublicKey:   uc.PublicKey,
		PrivateKey:  uc.PrivateKey,
		URLEndpoint: uc.URLEndpoint,
		Folder:      uc.Folder,
		Expiry:      uc.Expiry,
	})
	if err != nil {
		return err
	}
	a.signer = s
	return nil
}

func (a *App) initAvatar() error {
	ac := a.cfg.Load().Avatar
	if ac.APIKey == "" {
		return nil
	}
	c, err := avatar.New(ac.APIKey, avatar.WithBaseURL(ac.BaseURL))
	if err != nil {
		return err
	}
	a.avatar = c
	return nil
}

// Config returns the current configuration.
func (a *App) Config() *config.Config { return a.cfg.Load() }

// Store returns the data layer.
func (a *App) Store() store.Store { return a.store }

// Sessions returns the live session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Metrics returns the metric instruments.
func (a *App) Metrics() *observe.Metrics { return a.metrics }

// Handler returns the HTTP handler built by the WithHandler factory.
func (a *App) Handler() http.Handler { return a.handler }

// GenerateQuestions produces interview questions for req.
func (a *App) GenerateQuestions(ctx context.Context, req questions.Request) ([]interview.Question, error) {
	gen := a.generator.Load()
	if gen == nil {
		return nil, fmt.Errorf("%w: question generation", ErrUnavailable)
	}
	return gen.Generate(ctx, req)
}

// ScoreInterview scores the recorded answers of interview id, stores the
// report and returns it.
func (a *App) ScoreInterview(ctx context.Context, id string) (feedback.Report, error) {
	if a.scorer == nil {
		return feedback.Report{}, fmt.Errorf("%w: feedback scoring", ErrUnavailable)
	}
	ctx = observe.WithInterviewID(ctx, id)
	iv, err := a.store.GetInterview(ctx, id)
	if err != nil {
		return feedback.Report{}, err
	}
	if len(iv.Answers) == 0 {
		return feedback.Report{}, ErrNoAnswers
	}
	rep, err := a.scorer.Score(ctx, iv.Questions, iv.Answers)
	if err != nil {
		return feedback.Report{}, fmt.Errorf("app: score interview: %w", err)
	}
	raw, err := rep.Encode()
	if err != nil {
		return feedback.Report{}, err
	}
	if err := a.store.UpdateFeedback(ctx, id, raw); err != nil {
		return feedback.Report{}, err
	}
	observe.Logger(ctx).Info("interview scored",
		"percentage", rep.Percentage,
		"rating", rep.Rating,
	)
	return rep, nil
}

// UploadAuth returns fresh resume upload parameters.
func (a *App) UploadAuth() (upload.Auth, error) {
	if a.signer == nil {
		return upload.Auth{}, fmt.Errorf("%w: %w", ErrUnavailable, upload.ErrNotConfigured)
	}
	return a.signer.Sign(), nil
}

// AvatarToken requests a streaming avatar session token.
func (a *App) AvatarToken(ctx context.Context) (string, error) {
	if a.avatar == nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, avatar.ErrNotConfigured)
	}
	return a.avatar.CreateToken(ctx)
}

// Readiness returns the checks for the /readyz probe.
func (a *App) Readiness() []health.Checker {
	checks := []health.Checker{
		health.StoreCheck(a.store),
		{Name: "voice", Check: func(context.Context) error {
			if a.providers.S2S == nil {
				return errors.New("no voice provider configured")
			}
			return nil
		}},
	}
	if a.llm != nil {
		checks = append(checks, health.BreakerCheck("llm", a.llm.States))
	}
	checks = append(checks, health.BreakerCheck("questions", func() []resilience.EntryState {
		if g := a.generator.Load(); g != nil {
			return g.States()
		}
		return nil
	}))
	return checks
}

// ApplyConfig installs a reloaded config. Interview and attention settings
// take effect for sessions started afterwards; question settings rebuild the
// generator chain. Changes to other sections are logged and ignored.
func (a *App) ApplyConfig(next *config.Config) config.ConfigDiff {
	prev := a.cfg.Load()
	d := config.Diff(prev, next)

	// Sections that need a restart keep their running values.
	merged := *next
	merged.Server.ListenAddr = prev.Server.ListenAddr
	merged.Server.TLS = prev.Server.TLS
	merged.Server.ShutdownTimeout = prev.Server.ShutdownTimeout
	merged.Server.AllowedOrigins = prev.Server.AllowedOrigins
	merged.Providers = prev.Providers
	merged.Store = prev.Store
	merged.Upload = prev.Upload
	merged.Avatar = prev.Avatar
	a.cfg.Store(&merged)

	if d.QuestionsChanged {
		a.generator.Store(a.buildGenerator(merged.Questions))
	}
	if len(d.RestartRequired) > 0 {
		a.log.Warn("config changes require a restart", "sections", strings.Join(d.RestartRequired, ","))
	}
	if d.InterviewChanged || d.AttentionChanged || d.QuestionsChanged {
		a.log.Info("config applied",
			"interview", d.InterviewChanged,
			"attention", d.AttentionChanged,
			"questions", d.QuestionsChanged,
		)
	}
	return d
}

// Run serves HTTP on the configured address until ctx is cancelled. It
// returns nil on cancellation and the listener error otherwise. Call
// Shutdown afterwards.
func (a *App) Run(ctx context.Context) error {
	if a.handler == nil {
		return errors.New("app: no http handler configured")
	}
	sc := a.cfg.Load().Server
	ln, err := net.Listen("tcp", sc.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", sc.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	a.srvMu.Lock()
	a.server = srv
	a.addr = ln.Addr()
	a.srvMu.Unlock()
	close(a.ready)

	a.log.Info("http server listening", "addr", ln.Addr().String(), "tls", sc.TLS != nil)

	errCh := make(chan error, 1)
	go func() {
		if sc.TLS != nil {
			errCh <- srv.ServeTLS(ln, sc.TLS.CertFile, sc.TLS.KeyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Addr blocks until Run is listening and returns the bound address.
func (a *App) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-a.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	a.srvMu.Lock()
	defer a.srvMu.Unlock()
	return a.addr, nil
}

// Shutdown stops live sessions, drains the HTTP server and runs closers in
// reverse order. If ctx expires, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		if err := a.sessions.StopAll(ctx); err != nil {
			a.log.Warn("live sessions did not stop in time", "err", err)
		}

		a.srvMu.Lock()
		srv := a.server
		a.srvMu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				a.log.Warn("http server shutdown error", "err", err)
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
