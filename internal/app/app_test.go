package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/karanmishra2003/HoloHire/internal/app"
	"github.com/karanmishra2003/HoloHire/internal/config"
	"github.com/karanmishra2003/HoloHire/internal/feedback"
	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/questions"
	"github.com/karanmishra2003/HoloHire/internal/store"
	"github.com/karanmishra2003/HoloHire/pkg/provider/llm"
	llmmock "github.com/karanmishra2003/HoloHire/pkg/provider/llm/mock"
	s2smock "github.com/karanmishra2003/HoloHire/pkg/provider/s2s/mock"
)

// testConfig returns a defaulted config with an in-memory store.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.ListenAddr = "127.0.0.1:0"
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, providers *app.Providers, opts ...app.Option) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, providers, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func TestNew_UnconfiguredFeatures(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t), nil)

	if _, ok := a.Store().(*store.MemStore); !ok {
		t.Errorf("store = %T, want *store.MemStore", a.Store())
	}
	ctx := context.Background()
	if _, err := a.GenerateQuestions(ctx, questions.Request{JobDescription: "Go dev"}); !errors.Is(err, app.ErrUnavailable) {
		t.Errorf("GenerateQuestions: got %v, want ErrUnavailable", err)
	}
	if _, err := a.ScoreInterview(ctx, "iv"); !errors.Is(err, app.ErrUnavailable) {
		t.Errorf("ScoreInterview: got %v, want ErrUnavailable", err)
	}
	if _, err := a.UploadAuth(); !errors.Is(err, app.ErrUnavailable) {
		t.Errorf("UploadAuth: got %v, want ErrUnavailable", err)
	}
	if _, err := a.AvatarToken(ctx); !errors.Is(err, app.ErrUnavailable) {
		t.Errorf("AvatarToken: got %v, want ErrUnavailable", err)
	}
	if _, err := a.Sessions().Start("iv", "u", nil, app.Hooks{}); !errors.Is(err, app.ErrVoiceUnavailable) {
		t.Errorf("Start: got %v, want ErrVoiceUnavailable", err)
	}
}

func TestNew_UploadConfigured(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Upload.PublicKey = "public_abc"
	cfg.Upload.PrivateKey = "private_xyz"
	cfg.Upload.URLEndpoint = "https://ik.imagekit.io/holohire"
	a := newApp(t, cfg, nil)

	auth, err := a.UploadAuth()
	if err != nil {
		t.Fatalf("UploadAuth: %v", err)
	}
	if auth.PublicKey != "public_abc" || auth.Folder != config.DefaultUploadFolder || auth.Signature == "" {
		t.Errorf("auth = %+v", auth)
	}
}

func TestApp_AvatarToken(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"token":"hg-token"}}`)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Avatar.APIKey = "hg-key"
	cfg.Avatar.BaseURL = srv.URL
	a := newApp(t, cfg, nil)

	tok, err := a.AvatarToken(context.Background())
	if err != nil {
		t.Fatalf("AvatarToken: %v", err)
	}
	if tok != "hg-token" {
		t.Errorf("token = %q", tok)
	}
}

func TestApp_GenerateQuestionsFallsBackToLLM(t *testing.T) {
	t.Parallel()
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow crashed", http.StatusBadGateway)
	}))
	defer webhook.Close()

	cfg := testConfig(t)
	cfg.Questions.WebhookURL = webhook.URL
	cfg.Questions.Count = 2
	model := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `{"questions":[{"question":"What is a goroutine?"},{"question":"Explain channels."},{"question":"Extra"}]}`,
	}}
	a := newApp(t, cfg, &app.Providers{LLM: &app.NamedLLM{Name: "openai", Provider: model}})

	qs, err := a.GenerateQuestions(context.Background(), questions.Request{JobDescription: "Backend Go engineer"})
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(qs) != 2 || qs[0].Prompt != "What is a goroutine?" {
		t.Errorf("questions = %+v", qs)
	}
	if n := model.Calls(); n != 1 {
		t.Errorf("llm calls = %d, want 1", n)
	}
}

func TestApp_GenerateQuestionsRejectsEmptyRequest(t *testing.T) {
	t.Parallel()
	model := &llmmock.Provider{}
	a := newApp(t, testConfig(t), &app.Providers{LLM: &app.NamedLLM{Name: "openai", Provider: model}})

	if _, err := a.GenerateQuestions(context.Background(), questions.Request{}); !errors.Is(err, questions.ErrNoSource) {
		t.Errorf("got %v, want ErrNoSource", err)
	}
	if n := model.Calls(); n != 0 {
		t.Errorf("llm calls = %d, want 0", n)
	}
}

func TestApp_ScoreInterview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := store.NewMemStore()
	model := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `[{"questionIndex":0,"score":8,"feedback":"Clear, concrete example."}]`,
	}}
	a := newApp(t, testConfig(t), &app.Providers{LLM: &app.NamedLLM{Name: "openai", Provider: model}}, app.WithStore(mem))

	user, err := mem.UpsertUser(ctx, store.User{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	iv, err := mem.CreateInterview(ctx, store.Interview{UserID: user.ID, Name: "Go backend", Questions: testQuestions})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.ScoreInterview(ctx, iv.ID); !errors.Is(err, app.ErrNoAnswers) {
		t.Fatalf("score before session: got %v, want ErrNoAnswers", err)
	}

	answers := []interview.AnswerRecord{
		{QuestionIndex: 0, QuestionText: testQuestions[0].Prompt, AnswerText: "I built a build cache in Go.", Outcome: interview.OutcomeAnswered},
		{QuestionIndex: 1, QuestionText: testQuestions[1].Prompt, AnswerText: interview.SentinelSkipped, Outcome: interview.OutcomeSkipped},
	}
	if err := mem.WriteSessionResult(ctx, iv.ID, answers, store.StatusCompleted); err != nil {
		t.Fatal(err)
	}

	rep, err := a.ScoreInterview(ctx, iv.ID)
	if err != nil {
		t.Fatalf("ScoreInterview: %v", err)
	}
	if len(rep.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(rep.Items))
	}
	if rep.Items[0].Score != 8 || rep.Items[1].Score != 1 || !rep.Items[1].Automatic {
		t.Errorf("items = %+v", rep.Items)
	}

	stored, err := mem.GetInterview(ctx, iv.ID)
	if err != nil {
		t.Fatal(err)
	}
	got, err := feedback.Decode(stored.Feedback)
	if err != nil || got == nil {
		t.Fatalf("stored feedback: %v, %v", got, err)
	}
	if got.Total != rep.Total {
		t.Errorf("stored total = %d, want %d", got.Total, rep.Total)
	}
}

func TestApp_ScoreInterviewNotFound(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t), &app.Providers{LLM: &app.NamedLLM{Name: "openai", Provider: &llmmock.Provider{}}})
	if _, err := a.ScoreInterview(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("got %v, want store.ErrNotFound", err)
	}
}

func TestApp_ApplyConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	a := newApp(t, cfg, nil)

	next := *cfg
	next.Interview.QuestionSeconds = 30
	next.Server.ListenAddr = ":9999"
	next.Store.PostgresDSN = "postgres://elsewhere"

	d := a.ApplyConfig(&next)
	if !d.InterviewChanged {
		t.Error("InterviewChanged = false")
	}
	if got := strings.Join(d.RestartRequired, ","); got != "server,store" {
		t.Errorf("RestartRequired = %q", got)
	}
	cur := a.Config()
	if cur.Interview.QuestionSeconds != 30 {
		t.Errorf("question_seconds = %d, want 30", cur.Interview.QuestionSeconds)
	}
	if cur.Server.ListenAddr != cfg.Server.ListenAddr || cur.Store.PostgresDSN != "" {
		t.Errorf("restart-only sections changed: %+v %+v", cur.Server, cur.Store)
	}
}

func TestApp_Readiness(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t), &app.Providers{S2S: &s2smock.Provider{}})

	names := map[string]bool{}
	for _, c := range a.Readiness() {
		names[c.Name] = true
		if err := c.Check(context.Background()); err != nil {
			t.Errorf("check %q: %v", c.Name, err)
		}
	}
	for _, want := range []string{"store", "voice", "questions"} {
		if !names[want] {
			t.Errorf("missing readiness check %q", want)
		}
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()
	a, err := app.New(context.Background(), testConfig(t), nil, app.WithHandler(func(*app.App) http.Handler {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "pong") })
		return mux
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	actx, acancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer acancel()
	addr, err := a.Addr(actx)
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", addr))
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("body = %q", body)
	}

	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run: %v", err)
	}
	sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer scancel()
	if err := a.Shutdown(sctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestApp_RunWithoutHandler(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t), nil)
	if err := a.Run(context.Background()); err == nil {
		t.Error("Run without handler should fail")
	}
}
