package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karanmishra2003/HoloHire/internal/app"
	"github.com/karanmishra2003/HoloHire/internal/attention"
	"github.com/karanmishra2003/HoloHire/internal/config"
	"github.com/karanmishra2003/HoloHire/internal/interview"
	ivmock "github.com/karanmishra2003/HoloHire/internal/interview/mock"
	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s"
	s2smock "github.com/karanmishra2003/HoloHire/pkg/provider/s2s/mock"
)

var testQuestions = []interview.Question{
	{Prompt: "Tell me about a project you are proud of."},
	{Prompt: "How do you handle disagreements in code review?"},
}

type fixture struct {
	sm       *app.SessionManager
	provider *s2smock.Provider
	session  *s2smock.Session
	gateway  *ivmock.Gateway
}

func newFixture(t *testing.T, ivCfg config.InterviewConfig) *fixture {
	t.Helper()
	sess := s2smock.NewSession()
	f := &fixture{
		provider: &s2smock.Provider{Session: sess},
		session:  sess,
		gateway:  &ivmock.Gateway{},
	}
	f.sm = app.NewSessionManager(app.SessionManagerConfig{
		Provider: f.provider,
		Gateway:  f.gateway,
		Settings: func() (config.InterviewConfig, config.AttentionConfig) {
			return ivCfg, config.AttentionConfig{Interval: 10 * time.Millisecond}
		},
		TickInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.sm.StopAll(ctx)
	})
	return f
}

func waitDone(t *testing.T, l *app.Live) {
	t.Helper()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

// waitConnected polls until the controller accepts audio.
func waitConnected(t *testing.T, l *app.Live) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := l.SendAudio([]byte{0}); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never connected")
}

func TestSessionManager_StartEndPersists(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.InterviewConfig{})

	var (
		mu     sync.Mutex
		result interview.Result
	)
	live, err := f.sm.Start("iv-1", "user-1", testQuestions, app.Hooks{
		Done: func(r interview.Result, _ error) {
			mu.Lock()
			result = r
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if info := live.Info(); info.InterviewID != "iv-1" || info.UserID != "user-1" || info.Questions != 2 {
		t.Errorf("Info = %+v", info)
	}

	waitConnected(t, live)
	if err := f.sm.End("iv-1"); err != nil {
		t.Fatalf("End: %v", err)
	}
	waitDone(t, live)

	writes := f.gateway.Writes()
	if len(writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(writes))
	}
	if writes[0].SessionID != "iv-1" || writes[0].Status != interview.StatusCompleted {
		t.Errorf("write = %+v", writes[0])
	}
	if len(writes[0].Answers) != 1 || writes[0].Answers[0].Outcome != interview.OutcomeEndedEarly {
		t.Errorf("answers = %+v", writes[0].Answers)
	}

	mu.Lock()
	defer mu.Unlock()
	if result.Outcome != interview.OutcomeCompleted {
		t.Errorf("outcome = %q, want completed", result.Outcome)
	}
	if _, ok := f.sm.Get("iv-1"); ok {
		t.Error("session should be removed after it ends")
	}
}

func TestSessionManager_DuplicateStart(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.InterviewConfig{})

	live, err := f.sm.Start("iv-1", "user-1", testQuestions, app.Hooks{})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := f.sm.Start("iv-1", "user-1", testQuestions, app.Hooks{}); !errors.Is(err, app.ErrSessionActive) {
		t.Fatalf("second Start: got %v, want ErrSessionActive", err)
	}
	live.Cancel()
	waitDone(t, live)
}

func TestSessionManager_CancelDoesNotPersist(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.InterviewConfig{})

	outcome := make(chan string, 1)
	live, err := f.sm.Start("iv-2", "user-1", testQuestions, app.Hooks{
		Done: func(r interview.Result, _ error) { outcome <- r.Outcome },
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitConnected(t, live)
	live.Cancel()
	waitDone(t, live)

	if got := <-outcome; got != interview.OutcomeCancelled {
		t.Errorf("outcome = %q, want cancelled", got)
	}
	if n := len(f.gateway.Writes()); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
	if f.session.Closes() == 0 {
		t.Error("voice session was not closed")
	}
}

func TestSessionManager_UnknownSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.InterviewConfig{})

	if err := f.sm.End("missing"); !errors.Is(err, app.ErrNoSession) {
		t.Errorf("End: got %v, want ErrNoSession", err)
	}
	if _, err := f.sm.Snapshot("missing"); !errors.Is(err, app.ErrNoSession) {
		t.Errorf("Snapshot: got %v, want ErrNoSession", err)
	}
}

func TestSessionManager_NoProvider(t *testing.T) {
	t.Parallel()
	sm := app.NewSessionManager(app.SessionManagerConfig{Gateway: &ivmock.Gateway{}})
	if _, err := sm.Start("iv-1", "u", testQuestions, app.Hooks{}); !errors.Is(err, app.ErrVoiceUnavailable) {
		t.Errorf("Start: got %v, want ErrVoiceUnavailable", err)
	}
}

func TestSessionManager_AppliesSettings(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.InterviewConfig{
		Greeting: "Hi, ready when you are.",
		Voice:    "verse",
	})

	live, err := f.sm.Start("iv-3", "user-1", testQuestions, app.Hooks{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitConnected(t, live)

	calls := f.provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("connect calls = %d, want 1", len(calls))
	}
	cfg := calls[0].Cfg
	if cfg.Greeting != "Hi, ready when you are." || cfg.Voice.ID != "verse" {
		t.Errorf("session config = %+v", cfg)
	}
	if !strings.Contains(cfg.Instructions, testQuestions[1].Prompt) {
		t.Error("instructions should list every question")
	}
	live.Cancel()
	waitDone(t, live)
}

func TestSessionManager_HooksReceiveOutput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, config.InterviewConfig{})

	audio := make(chan []byte, 4)
	snaps := make(chan interview.Snapshot, 64)
	reports := make(chan attention.Report, 4)
	live, err := f.sm.Start("iv-4", "user-1", testQuestions, app.Hooks{
		Audio: func(b []byte) { audio <- b },
		Snapshot: func(s interview.Snapshot) {
			select {
			case snaps <- s:
			default:
			}
		},
		Attention: func(r attention.Report) {
			select {
			case reports <- r:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitConnected(t, live)

	f.session.EmitAudio([]byte("pcm"))
	select {
	case b := <-audio:
		if string(b) != "pcm" {
			t.Errorf("audio = %q", b)
		}
	case <-time.After(time.Second):
		t.Fatal("audio hook not called")
	}

	f.session.Emit(s2s.Event{Kind: s2s.EventConnected})
	f.session.Emit(s2s.Event{Kind: s2s.EventAssistantSpeechStart})
	select {
	case s := <-snaps:
		if s.QuestionCount != 2 {
			t.Errorf("snapshot question count = %d", s.QuestionCount)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot hook not called")
	}

	live.ObserveGaze(attention.Sample{HasFace: true})
	select {
	case r := <-reports:
		if r.Attentive != 1 {
			t.Errorf("report = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("attention hook not called")
	}

	live.Cancel()
	waitDone(t, live)
}

func TestSessionManager_ActiveAndStopAll(t *testing.T) {
	t.Parallel()
	sm := app.NewSessionManager(app.SessionManagerConfig{
		Provider: &s2smock.Provider{},
		Gateway:  &ivmock.Gateway{},
	})

	var lives []*app.Live
	for _, id := range []string{"iv-a", "iv-b"} {
		l, err := sm.Start(id, "user-1", testQuestions, app.Hooks{})
		if err != nil {
			t.Fatalf("Start(%s): %v", id, err)
		}
		lives = append(lives, l)
	}
	active := sm.Active()
	if len(active) != 2 {
		t.Fatalf("Active = %d, want 2", len(active))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sm.StopAll(ctx); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	for _, l := range lives {
		waitDone(t, l)
	}
	if n := len(sm.Active()); n != 0 {
		t.Errorf("Active after StopAll = %d", n)
	}
	if _, err := sm.Start("iv-c", "user-1", testQuestions, app.Hooks{}); err == nil {
		t.Error("Start after StopAll should fail")
	}
}
