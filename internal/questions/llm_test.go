package questions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/resilience"
	"github.com/karanmishra2003/HoloHire/pkg/provider/llm"
	llmmock "github.com/karanmishra2003/HoloHire/pkg/provider/llm/mock"
)

func TestLLM_Generate(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `{"questions":[{"question":"One"},{"question":"Two"},{"question":"Three"}]}`,
	}}
	g := NewLLM(p, "mock", 2)

	qs, err := g.Generate(context.Background(), Request{JobDescription: "Platform engineer"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(qs) != 2 || qs[0].Prompt != "One" {
		t.Errorf("questions = %+v", qs)
	}

	req := p.CompleteCalls[0].Req
	if !req.JSONMode {
		t.Error("JSONMode not requested")
	}
	msg := req.Messages[0].Content
	if !strings.Contains(msg, "exactly 2 questions") || !strings.Contains(msg, "Platform engineer") {
		t.Errorf("prompt = %q", msg)
	}
}

func TestLLM_GenerateResumePrompt(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `[{"question":"Q"}]`}}
	if _, err := NewLLM(p, "mock", 0).Generate(context.Background(), Request{ResumeURL: "https://ik.example/cv.pdf", JobDescription: "SRE"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msg := p.CompleteCalls[0].Req.Messages[0].Content
	for _, want := range []string{"https://ik.example/cv.pdf", "SRE", "exactly 5 questions"} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q: %q", want, msg)
		}
	}
}

func TestLLM_Errors(t *testing.T) {
	t.Parallel()

	errDown := errors.New("model unavailable")
	g := NewLLM(&llmmock.Provider{CompleteErr: errDown}, "mock", 3)
	if _, err := g.Generate(context.Background(), Request{JobDescription: "x"}); !errors.Is(err, errDown) {
		t.Errorf("err = %v, want %v", err, errDown)
	}

	unused := &llmmock.Provider{}
	if _, err := NewLLM(unused, "mock", 3).Generate(context.Background(), Request{}); !errors.Is(err, ErrNoSource) {
		t.Errorf("err = %v, want ErrNoSource", err)
	}
	if unused.Calls() != 0 {
		t.Error("provider called for invalid request")
	}
}

type stubGenerator struct {
	qs    []interview.Question
	err   error
	calls int
}

func (s *stubGenerator) Generate(context.Context, Request) ([]interview.Question, error) {
	s.calls++
	return s.qs, s.err
}

func TestFallback_Generate(t *testing.T) {
	t.Parallel()

	primary := &stubGenerator{err: errors.New("webhook down")}
	secondary := &stubGenerator{qs: []interview.Question{{Prompt: "From LLM"}}}

	f := NewFallback(primary, "webhook", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 1},
	})
	f.Add("llm", secondary)

	for range 2 {
		qs, err := f.Generate(context.Background(), Request{JobDescription: "Go"})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(qs) != 1 || qs[0].Prompt != "From LLM" {
			t.Fatalf("questions = %+v", qs)
		}
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1 (breaker opens after first failure)", primary.calls)
	}
	if st := f.States(); st[0].State != resilience.StateOpen {
		t.Errorf("webhook state = %v, want open", st[0].State)
	}

	if _, err := f.Generate(context.Background(), Request{}); !errors.Is(err, ErrNoSource) {
		t.Errorf("err = %v, want ErrNoSource", err)
	}
	if secondary.calls != 2 {
		t.Errorf("secondary calls = %d, want 2", secondary.calls)
	}
}
