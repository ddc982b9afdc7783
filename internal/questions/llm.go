package questions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/observe"
	"github.com/karanmishra2003/HoloHire/pkg/provider/llm"
)

// DefaultCount is the number of questions asked for when none is configured.
const DefaultCount = 5

const generatorSystemPrompt = `You are an experienced technical interviewer preparing a mock interview.
Write interview questions that a hiring panel would ask this candidate, ordered from warm-up to in-depth.
For each question also write a short model answer.
Respond with JSON only, in the form {"questions":[{"question":"...","answer":"..."}]}.`

// LLM generates questions by prompting a language model.
type LLM struct {
	provider llm.Provider
	name     string
	count    int
	metrics  *observe.Metrics
}

// NewLLM returns an [LLM] generator asking for count questions. name labels
// metrics.
func NewLLM(p llm.Provider, name string, count int) *LLM {
	if count <= 0 {
		count = DefaultCount
	}
	return &LLM{provider: p, name: name, count: count, metrics: observe.DefaultMetrics()}
}

// Generate implements [Generator].
func (g *LLM) Generate(ctx context.Context, req Request) ([]interview.Question, error) {
	src, err := req.Source()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write exactly %d questions.\n\n", g.count)
	switch src {
	case SourceResume:
		fmt.Fprintf(&b, "The candidate's resume is available at: %s\n", strings.TrimSpace(req.ResumeURL))
		if jd := strings.TrimSpace(req.JobDescription); jd != "" {
			fmt.Fprintf(&b, "\nThey are applying for this role:\n%s\n", jd)
		}
	case SourceJob:
		fmt.Fprintf(&b, "Job description:\n%s\n", strings.TrimSpace(req.JobDescription))
	}

	ctx, span := observe.StartSpan(ctx, "questions.llm")
	defer span.End()

	start := time.Now()
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: generatorSystemPrompt,
		Messages:     []llm.Message{llm.UserMessage(b.String())},
		Temperature:  0.7,
		JSONMode:     true,
	})
	g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(), metricAttrs(g.name, err))
	if err != nil {
		g.metrics.RecordProviderError(ctx, g.name, "questions")
		g.metrics.RecordProviderRequest(ctx, g.name, "questions", "error")
		span.RecordError(err)
		return nil, fmt.Errorf("questions: llm: %w", err)
	}
	g.metrics.RecordProviderRequest(ctx, g.name, "questions", "ok")

	qs, err := ExtractQuestions(resp.Content)
	if err != nil {
		return nil, err
	}
	return limit(qs, g.count), nil
}

func metricAttrs(provider string, err error) metric.MeasurementOption {
	status := "ok"
	if err != nil {
		status = "error"
	}
	return metric.WithAttributes(
		observe.Attr("provider", provider),
		observe.Attr("kind", "questions"),
		observe.Attr("status", status),
	)
}
