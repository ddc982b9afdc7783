package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/observe"
)

const maxReplyBytes = 1 << 20

// replyPaths are tried in order to locate the generated text in a workflow
// reply. Workflows return either a single Gemini-style candidate or an array
// of them; simpler ones return {"text": ...}.
var replyPaths = []string{
	"content.parts.0.text",
	"0.content.parts.0.text",
	"text",
	"0.text",
	"output",
	"0.output",
}

// Webhook generates questions by posting to an automation workflow endpoint.
type Webhook struct {
	url     string
	client  *http.Client
	count   int
	metrics *observe.Metrics
}

// WebhookOption configures a [Webhook].
type WebhookOption func(*Webhook)

// WithHTTPClient overrides the HTTP client. The default times out after 60s.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithCount caps the number of questions returned.
func WithCount(n int) WebhookOption {
	return func(w *Webhook) { w.count = n }
}

// WithWebhookMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithWebhookMetrics(m *observe.Metrics) WebhookOption {
	return func(w *Webhook) { w.metrics = m }
}

// NewWebhook returns a [Webhook] posting to url.
func NewWebhook(url string, opts ...WebhookOption) (*Webhook, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("questions: webhook url is required")
	}
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(w)
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}
	return w, nil
}

type webhookRequest struct {
	Source         Source `json:"source"`
	ResumeURL      string `json:"resumeUrl,omitempty"`
	JobDescription string `json:"jobDescription,omitempty"`
}

// Generate implements [Generator].
func (w *Webhook) Generate(ctx context.Context, req Request) ([]interview.Question, error) {
	src, err := req.Source()
	if err != nil {
		return nil, err
	}
	body := webhookRequest{Source: src}
	if src == SourceResume {
		body.ResumeURL = strings.TrimSpace(req.ResumeURL)
	} else {
		body.JobDescription = strings.TrimSpace(req.JobDescription)
	}

	ctx, span := observe.StartSpan(ctx, "questions.webhook")
	defer span.End()

	start := time.Now()
	qs, err := w.post(ctx, body)
	w.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metricAttrs("webhook", err))
	if err != nil {
		w.metrics.RecordProviderError(ctx, "webhook", "questions")
		w.metrics.RecordProviderRequest(ctx, "webhook", "questions", "error")
		span.RecordError(err)
		return nil, err
	}
	w.metrics.RecordProviderRequest(ctx, "webhook", "questions", "ok")
	return limit(qs, w.count), nil
}

func (w *Webhook) post(ctx context.Context, body webhookRequest) ([]interview.Question, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("questions: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("questions: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("questions: webhook: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("questions: read reply: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("questions: webhook returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return ExtractQuestions(ReplyText(data))
}

// ReplyText returns the generated text inside a workflow reply. When no known
// path matches, the raw body is returned so that a bare JSON array is still
// usable.
func ReplyText(body []byte) string {
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	for _, p := range replyPaths {
		if r := gjson.GetBytes(body, p); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return string(body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
