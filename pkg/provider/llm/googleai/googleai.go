// Package googleai provides an LLM provider backed by the Google Gen AI Go SDK
// (google.golang.org/genai) against the Gemini Developer API.
//
// Unlike the any-llm-go Gemini backend it requests application/json output
// natively, which makes question generation and scoring replies reliably
// parseable.
package googleai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/karanmishra2003/HoloHire/pkg/provider/llm"
)

const defaultModel = "gemini-2.0-flash"

// Provider implements llm.Provider using a genai.Client.
type Provider struct {
	client *genai.Client
	model  string
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the Gemini API endpoint. Primarily used in tests.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Provider. An empty model selects gemini-2.0-flash.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("googleai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.baseURL
	}
	if cfg.timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.timeout}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("googleai: new client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		case "user", "system":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		default:
			return nil, fmt.Errorf("googleai: unknown message role %q", m.Role)
		}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("googleai: request has no messages")
	}

	gcfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.JSONMode {
		gcfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature != 0 {
		gcfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		gcfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, gcfg)
	if err != nil {
		return nil, fmt.Errorf("googleai: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("googleai: empty response")
	}

	out := &llm.CompletionResponse{Content: text}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	caps := llm.ModelCapabilities{
		ContextWindow:    1_048_576,
		MaxOutputTokens:  8_192,
		SupportsJSONMode: true,
	}
	if strings.Contains(strings.ToLower(p.model), "1.5-pro") {
		caps.ContextWindow = 2_097_152
	}
	return caps
}

var _ llm.Provider = (*Provider)(nil)
