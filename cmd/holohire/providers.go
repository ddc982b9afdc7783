package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/karanmishra2003/HoloHire/internal/app"
	"github.com/karanmishra2003/HoloHire/internal/config"
	"github.com/karanmishra2003/HoloHire/pkg/provider/llm"
	"github.com/karanmishra2003/HoloHire/pkg/provider/llm/anyllm"
	"github.com/karanmishra2003/HoloHire/pkg/provider/llm/googleai"
	oallm "github.com/karanmishra2003/HoloHire/pkg/provider/llm/openai"
	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s"
	geminilive "github.com/karanmishra2003/HoloHire/pkg/provider/s2s/gemini"
	oais2s "github.com/karanmishra2003/HoloHire/pkg/provider/s2s/openai"
)

// registerBuiltinProviders wires every built-in provider factory into reg.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// any-llm backends. Local servers (ollama, llamacpp) need only BaseURL.
	for _, name := range anyllm.Backends() {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(name, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	reg.RegisterLLM("openai-direct", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oallm.WithTimeout(d))
		}
		p, err := oallm.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterLLM("genai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []googleai.Option
		if entry.BaseURL != "" {
			opts = append(opts, googleai.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, googleai.WithTimeout(d))
		}
		p, err := googleai.New(ctx, entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterS2S("openai-realtime", func(entry config.ProviderEntry) (s2s.Provider, error) {
		var opts []oais2s.Option
		if entry.Model != "" {
			opts = append(opts, oais2s.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oais2s.WithBaseURL(entry.BaseURL))
		}
		if m := optString(entry.Options, "transcription_model"); m != "" {
			opts = append(opts, oais2s.WithTranscriptionModel(m))
		}
		return oais2s.New(entry.APIKey, opts...), nil
	})

	reg.RegisterS2S("gemini-live", func(entry config.ProviderEntry) (s2s.Provider, error) {
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	})

	slog.Debug("registered providers", "llm", reg.LLMNames(), "s2s", reg.S2SNames())
}

// buildProviders instantiates the providers named in cfg. Unregistered names
// are skipped with a warning; factory errors abort startup.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		p, err := createLLM(reg, entry)
		if err != nil {
			return nil, err
		}
		if p != nil {
			ps.LLM = &app.NamedLLM{Name: entry.Name, Provider: p}
		}
	}
	for _, entry := range cfg.Providers.LLMFallback {
		p, err := createLLM(reg, entry)
		if err != nil {
			return nil, err
		}
		if p != nil {
			ps.LLMFallback = append(ps.LLMFallback, app.NamedLLM{Name: entry.Name, Provider: p})
		}
	}

	if entry := cfg.Providers.S2S; entry.Name != "" {
		p, err := reg.CreateS2S(entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("provider not registered, skipping", "kind", "s2s", "name", entry.Name)
		case err != nil:
			return nil, fmt.Errorf("create s2s provider %q: %w", entry.Name, err)
		default:
			ps.S2S = p
			slog.Info("provider created", "kind", "s2s", "name", entry.Name, "model", entry.Model)
		}
	}
	return ps, nil
}

func createLLM(reg *config.Registry, entry config.ProviderEntry) (llm.Provider, error) {
	p, err := reg.CreateLLM(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not registered, skipping", "kind", "llm", "name", entry.Name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	return p, nil
}

// optString extracts a string value from a provider Options map. It returns
// "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optDuration parses a Go duration string ("30s") from a provider Options
// map. Missing or unparsable values yield zero.
func optDuration(opts map[string]any, key string) time.Duration {
	d, _ := time.ParseDuration(optString(opts, key))
	return d
}
