package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "openai-direct", "genai"},
	"s2s": {"openai-realtime", "gemini-live"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates it and applies
// defaults. Unknown keys are rejected. An empty document is valid.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found and logs warnings for values that
// are legal but probably unintended.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallback {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallback[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	validateProviderName("s2s", cfg.Providers.S2S.Name)

	if len(cfg.Providers.LLMFallback) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallback requires providers.llm"))
	}
	if cfg.Providers.S2S.Name == "" {
		slog.Warn("providers.s2s is not configured; live interviews will not be available")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; feedback scoring will not be available")
	}

	iv := cfg.Interview
	if iv.QuestionSeconds < 0 {
		errs = append(errs, fmt.Errorf("interview.question_seconds %d must not be negative", iv.QuestionSeconds))
	} else if iv.QuestionSeconds > 0 && iv.QuestionSeconds < 10 {
		slog.Warn("interview.question_seconds is very short", "seconds", iv.QuestionSeconds)
	}
	if iv.DetectionPrefix < 0 {
		errs = append(errs, fmt.Errorf("interview.detection_prefix %d must not be negative", iv.DetectionPrefix))
	}
	if iv.PersistTimeout < 0 {
		errs = append(errs, errors.New("interview.persist_timeout must not be negative"))
	}
	if iv.ConnectAttempts < 0 {
		errs = append(errs, fmt.Errorf("interview.connect_attempts %d must not be negative", iv.ConnectAttempts))
	}

	if u := cfg.Questions.WebhookURL; u != "" {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("questions.webhook_url %q is not an absolute URL", u))
		}
	} else if cfg.Providers.LLM.Name == "" {
		slog.Warn("neither questions.webhook_url nor providers.llm is configured; question generation will not be available")
	}
	if cfg.Questions.Count < 0 {
		errs = append(errs, fmt.Errorf("questions.count %d must not be negative", cfg.Questions.Count))
	}

	up := cfg.Upload
	if (up.PublicKey == "") != (up.PrivateKey == "") {
		errs = append(errs, errors.New("upload.public_key and upload.private_key must be set together"))
	}
	if up.Expiry > time.Hour {
		errs = append(errs, fmt.Errorf("upload.expiry %v exceeds the one hour maximum", up.Expiry))
	}

	a := cfg.Attention
	if a.MaxYaw < 0 || a.MaxYaw > 90 {
		errs = append(errs, fmt.Errorf("attention.max_yaw %.1f is out of range [0, 90]", a.MaxYaw))
	}
	if a.MaxPitch < 0 || a.MaxPitch > 90 {
		errs = append(errs, fmt.Errorf("attention.max_pitch %.1f is out of range [0, 90]", a.MaxPitch))
	}

	if cfg.Store.PostgresDSN == "" {
		if cfg.Store.AutoMigrate {
			errs = append(errs, errors.New("store.auto_migrate requires store.postgres_dsn"))
		}
		slog.Warn("store.postgres_dsn is empty; using the in-memory store, data is lost on restart")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not listed in
// [ValidProviderNames] for kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or an extra registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
