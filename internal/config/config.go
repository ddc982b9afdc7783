// Package config provides the configuration schema, loader, provider registry
// and file watcher for the HoloHire server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 15 * time.Second
	DefaultQuestionSeconds = 60
	DefaultDetectionPrefix = 25
	DefaultPersistTimeout  = 10 * time.Second
	DefaultConnectAttempts = 3
	DefaultQuestionCount   = 5
	DefaultWebhookTimeout  = 60 * time.Second
	DefaultUploadFolder    = "/resumes"
	DefaultUploadExpiry    = 30 * time.Minute
	DefaultAvatarBaseURL   = "https://api.heygen.com"
	DefaultAttentionPeriod = 2 * time.Second
	DefaultMaxYaw          = 25.0
	DefaultMaxPitch        = 20.0
)

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Interview InterviewConfig `yaml:"interview"`
	Store     StoreConfig     `yaml:"store"`
	Questions QuestionsConfig `yaml:"questions"`
	Upload    UploadConfig    `yaml:"upload"`
	Avatar    AvatarConfig    `yaml:"avatar"`
	Attention AttentionConfig `yaml:"attention"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// Environment labels telemetry (deployment.environment), e.g. "production".
	Environment string `yaml:"environment"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins lists host patterns accepted for browser WebSocket
	// upgrades (e.g. "app.example.com", "*.example.com"). Empty allows only
	// same-origin requests.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TLSConfig holds TLS certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the provider implementations. Each entry names a
// constructor registered in the [Registry].
type ProvidersConfig struct {
	// LLM scores feedback and, when no webhook is configured, generates
	// questions.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallback lists LLM backends tried in order when LLM fails.
	LLMFallback []ProviderEntry `yaml:"llm_fallback"`

	// S2S runs the live voice interview.
	S2S ProviderEntry `yaml:"s2s"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "openai", "gemini-live").
	Name string `yaml:"name"`

	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// InterviewConfig holds live-session settings. Changes apply to sessions
// started after a reload.
type InterviewConfig struct {
	// QuestionSeconds is the answer budget per question.
	QuestionSeconds int `yaml:"question_seconds"`

	// DetectionPrefix is the number of leading characters of a question used
	// to detect that the interviewer has asked it.
	DetectionPrefix int `yaml:"detection_prefix"`

	// Greeting overrides the interviewer's opening line.
	Greeting string `yaml:"greeting"`

	// Voice is the provider-specific interviewer voice ID.
	Voice string `yaml:"voice"`

	SkipPhrases    []string `yaml:"skip_phrases"`
	RepeatPhrases  []string `yaml:"repeat_phrases"`
	BlockedPhrases []string `yaml:"blocked_phrases"`

	// PersistTimeout bounds the final answer write.
	PersistTimeout time.Duration `yaml:"persist_timeout"`

	// ConnectAttempts is the number of voice session connection attempts.
	ConnectAttempts int `yaml:"connect_attempts"`
}

// StoreConfig selects the data layer.
type StoreConfig struct {
	// PostgresDSN is the PostgreSQL connection string. Empty selects the
	// in-memory store.
	PostgresDSN string `yaml:"postgres_dsn"`

	// AutoMigrate applies pending migrations at startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// QuestionsConfig configures question generation.
type QuestionsConfig struct {
	// WebhookURL is the automation workflow endpoint. When empty, questions
	// are generated by the LLM provider only.
	WebhookURL string `yaml:"webhook_url"`

	Timeout time.Duration `yaml:"timeout"`

	// Count is the number of questions to generate.
	Count int `yaml:"count"`
}

// UploadConfig holds the ImageKit account used for resume uploads.
type UploadConfig struct {
	PublicKey   string        `yaml:"public_key"`
	PrivateKey  string        `yaml:"private_key"`
	URLEndpoint string        `yaml:"url_endpoint"`
	Folder      string        `yaml:"folder"`
	Expiry      time.Duration `yaml:"expiry"`
}

// AvatarConfig holds the HeyGen streaming avatar account.
type AvatarConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// AttentionConfig tunes the candidate attention monitor.
type AttentionConfig struct {
	Interval time.Duration `yaml:"interval"`

	// MaxYaw and MaxPitch are the head-pose limits, in degrees, within which
	// the candidate counts as attentive.
	MaxYaw   float64 `yaml:"max_yaw"`
	MaxPitch float64 `yaml:"max_pitch"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}

	iv := &cfg.Interview
	if iv.QuestionSeconds <= 0 {
		iv.QuestionSeconds = DefaultQuestionSeconds
	}
	if iv.DetectionPrefix <= 0 {
		iv.DetectionPrefix = DefaultDetectionPrefix
	}
	if iv.PersistTimeout <= 0 {
		iv.PersistTimeout = DefaultPersistTimeout
	}
	if iv.ConnectAttempts <= 0 {
		iv.ConnectAttempts = DefaultConnectAttempts
	}

	q := &cfg.Questions
	if q.Count <= 0 {
		q.Count = DefaultQuestionCount
	}
	if q.Timeout <= 0 {
		q.Timeout = DefaultWebhookTimeout
	}

	if cfg.Upload.Folder == "" {
		cfg.Upload.Folder = DefaultUploadFolder
	}
	if cfg.Upload.Expiry <= 0 {
		cfg.Upload.Expiry = DefaultUploadExpiry
	}
	if cfg.Avatar.BaseURL == "" {
		cfg.Avatar.BaseURL = DefaultAvatarBaseURL
	}

	a := &cfg.Attention
	if a.Interval <= 0 {
		a.Interval = DefaultAttentionPeriod
	}
	if a.MaxYaw <= 0 {
		a.MaxYaw = DefaultMaxYaw
	}
	if a.MaxPitch <= 0 {
		a.MaxPitch = DefaultMaxPitch
	}
}
