package config

import "slices"

// ConfigDiff describes what changed between two configs. Only the sections
// that can be applied without a restart are tracked; everything else is
// reported through RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// InterviewChanged is set when session settings differ. New values apply
	// to sessions started afterwards.
	InterviewChanged bool

	AttentionChanged bool
	QuestionsChanged bool

	// RestartRequired names the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Changed reports whether d holds any difference at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.InterviewChanged || d.AttentionChanged ||
		d.QuestionsChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.InterviewChanged = !interviewEqual(old.Interview, new.Interview)
	d.AttentionChanged = old.Attention != new.Attention
	d.QuestionsChanged = old.Questions != new.Questions

	if !serverStaticEqual(old.Server, new.Server) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	if old.Upload != new.Upload {
		d.RestartRequired = append(d.RestartRequired, "upload")
	}
	if old.Avatar != new.Avatar {
		d.RestartRequired = append(d.RestartRequired, "avatar")
	}
	return d
}

func interviewEqual(a, b InterviewConfig) bool {
	return a.QuestionSeconds == b.QuestionSeconds &&
		a.DetectionPrefix == b.DetectionPrefix &&
		a.Greeting == b.Greeting &&
		a.Voice == b.Voice &&
		slices.Equal(a.SkipPhrases, b.SkipPhrases) &&
		slices.Equal(a.RepeatPhrases, b.RepeatPhrases) &&
		slices.Equal(a.BlockedPhrases, b.BlockedPhrases) &&
		a.PersistTimeout == b.PersistTimeout &&
		a.ConnectAttempts == b.ConnectAttempts
}

// serverStaticEqual ignores the log level, which is hot-reloadable.
func serverStaticEqual(a, b ServerConfig) bool {
	if a.ListenAddr != b.ListenAddr || a.ShutdownTimeout != b.ShutdownTimeout {
		return false
	}
	if !slices.Equal(a.AllowedOrigins, b.AllowedOrigins) {
		return false
	}
	switch {
	case a.TLS == nil && b.TLS == nil:
		return true
	case a.TLS == nil || b.TLS == nil:
		return false
	}
	return *a.TLS == *b.TLS
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.LLM, b.LLM) &&
		entryEqual(a.S2S, b.S2S) &&
		slices.EqualFunc(a.LLMFallback, b.LLMFallback, entryEqual)
}

// entryEqual compares options by key set and shallow value; nested option
// maps always compare as changed.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, av := range a.Options {
		bv, ok := b.Options[k]
		if !ok || !comparableEqual(av, bv) {
			return false
		}
	}
	return true
}

func comparableEqual(a, b any) bool {
	switch a.(type) {
	case map[string]any, []any:
		return false
	}
	switch b.(type) {
	case map[string]any, []any:
		return false
	}
	return a == b
}
