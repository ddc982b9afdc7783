// Package s2s defines the Provider interface for real-time voice AI backends.
//
// An S2S provider wraps a speech-to-speech service that accepts raw microphone
// audio and returns synthesised interviewer speech in a single, stateful
// session. Examples include the OpenAI Realtime API and the Gemini Live API.
//
// The central abstraction is SessionHandle. Besides audio in both directions it
// exposes an ordered event stream (connection, speaking state, transcripts,
// termination) that the interview state machine consumes. Implementations make
// no ordering promise between assistant transcript fragments and any notion of
// "question boundaries"; consumers must treat transcript-based detection as
// advisory.
//
// All implementations must be safe for concurrent use.
package s2s

import (
	"context"
	"time"
)

// EventKind identifies the type of an [Event].
type EventKind int

const (
	// EventConnected fires once when the provider has accepted the session
	// configuration and the call is live.
	EventConnected EventKind = iota

	// EventAssistantSpeechStart fires when the model begins a spoken response.
	EventAssistantSpeechStart

	// EventAssistantSpeechEnd fires when the model finishes (or is cut off in)
	// a spoken response.
	EventAssistantSpeechEnd

	// EventAssistantTranscript carries the text of a model utterance.
	EventAssistantTranscript

	// EventUserTranscript carries recognised candidate speech. Partial events
	// carry the cumulative text of the utterance so far; the final event carries
	// the complete line.
	EventUserTranscript

	// EventEnded fires once when the call is over, for any reason. It is always
	// the last event before the channel is closed.
	EventEnded

	// EventError reports a provider-side error. The session may still be usable.
	EventError
)

// String returns a short lowercase label for the kind.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventAssistantSpeechStart:
		return "assistant_speech_start"
	case EventAssistantSpeechEnd:
		return "assistant_speech_end"
	case EventAssistantTranscript:
		return "assistant_transcript"
	case EventUserTranscript:
		return "user_transcript"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single notification emitted on [SessionHandle.Events].
type Event struct {
	Kind EventKind

	// Text is set for transcript events.
	Text string

	// Final is set on user transcript events that close an utterance.
	Final bool

	// Err is set for EventError, and for EventEnded when the call ended abnormally.
	Err error

	// At is when the adapter observed the event.
	At time.Time
}

// ContextItem is a text message injected into the session mid-conversation.
// The interview controller uses it for out-of-band control instructions
// ("repeat the current question", "time is up, move on").
type ContextItem struct {
	// Role is the speaker role: "system", "user", or "assistant".
	Role string

	// Content is the text content.
	Content string
}

// VoiceProfile selects the synthetic voice of the interviewer.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g. "alloy", "Kore").
	ID string

	// Name is a human-readable label.
	Name string

	// Provider is the backend the voice belongs to.
	Provider string
}

// SessionConfig is the initial configuration for a new session.
type SessionConfig struct {
	// Instructions is the system prompt (the interview script).
	Instructions string

	// Greeting is the first utterance the interviewer speaks after connecting.
	// Empty means the model chooses its own opening.
	Greeting string

	// Voice selects the interviewer voice. Zero value uses the provider default.
	Voice VoiceProfile
}

// Capabilities describes static properties of a provider.
type Capabilities struct {
	// MaxSessionDuration is the hard upper bound on call length imposed by the
	// provider. Zero means no documented limit.
	MaxSessionDuration time.Duration

	// SupportsInterrupt reports whether [SessionHandle.Interrupt] is implemented.
	SupportsInterrupt bool

	// Voices lists the voice profiles available for this provider.
	Voices []VoiceProfile
}

// SessionHandle represents an open voice call.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a raw PCM16 microphone chunk to the provider.
	SendAudio(chunk []byte) error

	// Audio returns a channel of synthesised PCM16 interviewer speech. It is
	// closed when the session ends.
	Audio() <-chan []byte

	// Events returns the ordered event stream. The channel is closed after the
	// EventEnded event has been delivered.
	Events() <-chan Event

	// InjectTextContext inserts control messages into the conversation.
	InjectTextContext(items []ContextItem) error

	// Interrupt cancels the response currently being generated.
	Interrupt() error

	// Err returns the error that terminated the session, or nil.
	Err() error

	// Close terminates the call and releases resources. Calling Close more than
	// once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any voice AI backend.
type Provider interface {
	// Connect dials the backend, configures the session with cfg (instructions
	// and greeting) and returns a live handle. The caller owns the handle.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about the provider.
	Capabilities() Capabilities
}
