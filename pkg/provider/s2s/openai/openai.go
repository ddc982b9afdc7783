// Package openai implements the s2s.Provider interface for OpenAI's Realtime API.
//
// It establishes a bidirectional WebSocket connection to the OpenAI Realtime
// endpoint and exchanges JSON events according to the Realtime API protocol.
// Audio is transmitted as base64-encoded PCM16 chunks. Server events are mapped
// onto the provider-neutral [s2s.Event] stream: response lifecycle events become
// speaking-state changes, transcript events become assistant or candidate
// transcripts.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s"
)

// Compile-time assertions that Provider and session satisfy the s2s interfaces.
var _ s2s.Provider = (*Provider)(nil)
var _ s2s.SessionHandle = (*session)(nil)

const (
	defaultModel         = "gpt-4o-realtime-preview"
	defaultBaseURL       = "wss://api.openai.com/v1/realtime"
	defaultTranscription = "whisper-1"

	// endedDeliveryTimeout bounds how long the receive loop waits to hand off
	// the final EventEnded before giving up on a stalled consumer.
	endedDeliveryTimeout = time.Second
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the OpenAI model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithTranscriptionModel sets the model used to transcribe candidate speech.
func WithTranscriptionModel(model string) Option {
	return func(p *Provider) { p.transcriptionModel = model }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements s2s.Provider for OpenAI's Realtime API.
type Provider struct {
	apiKey             string
	model              string
	baseURL            string
	transcriptionModel string
}

// New creates a new OpenAI Realtime Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:             apiKey,
		model:              defaultModel,
		baseURL:            defaultBaseURL,
		transcriptionModel: defaultTranscription,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Capabilities returns static metadata about the OpenAI Realtime provider.
func (p *Provider) Capabilities() s2s.Capabilities {
	return s2s.Capabilities{
		MaxSessionDuration: 30 * time.Minute,
		SupportsInterrupt:  true,
		Voices: []s2s.VoiceProfile{
			{ID: "alloy", Name: "Alloy", Provider: "openai"},
			{ID: "ash", Name: "Ash", Provider: "openai"},
			{ID: "ballad", Name: "Ballad", Provider: "openai"},
			{ID: "coral", Name: "Coral", Provider: "openai"},
			{ID: "echo", Name: "Echo", Provider: "openai"},
			{ID: "sage", Name: "Sage", Provider: "openai"},
			{ID: "shimmer", Name: "Shimmer", Provider: "openai"},
			{ID: "verse", Name: "Verse", Provider: "openai"},
		},
	}
}

// Connect establishes a new OpenAI Realtime session with the given configuration.
// The session.update message is sent before Connect returns. When cfg.Greeting
// is set, a response.create asking the model to speak it follows immediately.
func (p *Provider) Connect(ctx context.Context, cfg s2s.SessionConfig) (s2s.SessionHandle, error) {
	wsURL := fmt.Sprintf("%s?model=%s", p.baseURL, p.model)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + p.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: dial: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:    conn,
		audioCh: make(chan []byte, 64),
		events:  make(chan s2s.Event, 64),
		ctx:     sessCtx,
		cancel:  sessCancel,
	}

	if err := sess.sendSessionUpdate(cfg, p.transcriptionModel); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "session update failed")
		return nil, fmt.Errorf("openai: session update: %w", err)
	}
	if cfg.Greeting != "" {
		if err := sess.sendGreeting(cfg.Greeting); err != nil {
			sessCancel()
			conn.Close(websocket.StatusInternalError, "greeting failed")
			return nil, fmt.Errorf("openai: greeting: %w", err)
		}
	}

	go sess.receiveLoop()

	return sess, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Voice                   string                   `json:"voice,omitempty"`
	Instructions            string                   `json:"instructions,omitempty"`
	InputAudioFormat        string                   `json:"input_audio_format"`
	OutputAudioFormat       string                   `json:"output_audio_format"`
	InputAudioTranscription *inputAudioTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetection           `json:"turn_detection,omitempty"`
}

type inputAudioTranscription struct {
	Model string `json:"model"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type responseCreateMessage struct {
	Type     string          `json:"type"`
	Response *responseParams `json:"response,omitempty"`
}

type responseParams struct {
	Instructions string `json:"instructions,omitempty"`
}

type appendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16
}

type createConversationItemMessage struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string             `json:"type"`
	Role    string             `json:"role,omitempty"`
	Content []conversationPart `json:"content,omitempty"`
}

type conversationPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// serverErrorDetail represents the nested error object in an OpenAI Realtime
// error event: {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverEvent struct {
	Type string `json:"type"`

	// response.audio.delta / response.audio_transcript.delta /
	// conversation.item.input_audio_transcription.delta
	Delta string `json:"delta,omitempty"`

	// response.audio_transcript.done /
	// conversation.item.input_audio_transcription.completed
	Transcript string `json:"transcript,omitempty"`

	// conversation.item.input_audio_transcription.*
	ItemID string `json:"item_id,omitempty"`

	// error event
	Error *serverErrorDetail `json:"error,omitempty"`
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	conn    *websocket.Conn
	audioCh chan []byte
	events  chan s2s.Event

	mu        sync.Mutex
	errVal    error
	closed    bool
	connected bool

	// currentTxText accumulates response.audio_transcript.delta events until
	// response.audio_transcript.done is received.
	currentTxText string

	// userItemID and userText hold the cumulative candidate transcript of the
	// utterance currently being recognised.
	userItemID string
	userText   string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// sendSessionUpdate sends a session.update event to configure voice,
// instructions, audio formats and candidate transcription.
func (s *session) sendSessionUpdate(cfg s2s.SessionConfig, transcriptionModel string) error {
	params := sessionParams{
		InputAudioFormat:        "pcm16",
		OutputAudioFormat:       "pcm16",
		InputAudioTranscription: &inputAudioTranscription{Model: transcriptionModel},
		TurnDetection:           &turnDetection{Type: "server_vad"},
	}
	if cfg.Voice.ID != "" {
		params.Voice = cfg.Voice.ID
	}
	if cfg.Instructions != "" {
		params.Instructions = cfg.Instructions
	}
	return s.writeJSON(sessionUpdateMessage{Type: "session.update", Session: params})
}

func (s *session) sendGreeting(greeting string) error {
	return s.writeJSON(responseCreateMessage{
		Type: "response.create",
		Response: &responseParams{
			Instructions: fmt.Sprintf("Greet the candidate by saying exactly: %q", greeting),
		},
	})
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("openai: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads events from the WebSocket and dispatches them.
// It owns audioCh and events: it emits EventEnded and closes both when it exits.
func (s *session) receiveLoop() {
	defer s.finish()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if !s2s.IsTransportNoise(err) {
				s.setErr(err)
			}
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}

		s.handleServerEvent(&evt)
	}
}

func (s *session) handleServerEvent(evt *serverEvent) {
	switch evt.Type {
	case "session.created", "session.updated":
		s.mu.Lock()
		first := !s.connected
		s.connected = true
		s.mu.Unlock()
		if first {
			s.emit(s2s.Event{Kind: s2s.EventConnected})
		}

	case "response.created":
		s.emit(s2s.Event{Kind: s2s.EventAssistantSpeechStart})

	case "response.done":
		s.emit(s2s.Event{Kind: s2s.EventAssistantSpeechEnd})

	case "response.audio.delta":
		if evt.Delta == "" {
			return
		}
		audioData, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil || len(audioData) == 0 {
			return
		}
		select {
		case s.audioCh <- audioData:
		case <-s.ctx.Done():
		}

	case "response.audio_transcript.delta":
		if evt.Delta == "" {
			return
		}
		s.mu.Lock()
		s.currentTxText += evt.Delta
		s.mu.Unlock()

	case "response.audio_transcript.done":
		s.mu.Lock()
		text := s.currentTxText
		s.currentTxText = ""
		s.mu.Unlock()

		if evt.Transcript != "" {
			text = evt.Transcript
		}
		if text == "" {
			return
		}
		s.emit(s2s.Event{Kind: s2s.EventAssistantTranscript, Text: text})

	case "input_audio_buffer.speech_started":
		s.mu.Lock()
		s.userItemID = evt.ItemID
		s.userText = ""
		s.mu.Unlock()
		s.emit(s2s.Event{Kind: s2s.EventUserTranscript})

	case "conversation.item.input_audio_transcription.delta":
		if evt.Delta == "" {
			return
		}
		s.mu.Lock()
		if evt.ItemID != s.userItemID {
			s.userItemID = evt.ItemID
			s.userText = ""
		}
		s.userText += evt.Delta
		text := s.userText
		s.mu.Unlock()
		s.emit(s2s.Event{Kind: s2s.EventUserTranscript, Text: text})

	case "conversation.item.input_audio_transcription.completed":
		s.mu.Lock()
		s.userItemID = ""
		s.userText = ""
		s.mu.Unlock()
		if evt.Transcript == "" {
			return
		}
		s.emit(s2s.Event{Kind: s2s.EventUserTranscript, Text: evt.Transcript, Final: true})

	case "error":
		msg := "unknown error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		s.emit(s2s.Event{Kind: s2s.EventError, Err: fmt.Errorf("openai: %s", msg)})
	}
}

// emit delivers e on the events channel unless the session is shutting down.
func (s *session) emit(e s2s.Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case s.events <- e:
	case <-s.ctx.Done():
	}
}

// finish emits the terminal EventEnded and closes both output channels.
func (s *session) finish() {
	s.closeOnce.Do(func() {
		ended := s2s.Event{Kind: s2s.EventEnded, Err: s.Err(), At: time.Now()}
		timer := time.NewTimer(endedDeliveryTimeout)
		select {
		case s.events <- ended:
		case <-timer.C:
		}
		timer.Stop()
		close(s.audioCh)
		close(s.events)
	})
}

func (s *session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ── SessionHandle methods ──────────────────────────────────────────────────────

// SendAudio delivers a raw PCM16 audio chunk to the model.
func (s *session) SendAudio(chunk []byte) error {
	if s.isClosed() {
		return s2s.ErrSessionClosed
	}
	encoded := base64.StdEncoding.EncodeToString(chunk)
	return s.writeJSON(appendAudioMessage{
		Type:  "input_audio_buffer.append",
		Audio: encoded,
	})
}

// Audio returns the channel on which the model's synthesised audio arrives.
func (s *session) Audio() <-chan []byte { return s.audioCh }

// Events returns the ordered event stream.
func (s *session) Events() <-chan s2s.Event { return s.events }

// Err returns the first non-nil error that caused the session to terminate.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// InjectTextContext inserts ContextItems as conversation.item.create events and
// then requests a response so the model acts on them.
func (s *session) InjectTextContext(items []s2s.ContextItem) error {
	if s.isClosed() {
		return s2s.ErrSessionClosed
	}
	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		role := item.Role
		// Unknown roles are coerced to "user".
		switch role {
		case "assistant", "system":
		default:
			role = "user"
		}

		// Assistant messages use "text", everything else uses "input_text".
		partType := "input_text"
		if role == "assistant" {
			partType = "text"
		}

		msg := createConversationItemMessage{
			Type: "conversation.item.create",
			Item: conversationItem{
				Type: "message",
				Role: role,
				Content: []conversationPart{
					{Type: partType, Text: item.Content},
				},
			},
		}
		if err := s.writeJSON(msg); err != nil {
			return err
		}
	}
	return s.writeJSON(responseCreateMessage{Type: "response.create"})
}

// Interrupt sends a response.cancel event to stop the current model response.
func (s *session) Interrupt() error {
	if s.isClosed() {
		return s2s.ErrSessionClosed
	}
	return s.writeJSON(map[string]string{"type": "response.cancel"})
}

// Close terminates the session and releases all resources. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
