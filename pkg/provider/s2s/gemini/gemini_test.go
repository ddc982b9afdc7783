package gemini_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s"
	"github.com/karanmishra2003/HoloHire/pkg/provider/s2s/gemini"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startGeminiServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Errorf("readJSON: %v", err)
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Errorf("readJSON unmarshal: %v", err)
	}
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Logf("writeJSON: %v (may be expected on close)", err)
	}
}

func connect(t *testing.T, srv *httptest.Server, cfg s2s.SessionConfig) s2s.SessionHandle {
	t.Helper()
	p := gemini.New("test-key", gemini.WithBaseURL(wsURL(srv)))
	handle, err := p.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })
	return handle
}

// collect reads n events from h.
func collect(t *testing.T, h s2s.SessionHandle, n int) []s2s.Event {
	t.Helper()
	var out []s2s.Event
	deadline := time.After(3 * time.Second)
	for len(out) < n {
		select {
		case e, ok := <-h.Events():
			if !ok {
				t.Fatalf("events channel closed after %d events", len(out))
			}
			out = append(out, e)
		case <-deadline:
			t.Fatalf("timeout after %d of %d events", len(out), n)
		}
	}
	return out
}

func turn(fields map[string]any) map[string]any {
	return map[string]any{"serverContent": fields}
}

func TestConnect_SendsSetupWithTranscription(t *testing.T) {
	t.Parallel()

	type setupMsg struct {
		Setup struct {
			Model             string `json:"model"`
			SystemInstruction struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
			GenerationConfig struct {
				SpeechConfig struct {
					VoiceConfig struct {
						PrebuiltVoiceConfig struct {
							VoiceName string `json:"voiceName"`
						} `json:"prebuiltVoiceConfig"`
					} `json:"voiceConfig"`
				} `json:"speechConfig"`
			} `json:"generationConfig"`
			InputAudioTranscription  *json.RawMessage `json:"inputAudioTranscription"`
			OutputAudioTranscription *json.RawMessage `json:"outputAudioTranscription"`
		} `json:"setup"`
	}

	got := make(chan setupMsg, 1)
	keys := make(chan string, 1)
	srv := startGeminiServer(t, func(conn *websocket.Conn, r *http.Request) {
		keys <- r.URL.Query().Get("key")
		var msg setupMsg
		readJSON(t, conn, &msg)
		got <- msg
		<-conn.CloseRead(context.Background()).Done()
	})

	connect(t, srv, s2s.SessionConfig{
		Instructions: "Ask the questions in order.",
		Voice:        s2s.VoiceProfile{ID: "Kore"},
	})

	if k := <-keys; k != "test-key" {
		t.Errorf("key = %q; want test-key", k)
	}
	select {
	case msg := <-got:
		if msg.Setup.Model != "models/gemini-2.0-flash-live-001" {
			t.Errorf("model = %q", msg.Setup.Model)
		}
		if len(msg.Setup.SystemInstruction.Parts) != 1 || msg.Setup.SystemInstruction.Parts[0].Text != "Ask the questions in order." {
			t.Errorf("systemInstruction = %+v", msg.Setup.SystemInstruction)
		}
		if v := msg.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; v != "Kore" {
			t.Errorf("voice = %q; want Kore", v)
		}
		if msg.Setup.InputAudioTranscription == nil || msg.Setup.OutputAudioTranscription == nil {
			t.Error("expected input and output transcription to be requested")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for setup")
	}
}

func TestSetupComplete_EmitsConnectedAndSendsGreeting(t *testing.T) {
	t.Parallel()

	greeting := make(chan map[string]any, 1)
	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		writeJSON(t, conn, map[string]any{"setupComplete": map[string]any{}})
		var msg map[string]any
		readJSON(t, conn, &msg)
		greeting <- msg
		<-conn.CloseRead(context.Background()).Done()
	})

	handle := connect(t, srv, s2s.SessionConfig{Greeting: "Hello there!"})

	evs := collect(t, handle, 1)
	if evs[0].Kind != s2s.EventConnected {
		t.Fatalf("first event = %s; want connected", evs[0].Kind)
	}

	select {
	case msg := <-greeting:
		b, _ := json.Marshal(msg)
		if !strings.Contains(string(b), "clientContent") || !strings.Contains(string(b), "Hello there!") {
			t.Errorf("greeting message = %s", b)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for greeting")
	}
}

func TestServerContent_TurnMapping(t *testing.T) {
	t.Parallel()

	pcm := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		writeJSON(t, conn, turn(map[string]any{"inputTranscription": map[string]any{"text": "I am "}}))
		writeJSON(t, conn, turn(map[string]any{"inputTranscription": map[string]any{"text": "ready."}}))
		writeJSON(t, conn, turn(map[string]any{
			"modelTurn": map[string]any{"parts": []any{
				map[string]any{"inlineData": map[string]any{"mimeType": "audio/pcm", "data": pcm}},
			}},
		}))
		writeJSON(t, conn, turn(map[string]any{"outputTranscription": map[string]any{"text": "Question 1: "}}))
		writeJSON(t, conn, turn(map[string]any{"outputTranscription": map[string]any{"text": "what is Go?"}}))
		writeJSON(t, conn, turn(map[string]any{"turnComplete": true}))
		<-conn.CloseRead(context.Background()).Done()
	})

	handle := connect(t, srv, s2s.SessionConfig{})

	evs := collect(t, handle, 6)
	want := []struct {
		kind  s2s.EventKind
		text  string
		final bool
	}{
		{s2s.EventUserTranscript, "I am ", false},
		{s2s.EventUserTranscript, "I am ready.", false},
		{s2s.EventUserTranscript, "I am ready.", true},
		{s2s.EventAssistantSpeechStart, "", false},
		{s2s.EventAssistantTranscript, "Question 1: what is Go?", false},
		{s2s.EventAssistantSpeechEnd, "", false},
	}
	for i, w := range want {
		e := evs[i]
		if e.Kind != w.kind || e.Text != w.text || e.Final != w.final {
			t.Errorf("event[%d] = {%s %q final=%v}; want {%s %q final=%v}", i, e.Kind, e.Text, e.Final, w.kind, w.text, w.final)
		}
	}

	select {
	case chunk := <-handle.Audio():
		if len(chunk) != 4 {
			t.Errorf("audio chunk len = %d; want 4", len(chunk))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for audio")
	}
}

func TestServerContent_InterruptedEndsSpeech(t *testing.T) {
	t.Parallel()

	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		writeJSON(t, conn, turn(map[string]any{"outputTranscription": map[string]any{"text": "Let me"}}))
		writeJSON(t, conn, turn(map[string]any{"interrupted": true}))
		<-conn.CloseRead(context.Background()).Done()
	})

	handle := connect(t, srv, s2s.SessionConfig{})
	evs := collect(t, handle, 3)
	if evs[0].Kind != s2s.EventAssistantSpeechStart || evs[1].Kind != s2s.EventAssistantTranscript || evs[2].Kind != s2s.EventAssistantSpeechEnd {
		t.Errorf("kinds = %s, %s, %s", evs[0].Kind, evs[1].Kind, evs[2].Kind)
	}
}

func TestErrorMessage_EmitsErrorEvent(t *testing.T) {
	t.Parallel()

	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		writeJSON(t, conn, map[string]any{"error": map[string]any{"code": 400, "message": "bad audio"}})
		<-conn.CloseRead(context.Background()).Done()
	})

	handle := connect(t, srv, s2s.SessionConfig{})
	evs := collect(t, handle, 1)
	if evs[0].Kind != s2s.EventError || evs[0].Err == nil || !strings.Contains(evs[0].Err.Error(), "bad audio") {
		t.Errorf("event = %+v", evs[0])
	}
}

func TestServerClose_EmitsEndedThenCloses(t *testing.T) {
	t.Parallel()

	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		conn.Close(websocket.StatusGoingAway, "session limit")
	})

	handle := connect(t, srv, s2s.SessionConfig{})
	evs := collect(t, handle, 1)
	if evs[0].Kind != s2s.EventEnded {
		t.Fatalf("event = %s; want ended", evs[0].Kind)
	}
	if evs[0].Err != nil {
		t.Errorf("going-away closure should be treated as noise, got %v", evs[0].Err)
	}
	select {
	case _, ok := <-handle.Events():
		if ok {
			t.Error("events channel should be closed after EventEnded")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestInjectTextContext_MapsRoles(t *testing.T) {
	t.Parallel()

	type contentMsg struct {
		ClientContent struct {
			Turns []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"turns"`
			TurnComplete bool `json:"turnComplete"`
		} `json:"clientContent"`
	}
	got := make(chan contentMsg, 1)
	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		var msg contentMsg
		readJSON(t, conn, &msg)
		got <- msg
		<-conn.CloseRead(context.Background()).Done()
	})

	handle := connect(t, srv, s2s.SessionConfig{})
	err := handle.InjectTextContext([]s2s.ContextItem{
		{Role: "system", Content: "Time is up."},
		{Role: "assistant", Content: "Okay."},
	})
	if err != nil {
		t.Fatalf("InjectTextContext: %v", err)
	}

	select {
	case msg := <-got:
		turns := msg.ClientContent.Turns
		if len(turns) != 2 {
			t.Fatalf("turns = %d; want 2", len(turns))
		}
		if turns[0].Role != "user" || turns[1].Role != "model" {
			t.Errorf("roles = %q, %q; want user, model", turns[0].Role, turns[1].Role)
		}
		if !msg.ClientContent.TurnComplete {
			t.Error("turnComplete should be true")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}
}

func TestInterrupt_Unsupported(t *testing.T) {
	t.Parallel()

	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})
	handle := connect(t, srv, s2s.SessionConfig{})
	if err := handle.Interrupt(); err == nil {
		t.Error("expected Interrupt to return an error")
	}
	if gemini.New("k").Capabilities().SupportsInterrupt {
		t.Error("SupportsInterrupt should be false")
	}
}

func TestClose_IdempotentAndRejectsAudio(t *testing.T) {
	t.Parallel()

	srv := startGeminiServer(t, func(conn *websocket.Conn, _ *http.Request) {
		var raw map[string]any
		readJSON(t, conn, &raw)
		<-conn.CloseRead(context.Background()).Done()
	})
	handle := connect(t, srv, s2s.SessionConfig{})
	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := handle.SendAudio([]byte{0}); !errors.Is(err, s2s.ErrSessionClosed) {
		t.Errorf("SendAudio after Close = %v; want ErrSessionClosed", err)
	}
}
