package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/karanmishra2003/HoloHire/internal/config"
	"github.com/karanmishra2003/HoloHire/internal/httpapi"
	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/store"
)

func (e *env) liveURL(id string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/interviews/" + id + "/live"
}

func dialLive(t *testing.T, e *env, id string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, e.liveURL(id), nil)
	if err != nil {
		t.Fatalf("dial live: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

// readUntil reads text frames until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(httpapi.ServerMessage) bool) httpapi.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read live: %v", err)
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg httpapi.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode live message: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func isStatus(status string) func(httpapi.ServerMessage) bool {
	return func(m httpapi.ServerMessage) bool { return m.Type == httpapi.MsgStatus && m.Status == status }
}

func TestLive_EndPersistsAnswers(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	u := e.seedUser(t, "ada@example.com")
	iv := e.seedInterview(t, u.ID)

	conn := dialLive(t, e, iv.ID)
	readUntil(t, conn, isStatus(httpapi.StatusConnecting))

	// End is ignored until the voice session connects, so keep asking.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				err := wsjson.Write(ctx, conn, httpapi.ClientMessage{Type: httpapi.MsgEnd})
				cancel()
				if err != nil {
					return
				}
			}
		}
	}()

	final := readUntil(t, conn, isStatus(httpapi.StatusEnded))
	if final.Outcome != interview.OutcomeCompleted || !final.Persisted || final.Answers != 1 {
		t.Errorf("final status = %+v", final)
	}

	stored, err := e.mem.GetInterview(context.Background(), iv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != store.StatusCompleted {
		t.Errorf("status = %q, want completed", stored.Status)
	}
	if len(stored.Answers) != 1 || stored.Answers[0].Outcome != interview.OutcomeEndedEarly {
		t.Errorf("answers = %+v", stored.Answers)
	}
}

func TestLive_DisconnectCancels(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	u := e.seedUser(t, "ada@example.com")
	iv := e.seedInterview(t, u.ID)

	conn := dialLive(t, e, iv.ID)
	readUntil(t, conn, isStatus(httpapi.StatusConnecting))
	if _, ok := e.app.Sessions().Get(iv.ID); !ok {
		t.Fatal("live session not registered")
	}
	conn.Close(websocket.StatusGoingAway, "tab closed")

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, ok := e.app.Sessions().Get(iv.ID); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stored, err := e.mem.GetInterview(context.Background(), iv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != store.StatusPending || len(stored.Answers) != 0 {
		t.Errorf("disconnect persisted: status %q, %d answers", stored.Status, len(stored.Answers))
	}
}

func TestLive_Gaze(t *testing.T) {
	t.Parallel()
	e := newEnv(t, func(c *config.Config) { c.Attention.Interval = 20 * time.Millisecond })
	u := e.seedUser(t, "ada@example.com")
	iv := e.seedInterview(t, u.ID)

	conn := dialLive(t, e, iv.ID)
	readUntil(t, conn, isStatus(httpapi.StatusConnecting))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"gaze","gaze":{"hasFace":true,"yaw":3,"pitch":-2}}`)); err != nil {
		t.Fatal(err)
	}
	msg := readUntil(t, conn, func(m httpapi.ServerMessage) bool {
		return m.Type == httpapi.MsgAttention && m.Attention != nil && m.Attention.Attentive > 0
	})
	if msg.Attention.NoFace != 0 {
		t.Errorf("attention = %+v", msg.Attention)
	}
}

func TestLive_Rejections(t *testing.T) {
	t.Parallel()
	e := newEnv(t, nil)
	u := e.seedUser(t, "ada@example.com")
	iv := e.seedInterview(t, u.ID)

	first := dialLive(t, e, iv.ID)
	readUntil(t, first, isStatus(httpapi.StatusConnecting))

	tests := []struct {
		name string
		id   string
		want int
	}{
		{name: "duplicate session", id: iv.ID, want: http.StatusConflict},
		{name: "unknown interview", id: "missing", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			conn, resp, err := websocket.Dial(ctx, e.liveURL(tt.id), nil)
			if err == nil {
				conn.CloseNow()
				t.Fatal("dial succeeded, want rejection")
			}
			if resp == nil || resp.StatusCode != tt.want {
				t.Fatalf("dial error = %v, want status %d", err, tt.want)
			}
		})
	}
}
