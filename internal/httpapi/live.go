package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/karanmishra2003/HoloHire/internal/app"
	"github.com/karanmishra2003/HoloHire/internal/attention"
	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/observe"
)

// Live channel message types.
const (
	MsgAudio     = "audio"
	MsgEnd       = "end"
	MsgGaze      = "gaze"
	MsgSnapshot  = "snapshot"
	MsgAttention = "attention"
	MsgStatus    = "status"
)

// Session status values carried by status messages.
const (
	StatusConnecting = "connecting"
	StatusEnded      = "ended"
)

const (
	liveReadLimit    = 1 << 20
	liveWriteTimeout = 5 * time.Second
	liveOutboundSize = 128
)

// ClientMessage is a text frame sent by the browser. Binary frames carry raw
// PCM audio and need no envelope.
type ClientMessage struct {
	Type string `json:"type"`

	// Audio is base64 PCM in JSON, for clients that cannot send binary frames.
	Audio []byte `json:"audio,omitempty"`

	Gaze *attention.Sample `json:"gaze,omitempty"`
}

// ServerMessage is a text frame sent to the browser. Interviewer audio is
// sent as binary frames.
type ServerMessage struct {
	Type      string              `json:"type"`
	Status    string              `json:"status,omitempty"`
	Snapshot  *interview.Snapshot `json:"snapshot,omitempty"`
	Attention *attention.Report   `json:"attention,omitempty"`
	Outcome   string              `json:"outcome,omitempty"`
	Answers   int                 `json:"answers,omitempty"`
	Persisted bool                `json:"persisted,omitempty"`
}

// frame is one queued outbound WebSocket message.
type frame struct {
	audio []byte
	msg   *ServerMessage
}

// liveConn bridges one browser connection to one live session.
type liveConn struct {
	conn *websocket.Conn
	log  *slog.Logger
	out  chan frame
	res  chan interview.Result
}

// push queues f without blocking. Frames are dropped while the browser is
// slower than the session.
func (lc *liveConn) push(f frame) {
	select {
	case lc.out <- f:
	default:
		lc.log.Debug("live frame dropped")
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	iv, err := s.loadInterview(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	lc := &liveConn{
		log: observe.Logger(observe.WithInterviewID(r.Context(), id)),
		out: make(chan frame, liveOutboundSize),
		res: make(chan interview.Result, 1),
	}
	live, err := s.app.Sessions().Start(id, iv.UserID, iv.Questions, app.Hooks{
		Audio: func(b []byte) { lc.push(frame{audio: b}) },
		Snapshot: func(snap interview.Snapshot) {
			lc.push(frame{msg: &ServerMessage{Type: MsgSnapshot, Snapshot: &snap}})
		},
		Attention: func(rep attention.Report) {
			lc.push(frame{msg: &ServerMessage{Type: MsgAttention, Attention: &rep}})
		},
		Done: func(res interview.Result, _ error) { lc.res <- res },
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.app.Config().Server.AllowedOrigins,
	})
	if err != nil {
		lc.log.Warn("live upgrade failed", "err", err)
		live.Cancel()
		return
	}
	conn.SetReadLimit(liveReadLimit)
	lc.conn = conn
	lc.log.Info("live client connected")

	ctx := context.WithoutCancel(r.Context())
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		lc.readLoop(ctx, live)
	}()

	lc.push(frame{msg: &ServerMessage{Type: MsgStatus, Status: StatusConnecting}})
	lc.writeLoop(ctx, live)
	<-readDone
}

// readLoop forwards client frames to the session. A disconnect before the
// candidate ends the interview cancels the session without persisting.
func (lc *liveConn) readLoop(ctx context.Context, live *app.Live) {
	defer live.Cancel()
	for {
		typ, data, err := lc.conn.Read(ctx)
		if err != nil {
			select {
			case <-live.Done():
			default:
				lc.log.Info("live client disconnected", "status", websocket.CloseStatus(err))
			}
			return
		}
		if typ == websocket.MessageBinary {
			lc.sendAudio(live, data)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			lc.log.Debug("live message ignored", "err", err)
			continue
		}
		switch msg.Type {
		case MsgAudio:
			lc.sendAudio(live, msg.Audio)
		case MsgEnd:
			live.End()
		case MsgGaze:
			if msg.Gaze != nil {
				live.ObserveGaze(*msg.Gaze)
			}
		default:
			lc.log.Debug("unknown live message type", "type", msg.Type)
		}
	}
}

func (lc *liveConn) sendAudio(live *app.Live, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	if err := live.SendAudio(chunk); err != nil && !errors.Is(err, interview.ErrNotConnected) {
		lc.log.Debug("forward audio failed", "err", err)
	}
}

// writeLoop drains queued frames until the session ends, then sends the final
// status and closes the connection.
func (lc *liveConn) writeLoop(ctx context.Context, live *app.Live) {
	for {
		select {
		case f := <-lc.out:
			if err := lc.write(ctx, f); err != nil {
				lc.log.Debug("live write failed", "err", err)
				live.Cancel()
				<-live.Done()
				lc.conn.CloseNow()
				return
			}
		case <-live.Done():
			lc.flush(ctx)
			res := <-lc.res
			_ = lc.write(ctx, frame{msg: &ServerMessage{
				Type:      MsgStatus,
				Status:    StatusEnded,
				Outcome:   res.Outcome,
				Answers:   len(res.Answers),
				Persisted: res.Outcome == interview.OutcomeCompleted && res.PersistErr == nil,
			}})
			lc.conn.Close(websocket.StatusNormalClosure, res.Outcome)
			return
		}
	}
}

// flush writes whatever is still queued.
func (lc *liveConn) flush(ctx context.Context) {
	for {
		select {
		case f := <-lc.out:
			if err := lc.write(ctx, f); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (lc *liveConn) write(ctx context.Context, f frame) error {
	ctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	if f.msg != nil {
		return wsjson.Write(ctx, lc.conn, f.msg)
	}
	return lc.conn.Write(ctx, websocket.MessageBinary, f.audio)
}
