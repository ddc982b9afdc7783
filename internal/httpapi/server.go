// Package httpapi exposes the HoloHire service over HTTP.
//
// Routes:
//
//	POST   /api/users                              upsert a user by email
//	GET    /api/users/{email}
//	POST   /api/interviews                         create an interview
//	GET    /api/interviews?userId=                 list a user's interviews
//	GET    /api/interviews/{id}
//	PATCH  /api/interviews/{id}                    rename
//	DELETE /api/interviews/{id}
//	PUT    /api/interviews/{id}/questions
//	POST   /api/interviews/generate-questions      JSON or multipart form
//	POST   /api/interviews/{id}/feedback           score the recorded answers
//	GET    /api/interviews/{id}/export.xlsx
//	GET    /api/interviews/{id}/live               live session WebSocket
//	GET    /api/live                               running live sessions
//	GET    /api/upload-auth
//	POST   /api/avatar-token
//	GET    /healthz, /readyz, /metrics
//
// Callers identify themselves with the X-User-Email header. When the header
// is present, interviews owned by other users are reported as not found.
package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karanmishra2003/HoloHire/internal/app"
	"github.com/karanmishra2003/HoloHire/internal/health"
	"github.com/karanmishra2003/HoloHire/internal/observe"
)

// UserHeader carries the caller's email address.
const UserHeader = "X-User-Email"

// Server routes HTTP requests to an [app.App].
type Server struct {
	app *app.App
	mux *http.ServeMux
}

// New returns the instrumented service handler for a. Its signature matches
// [app.WithHandler].
func New(a *app.App) http.Handler {
	s := &Server{app: a, mux: http.NewServeMux()}
	s.routes()
	return observe.Middleware(a.Metrics())(s.mux)
}

func (s *Server) routes() {
	health.New(s.app.Readiness()...).Register(s.mux)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("POST /api/users", s.handleUpsertUser)
	s.mux.HandleFunc("GET /api/users/{email}", s.handleGetUser)

	s.mux.HandleFunc("POST /api/interviews", s.handleCreateInterview)
	s.mux.HandleFunc("GET /api/interviews", s.handleListInterviews)
	s.mux.HandleFunc("POST /api/interviews/generate-questions", s.handleGenerateQuestions)
	s.mux.HandleFunc("GET /api/interviews/{id}", s.handleGetInterview)
	s.mux.HandleFunc("PATCH /api/interviews/{id}", s.handleRenameInterview)
	s.mux.HandleFunc("DELETE /api/interviews/{id}", s.handleDeleteInterview)
	s.mux.HandleFunc("PUT /api/interviews/{id}/questions", s.handleUpdateQuestions)
	s.mux.HandleFunc("POST /api/interviews/{id}/feedback", s.handleScoreFeedback)
	s.mux.HandleFunc("GET /api/interviews/{id}/export.xlsx", s.handleExport)
	s.mux.HandleFunc("GET /api/interviews/{id}/live", s.handleLive)
	s.mux.HandleFunc("GET /api/live", s.handleActiveSessions)

	s.mux.HandleFunc("GET /api/upload-auth", s.handleUploadAuth)
	s.mux.HandleFunc("POST /api/avatar-token", s.handleAvatarToken)
}

func (s *Server) handleUploadAuth(w http.ResponseWriter, _ *http.Request) {
	auth, err := s.app.UploadAuth()
	if err != nil {
		writeError(w, nil, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, auth)
}

func (s *Server) handleAvatarToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.app.AvatarToken(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(token))
}

func (s *Server) handleActiveSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Sessions().Active())
}
