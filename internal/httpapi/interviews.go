package httpapi

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/karanmishra2003/HoloHire/internal/feedback"
	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/observe"
	"github.com/karanmishra2003/HoloHire/internal/questions"
	"github.com/karanmishra2003/HoloHire/internal/report"
	"github.com/karanmishra2003/HoloHire/internal/store"
)

// maxFormMemory bounds the in-memory part of multipart forms.
const maxFormMemory = 8 << 20

type createInterviewRequest struct {
	UserID         string               `json:"userId"`
	Name           string               `json:"name"`
	JobDescription string               `json:"jobDescription"`
	ResumeFileName string               `json:"resumeFileName"`
	ResumeURL      string               `json:"resumeUrl"`
	Questions      []interview.Question `json:"questions"`
}

func (s *Server) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req createInterviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := s.ownerID(r, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	iv, err := s.app.Store().CreateInterview(r.Context(), store.Interview{
		UserID:         userID,
		Name:           strings.TrimSpace(req.Name),
		JobDescription: req.JobDescription,
		ResumeFileName: req.ResumeFileName,
		ResumeURL:      req.ResumeURL,
		Questions:      reindex(req.Questions),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	observe.Logger(r.Context()).Info("interview created", "interview_id", iv.ID, "questions", len(iv.Questions))
	writeJSON(w, http.StatusCreated, iv)
}

// ownerID picks the user id for a request: the explicit value when given,
// otherwise the caller header. A mismatch between the two is rejected.
func (s *Server) ownerID(r *http.Request, explicit string) (string, error) {
	caller, err := s.callerID(r)
	if err != nil {
		return "", err
	}
	switch {
	case explicit == "" && caller == "":
		return "", badRequest("userId or %s header is required", UserHeader)
	case explicit == "":
		return caller, nil
	case caller != "" && caller != explicit:
		return "", badRequest("userId does not match %s", UserHeader)
	}
	return explicit, nil
}

func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	userID, err := s.ownerID(r, r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.app.Store().ListInterviews(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []store.Interview{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	iv, err := s.loadInterview(r, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameInterview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, badRequest("name is required"))
		return
	}
	if _, err := s.loadInterview(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.Store().RenameInterview(r.Context(), id, name); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondInterview(w, r, id)
}

func (s *Server) handleDeleteInterview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.loadInterview(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	if live, ok := s.app.Sessions().Get(id); ok {
		live.Cancel()
	}
	if err := s.app.Store().DeleteInterview(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type questionsRequest struct {
	Questions []interview.Question `json:"questions"`
}

func (s *Server) handleUpdateQuestions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req questionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.loadInterview(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.Store().UpdateQuestions(r.Context(), id, reindex(req.Questions)); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondInterview(w, r, id)
}

func (s *Server) respondInterview(w http.ResponseWriter, r *http.Request, id string) {
	iv, err := s.app.Store().GetInterview(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

// reindex drops blank prompts and renumbers the rest.
func reindex(qs []interview.Question) []interview.Question {
	out := make([]interview.Question, 0, len(qs))
	for _, q := range qs {
		q.Prompt = strings.TrimSpace(q.Prompt)
		if q.Prompt == "" {
			continue
		}
		q.Index = len(out)
		out = append(out, q)
	}
	return out
}

type generateRequest struct {
	InterviewID    string `json:"interviewId"`
	ResumeURL      string `json:"resumeUrl"`
	JobDescription string `json:"jobDescription"`

	// Description is an alias for JobDescription.
	Description string `json:"description"`
}

type generateResponse struct {
	Success   bool                 `json:"success"`
	Source    questions.Source     `json:"source"`
	Questions []interview.Question `json:"questions"`
}

// parseGenerateRequest accepts a JSON body or a multipart form with the same
// field names.
func parseGenerateRequest(w http.ResponseWriter, r *http.Request) (generateRequest, error) {
	var req generateRequest
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return req, badRequest("invalid form: %v", err)
		}
		req.InterviewID = r.FormValue("interviewId")
		req.ResumeURL = r.FormValue("resumeUrl")
		req.JobDescription = r.FormValue("jobDescription")
		req.Description = r.FormValue("description")
	} else if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	if req.JobDescription == "" {
		req.JobDescription = req.Description
	}
	return req, nil
}

func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	req, err := parseGenerateRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	qreq := questions.Request{ResumeURL: req.ResumeURL, JobDescription: req.JobDescription}
	src, err := qreq.Source()
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if req.InterviewID != "" {
		if _, err := s.loadInterview(r, req.InterviewID); err != nil {
			writeError(w, r, err)
			return
		}
		ctx = observe.WithInterviewID(ctx, req.InterviewID)
	}

	qs, err := s.app.GenerateQuestions(ctx, qreq)
	if err != nil {
		writeError(w, r, fmt.Errorf("generate questions: %w", err))
		return
	}
	if req.InterviewID != "" {
		if err := s.app.Store().UpdateQuestions(ctx, req.InterviewID, qs); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, generateResponse{Success: true, Source: src, Questions: qs})
}

func (s *Server) handleScoreFeedback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.loadInterview(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := s.app.ScoreInterview(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	iv, err := s.loadInterview(r, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := feedback.Decode(iv.Feedback)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := report.Build(iv, rep)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="interview-%s.xlsx"`, iv.ID))
	if err := f.Write(w); err != nil {
		observe.Logger(r.Context()).Warn("export write failed", "interview_id", iv.ID, "err", err)
	}
}
