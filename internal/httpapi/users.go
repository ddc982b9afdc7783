package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/karanmishra2003/HoloHire/internal/store"
)

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
}

func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, badRequest("email is required"))
		return
	}
	u, err := s.app.Store().UpsertUser(r.Context(), store.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.app.Store().GetUser(r.Context(), r.PathValue("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// callerID resolves the UserHeader to a user id. It returns "" when the
// header is absent.
func (s *Server) callerID(r *http.Request) (string, error) {
	email := strings.TrimSpace(r.Header.Get(UserHeader))
	if email == "" {
		return "", nil
	}
	u, err := s.app.Store().GetUser(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		return "", badRequest("unknown user %q", email)
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// loadInterview fetches interview id, hiding interviews that belong to a
// different caller.
func (s *Server) loadInterview(r *http.Request, id string) (store.Interview, error) {
	caller, err := s.callerID(r)
	if err != nil {
		return store.Interview{}, err
	}
	iv, err := s.app.Store().GetInterview(r.Context(), id)
	if err != nil {
		return store.Interview{}, err
	}
	if caller != "" && iv.UserID != caller {
		return store.Interview{}, fmt.Errorf("interview %s: %w", id, store.ErrNotFound)
	}
	return iv, nil
}
