package http

import (
	"net/http"

	"flashnotes/internal/app"
	"flashnotes/internal/domain"
)

type signInRequest struct {
	Token string `json:"token"`
}

type deleteRequest struct {
	Confirmation string `json:"confirmation"`
}

type createdResponse struct {
	Note domain.Note `json:"note"`
}

type listResponse struct {
	Notes []domain.Note `json:"notes"`
	Stale bool          `json:"stale"`
	Error *errorPayload `json:"error,omitempty"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.workspace.SignIn(r.Context(), req.Token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorPayload{Message: "sign-in failed"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.Close()
	if err := s.workspace.SignOut(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner()
	if err != nil {
		writeError(w, err)
		return
	}
	order := app.SortOrder(r.URL.Query().Get("sort"))
	if order == "" {
		order = app.SortByDate
	}
	listing, err := s.list.Refresh(r.Context(), owner, order)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := listResponse{Notes: listing.Notes, Stale: listing.Stale}
	if listing.Cause != nil {
		p := newErrorPayload(listing.Cause)
		resp.Error = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner()
	if err != nil {
		writeError(w, err)
		return
	}
	var draft domain.NoteDraft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, err)
		return
	}
	note, err := s.list.Create(r.Context(), owner, draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Note: note})
}

func (s *Server) handleEditNote(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner()
	if err != nil {
		writeError(w, err)
		return
	}
	var draft domain.NoteDraft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, err)
		return
	}
	if err := s.list.Edit(r.Context(), owner, r.PathValue("id"), draft); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner()
	if err != nil {
		writeError(w, err)
		return
	}
	var req deleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.list.Delete(r.Context(), owner, r.PathValue("id"), req.Confirmation); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	view, err := s.startQuiz(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleQuizAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.quizAction(r.Context(), action)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
