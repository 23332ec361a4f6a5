package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"flashnotes/internal/domain"
	"flashnotes/internal/retry"
)

var errUnsupported = errors.New("unsupported message type")

type errorPayload struct {
	Code    domain.Code         `json:"code,omitempty"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

func newErrorPayload(err error) errorPayload {
	p := errorPayload{Code: domain.CodeOf(err), Message: domain.MessageOf(err)}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		p.Fields = verr.Fields
	}
	if errors.Is(err, errNoQuiz) || errors.Is(err, errUnsupported) {
		p.Message = err.Error()
	}
	return p
}

func statusOf(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, domain.ErrConfirmationMismatch), errors.Is(err, errUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNoteNotFound), errors.Is(err, domain.ErrNoQuizData):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateTitle),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAnswerNotShown),
		errors.Is(err, domain.ErrMissAlreadyMarked),
		errors.Is(err, errNoQuiz):
		return http.StatusConflict
	case errors.Is(err, retry.ErrRetriesDisabled), errors.Is(err, retry.ErrRetriesExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), newErrorPayload(err))
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "body", Message: err.Error()}}}
	}
	return nil
}
