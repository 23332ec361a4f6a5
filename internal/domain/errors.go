package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateTitle is returned when the owner already has a note with the same title.
	ErrDuplicateTitle = errors.New("title already exists")
	// ErrNoteNotFound is returned when a note id does not exist for the owner.
	ErrNoteNotFound = errors.New("note not found")
	// ErrConfirmationMismatch is returned when the typed delete confirmation differs from the title.
	ErrConfirmationMismatch = errors.New("confirmation does not match title")
	// ErrNotSignedIn is returned when an operation needs an owner and none is signed in.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrNoQuizData is returned when a quiz is started on an empty deck.
	ErrNoQuizData = errors.New("no quiz data")
	// ErrInvalidTransition is returned when a quiz action is not legal in the current state.
	ErrInvalidTransition = errors.New("invalid quiz transition")
	// ErrAnswerNotShown is returned when a miss is marked before the answer is revealed.
	ErrAnswerNotShown = errors.New("answer not shown")
	// ErrMissAlreadyMarked is returned when the current question was already marked missed.
	ErrMissAlreadyMarked = errors.New("miss already marked for this question")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects client-side input problems. It never reaches the store.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Code identifies a user-visible failure for support diagnosis.
type Code string

const (
	CodeFetch        Code = "ERR101"
	CodeSave         Code = "ERR102"
	CodeUpdate       Code = "ERR103"
	CodeDelete       Code = "ERR104"
	CodeValidation   Code = "ERR201"
	CodeConfirmation Code = "ERR202"
	CodeSignOut      Code = "ERR301"
	CodeNoQuizData   Code = "ERR401"
	CodeMarkMissed   Code = "ERR501"
)

// Failure tags an error with the operation that produced it.
type Failure struct {
	Code Code
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Code, f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Fail wraps err with code and op. A nil err stays nil.
func Fail(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Code: code, Op: op, Err: err}
}

// CodeOf returns the failure code carried by err, or "" when there is none.
func CodeOf(err error) Code {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}

// MessageOf returns the text shown to the operator for err.
func MessageOf(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateTitle):
		return "title already exists"
	case errors.As(err, &verr):
		return "please fill in the required fields"
	case errors.Is(err, ErrConfirmationMismatch):
		return "title does not match"
	case errors.Is(err, ErrNoQuizData):
		return "no questions yet, add some notes first"
	case errors.Is(err, ErrNotSignedIn):
		return "sign in first"
	case errors.Is(err, ErrAnswerNotShown):
		return "reveal the answer first"
	case errors.Is(err, ErrMissAlreadyMarked):
		return "already marked as missed"
	case errors.Is(err, ErrInvalidTransition):
		return "not available right now"
	}
	switch CodeOf(err) {
	case CodeFetch:
		return "could not load notes, reload the page"
	case CodeSave:
		return "save failed"
	case CodeUpdate:
		return "update failed"
	case CodeDelete:
		return "delete failed"
	case CodeSignOut:
		return "sign-out failed"
	case CodeMarkMissed:
		return "could not record the miss"
	}
	return "unexpected error"
}
