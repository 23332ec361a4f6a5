package domain

import (
	"strings"
	"unicode/utf8"
)

// Normalize trims surrounding whitespace from every field.
func (d NoteDraft) Normalize() NoteDraft {
	return NoteDraft{
		Title:       strings.TrimSpace(d.Title),
		Question:    strings.TrimSpace(d.Question),
		Answer:      strings.TrimSpace(d.Answer),
		Explanation: strings.TrimSpace(d.Explanation),
	}
}

// Validate checks required fields and length limits. Call on a normalized draft.
func (d NoteDraft) Validate() error {
	verr := &ValidationError{}
	required(verr, "title", d.Title, MaxTitleLength)
	required(verr, "question", d.Question, MaxTextLength)
	required(verr, "answer", d.Answer, MaxTextLength)
	if utf8.RuneCountInString(d.Explanation) > MaxTextLength {
		verr.add("explanation", "too long")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func required(verr *ValidationError, field, value string, max int) {
	switch {
	case value == "":
		verr.add(field, "required")
	case utf8.RuneCountInString(value) > max:
		verr.add(field, "too long")
	}
}
