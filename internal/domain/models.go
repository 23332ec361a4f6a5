package domain

import "time"

const (
	// MaxTitleLength bounds Note.Title, counted in runes.
	MaxTitleLength = 50
	// MaxTextLength bounds Question, Answer and Explanation, counted in runes.
	MaxTextLength = 999
)

// User is the authenticated principal. ID is the opaque owner key for notes.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// Note is a single flashcard owned by one user.
type Note struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Explanation string    `json:"explanation,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	MissCount   int       `json:"missCount"`
}

// NoteDraft carries the operator-editable fields of a note.
type NoteDraft struct {
	Title       string `json:"title"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

// NotePatch is a partial update. Nil fields are left untouched.
type NotePatch struct {
	Title       *string `json:"title,omitempty"`
	Question    *string `json:"question,omitempty"`
	Answer      *string `json:"answer,omitempty"`
	Explanation *string `json:"explanation,omitempty"`
}

// Patch converts a draft into a patch that overwrites every editable field.
func (d NoteDraft) Patch() NotePatch {
	return NotePatch{
		Title:       &d.Title,
		Question:    &d.Question,
		Answer:      &d.Answer,
		Explanation: &d.Explanation,
	}
}

// Apply merges the patch into n.
func (p NotePatch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Question != nil {
		n.Question = *p.Question
	}
	if p.Answer != nil {
		n.Answer = *p.Answer
	}
	if p.Explanation != nil {
		n.Explanation = *p.Explanation
	}
	return n
}

// IsEmpty reports whether the patch changes nothing.
func (p NotePatch) IsEmpty() bool {
	return p.Title == nil && p.Question == nil && p.Answer == nil && p.Explanation == nil
}

// SameContent reports whether a and b describe the same card, ignoring MissCount.
func SameContent(a, b Note) bool {
	return a.ID == b.ID &&
		a.Title == b.Title &&
		a.Question == b.Question &&
		a.Answer == b.Answer &&
		a.Explanation == b.Explanation
}
