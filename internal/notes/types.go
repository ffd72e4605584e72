package notes

import (
	"strings"
	"time"
)

const (
	// MaxTitleLength bounds note titles.
	MaxTitleLength = 100

	// SlugTakenWarning is appended to the offending slug in the field
	// error shown when a note with that slug already exists.
	SlugTakenWarning = " - this slug already exists, come up with a unique value!"
)

// Note represents a user's note. ID is assigned by storage and doubles
// as creation order.
type Note struct {
	ID        int64
	Title     string
	Text      string
	Slug      string
	AuthorID  string
	CreatedAt time.Time
}

// CreateNoteParams contains parameters for creating a note.
// An empty Slug means derive one from Title.
type CreateNoteParams struct {
	Title string
	Text  string
	Slug  string
}

// UpdateNoteParams contains parameters for updating a note.
// The slug is fixed at creation and cannot be changed.
type UpdateNoteParams struct {
	Title string
	Text  string
}

// FieldError describes a validation problem with a single form field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// FieldErrors collects validation problems so callers can re-render a
// form with per-field messages.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// For returns the message for a field, or "" if the field has no error.
func (e FieldErrors) For(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}
