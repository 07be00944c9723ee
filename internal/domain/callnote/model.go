// Package callnote keeps the call notes a rep records against doctors. The
// seed notes are shared by every workspace; notes added through the API are
// persisted per workspace under KeyAddedNotes and merged in on first use.
package callnote

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

const (
	// KeyAddedNotes holds the JSON array of notes added in a workspace.
	KeyAddedNotes = "addedCallNotes"

	DefaultCreatedBy   = "Current User"
	DefaultRecentLimit = 3

	// MaxWorkspaces bounds the number of notebooks held in memory.
	MaxWorkspaces = 1024
)

// NoteInput is the body of an add-note request. Date and CreatedBy are
// optional.
type NoteInput struct {
	Date      string `json:"date"`
	Notes     string `json:"notes"`
	CreatedBy string `json:"createdBy"`
}

// LoadResult reports how many persisted notes a Load merged in.
type LoadResult struct {
	Merged int `json:"merged"`
	Total  int `json:"total"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
