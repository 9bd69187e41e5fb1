package model

import "time"

// LineNote annotates one line of a snippet. There is at most one note per
// (SnippetID, LineNumber, UserID).
type LineNote struct {
	ID         string    `json:"id"`
	SnippetID  string    `json:"snippetId"`
	UserID     string    `json:"userId"`
	LineNumber int       `json:"lineNumber"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// UpsertOutcome tells the caller whether an upsert inserted or overwrote.
type UpsertOutcome string

const (
	UpsertCreated UpsertOutcome = "created"
	UpsertUpdated UpsertOutcome = "updated"
)

// UpsertResult is returned by note upserts. ID is the note's id, unchanged
// when Outcome is UpsertUpdated.
type UpsertResult struct {
	ID      string        `json:"id"`
	Outcome UpsertOutcome `json:"outcome"`
}
