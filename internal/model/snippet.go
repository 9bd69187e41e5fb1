package model

import "time"

// DefaultLanguage is applied when a snippet is created without a language.
const DefaultLanguage = "javascript"

// Snippet represents a saved code snippet.
//
// ProjectID is a pointer because grouping is optional: a nil ProjectID means
// the snippet lives at the top level of the user's vault, and it serializes
// to JSON null rather than "".
type Snippet struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ProjectID   *string   `json:"projectId"`
	Title       string    `json:"title"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	Description string    `json:"description"`
	IsFavorite  bool      `json:"isFavorite"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SnippetPatch lists the fields an update may change. Unset fields are left
// untouched; ProjectID may be set to nil to move a snippet out of a project.
type SnippetPatch struct {
	Title       Optional[string]  `json:"title"`
	Code        Optional[string]  `json:"code"`
	Language    Optional[string]  `json:"language"`
	Description Optional[string]  `json:"description"`
	ProjectID   Optional[*string] `json:"projectId"`
	IsFavorite  Optional[bool]    `json:"isFavorite"`
}

// IsEmpty reports whether the patch changes nothing.
func (p SnippetPatch) IsEmpty() bool {
	return !p.Title.Set && !p.Code.Set && !p.Language.Set &&
		!p.Description.Set && !p.ProjectID.Set && !p.IsFavorite.Set
}
