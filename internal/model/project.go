package model

import "time"

// DefaultProjectColor is the accent colour given to projects created without one.
const DefaultProjectColor = "#6366f1"

// Project groups snippets and files. Deleting a project deletes everything
// grouped under it.
type Project struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectPatch lists the fields an update may change.
type ProjectPatch struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
	Color       Optional[string] `json:"color"`
}

func (p ProjectPatch) IsEmpty() bool {
	return !p.Name.Set && !p.Description.Set && !p.Color.Set
}
