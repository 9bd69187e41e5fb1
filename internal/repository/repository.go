// Package repository declares the storage contracts of the application.
//
// Every method that touches an owned entity takes the caller's userID and
// narrows the query with it. A row owned by somebody else is treated exactly
// like a row that does not exist: reads return apperror.ErrNotFound, updates
// and deletes silently affect nothing.
package repository

import (
	"context"

	"github.com/codevault/codevault/internal/model"
)

type UserRepository interface {
	// UpsertUser inserts or refreshes the account keyed by user.OpenID and
	// fills in ID, Role and timestamps.
	UpsertUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByOpenID(ctx context.Context, openID string) (*model.User, error)
	// CreateLocalUser inserts a password account; ErrConflict if the open id exists.
	CreateLocalUser(ctx context.Context, user *model.User) error
	TouchSignIn(ctx context.Context, id string) error
}

type ProjectRepository interface {
	ListProjects(ctx context.Context, userID string) ([]model.Project, error)
	GetProject(ctx context.Context, id, userID string) (*model.Project, error)
	CreateProject(ctx context.Context, project *model.Project) error
	UpdateProject(ctx context.Context, id, userID string, patch model.ProjectPatch) error
	DeleteProject(ctx context.Context, id, userID string) error
}

type SnippetRepository interface {
	// ListSnippets returns the user's snippets; projectID == "" means all.
	ListSnippets(ctx context.Context, userID, projectID string) ([]model.Snippet, error)
	GetSnippet(ctx context.Context, id, userID string) (*model.Snippet, error)
	CreateSnippet(ctx context.Context, snippet *model.Snippet) error
	UpdateSnippet(ctx context.Context, id, userID string, patch model.SnippetPatch) error
	DeleteSnippet(ctx context.Context, id, userID string) error
	SearchSnippets(ctx context.Context, userID, query, projectID string) ([]model.Snippet, error)
}

type NoteRepository interface {
	ListNotes(ctx context.Context, snippetID, userID string) ([]model.LineNote, error)
	UpsertNote(ctx context.Context, snippetID string, lineNumber int, content, userID string) (model.UpsertResult, error)
	DeleteNote(ctx context.Context, id, userID string) error
}

type FileRepository interface {
	ListFiles(ctx context.Context, userID, projectID string) ([]model.FileRecord, error)
	CreateFile(ctx context.Context, file *model.FileRecord) error
	DeleteFile(ctx context.Context, id, userID string) error
}

type ChatRepository interface {
	SaveChatMessage(ctx context.Context, msg *model.ChatMessage) error
	// ListChatHistory returns the most recent `limit` messages in
	// chronological order; snippetID == "" means unscoped.
	ListChatHistory(ctx context.Context, userID, snippetID string, limit int) ([]model.ChatMessage, error)
	ClearChatHistory(ctx context.Context, userID, snippetID string) error
}

// Store is everything the sql backend implements. Services depend on the
// narrow interfaces above; only the composition root sees Store.
type Store interface {
	UserRepository
	ProjectRepository
	SnippetRepository
	NoteRepository
	FileRepository
	ChatRepository
	Ping(ctx context.Context) error
	Close() error
}
