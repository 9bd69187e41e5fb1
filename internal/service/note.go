package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/repository"
)

// NoteService manages per-line annotations on snippets.
type NoteService struct {
	repo   repository.NoteRepository
	logger *slog.Logger
}

func NewNoteService(repo repository.NoteRepository, logger *slog.Logger) *NoteService {
	return &NoteService{repo: repo, logger: logger}
}

// List returns the caller's notes on a snippet, ordered by line. A foreign
// or missing snippet simply has no notes.
func (s *NoteService) List(ctx context.Context, userID, snippetID string) ([]model.LineNote, error) {
	notes, err := s.repo.ListNotes(ctx, snippetID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing notes for snippet %s: %w", snippetID, err)
	}
	return notes, nil
}

// Upsert writes the note for (snippet, line): the first call creates it,
// later calls overwrite its content.
func (s *NoteService) Upsert(ctx context.Context, userID, snippetID string, line int, content string) (model.UpsertResult, error) {
	if line < 1 {
		return model.UpsertResult{}, apperror.ValidationFailed("lineNumber", "line number must be 1 or greater")
	}
	// Whitespace-only notes are rejected, but the content is stored as typed
	// so indentation and line breaks survive.
	if _, err := requireText("content", content, MaxNoteLength); err != nil {
		return model.UpsertResult{}, err
	}
	if err := maxLength("content", content, MaxNoteLength); err != nil {
		return model.UpsertResult{}, err
	}

	res, err := s.repo.UpsertNote(ctx, snippetID, line, content, userID)
	if err != nil {
		return model.UpsertResult{}, fmt.Errorf("saving note on line %d: %w", line, err)
	}

	s.logger.Info("note saved",
		slog.String("id", res.ID),
		slog.String("snippetID", snippetID),
		slog.Int("line", line),
		slog.String("outcome", string(res.Outcome)),
	)
	return res, nil
}

func (s *NoteService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteNote(ctx, id, userID); err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	return nil
}
