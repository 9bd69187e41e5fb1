package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/executor"
	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/repository"
)

// SnippetService handles business logic for code snippets.
//
// The executor is optional in spirit: when no sandbox could be started the
// server injects executor.Unavailable and Run reports an upstream failure,
// while every other operation keeps working.
type SnippetService struct {
	repo   repository.SnippetRepository
	exec   executor.Executor
	logger *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, exec executor.Executor, logger *slog.Logger) *SnippetService {
	if exec == nil {
		exec = executor.Unavailable{}
	}
	return &SnippetService{repo: repo, exec: exec, logger: logger}
}

// SnippetInput is the data needed to create a snippet. Language defaults to
// model.DefaultLanguage; ProjectID nil means top level.
type SnippetInput struct {
	Title       string
	Code        string
	Language    string
	Description string
	ProjectID   *string
}

func (s *SnippetService) List(ctx context.Context, userID, projectID string) ([]model.Snippet, error) {
	snippets, err := s.repo.ListSnippets(ctx, userID, strings.TrimSpace(projectID))
	if err != nil {
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

func (s *SnippetService) Get(ctx context.Context, userID, id string) (*model.Snippet, error) {
	return s.repo.GetSnippet(ctx, id, userID)
}

// Create validates and saves a new snippet. A ProjectID the caller does not
// own yields apperror.ErrNotFound.
func (s *SnippetService) Create(ctx context.Context, userID string, in SnippetInput) (*model.Snippet, error) {
	title, err := requireText("title", in.Title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	if err := maxLength("code", in.Code, MaxCodeLength); err != nil {
		return nil, err
	}
	lang, err := normalizeLanguage(in.Language)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = model.DefaultLanguage
	}
	desc := strings.TrimSpace(in.Description)
	if err := maxLength("description", desc, MaxDescriptionLength); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		UserID:      userID,
		ProjectID:   trimOptional(in.ProjectID),
		Title:       title,
		Code:        in.Code,
		Language:    lang,
		Description: desc,
	}
	if err := s.repo.CreateSnippet(ctx, snippet); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to create snippet",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("language", snippet.Language),
	)
	return snippet, nil
}

// Update applies the set fields of patch. Setting ProjectID to nil moves the
// snippet to the top level. Updating a foreign snippet is a silent no-op.
func (s *SnippetService) Update(ctx context.Context, userID, id string, patch model.SnippetPatch) error {
	if patch.Title.Set {
		title, err := requireText("title", patch.Title.Value, MaxTitleLength)
		if err != nil {
			return err
		}
		patch.Title.Value = title
	}
	if patch.Code.Set {
		if err := maxLength("code", patch.Code.Value, MaxCodeLength); err != nil {
			return err
		}
	}
	if patch.Language.Set {
		lang, err := normalizeLanguage(patch.Language.Value)
		if err != nil {
			return err
		}
		if lang == "" {
			return apperror.ValidationFailed("language", "language must not be empty")
		}
		patch.Language.Value = lang
	}
	if patch.Description.Set {
		patch.Description.Value = strings.TrimSpace(patch.Description.Value)
		if err := maxLength("description", patch.Description.Value, MaxDescriptionLength); err != nil {
			return err
		}
	}
	if patch.ProjectID.Set {
		patch.ProjectID.Value = trimOptional(patch.ProjectID.Value)
	}
	if patch.IsEmpty() {
		return nil
	}

	if err := s.repo.UpdateSnippet(ctx, id, userID, patch); err != nil {
		return fmt.Errorf("updating snippet %s: %w", id, err)
	}
	return nil
}

// Delete removes a snippet together with its notes and scoped chat history.
func (s *SnippetService) Delete(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.ValidationFailed("id", "snippet ID is required")
	}
	if err := s.repo.DeleteSnippet(ctx, id, userID); err != nil {
		s.logger.Error("failed to delete snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting snippet %s: %w", id, err)
	}

	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}

// Search finds the caller's snippets whose title, code or description
// contains query, ignoring case. % and _ in query match literally.
func (s *SnippetService) Search(ctx context.Context, userID, query, projectID string) ([]model.Snippet, error) {
	query, err := requireText("query", query, MaxTitleLength)
	if err != nil {
		return nil, err
	}

	snippets, err := s.repo.SearchSnippets(ctx, userID, query, strings.TrimSpace(projectID))
	if err != nil {
		return nil, fmt.Errorf("searching snippets: %w", err)
	}
	return snippets, nil
}

// Run executes the stored code of the caller's snippet in the sandbox.
//
// ERROR MAPPING:
//   - language without a sandbox runtime → ValidationFailed
//   - sandbox down or failing            → UpstreamServiceFailure
//   - program errors (non-zero exit)     → success, reported in the Result
func (s *SnippetService) Run(ctx context.Context, userID, id string) (*executor.Result, error) {
	snippet, err := s.repo.GetSnippet(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	res, err := s.exec.Execute(ctx, executor.Request{
		Language: snippet.Language,
		Code:     snippet.Code,
	})
	switch {
	case errors.Is(err, executor.ErrUnsupportedLanguage):
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("running %s snippets is not supported (available: %s)",
				snippet.Language, strings.Join(s.exec.Languages(), ", ")))
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("sandbox run failed",
			slog.String("snippetID", id),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("sandbox", err)
	}

	s.logger.Info("snippet run",
		slog.String("id", id),
		slog.String("language", snippet.Language),
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}
