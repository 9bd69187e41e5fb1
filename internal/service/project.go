package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codevault/codevault/internal/apperror"
	"github.com/codevault/codevault/internal/model"
	"github.com/codevault/codevault/internal/repository"
)

// ProjectService groups snippets and files into named, coloured projects.
type ProjectService struct {
	repo   repository.ProjectRepository
	logger *slog.Logger
}

func NewProjectService(repo repository.ProjectRepository, logger *slog.Logger) *ProjectService {
	return &ProjectService{repo: repo, logger: logger}
}

// ProjectInput is the data needed to create a project. Color may be empty.
type ProjectInput struct {
	Name        string
	Description string
	Color       string
}

func (s *ProjectService) List(ctx context.Context, userID string) ([]model.Project, error) {
	projects, err := s.repo.ListProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, userID, id string) (*model.Project, error) {
	return s.repo.GetProject(ctx, id, userID)
}

func (s *ProjectService) Create(ctx context.Context, userID string, in ProjectInput) (*model.Project, error) {
	name, err := requireText("name", in.Name, MaxNameLength)
	if err != nil {
		return nil, err
	}
	desc := strings.TrimSpace(in.Description)
	if err := maxLength("description", desc, MaxDescriptionLength); err != nil {
		return nil, err
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = model.DefaultProjectColor
	} else if err := validColor(color); err != nil {
		return nil, err
	}

	project := &model.Project{
		UserID:      userID,
		Name:        name,
		Description: desc,
		Color:       color,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		s.logger.Error("failed to create project",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created",
		slog.String("id", project.ID),
		slog.String("userID", userID),
	)
	return project, nil
}

// Update applies the set fields of patch. Updating a project the caller does
// not own succeeds and changes nothing.
func (s *ProjectService) Update(ctx context.Context, userID, id string, patch model.ProjectPatch) error {
	if patch.Name.Set {
		name, err := requireText("name", patch.Name.Value, MaxNameLength)
		if err != nil {
			return err
		}
		patch.Name.Value = name
	}
	if patch.Description.Set {
		patch.Description.Value = strings.TrimSpace(patch.Description.Value)
		if err := maxLength("description", patch.Description.Value, MaxDescriptionLength); err != nil {
			return err
		}
	}
	if patch.Color.Set {
		patch.Color.Value = strings.TrimSpace(patch.Color.Value)
		if err := validColor(patch.Color.Value); err != nil {
			return err
		}
	}
	if patch.IsEmpty() {
		return nil
	}

	if err := s.repo.UpdateProject(ctx, id, userID, patch); err != nil {
		return fmt.Errorf("updating project %s: %w", id, err)
	}
	return nil
}

// Delete removes the project together with its snippets, their notes and the
// project's file records.
func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.ValidationFailed("id", "project ID is required")
	}
	if err := s.repo.DeleteProject(ctx, id, userID); err != nil {
		s.logger.Error("failed to delete project",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting project %s: %w", id, err)
	}

	s.logger.Info("project deleted", slog.String("id", id), slog.String("userID", userID))
	return nil
}
