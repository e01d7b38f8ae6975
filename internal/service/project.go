package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/handle"
	"github.com/gohost/backend/internal/model"
	"github.com/gohost/backend/internal/repository"
)

// ProjectService manages deployable projects inside a workspace. The
// deployment domain is derived from the project name with the same
// probing strategy usernames use.
type ProjectService struct {
	projects   repository.ProjectRepository
	workspaces repository.WorkspaceRepository
	domains    *handle.Generator
	logger     *slog.Logger
}

func NewProjectService(
	projects repository.ProjectRepository,
	workspaces repository.WorkspaceRepository,
	domains *handle.Generator,
	logger *slog.Logger,
) *ProjectService {
	return &ProjectService{
		projects:   projects,
		workspaces: workspaces,
		domains:    domains,
		logger:     logger,
	}
}

// Create adds a project to a workspace the caller belongs to and
// assigns it a unique deployment domain derived from its name.
func (s *ProjectService) Create(ctx context.Context, userID, workspaceID, name, description string, environments []string) (*model.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("service/project: %w", apperror.ValidationFailed("name", "project name is required"))
	}
	if uuid.Validate(workspaceID) != nil {
		return nil, fmt.Errorf("service/project: %w", apperror.ValidationFailed("workspaceId", "invalid workspace id"))
	}
	if err := s.requireMember(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	domain, err := s.domains.Generate(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("service/project: deriving domain: %w", err)
	}

	p := &model.Project{
		WorkspaceID:  workspaceID,
		UserID:       userID,
		Name:         name,
		Description:  description,
		Domain:       domain,
		Environments: environments,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("service/project: creating: %w", err)
	}

	s.logger.Info("project created",
		slog.String("projectID", p.ID),
		slog.String("workspaceID", workspaceID),
		slog.String("domain", p.Domain),
	)
	return p, nil
}

// Get returns a project visible to the caller: any member of its
// workspace can read it.
func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if uuid.Validate(projectID) != nil {
		return nil, fmt.Errorf("service/project: %w", apperror.ValidationFailed("projectId", "invalid project id"))
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("service/project: fetching %s: %w", projectID, err)
	}
	if err := s.requireMember(ctx, userID, p.WorkspaceID); err != nil {
		return nil, err
	}
	return p, nil
}

// ListMine returns the caller's projects; workspaceID, when non-empty,
// narrows the list to one workspace.
func (s *ProjectService) ListMine(ctx context.Context, userID, workspaceID string) ([]model.Project, error) {
	if workspaceID != "" && uuid.Validate(workspaceID) != nil {
		return nil, fmt.Errorf("service/project: %w", apperror.ValidationFailed("workspaceId", "invalid workspace id"))
	}
	list, err := s.projects.ListForUser(ctx, userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("service/project: listing for %s: %w", userID, err)
	}
	return list, nil
}

// ProjectUpdate carries the editable project fields. Nil pointers leave
// the current value untouched; the domain is never editable.
type ProjectUpdate struct {
	Name         *string
	Description  *string
	Environments []string
}

// Update edits a project. Only the project owner may mutate it.
func (s *ProjectService) Update(ctx context.Context, userID, projectID string, upd ProjectUpdate) (*model.Project, error) {
	p, err := s.requireOwner(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, fmt.Errorf("service/project: %w", apperror.ValidationFailed("name", "project name is required"))
		}
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Environments != nil {
		p.Environments = upd.Environments
	}

	if err := s.projects.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("service/project: updating %s: %w", projectID, err)
	}

	s.logger.Info("project updated", slog.String("projectID", projectID))
	return p, nil
}

// Delete removes a project. Owner only.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	if _, err := s.requireOwner(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("service/project: deleting %s: %w", projectID, err)
	}
	s.logger.Info("project deleted", slog.String("projectID", projectID))
	return nil
}

func (s *ProjectService) requireMember(ctx context.Context, userID, workspaceID string) error {
	_, err := s.workspaces.Membership(ctx, userID, workspaceID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("service/project: %w", apperror.Forbidden("you are not a member of this workspace"))
		}
		return fmt.Errorf("service/project: checking membership: %w", err)
	}
	return nil
}

func (s *ProjectService) requireOwner(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if uuid.Validate(projectID) != nil {
		return nil, fmt.Errorf("service/project: %w", apperror.ValidationFailed("projectId", "invalid project id"))
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("service/project: fetching %s: %w", projectID, err)
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("service/project: %w", apperror.Forbidden("only the project owner can do this"))
	}
	return p, nil
}
