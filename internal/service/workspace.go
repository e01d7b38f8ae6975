package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/model"
	"github.com/gohost/backend/internal/repository"
)

// WorkspaceService enforces membership on every workspace operation:
// reads require any membership, mutations require the master role.
type WorkspaceService struct {
	workspaces repository.WorkspaceRepository
	users      repository.UserRepository
	logger     *slog.Logger
}

func NewWorkspaceService(
	workspaces repository.WorkspaceRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *WorkspaceService {
	return &WorkspaceService{workspaces: workspaces, users: users, logger: logger}
}

// Create makes a new workspace with ownerID as its master. Reusing a
// name the owner already belongs to is rejected; the same name across
// unrelated users is fine.
func (s *WorkspaceService) Create(ctx context.Context, ownerID, name string) (*model.Workspace, error) {
	if name == "" {
		return nil, fmt.Errorf("service/workspace: %w", apperror.ValidationFailed("name", "workspace name is required"))
	}

	existing, err := s.workspaces.GetByName(ctx, name)
	switch {
	case err == nil:
		if _, merr := s.workspaces.Membership(ctx, ownerID, existing.ID); merr == nil {
			return nil, fmt.Errorf("service/workspace: %w", apperror.Conflict("workspace", name))
		} else if !errors.Is(merr, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/workspace: checking membership: %w", merr)
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/workspace: checking name: %w", err)
	}

	ws := &model.Workspace{Name: name}
	if err := s.workspaces.Create(ctx, ws, ownerID); err != nil {
		return nil, fmt.Errorf("service/workspace: creating: %w", err)
	}

	s.logger.Info("workspace created",
		slog.String("workspaceID", ws.ID),
		slog.String("ownerID", ownerID),
	)
	return ws, nil
}

// Get returns a workspace the caller is a member of.
func (s *WorkspaceService) Get(ctx context.Context, userID, workspaceID string) (*model.Workspace, error) {
	if uuid.Validate(workspaceID) != nil {
		return nil, fmt.Errorf("service/workspace: %w", apperror.ValidationFailed("workspaceId", "invalid workspace id"))
	}
	ws, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("service/workspace: fetching %s: %w", workspaceID, err)
	}
	if _, err := s.requireMember(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return ws, nil
}

// ListMine returns every workspace the caller belongs to.
func (s *WorkspaceService) ListMine(ctx context.Context, userID string) ([]model.Workspace, error) {
	list, err := s.workspaces.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/workspace: listing for %s: %w", userID, err)
	}
	return list, nil
}

// Rename changes the workspace name. Master only.
func (s *WorkspaceService) Rename(ctx context.Context, userID, workspaceID, name string) (*model.Workspace, error) {
	if name == "" {
		return nil, fmt.Errorf("service/workspace: %w", apperror.ValidationFailed("name", "workspace name is required"))
	}

	ws, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("service/workspace: fetching %s: %w", workspaceID, err)
	}
	if _, err := s.requireMaster(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	if other, err := s.workspaces.GetByName(ctx, name); err == nil && other.ID != workspaceID {
		if _, merr := s.workspaces.Membership(ctx, userID, other.ID); merr == nil {
			return nil, fmt.Errorf("service/workspace: %w", apperror.Conflict("workspace", name))
		} else if !errors.Is(merr, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/workspace: checking membership: %w", merr)
		}
	} else if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/workspace: checking name: %w", err)
	}

	ws.Name = name
	if err := s.workspaces.Update(ctx, ws); err != nil {
		return nil, fmt.Errorf("service/workspace: updating %s: %w", workspaceID, err)
	}

	s.logger.Info("workspace renamed", slog.String("workspaceID", workspaceID))
	return ws, nil
}

// Delete removes the workspace and its memberships. Master only.
func (s *WorkspaceService) Delete(ctx context.Context, userID, workspaceID string) error {
	if _, err := s.workspaces.GetByID(ctx, workspaceID); err != nil {
		return fmt.Errorf("service/workspace: fetching %s: %w", workspaceID, err)
	}
	if _, err := s.requireMaster(ctx, userID, workspaceID); err != nil {
		return err
	}
	if err := s.workspaces.Delete(ctx, workspaceID); err != nil {
		return fmt.Errorf("service/workspace: deleting %s: %w", workspaceID, err)
	}
	s.logger.Info("workspace deleted", slog.String("workspaceID", workspaceID))
	return nil
}

// AddMember invites another user into the workspace. Master only; the
// invitee is resolved by ID, username or email and joins as a plain
// member. Adding someone twice is a Conflict.
func (s *WorkspaceService) AddMember(ctx context.Context, actorID, workspaceID, userRef string) (*model.Membership, error) {
	if _, err := s.requireMaster(ctx, actorID, workspaceID); err != nil {
		return nil, err
	}

	invitee, err := s.users.Resolve(ctx, userRef)
	if err != nil {
		return nil, fmt.Errorf("service/workspace: resolving invitee %q: %w", userRef, err)
	}

	m := &model.Membership{
		UserID:      invitee.ID,
		WorkspaceID: workspaceID,
		Role:        model.RoleMember,
	}
	if err := s.workspaces.AddMember(ctx, m); err != nil {
		return nil, fmt.Errorf("service/workspace: adding member: %w", err)
	}

	s.logger.Info("member added",
		slog.String("workspaceID", workspaceID),
		slog.String("userID", invitee.ID),
	)
	return m, nil
}

// RemoveMember kicks a member out, or lets a member leave on their own.
// Removing anyone else requires the master role; the master cannot
// leave their own workspace.
func (s *WorkspaceService) RemoveMember(ctx context.Context, actorID, workspaceID, userID string) error {
	target, err := s.workspaces.Membership(ctx, userID, workspaceID)
	if err != nil {
		return fmt.Errorf("service/workspace: fetching membership: %w", err)
	}

	if actorID != userID {
		if _, err := s.requireMaster(ctx, actorID, workspaceID); err != nil {
			return err
		}
	}
	if target.Role == model.RoleMaster {
		return fmt.Errorf("service/workspace: %w", apperror.Forbidden("the workspace master cannot be removed"))
	}

	if err := s.workspaces.RemoveMember(ctx, userID, workspaceID); err != nil {
		return fmt.Errorf("service/workspace: removing member: %w", err)
	}

	s.logger.Info("member removed",
		slog.String("workspaceID", workspaceID),
		slog.String("userID", userID),
	)
	return nil
}

func (s *WorkspaceService) requireMember(ctx context.Context, userID, workspaceID string) (*model.Membership, error) {
	m, err := s.workspaces.Membership(ctx, userID, workspaceID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/workspace: %w", apperror.Forbidden("you are not a member of this workspace"))
		}
		return nil, fmt.Errorf("service/workspace: checking membership: %w", err)
	}
	return m, nil
}

func (s *WorkspaceService) requireMaster(ctx context.Context, userID, workspaceID string) (*model.Membership, error) {
	m, err := s.requireMember(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if m.Role != model.RoleMaster {
		return nil, fmt.Errorf("service/workspace: %w", apperror.Forbidden("only the workspace master can do this"))
	}
	return m, nil
}
