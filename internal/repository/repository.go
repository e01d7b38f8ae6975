// Package repository defines the store interfaces the services depend
// on. The sqlite subpackage is the production implementation; tests use
// hand-written in-memory fakes.
package repository

import (
	"context"

	"github.com/gohost/backend/internal/model"
)

// ListOptions paginates list queries. Username, when non-empty, filters
// by case-insensitive substring match.
type ListOptions struct {
	Username string
	Page     int
	Limit    int
}

// UserRepository is the store surface for canonical user records.
//
// Writes are single-row statements; the store's UNIQUE constraints on
// username and email are the final word on uniqueness, and violations
// come back as apperror.ErrConflict.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Resolve finds a user by UUID, username or email — the reference
	// shape used by login and by the /user/each endpoint.
	Resolve(ctx context.Context, ref string) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
	// Update persists every mutable column of the user row.
	Update(ctx context.Context, user *model.User) error
	// UsernameExists backs the handle generator's probe.
	UsernameExists(ctx context.Context, username string) (bool, error)
	// SetVerificationCode stores a pending OTP hash for the user.
	SetVerificationCode(ctx context.Context, userID, codeHash string) error
	// Activate flips is_active and clears the pending OTP hash in one
	// statement, keeping verify single-use under concurrent attempts.
	Activate(ctx context.Context, userID string) error
}

// WorkspaceRepository manages workspaces and membership rows.
type WorkspaceRepository interface {
	// Create inserts the workspace and a master membership for ownerID.
	Create(ctx context.Context, ws *model.Workspace, ownerID string) error
	GetByID(ctx context.Context, id string) (*model.Workspace, error)
	GetByName(ctx context.Context, name string) (*model.Workspace, error)
	ListForUser(ctx context.Context, userID string) ([]model.Workspace, error)
	Update(ctx context.Context, ws *model.Workspace) error
	// Delete removes the workspace and all of its membership rows.
	Delete(ctx context.Context, id string) error

	Membership(ctx context.Context, userID, workspaceID string) (*model.Membership, error)
	AddMember(ctx context.Context, m *model.Membership) error
	RemoveMember(ctx context.Context, userID, workspaceID string) error
}

// ProjectRepository manages deployable projects.
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	ListForUser(ctx context.Context, userID, workspaceID string) ([]model.Project, error)
	Update(ctx context.Context, p *model.Project) error
	Delete(ctx context.Context, id string) error
	// DomainExists backs the handle generator's probe for deployment
	// domains.
	DomainExists(ctx context.Context, domain string) (bool, error)
}
