package model

import "time"

// Workspace groups projects and members. Access control is entirely
// membership-based: a user can read or mutate a workspace only if a
// Membership row links them to it.
type Workspace struct {
	ID        string    `json:"id"        db:"id"` // UUID
	Name      string    `json:"name"      db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Membership roles. The workspace creator gets RoleMaster.
const (
	RoleMaster = "master"
	RoleMember = "member"
)

// Membership links a user to a workspace with a role.
type Membership struct {
	UserID      string    `json:"userId"      db:"user_id"`
	WorkspaceID string    `json:"workspaceId" db:"workspace_id"`
	Role        string    `json:"role"        db:"role"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}
