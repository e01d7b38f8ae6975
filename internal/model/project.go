package model

import "time"

// Project is a deployable unit inside a workspace.
//
// Domain is the deployment subdomain derived from the project name by
// internal/handle — unique store-wide, same derivation rules as
// usernames. Environments is a free-form list of environment names
// persisted as a JSON array.
type Project struct {
	ID           string    `json:"id"           db:"id"` // UUID
	WorkspaceID  string    `json:"workspaceId"  db:"workspace_id"`
	UserID       string    `json:"userId"       db:"user_id"` // owner
	Name         string    `json:"name"         db:"name"`
	Description  string    `json:"description"  db:"description"`
	Domain       string    `json:"domain"       db:"domain"`
	Environments []string  `json:"environments" db:"environments"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"    db:"updated_at"`
}
