package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/model"
	"github.com/gohost/backend/internal/repository"
)

var _ repository.WorkspaceRepository = (*WorkspaceDB)(nil)

// Create inserts the workspace and the creator's master membership.
func (db *WorkspaceDB) Create(ctx context.Context, ws *model.Workspace, ownerID string) error {
	now := time.Now().UTC()
	ws.ID = uuid.NewString()
	ws.CreatedAt = now
	ws.UpdatedAt = now

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning workspace create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: inserting workspace %s: %w", ws.Name, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_workspaces (user_id, workspace_id, role, created_at)
		 VALUES (?, ?, ?, ?)`,
		ownerID, ws.ID, model.RoleMaster, now)
	if err != nil {
		return fmt.Errorf("sqlite: inserting workspace membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing workspace create: %w", err)
	}
	return nil
}

func (db *WorkspaceDB) GetByID(ctx context.Context, id string) (*model.Workspace, error) {
	var ws model.Workspace
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM workspaces WHERE id = ?`, id,
	).Scan(&ws.ID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("workspace", id)
		}
		return nil, fmt.Errorf("sqlite: getting workspace %s: %w", id, err)
	}
	return &ws, nil
}

func (db *WorkspaceDB) GetByName(ctx context.Context, name string) (*model.Workspace, error) {
	var ws model.Workspace
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM workspaces WHERE name = ? LIMIT 1`, name,
	).Scan(&ws.ID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("workspace", name)
		}
		return nil, fmt.Errorf("sqlite: getting workspace by name: %w", err)
	}
	return &ws, nil
}

// ListForUser returns every workspace the user is a member of.
func (db *WorkspaceDB) ListForUser(ctx context.Context, userID string) ([]model.Workspace, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT w.id, w.name, w.created_at, w.updated_at
		 FROM workspaces w
		 JOIN user_workspaces uw ON uw.workspace_id = w.id
		 WHERE uw.user_id = ?
		 ORDER BY w.created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing workspaces for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		var ws model.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning workspace row: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

func (db *WorkspaceDB) Update(ctx context.Context, ws *model.Workspace) error {
	ws.UpdatedAt = time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE workspaces SET name = ?, updated_at = ? WHERE id = ?`,
		ws.Name, ws.UpdatedAt, ws.ID)
	if err != nil {
		return fmt.Errorf("sqlite: updating workspace %s: %w", ws.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("workspace", ws.ID)
	}
	return nil
}

// Delete removes the workspace and its membership rows.
func (db *WorkspaceDB) Delete(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning workspace delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_workspaces WHERE workspace_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting workspace memberships: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting workspace %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("workspace", id)
	}
	return tx.Commit()
}

// Membership returns the membership row linking a user to a workspace,
// or NotFound — this is the access check every workspace and project
// operation goes through.
func (db *WorkspaceDB) Membership(ctx context.Context, userID, workspaceID string) (*model.Membership, error) {
	var m model.Membership
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, workspace_id, role, created_at
		 FROM user_workspaces WHERE user_id = ? AND workspace_id = ?`,
		userID, workspaceID,
	).Scan(&m.UserID, &m.WorkspaceID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("membership", userID)
		}
		return nil, fmt.Errorf("sqlite: getting membership: %w", err)
	}
	return &m, nil
}

func (db *WorkspaceDB) AddMember(ctx context.Context, m *model.Membership) error {
	m.CreatedAt = time.Now().UTC()
	if m.Role == "" {
		m.Role = model.RoleMember
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_workspaces (user_id, workspace_id, role, created_at)
		 VALUES (?, ?, ?, ?)`,
		m.UserID, m.WorkspaceID, m.Role, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: adding member: %w",
			translateErr(err, "membership", m.UserID))
	}
	return nil
}

func (db *WorkspaceDB) RemoveMember(ctx context.Context, userID, workspaceID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_workspaces WHERE user_id = ? AND workspace_id = ?`,
		userID, workspaceID)
	if err != nil {
		return fmt.Errorf("sqlite: removing member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("membership", userID)
	}
	return nil
}
