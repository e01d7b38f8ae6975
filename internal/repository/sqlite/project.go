package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/model"
	"github.com/gohost/backend/internal/repository"
)

var _ repository.ProjectRepository = (*ProjectDB)(nil)

const projectColumns = `id, workspace_id, user_id, name, description, domain,
	environments, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	var p model.Project
	var envs string
	err := row.Scan(
		&p.ID,
		&p.WorkspaceID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.Domain,
		&envs,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// environments is stored as a JSON array in a TEXT column.
	if err := json.Unmarshal([]byte(envs), &p.Environments); err != nil {
		return nil, fmt.Errorf("decoding environments for project %s: %w", p.ID, err)
	}
	return &p, nil
}

func encodeEnvironments(envs []string) (string, error) {
	if envs == nil {
		envs = []string{}
	}
	b, err := json.Marshal(envs)
	if err != nil {
		return "", fmt.Errorf("encoding environments: %w", err)
	}
	return string(b), nil
}

// Create inserts a project. The domain comes from the handle generator;
// its UNIQUE constraint surfaces derivation races as Conflict.
func (db *ProjectDB) Create(ctx context.Context, p *model.Project) error {
	envs, err := encodeEnvironments(p.Environments)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.WorkspaceID, p.UserID, p.Name, p.Description, p.Domain,
		envs, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: inserting project %s: %w",
			p.Name, translateErr(err, "project", p.Domain))
	}
	return nil
}

func (db *ProjectDB) GetByID(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(db.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	return p, nil
}

// ListForUser returns the user's projects inside one workspace, newest
// first.
func (db *ProjectDB) ListForUser(ctx context.Context, userID, workspaceID string) ([]model.Project, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE user_id = ? AND workspace_id = ?
		 ORDER BY created_at DESC`,
		userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning project row: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (db *ProjectDB) Update(ctx context.Context, p *model.Project) error {
	envs, err := encodeEnvironments(p.Environments)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, environments = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Description, envs, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("project", p.ID)
	}
	return nil
}

func (db *ProjectDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("project", id)
	}
	return nil
}

// DomainExists reports whether a deployment domain is taken. Same
// read-only probe contract as UserDB.UsernameExists.
func (db *ProjectDB) DomainExists(ctx context.Context, domain string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE domain = ?`, domain).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking domain %q: %w", domain, err)
	}
	return n > 0, nil
}
