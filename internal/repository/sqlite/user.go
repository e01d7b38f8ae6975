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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, name, username, email, password_hash, provider, provider_id,
	github_token_enc, verification_code_hash, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Provider,
		&u.ProviderID,
		&u.GitHubTokenEnc,
		&u.VerificationCodeHash,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user row. The caller supplies every identity
// field (username from the handle generator, hashes from the auth
// package); Create assigns the UUID and timestamps.
//
// A duplicate username or email — including the check-then-create race
// where two requests derive the same handle concurrently — comes back
// as a Conflict error, never a silent overwrite.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Provider,
		user.ProviderID,
		user.GitHubTokenEnc,
		user.VerificationCodeHash,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %s: %w",
			user.Username, translateErr(err, "user", user.Username))
	}
	return nil
}

// GetByID retrieves a user by internal UUID.
func (db *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email.
func (db *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// Resolve finds a user by UUID, username or email. The UUID branch only
// fires for syntactically valid UUIDs so an arbitrary string can never
// accidentally match the primary key.
func (db *UserDB) Resolve(ctx context.Context, ref string) (*model.User, error) {
	idRef := ""
	if uuid.Validate(ref) == nil {
		idRef = ref
	}

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE (id = ? AND ? != '') OR username = ? OR email = ?
		 LIMIT 1`,
		idRef, idRef, ref, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", ref)
		}
		return nil, fmt.Errorf("sqlite: resolving user %q: %w", ref, err)
	}
	return u, nil
}

// List returns a page of users, optionally filtered by a
// case-insensitive username substring, newest first.
func (db *UserDB) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}
	offset := (opts.Page - 1) * opts.Limit

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE (? = '' OR username LIKE '%' || ? || '%')
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		opts.Username, opts.Username, opts.Limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Update persists every mutable column of the user row.
func (db *UserDB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ?, provider = ?,
		        provider_id = ?, github_token_enc = ?, verification_code_hash = ?,
		        is_active = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Provider,
		user.ProviderID,
		user.GitHubTokenEnc,
		user.VerificationCodeHash,
		user.IsActive,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w",
			user.ID, translateErr(err, "user", user.ID))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// UsernameExists reports whether a username is taken. Read-only probe
// used by the handle generator; see the package comment on
// internal/handle for the known race with Create.
func (db *UserDB) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking username %q: %w", username, err)
	}
	return n > 0, nil
}

// SetVerificationCode stores the pending OTP hash for a user.
func (db *UserDB) SetVerificationCode(ctx context.Context, userID, codeHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET verification_code_hash = ?, updated_at = ? WHERE id = ?`,
		codeHash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("sqlite: storing verification code for %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}

// Activate flips is_active and clears the pending OTP hash in a single
// statement. The WHERE guard on a non-empty hash makes a code
// single-use: of two racing verify calls, only one row update wins.
func (db *UserDB) Activate(ctx context.Context, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET is_active = 1, verification_code_hash = '', updated_at = ?
		 WHERE id = ? AND verification_code_hash != ''`,
		time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("sqlite: activating user %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}
