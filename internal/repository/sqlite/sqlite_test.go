package sqlite

import (
	"context"
	"testing"

	"github.com/gohost/backend/internal/model"
	"github.com/gohost/backend/internal/repository"
)

func listOpts(username string, page, limit int) repository.ListOptions {
	return repository.ListOptions{Username: username, Page: page, Limit: limit}
}

// newTestDB returns a DB backed by an in-memory SQLite database.
// Each call gets a fresh, fully-migrated schema.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a minimal active user and fails the test on error.
func createTestUser(t *testing.T, u *UserDB, username, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:         "Test User",
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$04$fakefakefakefakefakefakefakefakefakefakefakefakefakef",
		Provider:     model.ProviderLocal,
		IsActive:     true,
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}
