package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/model"
	"github.com/gohost/backend/internal/repository"
)

// =========================================================================
// FAKE WORKSPACE REPOSITORY
// =========================================================================

type fakeWorkspaceRepo struct {
	workspaces  map[string]*model.Workspace
	memberships map[string]*model.Membership // keyed by userID+"/"+workspaceID
}

func newFakeWorkspaceRepo() *fakeWorkspaceRepo {
	return &fakeWorkspaceRepo{
		workspaces:  make(map[string]*model.Workspace),
		memberships: make(map[string]*model.Membership),
	}
}

func memberKey(userID, workspaceID string) string {
	return userID + "/" + workspaceID
}

func (f *fakeWorkspaceRepo) Create(ctx context.Context, ws *model.Workspace, ownerID string) error {
	ws.ID = uuid.NewString()
	ws.CreatedAt = time.Now()
	ws.UpdatedAt = time.Now()
	copied := *ws
	f.workspaces[ws.ID] = &copied
	f.memberships[memberKey(ownerID, ws.ID)] = &model.Membership{
		UserID:      ownerID,
		WorkspaceID: ws.ID,
		Role:        model.RoleMaster,
	}
	return nil
}

func (f *fakeWorkspaceRepo) GetByID(ctx context.Context, id string) (*model.Workspace, error) {
	ws, ok := f.workspaces[id]
	if !ok {
		return nil, apperror.NotFound("workspace", id)
	}
	copied := *ws
	return &copied, nil
}

func (f *fakeWorkspaceRepo) GetByName(ctx context.Context, name string) (*model.Workspace, error) {
	for _, ws := range f.workspaces {
		if ws.Name == name {
			copied := *ws
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("workspace", name)
}

func (f *fakeWorkspaceRepo) ListForUser(ctx context.Context, userID string) ([]model.Workspace, error) {
	var out []model.Workspace
	for _, m := range f.memberships {
		if m.UserID == userID {
			out = append(out, *f.workspaces[m.WorkspaceID])
		}
	}
	return out, nil
}

func (f *fakeWorkspaceRepo) Update(ctx context.Context, ws *model.Workspace) error {
	if _, ok := f.workspaces[ws.ID]; !ok {
		return apperror.NotFound("workspace", ws.ID)
	}
	copied := *ws
	f.workspaces[ws.ID] = &copied
	return nil
}

func (f *fakeWorkspaceRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.workspaces[id]; !ok {
		return apperror.NotFound("workspace", id)
	}
	delete(f.workspaces, id)
	for k, m := range f.memberships {
		if m.WorkspaceID == id {
			delete(f.memberships, k)
		}
	}
	return nil
}

func (f *fakeWorkspaceRepo) Membership(ctx context.Context, userID, workspaceID string) (*model.Membership, error) {
	m, ok := f.memberships[memberKey(userID, workspaceID)]
	if !ok {
		return nil, apperror.NotFound("membership", memberKey(userID, workspaceID))
	}
	copied := *m
	return &copied, nil
}

func (f *fakeWorkspaceRepo) AddMember(ctx context.Context, m *model.Membership) error {
	key := memberKey(m.UserID, m.WorkspaceID)
	if _, ok := f.memberships[key]; ok {
		return apperror.Conflict("membership", key)
	}
	copied := *m
	f.memberships[key] = &copied
	return nil
}

func (f *fakeWorkspaceRepo) RemoveMember(ctx context.Context, userID, workspaceID string) error {
	key := memberKey(userID, workspaceID)
	if _, ok := f.memberships[key]; !ok {
		return apperror.NotFound("membership", key)
	}
	delete(f.memberships, key)
	return nil
}

var _ repository.WorkspaceRepository = (*fakeWorkspaceRepo)(nil)

// =========================================================================
// HELPERS
// =========================================================================

func newTestWorkspaceService(users *fakeUserRepo, workspaces *fakeWorkspaceRepo) *WorkspaceService {
	return NewWorkspaceService(workspaces, users, testLogger())
}

func seedUser(t *testing.T, repo *fakeUserRepo, name, email string) *model.User {
	t.Helper()
	u := &model.User{
		Name:     name,
		Username: fmt.Sprintf("u%d", repo.nextID),
		Email:    email,
		IsActive: true,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return u
}

// =========================================================================
// WORKSPACE TESTS
// =========================================================================

func TestWorkspaceCreate_OwnerBecomesMaster(t *testing.T) {
	users := newFakeUserRepo()
	wsRepo := newFakeWorkspaceRepo()
	svc := newTestWorkspaceService(users, wsRepo)
	owner := seedUser(t, users, "Owner", "owner@example.com")

	ws, err := svc.Create(context.Background(), owner.ID, "side-projects")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	m, err := wsRepo.Membership(context.Background(), owner.ID, ws.ID)
	if err != nil {
		t.Fatalf("Membership() error = %v", err)
	}
	if m.Role != model.RoleMaster {
		t.Errorf("owner role = %q, want master", m.Role)
	}
}

func TestWorkspaceCreate_SameNameSameUserIsConflict(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestWorkspaceService(users, newFakeWorkspaceRepo())
	owner := seedUser(t, users, "Owner", "owner@example.com")

	if _, err := svc.Create(context.Background(), owner.ID, "side-projects"); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	_, err := svc.Create(context.Background(), owner.ID, "side-projects")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
}

func TestWorkspaceGet_NonMemberIsForbidden(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestWorkspaceService(users, newFakeWorkspaceRepo())
	owner := seedUser(t, users, "Owner", "owner@example.com")
	outsider := seedUser(t, users, "Outsider", "out@example.com")

	ws, err := svc.Create(context.Background(), owner.ID, "private-club")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Get(context.Background(), outsider.ID, ws.ID)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Get() error = %v, want ErrForbidden", err)
	}
}

func TestWorkspaceGet_MalformedIDIsValidation(t *testing.T) {
	svc := newTestWorkspaceService(newFakeUserRepo(), newFakeWorkspaceRepo())

	_, err := svc.Get(context.Background(), "whoever", "not-a-uuid")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Get() error = %v, want ErrValidation", err)
	}
}

func TestWorkspaceRename_MemberButNotMasterIsForbidden(t *testing.T) {
	users := newFakeUserRepo()
	wsRepo := newFakeWorkspaceRepo()
	svc := newTestWorkspaceService(users, wsRepo)
	owner := seedUser(t, users, "Owner", "owner@example.com")
	member := seedUser(t, users, "Member", "member@example.com")

	ws, err := svc.Create(context.Background(), owner.ID, "team")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.AddMember(context.Background(), owner.ID, ws.ID, member.Username); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	_, err = svc.Rename(context.Background(), member.ID, ws.ID, "mine-now")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Rename() by member error = %v, want ErrForbidden", err)
	}
}

func TestWorkspaceAddRemoveMember(t *testing.T) {
	users := newFakeUserRepo()
	wsRepo := newFakeWorkspaceRepo()
	svc := newTestWorkspaceService(users, wsRepo)
	owner := seedUser(t, users, "Owner", "owner@example.com")
	member := seedUser(t, users, "Member", "member@example.com")

	ws, err := svc.Create(context.Background(), owner.ID, "team")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Invitees can be referenced by username or email.
	m, err := svc.AddMember(context.Background(), owner.ID, ws.ID, member.Email)
	if err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if m.Role != model.RoleMember {
		t.Errorf("invitee role = %q, want member", m.Role)
	}

	// Duplicate invite is a conflict.
	if _, err := svc.AddMember(context.Background(), owner.ID, ws.ID, member.Email); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate AddMember() error = %v, want ErrConflict", err)
	}

	// A member may leave on their own.
	if err := svc.RemoveMember(context.Background(), member.ID, ws.ID, member.ID); err != nil {
		t.Fatalf("RemoveMember(self) error = %v", err)
	}
	if _, err := wsRepo.Membership(context.Background(), member.ID, ws.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("membership should be gone after leaving")
	}
}

func TestWorkspaceRemoveMember_MasterCannotBeRemoved(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestWorkspaceService(users, newFakeWorkspaceRepo())
	owner := seedUser(t, users, "Owner", "owner@example.com")

	ws, err := svc.Create(context.Background(), owner.ID, "team")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err = svc.RemoveMember(context.Background(), owner.ID, ws.ID, owner.ID)
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("RemoveMember(master) error = %v, want ErrForbidden", err)
	}
}

func TestWorkspaceDelete_MasterOnly(t *testing.T) {
	users := newFakeUserRepo()
	wsRepo := newFakeWorkspaceRepo()
	svc := newTestWorkspaceService(users, wsRepo)
	owner := seedUser(t, users, "Owner", "owner@example.com")
	member := seedUser(t, users, "Member", "member@example.com")

	ws, err := svc.Create(context.Background(), owner.ID, "team")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.AddMember(context.Background(), owner.ID, ws.ID, member.Username); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	if err := svc.Delete(context.Background(), member.ID, ws.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Delete() by member error = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), owner.ID, ws.ID); err != nil {
		t.Fatalf("Delete() by master error = %v", err)
	}
	if _, err := wsRepo.GetByID(context.Background(), ws.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("workspace should be gone after delete")
	}
}
