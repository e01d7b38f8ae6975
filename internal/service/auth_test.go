package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gohost/backend/internal/apperror"
	"github.com/gohost/backend/internal/auth"
	"github.com/gohost/backend/internal/handle"
	"github.com/gohost/backend/internal/mail"
	"github.com/gohost/backend/internal/model"
	"github.com/gohost/backend/internal/repository"
	"github.com/gohost/backend/internal/vault"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. A hand-written
// fake (not a mock framework) keeps the test path visible end to end.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	nextID int
	// set to force the next Create to fail regardless of uniqueness
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return err
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Username, user.Username) || u.Email == user.Email {
			return apperror.Conflict("user", user.Username)
		}
	}
	user.ID = fmt.Sprintf("user-fake-id-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) Resolve(ctx context.Context, ref string) (*model.User, error) {
	if u, ok := f.users[ref]; ok {
		copied := *u
		return &copied, nil
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Username, ref) || u.Email == ref {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", ref)
}

func (f *fakeUserRepo) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if opts.Username != "" && !strings.Contains(strings.ToLower(u.Username), strings.ToLower(opts.Username)) {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) SetVerificationCode(ctx context.Context, userID, codeHash string) error {
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.VerificationCodeHash = codeHash
	return nil
}

func (f *fakeUserRepo) Activate(ctx context.Context, userID string) error {
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	if u.VerificationCodeHash == "" {
		return apperror.NotFound("verification code", userID)
	}
	u.IsActive = true
	u.VerificationCodeHash = ""
	return nil
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

// fakeMailer records outgoing messages instead of speaking SMTP.
type fakeMailer struct {
	sent    []mail.Message
	sendErr error
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

const testVaultSecret = "0123456789abcdef0123456789abcdef"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestAuthService wires an AuthService over fakes. bcrypt cost 4 is
// the minimum — keeps the hash calls fast.
func newTestAuthService(t *testing.T, repo *fakeUserRepo, mailer *fakeMailer) *AuthService {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	v, err := vault.New(testVaultSecret)
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	usernames := handle.New(repo.UsernameExists)
	passwords := auth.NewPasswordServiceForTest(4)
	otp := auth.NewOTPService()

	return NewAuthService(repo, usernames, tokens, passwords, otp, v, mailer, testLogger())
}

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(testVaultSecret)
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	return v
}

// =========================================================================
// SIGNUP TESTS
// =========================================================================

func TestSignup_CreatesInactiveUserWithDerivedUsername(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeMailer{})

	user, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "hunter2boogaloo")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if user.Username != "alovelace" {
		t.Errorf("Username = %q, want %q", user.Username, "alovelace")
	}
	if user.IsActive {
		t.Error("new local accounts must start inactive")
	}
	if user.Provider != model.ProviderLocal {
		t.Errorf("Provider = %q, want %q", user.Provider, model.ProviderLocal)
	}
	if user.PasswordHash == "" || user.PasswordHash == "hunter2boogaloo" {
		t.Error("password must be stored hashed")
	}
}

func TestSignup_DuplicateEmailIsConflict(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeMailer{})

	if _, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "pw-one-long-enough"); err != nil {
		t.Fatalf("first Signup() error = %v", err)
	}
	_, err := svc.Signup(context.Background(), "Ada Byron", "ada@example.com", "pw-two-long-enough")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Signup() error = %v, want ErrConflict", err)
	}
}

func TestSignup_EmptyPasswordIsValidation(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), &fakeMailer{})

	_, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Signup() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin_ByUsernameAndByEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeMailer{})

	if _, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	for _, ref := range []string{"alovelace", "ada@example.com"} {
		result, err := svc.Login(context.Background(), ref, "correct-horse-battery")
		if err != nil {
			t.Fatalf("Login(%q) error = %v", ref, err)
		}
		if result.Token == "" {
			t.Errorf("Login(%q) returned empty token", ref)
		}
	}
}

func TestLogin_WrongPasswordAndUnknownUserLookTheSame(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeMailer{})

	if _, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	_, wrongPw := svc.Login(context.Background(), "alovelace", "wrong-password-here")
	_, unknown := svc.Login(context.Background(), "nobody", "whatever-password")

	if !errors.Is(wrongPw, apperror.ErrUnauthenticated) {
		t.Errorf("wrong password error = %v, want ErrUnauthenticated", wrongPw)
	}
	if !errors.Is(unknown, apperror.ErrUnauthenticated) {
		t.Errorf("unknown user error = %v, want ErrUnauthenticated", unknown)
	}
	var a, b *apperror.AppError
	if errors.As(wrongPw, &a) && errors.As(unknown, &b) && a.Message != b.Message {
		t.Errorf("messages differ: %q vs %q — they must not leak which part failed", a.Message, b.Message)
	}
}

// =========================================================================
// OAUTH LOGIN TESTS
// =========================================================================

func TestLoginOAuth_CreateFalse_UnknownEmailIsNotFound(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), &fakeMailer{})

	profile := &auth.Profile{Provider: model.ProviderGoogle, ID: "g-1", Email: "new@example.com", Name: "New Person"}
	_, err := svc.LoginOAuth(context.Background(), profile, false)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("LoginOAuth(create=false) error = %v, want ErrNotFound", err)
	}
}

func TestLoginOAuth_CreateTrue_ProvisionsActiveAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeMailer{})

	profile := &auth.Profile{
		Provider:    model.ProviderGitHub,
		ID:          "gh-42",
		Email:       "octo@example.com",
		Name:        "Octo Cat",
		AccessToken: "gho_secret_token",
	}
	result, err := svc.LoginOAuth(context.Background(), profile, true)
	if err != nil {
		t.Fatalf("LoginOAuth() error = %v", err)
	}

	u := result.User
	if !u.IsActive {
		t.Error("oauth-created accounts must be active immediately")
	}
	if u.Username != "ocat" {
		t.Errorf("Username = %q, want %q", u.Username, "ocat")
	}
	if u.GitHubTokenEnc == "" || u.GitHubTokenEnc == "gho_secret_token" {
		t.Fatal("github token must be stored encrypted")
	}
	plain, err := testVault(t).Decrypt(u.GitHubTokenEnc)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plain != "gho_secret_token" {
		t.Errorf("decrypted token = %q, want original", plain)
	}
	if result.Token == "" {
		t.Error("expected a session token")
	}
}

func TestLoginOAuth_ExistingEmailLinksProvider(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeMailer{})

	if _, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	profile := &auth.Profile{Provider: model.ProviderGoogle, ID: "g-77", Email: "ada@example.com", Name: "Ada"}
	result, err := svc.LoginOAuth(context.Background(), profile, false)
	if err != nil {
		t.Fatalf("LoginOAuth() error = %v", err)
	}
	if result.User.Provider != model.ProviderGoogle || result.User.ProviderID != "g-77" {
		t.Errorf("provider link = (%q, %q), want (google, g-77)", result.User.Provider, result.User.ProviderID)
	}
	if result.User.Username != "alovelace" {
		t.Errorf("linking must not change the username, got %q", result.User.Username)
	}
}

func TestLoginOAuth_UsernameRaceRetriesOnce(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeMailer{})

	// First Create loses a simulated race on the derived username; the
	// retry must still land.
	repo.createErr = apperror.Conflict("user", "ocat")

	profile := &auth.Profile{Provider: model.ProviderGoogle, ID: "g-9", Email: "octo@example.com", Name: "Octo Cat"}
	result, err := svc.LoginOAuth(context.Background(), profile, true)
	if err != nil {
		t.Fatalf("LoginOAuth() error = %v", err)
	}
	if result.User.ID == "" {
		t.Error("expected the retry to create the user")
	}
}

// =========================================================================
// GITHUB LINKING TESTS
// =========================================================================

func TestLinkGitHub_StoresEncryptedToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeMailer{})

	user, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	profile := &auth.Profile{Provider: model.ProviderGitHub, ID: "gh-1", Email: "ada@example.com", AccessToken: "gho_linked"}
	result, err := svc.LinkGitHub(context.Background(), user.ID, profile)
	if err != nil {
		t.Fatalf("LinkGitHub() error = %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), user.ID)
	if stored.Provider != model.ProviderGitHub {
		t.Errorf("Provider = %q, want github", stored.Provider)
	}
	plain, err := testVault(t).Decrypt(stored.GitHubTokenEnc)
	if err != nil || plain != "gho_linked" {
		t.Errorf("stored token decrypts to (%q, %v), want gho_linked", plain, err)
	}
	if result.Token == "" {
		t.Error("expected a fresh session token after linking")
	}
}

func TestLinkGitHub_UnknownUserIsNotFound(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), &fakeMailer{})

	profile := &auth.Profile{Provider: model.ProviderGitHub, ID: "gh-1", AccessToken: "gho"}
	_, err := svc.LinkGitHub(context.Background(), "no-such-user", profile)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("LinkGitHub() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// VERIFICATION FLOW TESTS
// =========================================================================

func TestVerificationFlow_EndToEnd(t *testing.T) {
	repo := newFakeUserRepo()
	mailer := &fakeMailer{}
	svc := newTestAuthService(t, repo, mailer)

	user, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if err := svc.SendVerificationCode(context.Background(), "ada@example.com"); err != nil {
		t.Fatalf("SendVerificationCode() error = %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mailer.sent))
	}

	// The raw code travels only through the mail body; pull it back out.
	body := mailer.sent[0].Text
	code := body[strings.LastIndex(body, " ")+1:]
	if len(code) != 6 {
		t.Fatalf("extracted code %q, want 6 digits", code)
	}

	stored, _ := repo.GetByID(context.Background(), user.ID)
	if stored.VerificationCodeHash == "" || strings.Contains(stored.VerificationCodeHash, code) {
		t.Error("store must hold a hash of the code, never the code itself")
	}

	if err := svc.VerifyCode(context.Background(), "ada@example.com", code); err != nil {
		t.Fatalf("VerifyCode() error = %v", err)
	}
	stored, _ = repo.GetByID(context.Background(), user.ID)
	if !stored.IsActive {
		t.Error("user must be active after verification")
	}
	if stored.VerificationCodeHash != "" {
		t.Error("code hash must be cleared after use")
	}

	// Replaying the same code must fail — single use.
	if err := svc.VerifyCode(context.Background(), "ada@example.com", code); err == nil {
		t.Error("replayed code must be rejected")
	}
}

func TestVerifyCode_WrongCodeIsValidation(t *testing.T) {
	repo := newFakeUserRepo()
	mailer := &fakeMailer{}
	svc := newTestAuthService(t, repo, mailer)

	if _, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if err := svc.SendVerificationCode(context.Background(), "ada@example.com"); err != nil {
		t.Fatalf("SendVerificationCode() error = %v", err)
	}

	err := svc.VerifyCode(context.Background(), "ada@example.com", "000000")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("VerifyCode() error = %v, want ErrValidation", err)
	}
}

func TestSendVerificationCode_UnknownEmailIsNotFound(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), &fakeMailer{})

	err := svc.SendVerificationCode(context.Background(), "ghost@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SendVerificationCode() error = %v, want ErrNotFound", err)
	}
}

func TestSendVerificationCode_MailFailureSurfaces(t *testing.T) {
	repo := newFakeUserRepo()
	mailer := &fakeMailer{sendErr: errors.New("smtp: connection refused")}
	svc := newTestAuthService(t, repo, mailer)

	if _, err := svc.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if err := svc.SendVerificationCode(context.Background(), "ada@example.com"); err == nil {
		t.Error("mailer failure must propagate")
	}
}
