package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sakif/scratchpad/internal/apperror"
	"github.com/sakif/scratchpad/internal/auth"
	"github.com/sakif/scratchpad/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory implementation of repository.UserRepository.
// Using a fake (not a mock framework) keeps tests dependency-free and easy
// to read: you can see exactly what the fake does. It mirrors the SQLite
// repository's semantics, including which fields UpsertGitHub refreshes and
// which it preserves.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	nextID int
	// set to a non-nil error to simulate a database failure
	createErr error
	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		nextID: 1,
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return fmt.Errorf("fake: username %q already exists", user.Username)
		}
	}
	user.ID = fmt.Sprintf("user-fake-%d", f.nextID)
	f.nextID++
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
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

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	for _, u := range f.users {
		if u.GitHubID != 0 && u.GitHubID == githubID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", fmt.Sprintf("github:%d", githubID))
}

func (f *fakeUserRepo) UpsertGitHub(ctx context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, existing := range f.users {
		if existing.GitHubID != 0 && existing.GitHubID == user.GitHubID {
			// UPDATE path: refresh profile fields, preserve identity fields,
			// then reflect the stored row back into the caller's struct.
			existing.Email = user.Email
			existing.AvatarURL = user.AvatarURL
			existing.UpdatedAt = time.Now().UTC()
			*user = *existing
			return nil
		}
	}
	return f.Create(ctx, user)
}

// newTestAuthService returns an AuthService wired with fake dependencies.
// The TokenService uses a short secret, suitable for tests only.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	// Cost 4 is bcrypt minimum, which makes tests fast
	ps := auth.NewPasswordServiceForTest(4)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(repo, ts, ps, logger)
}

// =========================================================================
// Register TESTS
// =========================================================================

func TestRegister_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.Register(context.Background(), "newuser", "hunter22!")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.User.ID == "" {
		t.Error("User.ID should be set after registration")
	}
	if result.User.Username != "newuser" {
		t.Errorf("User.Username = %q, want %q", result.User.Username, "newuser")
	}
	if result.Token == "" {
		t.Fatal("Register() returned empty Token")
	}
	if result.User.PasswordHash == "" {
		t.Error("User.PasswordHash should be set")
	}
	if result.User.PasswordHash == "hunter22!" {
		t.Error("User.PasswordHash must not be the plaintext password")
	}

	// The issued token must round-trip through our own validation.
	userID, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("token subject = %q, want %q", userID, result.User.ID)
	}
}

func TestRegister_TrimsUsername(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.Register(context.Background(), "  spacey  ", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if result.User.Username != "spacey" {
		t.Errorf("User.Username = %q, want %q", result.User.Username, "spacey")
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Register(context.Background(), "taken", "password123"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := svc.Register(context.Background(), "taken", "different456")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Register() error = %v, want ErrConflict", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"username too short", "ab", "password123"},
		{"username too long", strings.Repeat("a", MaxUsernameLength+1), "password123"},
		{"username only whitespace", "   ", "password123"},
		{"password too short", "validname", "short"},
		{"password too long", "validname", strings.Repeat("p", MaxPasswordLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register(%q, %q) error = %v, want ErrValidation",
					tt.username, tt.password, err)
			}
		})
	}
}

func TestRegister_RepositoryError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errors.New("database is on fire")
	svc := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), "unlucky", "password123")
	if err == nil {
		t.Fatal("Register() should propagate repository errors")
	}
	if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Register() error = %v, want a plain internal error", err)
	}
}

// =========================================================================
// Login TESTS
// =========================================================================

func TestLogin_Success(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	registered, err := svc.Register(context.Background(), "loginuser", "correct-horse")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	result, err := svc.Login(context.Background(), "loginuser", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.User.ID != registered.User.ID {
		t.Errorf("Login() user ID = %q, want %q", result.User.ID, registered.User.ID)
	}
	if result.Token == "" {
		t.Fatal("Login() returned empty Token")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Register(context.Background(), "loginuser", "correct-horse"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err := svc.Login(context.Background(), "loginuser", "wrong-horse")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.Login(context.Background(), "nobody", "password123")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
	}
}

func TestLogin_EmptyCredentials(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Login(context.Background(), "", ""); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login(\"\", \"\") error = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Login(context.Background(), "someone", ""); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login(\"someone\", \"\") error = %v, want ErrUnauthorized", err)
	}
}

// A GitHub-only account has no password hash. Logging in with a password
// must fail exactly like a wrong password, not reveal the account type.
func TestLogin_GitHubOnlyAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 42, Login: "octocat",
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err = svc.Login(context.Background(), "octocat", "any-password-at-all")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
	}
}

// =========================================================================
// LoginOrRegisterGitHub TESTS
// =========================================================================

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	ghUser := &auth.GitHubUser{
		ID:        42,
		Login:     "octocat",
		Email:     "octocat@github.com",
		AvatarURL: "https://avatars.githubusercontent.com/u/42",
	}

	result, err := svc.LoginOrRegisterGitHub(context.Background(), ghUser)
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	if result.User == nil {
		t.Fatal("LoginOrRegisterGitHub() returned nil User")
	}
	if result.Token == "" {
		t.Fatal("LoginOrRegisterGitHub() returned empty Token")
	}
	if result.User.Username != "octocat" {
		t.Errorf("User.Username = %q, want %q", result.User.Username, "octocat")
	}
	if result.User.ID == "" {
		t.Error("User.ID should be set after upsert")
	}
}

func TestLoginOrRegisterGitHub_RepeatLoginSameAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	first, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 99, Login: "regular", Email: "old@email.com",
	})
	if err != nil {
		t.Fatalf("first login error: %v", err)
	}

	second, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 99, Login: "regular", Email: "new@email.com",
	})
	if err != nil {
		t.Fatalf("second login error: %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("repeat login user ID = %q, want %q", second.User.ID, first.User.ID)
	}
	if second.User.Email != "new@email.com" {
		t.Errorf("User.Email = %q, want refreshed %q", second.User.Email, "new@email.com")
	}
}

// A password account already holds the GitHub login name: the OAuth account
// gets a suffixed username instead, and keeps it on repeat logins.
func TestLoginOrRegisterGitHub_UsernameCollision(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Register(context.Background(), "octocat", "password123"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 42, Login: "octocat",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if result.User.Username != "octocat-42" {
		t.Errorf("User.Username = %q, want %q", result.User.Username, "octocat-42")
	}

	// Repeat login keeps the suffixed name.
	repeat, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 42, Login: "octocat",
	})
	if err != nil {
		t.Fatalf("repeat login error: %v", err)
	}
	if repeat.User.Username != "octocat-42" {
		t.Errorf("repeat User.Username = %q, want %q", repeat.User.Username, "octocat-42")
	}

	// The password account is untouched.
	local, err := svc.Login(context.Background(), "octocat", "password123")
	if err != nil {
		t.Fatalf("password login after collision: %v", err)
	}
	if local.User.ID == result.User.ID {
		t.Error("password account and GitHub account should be distinct users")
	}
}

func TestLoginOrRegisterGitHub_TokenIsValidJWT(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: 1, Login: "testuser",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	userID, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("token subject = %q, want %q", userID, result.User.ID)
	}
}

func TestLoginOrRegisterGitHub_NilGitHubUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.LoginOrRegisterGitHub(context.Background(), nil)
	if err == nil {
		t.Fatal("LoginOrRegisterGitHub() should return error for nil GitHubUser")
	}
}

func TestLoginOrRegisterGitHub_RepositoryError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.upsertErr = errors.New("database is on fire")
	svc := newTestAuthService(t, repo)

	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "user"})
	if err == nil {
		t.Fatal("LoginOrRegisterGitHub() should propagate repository errors")
	}
}

// =========================================================================
// GetUserByID TESTS
// =========================================================================

func TestGetUserByID_Found(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.Register(context.Background(), "findme", "password123")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	user, err := svc.GetUserByID(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.Username != "findme" {
		t.Errorf("user.Username = %q, want %q", user.Username, "findme")
	}
}

func TestGetUserByID_EmptyID(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.GetUserByID(context.Background(), "")
	if err == nil {
		t.Fatal("GetUserByID() should return error for empty ID")
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.GetUserByID(context.Background(), "non-existent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// ValidateToken TESTS
// =========================================================================

func TestValidateToken_ValidToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.Register(context.Background(), "tokuser", "password123")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	userID, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("userID = %q, want %q", userID, result.User.ID)
	}
}

func TestValidateToken_InvalidToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	_, err := svc.ValidateToken("this.is.garbage")
	if err == nil {
		t.Fatal("ValidateToken() should return error for garbage token")
	}
}
