package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/scratchpad/internal/apperror"
	"github.com/sakif/scratchpad/internal/model"
)

// newTestUserDB returns the user repository view over a fresh in-memory DB.
func newTestUserDB(t *testing.T) (*DB, *UserDB) {
	t.Helper()
	db := newTestDB(t)
	return db, db.Users()
}

// createPasswordUser inserts a username/password account.
func createPasswordUser(t *testing.T, u *UserDB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$fakefakefakefakefakefake",
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create password user: %v", err)
	}
	return user
}

// createGitHubUser inserts an OAuth account.
func createGitHubUser(t *testing.T, u *UserDB, githubID int64, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:  username,
		GitHubID:  githubID,
		Email:     username + "@example.com",
		AvatarURL: "https://avatars.githubusercontent.com/u/123",
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create github user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	_, u := newTestUserDB(t)

	user := &model.User{
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "$2a$04$hash",
	}

	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Create writes through the pointer
	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
	if user.UpdatedAt.IsZero() {
		t.Error("Create() did not set user.UpdatedAt")
	}
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	_, u := newTestUserDB(t)

	createPasswordUser(t, u, "takenname")

	duplicate := &model.User{Username: "takenname"}
	err := u.Create(context.Background(), duplicate)
	if err == nil {
		t.Fatal("Create() should have failed on duplicate username (UNIQUE constraint)")
	}
}

func TestUserCreate_DuplicateGitHubID(t *testing.T) {
	_, u := newTestUserDB(t)

	createGitHubUser(t, u, 99999, "firstuser")

	duplicate := &model.User{Username: "seconduser", GitHubID: 99999}
	err := u.Create(context.Background(), duplicate)
	if err == nil {
		t.Fatal("Create() should have failed on duplicate github_id (UNIQUE constraint)")
	}
}

// TestUserCreate_ManyPasswordAccounts pins down the NULL mapping: password
// accounts all carry GitHubID 0, which must land as NULL in the database so
// the UNIQUE constraint on github_id doesn't treat them as duplicates.
func TestUserCreate_ManyPasswordAccounts(t *testing.T) {
	_, u := newTestUserDB(t)

	createPasswordUser(t, u, "alice")
	createPasswordUser(t, u, "bob")
	createPasswordUser(t, u, "carol")

	found, err := u.GetByUsername(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if found.GitHubID != 0 {
		t.Errorf("password account GitHubID = %d, want 0", found.GitHubID)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestUserGetByID(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createPasswordUser(t, u, "getbyid_user")

	found, err := u.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.Username != "getbyid_user" {
		t.Errorf("Username = %q, want %q", found.Username, "getbyid_user")
	}
	if found.PasswordHash != created.PasswordHash {
		t.Errorf("PasswordHash = %q, want %q", found.PasswordHash, created.PasswordHash)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	_, u := newTestUserDB(t)

	_, err := u.GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByUsername(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createPasswordUser(t, u, "lookup_me")

	found, err := u.GetByUsername(context.Background(), "lookup_me")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
}

func TestUserGetByUsername_NotFound(t *testing.T) {
	_, u := newTestUserDB(t)

	_, err := u.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByGitHubID(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createGitHubUser(t, u, 778899, "github_lookup_user")

	found, err := u.GetByGitHubID(context.Background(), 778899)
	if err != nil {
		t.Fatalf("GetByGitHubID() error = %v", err)
	}

	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.GitHubID != 778899 {
		t.Errorf("GitHubID = %d, want 778899", found.GitHubID)
	}
}

func TestUserGetByGitHubID_NotFound(t *testing.T) {
	_, u := newTestUserDB(t)

	_, err := u.GetByGitHubID(context.Background(), 999999999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByGitHubID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUserUpsertGitHub_NewUser(t *testing.T) {
	_, u := newTestUserDB(t)

	user := &model.User{
		Username:  "new_upsert_user",
		GitHubID:  55555,
		Email:     "new@example.com",
		AvatarURL: "https://example.com/new.png",
	}

	if err := u.UpsertGitHub(context.Background(), user); err != nil {
		t.Fatalf("UpsertGitHub() (new) error = %v", err)
	}

	if user.ID == "" {
		t.Error("UpsertGitHub() did not set user.ID for new user")
	}

	found, err := u.GetByGitHubID(context.Background(), 55555)
	if err != nil {
		t.Fatalf("GetByGitHubID() after upsert: %v", err)
	}
	if found.Username != "new_upsert_user" {
		t.Errorf("Username = %q, want %q", found.Username, "new_upsert_user")
	}
}

func TestUserUpsertGitHub_RepeatLoginRefreshesProfile(t *testing.T) {
	_, u := newTestUserDB(t)

	// First login inserts the row
	first := &model.User{
		Username:  "stable_name",
		GitHubID:  66666,
		Email:     "old@example.com",
		AvatarURL: "https://example.com/old.png",
	}
	if err := u.UpsertGitHub(context.Background(), first); err != nil {
		t.Fatalf("UpsertGitHub() first login: %v", err)
	}
	originalID := first.ID

	// Second login: same GitHub account, new email and avatar
	second := &model.User{
		Username:  "ignored_on_repeat",
		GitHubID:  66666,
		Email:     "new@example.com",
		AvatarURL: "https://example.com/new.png",
	}
	if err := u.UpsertGitHub(context.Background(), second); err != nil {
		t.Fatalf("UpsertGitHub() second login: %v", err)
	}

	// Same account, same internal ID
	if second.ID != originalID {
		t.Errorf("UpsertGitHub() changed user ID: got %q, want %q", second.ID, originalID)
	}

	found, err := u.GetByGitHubID(context.Background(), 66666)
	if err != nil {
		t.Fatalf("GetByGitHubID() after second upsert: %v", err)
	}
	if found.Email != "new@example.com" {
		t.Errorf("Email after upsert = %q, want %q", found.Email, "new@example.com")
	}
	if found.AvatarURL != "https://example.com/new.png" {
		t.Errorf("AvatarURL after upsert = %q, want refreshed value", found.AvatarURL)
	}
	// Username is the user's handle here, not GitHub's — a repeat login
	// must not overwrite it.
	if found.Username != "stable_name" {
		t.Errorf("Username after upsert = %q, want %q", found.Username, "stable_name")
	}
}

func TestUserUpsertGitHub_PreservesCreatedAt(t *testing.T) {
	_, u := newTestUserDB(t)

	first := &model.User{Username: "timecheck", GitHubID: 77777}
	if err := u.UpsertGitHub(context.Background(), first); err != nil {
		t.Fatalf("UpsertGitHub() first: %v", err)
	}
	originalCreatedAt := first.CreatedAt

	second := &model.User{Username: "timecheck2", GitHubID: 77777}
	if err := u.UpsertGitHub(context.Background(), second); err != nil {
		t.Fatalf("UpsertGitHub() second: %v", err)
	}

	if !second.CreatedAt.Equal(originalCreatedAt) {
		t.Errorf("UpsertGitHub() changed CreatedAt: got %v, want %v", second.CreatedAt, originalCreatedAt)
	}
}
