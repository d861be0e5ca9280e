package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/scratchpad/internal/apperror"
	"github.com/sakif/scratchpad/internal/model"
	"github.com/sakif/scratchpad/internal/repository"
)

// Compile-time check that *UserDB implements repository.UserRepository.
// A nil pointer of the concrete type is assigned to the interface; if a
// method is missing the build fails here rather than at a distant call site.
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the user repository view over the shared pool.
type UserDB struct {
	db *DB
}

// nullableGitHubID maps the model's "0 means no GitHub account" convention
// to SQL NULL, which is what keeps the UNIQUE constraint on github_id from
// tripping over password-only accounts.
func nullableGitHubID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// Create inserts a new user. The ID (a 20-char sortable xid) and timestamps
// are generated here and written back through the pointer, so after Create
// the caller's struct is the canonical record.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, github_id, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		nullableGitHubID(user.GitHubID),
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetByID returns the user with the given internal ID, or
// apperror.ErrNotFound if no such row exists.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := u.getWhere(ctx, "id = ?", id)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetByUsername returns the user with the given username.
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := u.getWhere(ctx, "username = ?", username)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by username %q: %w", username, err)
	}
	return user, nil
}

// GetByGitHubID returns the user linked to the given GitHub account.
func (u *UserDB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	user, err := u.getWhere(ctx, "github_id = ?", githubID)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user", fmt.Sprintf("github:%d", githubID))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting user by github_id %d: %w", githubID, err)
	}
	return user, nil
}

// UpsertGitHub inserts the user on first GitHub login and refreshes the
// profile fields on repeat logins.
//
// The lookup key is github_id, never the username: GitHub logins can be
// renamed, but the numeric account ID is stable. An existing row keeps its
// internal ID, username, and created_at; only email, avatar, and updated_at
// move. The passed struct is rewritten in place either way, so the caller
// always ends up holding the stored record.
func (u *UserDB) UpsertGitHub(ctx context.Context, user *model.User) error {
	existing, err := u.getWhere(ctx, "github_id = ?", user.GitHubID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if err == sql.ErrNoRows {
		return u.Create(ctx, user)
	}

	// Repeat login: refresh the mutable profile fields.
	now := time.Now()
	_, err = u.db.conn.ExecContext(ctx,
		`UPDATE users SET email = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		user.Email,
		user.AvatarURL,
		now,
		existing.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", existing.ID, err)
	}

	user.ID = existing.ID
	user.Username = existing.Username
	user.PasswordHash = existing.PasswordHash
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = now

	return nil
}

// getWhere runs the single-user SELECT with the given predicate. Callers
// translate sql.ErrNoRows themselves so the not-found message can name the
// key that missed.
func (u *UserDB) getWhere(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		user     model.User
		githubID sql.NullInt64
	)

	err := u.db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, github_id, avatar_url, created_at, updated_at
		 FROM users WHERE `+where,
		arg,
	).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&githubID,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// NULL github_id scans as invalid, which leaves the zero value in place.
	user.GitHubID = githubID.Int64

	return &user, nil
}
