// Package repository defines the persistence interfaces the service layer
// depends on. Services take these interfaces, not *sqlite.DB, so tests can
// inject in-memory fakes and the storage backend stays swappable.
package repository

import (
	"context"

	"github.com/sakif/scratchpad/internal/model"
)

// ListOptions carries pagination parameters for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores accounts. Password accounts are keyed by username,
// OAuth accounts additionally by their GitHub ID.
type UserRepository interface {
	// Create inserts a new user and fills in ID and timestamps.
	Create(ctx context.Context, user *model.User) error
	// GetByID returns the user with the given internal ID.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByUsername returns the user with the given username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetByGitHubID returns the user linked to the given GitHub account.
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	// UpsertGitHub inserts the user on first GitHub login, or refreshes
	// email and avatar on a repeat login. The internal ID and username of
	// an existing row never change; the passed user is updated in place to
	// the canonical stored record.
	UpsertGitHub(ctx context.Context, user *model.User) error
}

// SessionRepository stores chat sessions.
type SessionRepository interface {
	// Create inserts a new session and fills in ID and timestamps.
	Create(ctx context.Context, session *model.Session) error
	// GetByID returns the session with the given ID.
	GetByID(ctx context.Context, id string) (*model.Session, error)
	// ListByOwner returns the owner's sessions, most recently active first.
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]model.Session, error)
	// Rename sets the session title.
	Rename(ctx context.Context, id, title string) error
	// Touch bumps the session's updated_at so it sorts to the top of
	// ListByOwner. Called whenever a message lands in the session.
	Touch(ctx context.Context, id string) error
	// Delete removes the session and, via foreign key cascade, its messages.
	Delete(ctx context.Context, id string) error
}

// MessageRepository stores session transcripts. Messages are append-only;
// a transcript is never edited, only extended or dropped with its session.
type MessageRepository interface {
	// Append inserts a message at the end of its session's transcript.
	Append(ctx context.Context, message *model.Message) error
	// ListBySession returns the full transcript in insertion order.
	ListBySession(ctx context.Context, sessionID string) ([]model.Message, error)
}
