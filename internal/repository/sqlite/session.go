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

var _ repository.SessionRepository = (*SessionDB)(nil)

// SessionDB is the session repository view over the shared pool.
type SessionDB struct {
	db *DB
}

// Create inserts a new session and fills in its ID and timestamps.
func (s *SessionDB) Create(ctx context.Context, session *model.Session) error {
	now := time.Now()
	session.ID = xid.New().String()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, owner_id, title, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.OwnerID,
		session.Title,
		session.Model,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session: %w", err)
	}

	return nil
}

// GetByID returns the session with the given ID, or apperror.ErrNotFound.
func (s *SessionDB) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, owner_id, title, model, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(
		&session.ID,
		&session.OwnerID,
		&session.Title,
		&session.Model,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session %s: %w", id, err)
	}

	return &session, nil
}

// ListByOwner returns the owner's sessions ordered by recent activity, so a
// sidebar render is one query with the current conversation on top.
func (s *SessionDB) ListByOwner(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, owner_id, title, model, created_at, updated_at
		 FROM sessions
		 WHERE owner_id = ?
		 ORDER BY updated_at DESC
		 LIMIT ? OFFSET ?`,
		ownerID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing sessions: %w", err)
	}
	// Rows hold a pool connection until closed. Leaking them exhausts the
	// pool and the server hangs on the next query, so close unconditionally.
	defer rows.Close()

	sessions := make([]model.Session, 0, limit)

	for rows.Next() {
		var sess model.Session
		if err := rows.Scan(
			&sess.ID, &sess.OwnerID, &sess.Title, &sess.Model,
			&sess.CreatedAt, &sess.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning session row: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating sessions: %w", err)
	}

	return sessions, nil
}

// Rename sets the session title. Returns apperror.ErrNotFound if the
// session doesn't exist, detected through RowsAffected rather than a
// separate existence query.
func (s *SessionDB) Rename(ctx context.Context, id, title string) error {
	result, err := s.db.conn.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title,
		time.Now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: renaming session %s: %w", id, err)
	}

	return s.requireRowAffected(result, id)
}

// Touch bumps updated_at so the session sorts first in ListByOwner.
func (s *SessionDB) Touch(ctx context.Context, id string) error {
	result, err := s.db.conn.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching session %s: %w", id, err)
	}

	return s.requireRowAffected(result, id)
}

// Delete removes the session. The foreign key cascade drops its messages
// in the same statement.
func (s *SessionDB) Delete(ctx context.Context, id string) error {
	result, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting session %s: %w", id, err)
	}

	return s.requireRowAffected(result, id)
}

// requireRowAffected translates "the WHERE clause matched nothing" into
// the domain's not-found error.
func (s *SessionDB) requireRowAffected(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("session", id)
	}
	return nil
}
