package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/scratchpad/internal/apperror"
	"github.com/sakif/scratchpad/internal/model"
	"github.com/sakif/scratchpad/internal/repository"
)

// isForeignKeyViolation detects an insert that referenced a missing parent
// row. The pure-Go driver surfaces constraint failures only through the
// error text, so matching on SQLite's fixed message is the available hook.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var _ repository.MessageRepository = (*MessageDB)(nil)

// MessageDB is the message repository view over the shared pool.
type MessageDB struct {
	db *DB
}

// Append inserts a message at the end of its session's transcript.
//
// The foreign key on session_id doubles as the existence check: appending
// to a deleted or never-created session fails the constraint, which we
// report as not-found rather than leaking the driver error.
func (m *MessageDB) Append(ctx context.Context, message *model.Message) error {
	message.ID = xid.New().String()
	message.CreatedAt = time.Now()

	_, err := m.db.conn.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		message.ID,
		message.SessionID,
		message.Role,
		message.Content,
		message.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("session", message.SessionID)
		}
		return fmt.Errorf("sqlite: appending message: %w", err)
	}

	return nil
}

// ListBySession returns a session's full transcript in insertion order.
//
// Ordering is (created_at, id): created_at alone can tie when two messages
// land within the timestamp's resolution, and xids are themselves
// time-ordered, so the id is a stable tiebreaker.
func (m *MessageDB) ListBySession(ctx context.Context, sessionID string) ([]model.Message, error) {
	rows, err := m.db.conn.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM messages
		 WHERE session_id = ?
		 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message

	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(
			&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating messages: %w", err)
	}

	return messages, nil
}
