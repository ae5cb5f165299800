package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"belgaum-backend/internal/models"
)

// SQLiteOpener scopes rows of the chat_messages table by client id. The
// AUTOINCREMENT primary key provides the monotonically increasing message id.
type SQLiteOpener struct {
	db   *sql.DB
	opts options
}

func NewSQLiteOpener(db *sql.DB, opts ...Option) *SQLiteOpener {
	return &SQLiteOpener{db: db, opts: buildOptions(opts)}
}

func (o *SQLiteOpener) Open(scope string) (MessageStore, error) {
	if scope == "" {
		return nil, ErrEmptyScope
	}
	return &sqliteStore{db: o.db, scope: scope, now: o.opts.now}, nil
}

// EvictAll deletes expired rows across every scope in one statement.
func (o *SQLiteOpener) EvictAll(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := o.db.ExecContext(ctx,
		"DELETE FROM chat_messages WHERE timestamp < ?",
		threshold(o.opts.now(), maxAge),
	)
	if err != nil {
		return 0, fmt.Errorf("evict messages: %w", err)
	}
	return res.RowsAffected()
}

type sqliteStore struct {
	db    *sql.DB
	scope string
	now   func() time.Time
}

func (s *sqliteStore) Save(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO chat_messages (scope, role, content, timestamp) VALUES (?, ?, ?, ?)",
		s.scope, string(msg.Role), msg.Content, msg.Timestamp,
	)
	if err != nil {
		return msg, fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return msg, fmt.Errorf("read message id: %w", err)
	}
	msg.ID = id
	return msg, nil
}

func (s *sqliteStore) GetAll(ctx context.Context) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, content, timestamp FROM chat_messages WHERE scope = ? ORDER BY timestamp ASC, id ASC",
		s.scope,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = models.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *sqliteStore) EvictOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM chat_messages WHERE scope = ? AND timestamp < ?",
		s.scope, threshold(s.now(), maxAge),
	)
	if err != nil {
		return 0, fmt.Errorf("evict messages: %w", err)
	}
	return res.RowsAffected()
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE scope = ?", s.scope); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}
