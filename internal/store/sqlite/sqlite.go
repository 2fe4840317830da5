package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/streamlink/chatcore/internal/store"
)

//go:embed schema.sql
var schema string

var _ store.ChatStore = (*SQLiteStore)(nil)

// SQLiteStore implements store.ChatStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, nil)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to seed rows before the store is handed out.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded schema. It is safe to call repeatedly.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MessageStore implementation ====

// AppendMessage persists a message to storage.
func (s *SQLiteStore) AppendMessage(
	ctx context.Context,
	sessionID string,
	sender store.ParticipantRef,
	recipientID *int64,
	kind store.MessageKind,
	content string,
) (*store.Message, error) {
	msg := &store.Message{
		SessionID:   sessionID,
		SenderID:    sender.UserID,
		SenderName:  sender.DisplayName,
		SenderRole:  sender.Role,
		RecipientID: recipientID,
		Kind:        kind,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	query := `
		INSERT INTO chat_messages (session_id, sender_user_id, sender_name, sender_role, recipient_id, kind, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.SessionID, msg.SenderID, msg.SenderName, msg.SenderRole,
		msg.RecipientID, string(msg.Kind), msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return msg, nil
}

// ListRecentMessages retrieves the newest messages of a session in chronological order.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, session_id, sender_user_id, sender_name, sender_role, recipient_id, kind, content, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var (
			msg         store.Message
			senderID    sql.NullInt64
			recipientID sql.NullInt64
			kind        string
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&senderID,
			&msg.SenderName,
			&msg.SenderRole,
			&recipientID,
			&kind,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = store.MessageKind(kind)
		msg.SenderID = nullableID(senderID)
		msg.RecipientID = nullableID(recipientID)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ==== ParticipantStore implementation ====

// UpsertParticipantOnline creates the participant row or refreshes its online flag.
func (s *SQLiteStore) UpsertParticipantOnline(ctx context.Context, sessionID string, ref store.ParticipantRef, online bool) error {
	var query string
	if ref.IsGuest() {
		query = `
			INSERT INTO chat_participants (session_id, user_id, display_name, role, is_online)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (session_id, display_name) WHERE user_id IS NULL DO UPDATE SET
				role = excluded.role,
				is_online = excluded.is_online,
				last_seen_at = CURRENT_TIMESTAMP
		`
	} else {
		query = `
			INSERT INTO chat_participants (session_id, user_id, display_name, role, is_online)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (session_id, user_id) WHERE user_id IS NOT NULL DO UPDATE SET
				display_name = excluded.display_name,
				role = excluded.role,
				is_online = excluded.is_online,
				last_seen_at = CURRENT_TIMESTAMP
		`
	}

	if _, err := s.db.ExecContext(ctx, query, sessionID, ref.UserID, ref.DisplayName, ref.Role, online); err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

// RemoveParticipantByDisplayName deletes a guest participant row.
func (s *SQLiteStore) RemoveParticipantByDisplayName(ctx context.Context, sessionID, name string) error {
	query := `
		DELETE FROM chat_participants
		WHERE session_id = ? AND display_name = ? AND user_id IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, sessionID, name); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// ListParticipants lists all participant rows of a session.
func (s *SQLiteStore) ListParticipants(ctx context.Context, sessionID string) ([]*store.Participant, error) {
	query := `
		SELECT id, session_id, user_id, display_name, role, is_online, joined_at, last_seen_at
		FROM chat_participants
		WHERE session_id = ?
		ORDER BY joined_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []*store.Participant
	for rows.Next() {
		var (
			p      store.Participant
			userID sql.NullInt64
		)
		if err := rows.Scan(
			&p.ID,
			&p.SessionID,
			&userID,
			&p.DisplayName,
			&p.Role,
			&p.IsOnline,
			&p.JoinedAt,
			&p.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.UserID = nullableID(userID)
		participants = append(participants, &p)
	}

	return participants, rows.Err()
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
