package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
	"os"
	"path/filepath"
	"schmagent/internal/pkg/chatModel"
	"time"
)

var ErrNotFound = errors.New("conversation not found")

type Conversation struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Store keeps conversations and their messages in a SQLite database.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory failed: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open() failed: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping() failed: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("history database opened")
	return store, nil
}

func (instance *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	`
	if _, err := instance.db.Exec(query); err != nil {
		return fmt.Errorf("creating history schema failed: %w", err)
	}
	return nil
}

// CreateConversation registers id. Creating an existing conversation only refreshes its provider.
func (instance *Store) CreateConversation(ctx context.Context, id string, provider string) error {
	now := time.Now().UnixNano()
	query := `
	INSERT INTO conversations (id, provider, created_at, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET provider = excluded.provider`

	if _, err := instance.db.ExecContext(ctx, query, id, provider, now, now); err != nil {
		return fmt.Errorf("creating conversation %s failed: %w", id, err)
	}
	return nil
}

func (instance *Store) AppendMessage(ctx context.Context, id string, message chatModel.Message) error {
	tx, err := instance.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction failed: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UnixNano()
	result, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("touching conversation %s failed: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("appending to %s failed: %w", id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		id, string(message.Role), message.Content, now); err != nil {
		return fmt.Errorf("inserting message failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message failed: %w", err)
	}
	return nil
}

// Messages returns the newest limit messages of id in chronological order. A limit of zero or less returns
// every message.
func (instance *Store) Messages(ctx context.Context, id string, limit int) ([]chatModel.Message, error) {
	exists, err := instance.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("reading %s failed: %w", id, ErrNotFound)
	}

	if limit <= 0 {
		limit = -1
	}
	query := `
	SELECT role, content FROM (
		SELECT seq, role, content FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?
	) ORDER BY seq ASC`

	rows, err := instance.db.QueryContext(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages failed: %w", err)
	}
	defer rows.Close()

	messages := make([]chatModel.Message, 0)
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scanning message failed: %w", err)
		}
		messages = append(messages, chatModel.Message{Role: chatModel.ParseRole(role), Content: content})
	}
	return messages, rows.Err()
}

func (instance *Store) exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := instance.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("looking up conversation %s failed: %w", id, err)
	}
	return count > 0, nil
}

// Conversations lists every conversation, most recently updated first.
func (instance *Store) Conversations(ctx context.Context) ([]Conversation, error) {
	query := `
	SELECT c.id, c.provider, c.created_at, c.updated_at, COUNT(m.seq)
	FROM conversations c LEFT JOIN messages m ON m.conversation_id = c.id
	GROUP BY c.id
	ORDER BY c.updated_at DESC, c.rowid DESC`

	rows, err := instance.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying conversations failed: %w", err)
	}
	defer rows.Close()

	conversations := make([]Conversation, 0)
	for rows.Next() {
		var conversation Conversation
		var createdAt, updatedAt int64
		if err := rows.Scan(&conversation.ID, &conversation.Provider, &createdAt, &updatedAt, &conversation.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning conversation failed: %w", err)
		}
		conversation.CreatedAt = time.Unix(0, createdAt)
		conversation.UpdatedAt = time.Unix(0, updatedAt)
		conversations = append(conversations, conversation)
	}
	return conversations, rows.Err()
}

// Prune deletes every conversation except the keep most recently updated ones and returns how many were
// removed.
func (instance *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	query := `
	DELETE FROM conversations WHERE id IN (
		SELECT id FROM conversations ORDER BY updated_at DESC, rowid DESC LIMIT -1 OFFSET ?
	)`

	result, err := instance.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning conversations failed: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned conversations failed: %w", err)
	}
	if removed > 0 {
		log.Info().Int64("removed", removed).Int("kept", keep).Msg("history pruned")
	}
	return removed, nil
}

func (instance *Store) Close() error {
	return instance.db.Close()
}
