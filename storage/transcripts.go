package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"moochat/config"
	"moochat/model"
)

// DatabaseFile is the cache file name inside the data directory.
const DatabaseFile = "moochat.db"

// ErrNoConversationID is returned when saving a transcript the server has not
// assigned an id to yet.
var ErrNoConversationID = errors.New("conversation has no id")

// CachedConversation is a conversation as last seen by this client.
type CachedConversation struct {
	ID           string
	Title        string
	UpdatedAt    time.Time
	MessageCount int
}

// TranscriptStore is a local sqlite copy of finished conversations. The
// backend stays the source of truth; the cache serves offline reads and
// search.
type TranscriptStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the cache in dataDir.
func Open(dataDir string) (*TranscriptStore, error) {
	return OpenPath(filepath.Join(dataDir, DatabaseFile))
}

func OpenPath(path string) (*TranscriptStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between the UI and the recorder
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &TranscriptStore{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *TranscriptStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		tool_use TEXT,
		PRIMARY KEY (conversation_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
	CREATE TABLE IF NOT EXISTS client_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func debugf(format string, args ...any) {
	if config.Debug && config.DebugLog != nil {
		config.DebugLog.Printf("[Storage] "+format, args...)
	}
}

// SaveTranscript replaces the cached copy of conv with msgs.
func (s *TranscriptStore) SaveTranscript(conv model.Conversation, msgs []model.Message) error {
	if conv.ID == "" {
		return ErrNoConversationID
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	title := ""
	if conv.Title != nil {
		title = *conv.Title
	}
	_, err = tx.Exec(`
	INSERT INTO conversations (id, title, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at
	`, conv.ID, title, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO messages (conversation_id, seq, id, role, content, provider, model, tool_use)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		var toolUse sql.NullString
		if m.ToolUse != nil {
			data, err := json.Marshal(m.ToolUse)
			if err != nil {
				return fmt.Errorf("failed to encode tool use of message %s: %w", m.ID, err)
			}
			toolUse = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.Exec(conv.ID, i, m.ID, string(m.Role), m.Content, m.Provider, m.Model, toolUse); err != nil {
			return fmt.Errorf("failed to save message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcript: %w", err)
	}
	debugf("saved %d messages for conversation %s", len(msgs), conv.ID)
	return nil
}

// Conversations lists cached conversations, most recently updated first.
func (s *TranscriptStore) Conversations() ([]CachedConversation, error) {
	rows, err := s.db.Query(`
	SELECT c.id, c.title, c.updated_at, COUNT(m.seq)
	FROM conversations c LEFT JOIN messages m ON m.conversation_id = c.id
	GROUP BY c.id
	ORDER BY c.updated_at DESC, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []CachedConversation
	for rows.Next() {
		var (
			c       CachedConversation
			updated int64
		)
		if err := rows.Scan(&c.ID, &c.Title, &updated, &c.MessageCount); err != nil {
			return nil, err
		}
		c.UpdatedAt = time.Unix(0, updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Conversation returns one cached conversation, or nil if it is not cached.
func (s *TranscriptStore) Conversation(id string) (*model.Conversation, error) {
	var title string
	err := s.db.QueryRow(`SELECT title FROM conversations WHERE id = ?`, id).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conv := &model.Conversation{ID: id}
	if title != "" {
		conv.Title = &title
	}
	return conv, nil
}

// Messages returns the cached messages of a conversation in order.
func (s *TranscriptStore) Messages(conversationID string) ([]model.Message, error) {
	rows, err := s.db.Query(`
	SELECT id, role, content, provider, model, tool_use
	FROM messages WHERE conversation_id = ? ORDER BY seq
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m       model.Message
			role    string
			toolUse sql.NullString
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Provider, &m.Model, &toolUse); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		m.ConversationID = conversationID
		if toolUse.Valid {
			m.ToolUse = &model.ToolUse{}
			if err := json.Unmarshal([]byte(toolUse.String), m.ToolUse); err != nil {
				return nil, fmt.Errorf("corrupt tool use on message %s: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteConversation drops a conversation and its messages from the cache.
func (s *TranscriptStore) DeleteConversation(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM client_state WHERE key = 'current_conversation' AND value = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// SetCurrentConversation remembers the conversation the UI last showed.
// An empty id clears it.
func (s *TranscriptStore) SetCurrentConversation(id string) error {
	if id == "" {
		_, err := s.db.Exec(`DELETE FROM client_state WHERE key = 'current_conversation'`)
		return err
	}
	_, err := s.db.Exec(`
	INSERT INTO client_state (key, value) VALUES ('current_conversation', ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, id)
	return err
}

// CurrentConversation returns the remembered conversation id, or "".
func (s *TranscriptStore) CurrentConversation() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT value FROM client_state WHERE key = 'current_conversation'`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (s *TranscriptStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
