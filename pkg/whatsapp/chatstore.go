package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

// ChatStore persists the chat registry next to the whatsmeow tables so
// chats seen before a restart can still be resolved.
type ChatStore struct {
	db     *sql.DB
	driver string
}

func openChatStore(ctx context.Context, driver string, dsn string) (*ChatStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}
	if driver == "pgx" {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	} else {
		db.SetMaxOpenConns(1)
	}
	db.SetConnMaxIdleTime(3 * time.Minute)

	store, err := NewChatStore(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewChatStore creates the known chats table when missing.
func NewChatStore(ctx context.Context, db *sql.DB, driver string) (*ChatStore, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping chat store: %w", err)
	}
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS erp_known_chats (
		chat_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		is_group BOOLEAN NOT NULL DEFAULT FALSE,
		last_seen_at BIGINT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create erp_known_chats: %w", err)
	}
	return &ChatStore{db: db, driver: driver}, nil
}

func (c *ChatStore) bind(query string) string {
	if c.driver != "pgx" && c.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save upserts a chat. An empty name keeps the stored one.
func (c *ChatStore) Save(ctx context.Context, conv dispatch.Conversation, seenAt time.Time) error {
	_, err := c.db.ExecContext(ctx, c.bind(`INSERT INTO erp_known_chats (chat_id, name, is_group, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN erp_known_chats.name ELSE excluded.name END,
			is_group = excluded.is_group,
			last_seen_at = excluded.last_seen_at`),
		conv.ID, conv.Name, conv.IsGroup, seenAt.Unix())
	if err != nil {
		return fmt.Errorf("save known chat %s: %w", conv.ID, err)
	}
	return nil
}

// Load returns the most recently seen chats, newest first.
func (c *ChatStore) Load(ctx context.Context, limit int) ([]dispatch.Conversation, error) {
	rows, err := c.db.QueryContext(ctx, c.bind(`SELECT chat_id, name, is_group FROM erp_known_chats
		ORDER BY last_seen_at DESC, chat_id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("load known chats: %w", err)
	}
	defer rows.Close()

	var chats []dispatch.Conversation
	for rows.Next() {
		var conv dispatch.Conversation
		if err := rows.Scan(&conv.ID, &conv.Name, &conv.IsGroup); err != nil {
			return nil, err
		}
		chats = append(chats, conv)
	}
	return chats, rows.Err()
}

func (c *ChatStore) Delete(ctx context.Context, chatID string) error {
	_, err := c.db.ExecContext(ctx, c.bind(`DELETE FROM erp_known_chats WHERE chat_id = ?`), chatID)
	return err
}

// Prune drops chats not seen since cutoff and reports how many were removed.
func (c *ChatStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, c.bind(`DELETE FROM erp_known_chats WHERE last_seen_at < ?`), cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune known chats: %w", err)
	}
	return res.RowsAffected()
}

func (c *ChatStore) Close() error {
	return c.db.Close()
}
