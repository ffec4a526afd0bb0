package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/message"
)

// UpsertMessage stores a message in its wire form (idempotent on chat_id + msg_id).
func (db *DB) UpsertMessage(ctx context.Context, m *message.Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", m.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO messages (chat_id, msg_id, sender_id, type, timestamp, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			type = excluded.type,
			timestamp = excluded.timestamp,
			payload = excluded.payload`,
		m.ChatID, m.ID, m.SenderID, string(m.Type()), toMillis(m.Timestamp), string(payload), time.Now().UnixMilli())
	return err
}

// ListMessages returns up to limit messages of a chat older than before,
// newest first. A zero before means now.
func (db *DB) ListMessages(ctx context.Context, chatID string, before time.Time, limit int) ([]*message.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	beforeTs := toMillis(before)
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT payload FROM messages
		WHERE chat_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, chatID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []*message.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m message.Message
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("decode cached message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// MarkChatRead flags the cached messages of a chat read and clears its counter.
func (db *DB) MarkChatRead(ctx context.Context, chatID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET payload = json_set(payload, '$.isRead', json('true')) WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET unread_count = 0 WHERE id = ?`, chatID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertPin records a pinned message.
func (db *DB) UpsertPin(ctx context.Context, p directory.PinnedMessage) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO pins (chat_id, msg_id, pinned_by, pinned_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			pinned_by = excluded.pinned_by,
			pinned_at = excluded.pinned_at`,
		p.ConversationID, p.MessageID, p.PinnedBy, toMillis(p.PinnedAt))
	return err
}

// DeletePin removes a pin.
func (db *DB) DeletePin(ctx context.Context, chatID, msgID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM pins WHERE chat_id = ? AND msg_id = ?`, chatID, msgID)
	return err
}

// ListPins returns a chat's pins in the order they were pinned.
func (db *DB) ListPins(ctx context.Context, chatID string) ([]directory.PinnedMessage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT chat_id, msg_id, pinned_by, pinned_at FROM pins
		WHERE chat_id = ? ORDER BY pinned_at ASC, msg_id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pins []directory.PinnedMessage
	for rows.Next() {
		var (
			p  directory.PinnedMessage
			at int64
		)
		if err := rows.Scan(&p.ConversationID, &p.MessageID, &p.PinnedBy, &at); err != nil {
			return nil, err
		}
		p.PinnedAt = fromMillis(at)
		pins = append(pins, p)
	}
	return pins, rows.Err()
}
