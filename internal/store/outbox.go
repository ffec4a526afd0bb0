package store

import (
	"context"
	"time"
)

// QueueOutbox adds a text message to the send outbox.
func (db *DB) QueueOutbox(ctx context.Context, clientMsgID, chatID, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO outbox (client_msg_id, chat_id, body, status, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', ?, ?)`,
		clientMsgID, chatID, body, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' status.
func (db *DB) MarkOutboxSending(ctx context.Context, clientMsgID string) error {
	return db.setOutboxStatus(ctx, clientMsgID, OutboxSending, "", "")
}

// MarkOutboxSent updates an outbox entry to 'sent' with the server message ID.
func (db *DB) MarkOutboxSent(ctx context.Context, clientMsgID, serverMsgID string) error {
	return db.setOutboxStatus(ctx, clientMsgID, OutboxSent, "", serverMsgID)
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(ctx context.Context, clientMsgID, errMsg string) error {
	return db.setOutboxStatus(ctx, clientMsgID, OutboxFailed, errMsg, "")
}

// RequeueSending puts entries left in 'sending' by a crash back in the queue.
func (db *DB) RequeueSending(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE outbox SET status = 'queued', updated_at = ? WHERE status = 'sending'`,
		time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) setOutboxStatus(ctx context.Context, clientMsgID, status, errMsg, serverMsgID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, error_message = ?,
			server_msg_id = COALESCE(NULLIF(?, ''), server_msg_id), updated_at = ?
		WHERE client_msg_id = ?`,
		status, errMsg, serverMsgID, time.Now().UnixMilli(), clientMsgID)
	return err
}

// PendingOutbox returns outbox entries that are still queued, oldest first.
func (db *DB) PendingOutbox(ctx context.Context) ([]OutboxEntry, error) {
	return db.listOutbox(ctx, `WHERE status = 'queued' ORDER BY created_at ASC, id ASC`)
}

// GetOutbox returns one entry, or nil when absent.
func (db *DB) GetOutbox(ctx context.Context, clientMsgID string) (*OutboxEntry, error) {
	entries, err := db.listOutbox(ctx, `WHERE client_msg_id = ?`, clientMsgID)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (db *DB) listOutbox(ctx context.Context, where string, args ...any) ([]OutboxEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, client_msg_id, chat_id, body, status, error_message, server_msg_id, created_at
		FROM outbox `+where, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ChatID, &e.Body, &e.Status, &e.ErrorMessage, &e.ServerMsgID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
