package store

import (
	"context"
	"fmt"

	"github.com/matheus3301/tradechat/internal/notify"
)

func upsertNotification(ctx context.Context, ex execer, n *notify.Notification) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO notifications (id, conversation_id, title, body, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			title = excluded.title,
			body = excluded.body,
			is_read = excluded.is_read,
			created_at = excluded.created_at`,
		n.ID, n.ConversationID, n.Title, n.Body, n.Read, toMillis(n.Timestamp))
	return err
}

// UpsertNotification inserts or updates a notification.
func (db *DB) UpsertNotification(ctx context.Context, n *notify.Notification) error {
	return upsertNotification(ctx, db, n)
}

// ReplaceNotifications swaps the cached list for items.
func (db *DB) ReplaceNotifications(ctx context.Context, items []notify.Notification) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return err
	}
	for i := range items {
		if err := upsertNotification(ctx, tx, &items[i]); err != nil {
			return fmt.Errorf("insert notification %s: %w", items[i].ID, err)
		}
	}
	return tx.Commit()
}

// ListNotifications returns cached notifications, newest first.
func (db *DB) ListNotifications(ctx context.Context) ([]notify.Notification, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, conversation_id, title, body, is_read, created_at
		FROM notifications ORDER BY created_at DESC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []notify.Notification
	for rows.Next() {
		var (
			n  notify.Notification
			ts int64
		)
		if err := rows.Scan(&n.ID, &n.ConversationID, &n.Title, &n.Body, &n.Read, &ts); err != nil {
			return nil, err
		}
		n.Timestamp = fromMillis(ts)
		items = append(items, n)
	}
	return items, rows.Err()
}

// MarkNotificationRead flags one cached notification read.
func (db *DB) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	return err
}

// MarkAllNotificationsRead flags every cached notification read.
func (db *DB) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE is_read = 0`)
	return err
}
