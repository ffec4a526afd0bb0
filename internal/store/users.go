package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/tradechat/internal/directory"
)

const userColumns = `id, name, avatar, is_online, last_seen, show_online_status, unread_count,
	last_message, last_message_at, is_group, member_count,
	require_approval, only_admins_post, only_admins_invite, is_admin`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertUser(ctx context.Context, ex execer, u *directory.ChatUser, now int64) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			avatar = excluded.avatar,
			is_online = excluded.is_online,
			last_seen = excluded.last_seen,
			show_online_status = excluded.show_online_status,
			unread_count = excluded.unread_count,
			last_message = excluded.last_message,
			last_message_at = excluded.last_message_at,
			is_group = excluded.is_group,
			member_count = excluded.member_count,
			require_approval = excluded.require_approval,
			only_admins_post = excluded.only_admins_post,
			only_admins_invite = excluded.only_admins_invite,
			is_admin = excluded.is_admin,
			updated_at = excluded.updated_at`,
		u.ID, u.Name, u.Avatar, u.IsOnline, toMillis(u.LastSeen), u.ShowOnlineStatus, max(u.UnreadCount, 0),
		u.LastMessage, toMillis(u.LastMessageAt), u.IsGroup, u.MemberCount,
		u.Settings.RequireApproval, u.Settings.OnlyAdminsCanPost, u.Settings.OnlyAdminsCanInvite, u.IsAdmin, now)
	return err
}

// UpsertUser inserts or updates a directory entry.
func (db *DB) UpsertUser(ctx context.Context, u *directory.ChatUser) error {
	return upsertUser(ctx, db, u, time.Now().UnixMilli())
}

// ReplaceUsers installs a full directory. Users not in the list are removed
// along with their cached messages and pins.
func (db *DB) ReplaceUsers(ctx context.Context, users []directory.ChatUser) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS keep_users (id TEXT PRIMARY KEY)`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM keep_users`); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for i := range users {
		if err := upsertUser(ctx, tx, &users[i], now); err != nil {
			return fmt.Errorf("upsert user %s: %w", users[i].ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO keep_users (id) VALUES (?)`, users[i].ID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id NOT IN (SELECT id FROM keep_users)`); err != nil {
		return fmt.Errorf("prune users: %w", err)
	}
	return tx.Commit()
}

// ListUsers returns the cached directory, most recent conversation first.
func (db *DB) ListUsers(ctx context.Context) ([]directory.ChatUser, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_message_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []directory.ChatUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser returns a single entry, or nil when absent.
func (db *DB) GetUser(ctx context.Context, id string) (*directory.ChatUser, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUnread overwrites the unread counter of a chat.
func (db *DB) SetUnread(ctx context.Context, id string, n int) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET unread_count = ?, updated_at = ? WHERE id = ?`,
		max(n, 0), time.Now().UnixMilli(), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (directory.ChatUser, error) {
	var (
		u                   directory.ChatUser
		lastSeen, lastMsgAt int64
	)
	err := s.Scan(&u.ID, &u.Name, &u.Avatar, &u.IsOnline, &lastSeen, &u.ShowOnlineStatus, &u.UnreadCount,
		&u.LastMessage, &lastMsgAt, &u.IsGroup, &u.MemberCount,
		&u.Settings.RequireApproval, &u.Settings.OnlyAdminsCanPost, &u.Settings.OnlyAdminsCanInvite, &u.IsAdmin)
	u.LastSeen = fromMillis(lastSeen)
	u.LastMessageAt = fromMillis(lastMsgAt)
	return u, err
}
