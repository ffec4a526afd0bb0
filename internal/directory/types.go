// Package directory is the in-memory model of the user's conversations:
// participants and groups, presence, unread markers, message history, pins
// and shared content.
package directory

import (
	"time"

	"github.com/matheus3301/tradechat/internal/message"
)

// GroupSettings holds three independent gates. They are never folded into a
// single permission level.
type GroupSettings struct {
	RequireApproval     bool `json:"requireApproval"`
	OnlyAdminsCanPost   bool `json:"onlyAdminsCanPost"`
	OnlyAdminsCanInvite bool `json:"onlyAdminsCanInvite"`
}

// JoinNeedsApproval reports whether join requests wait for an admin.
func (s GroupSettings) JoinNeedsApproval() bool { return s.RequireApproval }

// CanPost reports whether a member may send messages.
func (s GroupSettings) CanPost(isAdmin bool) bool { return isAdmin || !s.OnlyAdminsCanPost }

// CanInvite reports whether a member may invite others.
func (s GroupSettings) CanInvite(isAdmin bool) bool { return isAdmin || !s.OnlyAdminsCanInvite }

// ChatUser is one entry of the directory: a direct conversation partner or,
// with IsGroup set, a group.
type ChatUser struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Avatar           string    `json:"avatar,omitempty"`
	IsOnline         bool      `json:"isOnline"`
	LastSeen         time.Time `json:"lastSeen"`
	ShowOnlineStatus bool      `json:"showOnlineStatus"`
	UnreadCount      int       `json:"unreadCount"`
	LastMessage      string    `json:"lastMessage,omitempty"`
	LastMessageAt    time.Time `json:"lastMessageAt"`

	IsGroup     bool          `json:"isGroup"`
	MemberCount int           `json:"memberCount,omitempty"`
	Settings    GroupSettings `json:"settings"`
	// IsAdmin is the local user's role in the group. Unknown means member.
	IsAdmin bool `json:"isAdmin,omitempty"`
}

// HasUnreadMessages reports whether the entry carries an unread marker.
func (u ChatUser) HasUnreadMessages() bool { return u.UnreadCount > 0 }

// CanPost reports whether the local user may send to this conversation.
// Direct conversations are always open.
func (u ChatUser) CanPost() bool { return !u.IsGroup || u.Settings.CanPost(u.IsAdmin) }

// PresenceVisible reports whether presence may be rendered. Presence is
// stored regardless.
func (u ChatUser) PresenceVisible() bool { return u.ShowOnlineStatus && !u.IsGroup }

// PinnedMessage records who pinned which message of a conversation.
type PinnedMessage struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	PinnedBy       string    `json:"pinnedBy"`
	PinnedAt       time.Time `json:"pinnedAt"`
}

// Shared collects what has been shared in a conversation, oldest first.
type Shared struct {
	Links  []string         `json:"links"`
	Images []*message.Image `json:"images"`
	Files  []*message.File  `json:"files"`
}
