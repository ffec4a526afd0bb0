package rpc

import (
	"encoding/json"
	"time"

	"github.com/matheus3301/tradechat/internal/contractlog"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/message"
	"github.com/matheus3301/tradechat/internal/notify"
)

// Event is the envelope every Watch stream carries.
type Event struct {
	ID         string          `json:"id"`
	Session    string          `json:"session"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// WatchRequest opens a Watch stream.
type WatchRequest struct{}

// Session

type StatusRequest struct{}

type StatusResponse struct {
	Session     string    `json:"session"`
	UserID      string    `json:"userId,omitempty"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	APIBase     string    `json:"apiBase"`
	FeedURL     string    `json:"feedUrl,omitempty"`
	UptimeMs    int64     `json:"uptimeMs"`
	ChatCount   int       `json:"chatCount"`
	Unread      int       `json:"unread"`
	LastHydrate time.Time `json:"lastHydrate"`
}

type RefreshRequest struct{}

type RefreshResponse struct {
	ChatCount    int `json:"chatCount"`
	Notification int `json:"notifications"`
}

// StatusChange is the payload of a session Watch event.
type StatusChange struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// Notifications

type ListNotificationsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListNotificationsResponse struct {
	Items  []notify.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

type MarkReadRequest struct {
	ID string `json:"id"`
}

type MarkAllReadRequest struct{}

type MarkReadResponse struct {
	Unread int `json:"unread"`
}

// Directory

type ListChatsRequest struct{}

type ListChatsResponse struct {
	Users []directory.ChatUser `json:"users"`
}

type OpenChatRequest struct {
	ChatID string `json:"chatId"`
}

type OpenChatResponse struct {
	User     directory.ChatUser        `json:"user"`
	Messages []*message.Message        `json:"messages"`
	Pinned   []directory.PinnedMessage `json:"pinned"`
}

type ListMessagesRequest struct {
	ChatID string    `json:"chatId"`
	Before time.Time `json:"before,omitzero"`
	Limit  int       `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Messages []*message.Message `json:"messages"`
}

type SendTextRequest struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

type SendTextResponse struct {
	ClientMsgID string `json:"clientMsgId"`
	Accepted    bool   `json:"accepted"`
}

type PinRequest struct {
	ChatID string `json:"chatId"`
	MsgID  string `json:"msgId"`
	Unpin  bool   `json:"unpin,omitempty"`
}

type PinResponse struct {
	Pinned []directory.PinnedMessage `json:"pinned"`
}

type ReactRequest struct {
	ChatID string `json:"chatId"`
	MsgID  string `json:"msgId"`
	Symbol string `json:"symbol"`
	Remove bool   `json:"remove,omitempty"`
}

type ReactResponse struct {
	Changed bool `json:"changed"`
}

type SharedRequest struct {
	ChatID string `json:"chatId"`
}

type SharedResponse struct {
	Shared directory.Shared `json:"shared"`
}

// Contract logs

type ListLogsRequest struct {
	Start     time.Time `json:"start,omitzero"`
	End       time.Time `json:"end,omitzero"`
	EventType string    `json:"eventType,omitempty"`
	Address   string    `json:"address,omitempty"`
}

type ListLogsResponse struct {
	Logs []contractlog.Log `json:"logs"`
}

type DailySummaryRequest struct {
	Date time.Time `json:"date"`
}

type DailySummaryResponse struct {
	Summary contractlog.DailySummary `json:"summary"`
}
