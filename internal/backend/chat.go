package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/isotime"
	"github.com/matheus3301/tradechat/internal/message"
	"go.uber.org/zap"
)

// ChatUserDTO is the backend shape of a directory entry.
type ChatUserDTO struct {
	ID               string                   `json:"id"`
	Name             string                   `json:"name"`
	Avatar           string                   `json:"avatar"`
	IsOnline         bool                     `json:"isOnline"`
	LastSeen         isotime.Time             `json:"lastSeen"`
	ShowOnlineStatus bool                     `json:"showOnlineStatus"`
	UnreadCount      int                      `json:"unreadCount"`
	LastMessage      string                   `json:"lastMessage"`
	LastMessageTime  isotime.Time             `json:"lastMessageTime"`
	IsGroup          bool                     `json:"isGroup"`
	MemberCount      int                      `json:"memberCount"`
	Settings         *directory.GroupSettings `json:"groupSettings,omitempty"`
	IsAdmin          bool                     `json:"isAdmin"`
}

// ToChatUser converts the DTO.
func (d *ChatUserDTO) ToChatUser() directory.ChatUser {
	u := directory.ChatUser{
		ID:               d.ID,
		Name:             d.Name,
		Avatar:           d.Avatar,
		IsOnline:         d.IsOnline,
		LastSeen:         d.LastSeen.Time,
		ShowOnlineStatus: d.ShowOnlineStatus,
		UnreadCount:      d.UnreadCount,
		LastMessage:      d.LastMessage,
		LastMessageAt:    d.LastMessageTime.Time,
		IsGroup:          d.IsGroup,
		MemberCount:      d.MemberCount,
		IsAdmin:          d.IsAdmin,
	}
	if d.Settings != nil {
		u.Settings = *d.Settings
	}
	return u
}

// ListChatUsers fetches the directory.
func (c *Client) ListChatUsers(ctx context.Context) ([]directory.ChatUser, error) {
	var dtos []ChatUserDTO
	if err := c.GetJSON(ctx, "/api/Chat/users", nil, &dtos); err != nil {
		return nil, err
	}
	users := make([]directory.ChatUser, len(dtos))
	for i := range dtos {
		users[i] = dtos[i].ToChatUser()
	}
	return users, nil
}

// ListMessages fetches a chat's history. Malformed messages are skipped and
// reported through the logger.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]*message.Message, error) {
	var wires []message.Wire
	if err := c.GetJSON(ctx, "/api/Chat/"+url.PathEscape(chatID)+"/messages", nil, &wires); err != nil {
		return nil, err
	}
	msgs := make([]*message.Message, 0, len(wires))
	for i := range wires {
		m, err := message.FromWire(&wires[i])
		if err != nil {
			c.logger.Warn("skipping malformed message", zap.String("chat_id", chatID), zap.Error(err))
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

type sendTextRequest struct {
	ClientMessageID string `json:"clientMessageId"`
	Type            string `json:"type"`
	Text            string `json:"text"`
}

// SendText posts a text message and returns the server's message.
func (c *Client) SendText(ctx context.Context, chatID, clientMsgID, text string) (*message.Message, error) {
	var w message.Wire
	err := c.SendJSON(ctx, http.MethodPost, "/api/Chat/"+url.PathEscape(chatID)+"/messages",
		sendTextRequest{ClientMessageID: clientMsgID, Type: string(message.TypeText), Text: text}, &w)
	if err != nil {
		return nil, err
	}
	m, err := message.FromWire(&w)
	if err != nil {
		return nil, fmt.Errorf("send text: %w", err)
	}
	return m, nil
}
