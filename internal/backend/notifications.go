package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/matheus3301/tradechat/internal/isotime"
	"github.com/matheus3301/tradechat/internal/notify"
)

// NotificationDTO is the backend shape of a notification.
type NotificationDTO struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Title          string       `json:"title"`
	Message        string       `json:"message"`
	IsRead         bool         `json:"isRead"`
	CreatedAt      isotime.Time `json:"createdAt"`
}

// ToNotification converts the DTO.
func (d *NotificationDTO) ToNotification() notify.Notification {
	return notify.Notification{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		Title:          d.Title,
		Body:           d.Message,
		Read:           d.IsRead,
		Timestamp:      d.CreatedAt.Time,
	}
}

// ListNotifications fetches the user's notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]notify.Notification, error) {
	var dtos []NotificationDTO
	if err := c.GetJSON(ctx, "/api/Notification", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]notify.Notification, len(dtos))
	for i := range dtos {
		out[i] = dtos[i].ToNotification()
	}
	return out, nil
}

// MarkNotificationRead persists a read mark.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.SendJSON(ctx, http.MethodPut, "/api/Notification/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllNotificationsRead persists "mark all as read".
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.SendJSON(ctx, http.MethodPut, "/api/Notification/read-all", nil, nil)
}
