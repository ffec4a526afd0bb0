package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds shared between the feed, the sync engine and the API layer.
const (
	KindPushNotification = "push.notification"
	KindPushMessage      = "push.message"
	KindPushPresence     = "push.presence"
	KindPushChatRead     = "push.chat_read"

	KindNotificationsChanged = "notify.changed"
	KindDirectoryChanged     = "directory.changed"
	KindMessageUpserted      = "message.upserted"
	KindMessageSendAck       = "message.send_ack"
	KindMessageSendFailed    = "message.send_failed"

	KindFeedStatusChanged = "feed.status_changed"
)

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
