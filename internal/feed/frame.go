package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/tradechat/internal/backend"
	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/isotime"
	"github.com/matheus3301/tradechat/internal/message"
)

// Frame kinds sent by the backend.
const (
	FrameNotification = "notification"
	FramePresence     = "presence"
	FrameMessage      = "message"
	FrameChatRead     = "chat_read"
)

// ErrUnknownFrame is returned for frames whose kind is not handled.
var ErrUnknownFrame = errors.New("unknown frame kind")

// Frame is one push message on the socket.
type Frame struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Presence is the payload of a presence frame.
type Presence struct {
	UserID   string
	Online   bool
	LastSeen time.Time
}

// ChatRead is the payload of a chat_read frame: the user read a chat on
// another device.
type ChatRead struct {
	ChatID string
}

type presenceDTO struct {
	UserID   string       `json:"userId"`
	IsOnline bool         `json:"isOnline"`
	LastSeen isotime.Time `json:"lastSeen"`
}

type chatReadDTO struct {
	ChatID string `json:"chatId"`
}

// Decode turns a raw frame into a bus event. Malformed payloads are rejected
// as a whole.
func Decode(data []byte) (bus.Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return bus.Event{}, fmt.Errorf("decode frame: %w", err)
	}
	if len(f.Payload) == 0 || string(f.Payload) == "null" {
		return bus.Event{}, fmt.Errorf("%s frame: missing payload", f.Kind)
	}

	switch f.Kind {
	case FrameNotification:
		var dto backend.NotificationDTO
		if err := json.Unmarshal(f.Payload, &dto); err != nil {
			return bus.Event{}, fmt.Errorf("notification frame: %w", err)
		}
		if dto.ID == "" {
			return bus.Event{}, errors.New("notification frame: missing id")
		}
		return bus.NewEvent(bus.KindPushNotification, dto.ToNotification()), nil

	case FrameMessage:
		var w message.Wire
		if err := json.Unmarshal(f.Payload, &w); err != nil {
			return bus.Event{}, fmt.Errorf("message frame: %w", err)
		}
		m, err := message.FromWire(&w)
		if err != nil {
			return bus.Event{}, fmt.Errorf("message frame: %w", err)
		}
		return bus.NewEvent(bus.KindPushMessage, m), nil

	case FramePresence:
		var dto presenceDTO
		if err := json.Unmarshal(f.Payload, &dto); err != nil {
			return bus.Event{}, fmt.Errorf("presence frame: %w", err)
		}
		if dto.UserID == "" {
			return bus.Event{}, errors.New("presence frame: missing user id")
		}
		return bus.NewEvent(bus.KindPushPresence, Presence{
			UserID:   dto.UserID,
			Online:   dto.IsOnline,
			LastSeen: dto.LastSeen.Time,
		}), nil

	case FrameChatRead:
		var dto chatReadDTO
		if err := json.Unmarshal(f.Payload, &dto); err != nil {
			return bus.Event{}, fmt.Errorf("chat_read frame: %w", err)
		}
		if dto.ChatID == "" {
			return bus.Event{}, errors.New("chat_read frame: missing chat id")
		}
		return bus.NewEvent(bus.KindPushChatRead, ChatRead{ChatID: dto.ChatID}), nil
	}
	return bus.Event{}, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Kind)
}
