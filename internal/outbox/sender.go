// Package outbox queues outgoing text messages and delivers them to the
// backend in the background.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/message"
	"github.com/matheus3301/tradechat/internal/metrics"
	"github.com/matheus3301/tradechat/internal/store"
	"go.uber.org/zap"
)

// ErrEmptyText is returned by Enqueue for blank messages.
var ErrEmptyText = errors.New("message text is empty")

// TextSender posts a text message and returns the server's copy.
type TextSender interface {
	SendText(ctx context.Context, chatID, clientMsgID, text string) (*message.Message, error)
}

// SendAck is the payload of message.send_ack events.
type SendAck struct {
	ChatID      string
	ClientMsgID string
	ServerMsgID string
}

// SendFailure is the payload of message.send_failed events.
type SendFailure struct {
	ChatID      string
	ClientMsgID string
	Error       string
}

// Sender drains the outbox and sends messages through the backend.
type Sender struct {
	db     *store.DB
	sender TextSender
	dir    *directory.Model
	bus    *bus.Bus
	logger *zap.Logger
	kick   chan struct{}
	cancel context.CancelFunc
	now    func() time.Time
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, sender TextSender, dir *directory.Model, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:     db,
		sender: sender,
		dir:    dir,
		bus:    b,
		logger: logger,
		kick:   make(chan struct{}, 1),
		now:    time.Now,
	}
}

// Enqueue queues text for chatID and returns the client message ID the
// optimistic copy will carry.
func (s *Sender) Enqueue(ctx context.Context, chatID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	chat, ok := s.dir.GetUserByID(chatID)
	if !ok {
		return "", fmt.Errorf("enqueue: %w: %s", directory.ErrChatNotFound, chatID)
	}
	if !chat.CanPost() {
		return "", fmt.Errorf("enqueue: %w: %s", directory.ErrPostNotAllowed, chatID)
	}
	clientMsgID := uuid.NewString()
	if err := s.db.QueueOutbox(ctx, clientMsgID, chatID, text); err != nil {
		return "", fmt.Errorf("queue outbox: %w", err)
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
	return clientMsgID, nil
}

// Start requeues entries interrupted by a previous run and begins polling
// the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.RequeueSending(ctx); err != nil {
		s.logger.Error("failed to requeue outbox", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("requeued interrupted sends", zap.Int64("count", n))
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.kick:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox(ctx)
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}
	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, entry)
	}
}

func (s *Sender) deliver(ctx context.Context, entry store.OutboxEntry) {
	log := s.logger.With(zap.String("client_msg_id", entry.ClientMsgID), zap.String("chat_id", entry.ChatID))

	if err := s.db.MarkOutboxSending(ctx, entry.ClientMsgID); err != nil {
		log.Error("failed to mark sending", zap.Error(err))
		return
	}

	// Optimistic insert: show the message in the UI immediately.
	optimistic := &message.Message{
		ID:        entry.ClientMsgID,
		ChatID:    entry.ChatID,
		SenderID:  s.dir.Self(),
		Timestamp: s.now(),
		IsRead:    true,
		Payload:   &message.Text{Body: entry.Body},
	}
	if err := s.dir.AppendMessage(optimistic); err != nil {
		log.Warn("optimistic insert skipped", zap.Error(err))
	} else {
		s.bus.Publish(bus.NewEvent(bus.KindMessageUpserted, optimistic))
	}

	sent, err := s.sender.SendText(ctx, entry.ChatID, entry.ClientMsgID, entry.Body)
	if err != nil {
		log.Error("failed to send message", zap.Error(err))
		metrics.OutboxSent.WithLabelValues("failed").Inc()
		if err := s.db.MarkOutboxFailed(ctx, entry.ClientMsgID, err.Error()); err != nil {
			log.Error("failed to mark failed", zap.Error(err))
		}
		s.dir.RemoveMessage(entry.ChatID, entry.ClientMsgID)
		s.bus.Publish(bus.NewEvent(bus.KindMessageSendFailed, SendFailure{
			ChatID:      entry.ChatID,
			ClientMsgID: entry.ClientMsgID,
			Error:       err.Error(),
		}))
		return
	}
	metrics.OutboxSent.WithLabelValues("ok").Inc()

	if err := s.db.MarkOutboxSent(ctx, entry.ClientMsgID, sent.ID); err != nil {
		log.Error("failed to mark sent", zap.Error(err))
	}
	if err := s.dir.ReplaceMessage(entry.ChatID, entry.ClientMsgID, sent); err != nil {
		log.Warn("failed to reconcile sent message", zap.Error(err))
	} else if err := s.cache(ctx, sent); err != nil {
		log.Warn("failed to cache sent message", zap.Error(err))
	}

	log.Info("message sent", zap.String("server_msg_id", sent.ID))
	s.bus.Publish(bus.NewEvent(bus.KindMessageSendAck, SendAck{
		ChatID:      entry.ChatID,
		ClientMsgID: entry.ClientMsgID,
		ServerMsgID: sent.ID,
	}))
}

// cache stores a sent message, writing its chat row first.
func (s *Sender) cache(ctx context.Context, msg *message.Message) error {
	if u, ok := s.dir.GetUserByID(msg.ChatID); ok {
		if err := s.db.UpsertUser(ctx, &u); err != nil {
			return err
		}
	}
	return s.db.UpsertMessage(ctx, msg)
}
