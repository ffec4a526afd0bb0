package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Remote is the backend side of notifications.
type Remote interface {
	ListNotifications(ctx context.Context) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Service couples the Store with the backend. Read marks are persisted
// before they are applied, so a failed request leaves the store untouched.
type Service struct {
	*Store
	remote Remote
	logger *zap.Logger
}

// NewService wraps store with remote persistence.
func NewService(store *Store, remote Remote, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, remote: remote, logger: logger}
}

// Refresh replaces the store with the backend's list.
func (s *Service) Refresh(ctx context.Context) error {
	items, err := s.remote.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	s.Replace(items)
	s.logger.Debug("notifications refreshed", zap.Int("count", len(items)))
	return nil
}

// MarkAsRead persists and applies a read mark. Unknown and already read ids
// are a no-op.
func (s *Service) MarkAsRead(ctx context.Context, id string) error {
	n, ok := s.Get(id)
	if !ok || n.Read {
		return nil
	}
	if err := s.remote.MarkNotificationRead(ctx, id); err != nil {
		s.logger.Warn("mark notification read failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	s.Store.MarkAsRead(id)
	return nil
}

// MarkAllAsRead persists and applies "mark all".
func (s *Service) MarkAllAsRead(ctx context.Context) error {
	if s.Snapshot().Unread == 0 {
		return nil
	}
	if err := s.remote.MarkAllNotificationsRead(ctx); err != nil {
		s.logger.Warn("mark all notifications read failed", zap.Error(err))
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	s.Store.MarkAllAsRead()
	return nil
}
