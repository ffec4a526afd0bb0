package api

import (
	"context"

	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/notify"
	"github.com/matheus3301/tradechat/internal/rpc"
	"github.com/matheus3301/tradechat/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// NotificationService implements rpc.NotificationServer on top of the
// Notification Store.
type NotificationService struct {
	notes   *notify.Service
	db      *store.DB
	bus     *bus.Bus
	session string
	logger  *zap.Logger
}

// NewNotificationService creates a new notification service. Read marks are
// written through to db when it is non-nil.
func NewNotificationService(notes *notify.Service, db *store.DB, b *bus.Bus, session string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{notes: notes, db: db, bus: b, session: session, logger: logger}
}

func (s *NotificationService) List(_ context.Context, req *rpc.ListNotificationsRequest) (*rpc.ListNotificationsResponse, error) {
	snap := s.notes.Snapshot()
	limit := req.Limit
	if limit <= 0 {
		limit = -1
	}
	return &rpc.ListNotificationsResponse{Items: snap.Recent(limit), Unread: snap.Unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, req *rpc.MarkReadRequest) (*rpc.MarkReadResponse, error) {
	if req.ID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "notification id is required")
	}
	if err := s.notes.MarkAsRead(ctx, req.ID); err != nil {
		return nil, toStatus("mark read", err)
	}
	if s.db != nil {
		if err := s.db.MarkNotificationRead(ctx, req.ID); err != nil {
			s.logger.Warn("failed to cache read mark", zap.String("id", req.ID), zap.Error(err))
		}
	}
	return &rpc.MarkReadResponse{Unread: s.notes.Snapshot().Unread}, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, _ *rpc.MarkAllReadRequest) (*rpc.MarkReadResponse, error) {
	if err := s.notes.MarkAllAsRead(ctx); err != nil {
		return nil, toStatus("mark all read", err)
	}
	if s.db != nil {
		if err := s.db.MarkAllNotificationsRead(ctx); err != nil {
			s.logger.Warn("failed to cache read marks", zap.Error(err))
		}
	}
	return &rpc.MarkReadResponse{Unread: s.notes.Snapshot().Unread}, nil
}

// Watch sends the full list after every change.
func (s *NotificationService) Watch(_ *rpc.WatchRequest, stream rpc.EventStream) error {
	return forward(stream, s.bus, s.session, bus.KindNotificationsChanged, func(bus.Event) (any, bool) {
		snap := s.notes.Snapshot()
		return rpc.ListNotificationsResponse{Items: snap.Items, Unread: snap.Unread}, true
	})
}
