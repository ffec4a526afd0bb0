package api

import (
	"context"
	"time"

	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/notify"
	"github.com/matheus3301/tradechat/internal/rpc"
	"github.com/matheus3301/tradechat/internal/status"
	"github.com/matheus3301/tradechat/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Hydrator reloads the stores from the backend.
type Hydrator interface {
	Hydrate(ctx context.Context) error
}

// SessionInfo identifies the daemon's session.
type SessionInfo struct {
	Name    string
	APIBase string
	FeedURL string
}

// SessionService implements rpc.SessionServer.
type SessionService struct {
	info      SessionInfo
	startedAt time.Time
	machine   *status.Machine
	bus       *bus.Bus
	dir       *directory.Model
	notes     *notify.Store
	db        *store.DB
	hydrator  Hydrator
	logger    *zap.Logger
}

// NewSessionService creates a new session service. db and hydrator may be nil.
func NewSessionService(info SessionInfo, machine *status.Machine, b *bus.Bus, dir *directory.Model, notes *notify.Store, db *store.DB, hydrator Hydrator, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		info:      info,
		startedAt: time.Now(),
		machine:   machine,
		bus:       b,
		dir:       dir,
		notes:     notes,
		db:        db,
		hydrator:  hydrator,
		logger:    logger,
	}
}

func (s *SessionService) GetStatus(ctx context.Context, _ *rpc.StatusRequest) (*rpc.StatusResponse, error) {
	resp := &rpc.StatusResponse{
		Session:   s.info.Name,
		UserID:    s.dir.Self(),
		Status:    string(s.machine.Current()),
		Reason:    s.machine.Reason(),
		APIBase:   s.info.APIBase,
		FeedURL:   s.info.FeedURL,
		UptimeMs:  time.Since(s.startedAt).Milliseconds(),
		ChatCount: len(s.dir.Users()),
		Unread:    s.notes.Snapshot().Unread,
	}
	if s.db != nil {
		if last, err := s.db.LastHydrate(ctx); err == nil {
			resp.LastHydrate = last
		}
	}
	return resp, nil
}

func (s *SessionService) Refresh(ctx context.Context, _ *rpc.RefreshRequest) (*rpc.RefreshResponse, error) {
	if s.hydrator == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "backend not configured")
	}
	if err := s.hydrator.Hydrate(ctx); err != nil {
		s.logger.Warn("refresh failed", zap.Error(err))
		return nil, toStatus("refresh", err)
	}
	return &rpc.RefreshResponse{
		ChatCount:    len(s.dir.Users()),
		Notification: len(s.notes.Snapshot().Items),
	}, nil
}

func (s *SessionService) Watch(_ *rpc.WatchRequest, stream rpc.EventStream) error {
	return forward(stream, s.bus, s.info.Name, "feed.", func(evt bus.Event) (any, bool) {
		c, ok := evt.Payload.(status.StatusChange)
		if !ok {
			return nil, false
		}
		return rpc.StatusChange{From: string(c.From), To: string(c.To), Reason: c.Reason}, true
	})
}
