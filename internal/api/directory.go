package api

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/rpc"
	"github.com/matheus3301/tradechat/internal/store"
	intsync "github.com/matheus3301/tradechat/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const defaultPageSize = 50

// HistoryLoader fills a chat's history in the directory.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, chatID string) error
}

// Enqueuer queues outgoing text.
type Enqueuer interface {
	Enqueue(ctx context.Context, chatID, text string) (string, error)
}

// DirectoryService implements rpc.DirectoryServer on top of the Chat
// Directory Model.
type DirectoryService struct {
	dir     *directory.Model
	db      *store.DB
	history HistoryLoader
	sender  Enqueuer
	bus     *bus.Bus
	session string
	logger  *zap.Logger
	now     func() time.Time
}

// NewDirectoryService creates a new directory service.
func NewDirectoryService(dir *directory.Model, db *store.DB, history HistoryLoader, sender Enqueuer, b *bus.Bus, session string, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{
		dir:     dir,
		db:      db,
		history: history,
		sender:  sender,
		bus:     b,
		session: session,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *DirectoryService) ListChats(context.Context, *rpc.ListChatsRequest) (*rpc.ListChatsResponse, error) {
	return &rpc.ListChatsResponse{Users: s.dir.Users()}, nil
}

// OpenChat selects a conversation, loads its history and clears its unread
// marker.
func (s *DirectoryService) OpenChat(ctx context.Context, req *rpc.OpenChatRequest) (*rpc.OpenChatResponse, error) {
	if !s.dir.SelectUser(req.ChatID) {
		return nil, grpcstatus.Errorf(codes.NotFound, "chat %q not found", req.ChatID)
	}
	if s.history != nil {
		if err := s.history.LoadHistory(ctx, req.ChatID); err != nil {
			s.logger.Warn("load history failed", zap.String("chat_id", req.ChatID), zap.Error(err))
		}
	}
	if s.dir.MarkChatRead(req.ChatID) && s.db != nil {
		if err := s.db.MarkChatRead(ctx, req.ChatID); err != nil {
			s.logger.Warn("failed to cache chat read", zap.String("chat_id", req.ChatID), zap.Error(err))
		}
	}

	u, _ := s.dir.GetUserByID(req.ChatID)
	return &rpc.OpenChatResponse{
		User:     u,
		Messages: s.dir.Messages(req.ChatID),
		Pinned:   s.dir.Pinned(req.ChatID),
	}, nil
}

// ListMessages pages through the cached history, oldest first within the
// page.
func (s *DirectoryService) ListMessages(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error) {
	if _, ok := s.dir.GetUserByID(req.ChatID); !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "chat %q not found", req.ChatID)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if s.db == nil {
		msgs := s.dir.Messages(req.ChatID)
		if len(msgs) > limit {
			msgs = msgs[len(msgs)-limit:]
		}
		return &rpc.ListMessagesResponse{Messages: msgs}, nil
	}

	msgs, err := s.db.ListMessages(ctx, req.ChatID, req.Before, limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list messages: %v", err)
	}
	slices.Reverse(msgs)
	return &rpc.ListMessagesResponse{Messages: msgs}, nil
}

func (s *DirectoryService) SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendTextResponse, error) {
	if s.sender == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "sending is not configured")
	}
	if chat, ok := s.dir.GetUserByID(req.ChatID); ok && !chat.CanPost() {
		return nil, toStatus("send text", fmt.Errorf("%w: %s", directory.ErrPostNotAllowed, req.ChatID))
	}
	id, err := s.sender.Enqueue(ctx, req.ChatID, req.Text)
	if err != nil {
		return nil, toStatus("send text", err)
	}
	return &rpc.SendTextResponse{ClientMsgID: id, Accepted: true}, nil
}

func (s *DirectoryService) Pin(ctx context.Context, req *rpc.PinRequest) (*rpc.PinResponse, error) {
	if req.Unpin {
		if s.dir.Unpin(req.ChatID, req.MsgID) && s.db != nil {
			if err := s.db.DeletePin(ctx, req.ChatID, req.MsgID); err != nil {
				return nil, grpcstatus.Errorf(codes.Internal, "delete pin: %v", err)
			}
		}
	} else {
		at := s.now()
		if err := s.dir.Pin(req.ChatID, req.MsgID, s.dir.Self(), at); err != nil {
			return nil, toStatus("pin", err)
		}
		if s.db != nil {
			p := directory.PinnedMessage{MessageID: req.MsgID, ConversationID: req.ChatID, PinnedBy: s.dir.Self(), PinnedAt: at}
			if err := s.db.UpsertPin(ctx, p); err != nil {
				s.logger.Warn("failed to cache pin", zap.Error(err))
			}
		}
	}
	s.publishMessage(req.ChatID, req.MsgID)
	return &rpc.PinResponse{Pinned: s.dir.Pinned(req.ChatID)}, nil
}

func (s *DirectoryService) React(ctx context.Context, req *rpc.ReactRequest) (*rpc.ReactResponse, error) {
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "reaction symbol is required")
	}

	var (
		changed bool
		err     error
	)
	if req.Remove {
		changed, err = s.dir.Unreact(req.ChatID, req.MsgID, symbol, s.dir.Self())
	} else {
		changed, err = s.dir.React(req.ChatID, req.MsgID, symbol, s.dir.Self())
	}
	if err != nil {
		return nil, toStatus("react", err)
	}
	if !changed {
		return &rpc.ReactResponse{}, nil
	}

	if msg, ok := s.dir.Message(req.ChatID, req.MsgID); ok && s.db != nil {
		if err := s.db.UpsertMessage(ctx, msg); err != nil {
			s.logger.Warn("failed to cache reaction", zap.Error(err))
		}
	}
	s.publishMessage(req.ChatID, req.MsgID)
	return &rpc.ReactResponse{Changed: true}, nil
}

func (s *DirectoryService) Shared(_ context.Context, req *rpc.SharedRequest) (*rpc.SharedResponse, error) {
	if _, ok := s.dir.GetUserByID(req.ChatID); !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "chat %q not found", req.ChatID)
	}
	return &rpc.SharedResponse{Shared: s.dir.SharedContent(req.ChatID)}, nil
}

// Watch streams directory and message events. Directory changes carry the
// full entry list.
func (s *DirectoryService) Watch(_ *rpc.WatchRequest, stream rpc.EventStream) error {
	return forward(stream, s.bus, s.session, "", func(evt bus.Event) (any, bool) {
		switch {
		case evt.Kind == bus.KindDirectoryChanged:
			return s.dir.Users(), true
		case strings.HasPrefix(evt.Kind, "message."):
			return evt.Payload, true
		}
		return nil, false
	})
}

func (s *DirectoryService) publishMessage(chatID, msgID string) {
	if s.bus != nil {
		s.bus.Publish(bus.NewEvent(bus.KindMessageUpserted, intsync.MessageRef{ChatID: chatID, MsgID: msgID}))
	}
}
