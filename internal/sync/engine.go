// Package sync keeps the in-memory stores, the sqlite cache and the backend
// in step.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/feed"
	"github.com/matheus3301/tradechat/internal/message"
	"github.com/matheus3301/tradechat/internal/metrics"
	"github.com/matheus3301/tradechat/internal/notify"
	"github.com/matheus3301/tradechat/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Remote is the part of the backend the engine reads from.
type Remote interface {
	ListChatUsers(ctx context.Context) ([]directory.ChatUser, error)
	ListMessages(ctx context.Context, chatID string) ([]*message.Message, error)
	ListNotifications(ctx context.Context) ([]notify.Notification, error)
}

// MessageRef identifies a stored message in bus payloads.
type MessageRef struct {
	ChatID string
	MsgID  string
}

// Engine applies push events to the Chat Directory Model and the
// Notification Store, and mirrors both into the cache.
// It subscribes to "push.*" events on the bus.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	dir    *directory.Model
	notes  *notify.Store
	remote Remote
	logger *zap.Logger

	subs     bus.Group
	cancel   context.CancelFunc
	done     chan struct{}
	hydrated atomic.Bool

	usersDirty chan struct{}
	notesDirty chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, dir *directory.Model, notes *notify.Store, remote Remote, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:         db,
		bus:        b,
		dir:        dir,
		notes:      notes,
		remote:     remote,
		logger:     logger,
		usersDirty: make(chan struct{}, 1),
		notesDirty: make(chan struct{}, 1),
	}
}

// Start subscribes to push events and store changes.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("push.", 256)
	e.subs.Add(unsub)

	e.subs.Add(e.notes.Subscribe(func(snap notify.Snapshot) {
		metrics.UnreadNotifications.Set(float64(snap.Unread))
		e.bus.Publish(bus.NewEvent(bus.KindNotificationsChanged, snap.Unread))
		mark(e.notesDirty)
	}))
	e.subs.Add(e.dir.Subscribe(func([]directory.ChatUser) {
		e.bus.Publish(bus.NewEvent(bus.KindDirectoryChanged, nil))
		mark(e.usersDirty)
	}))

	go func() {
		defer close(e.done)
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-e.usersDirty:
				e.persistUsers(ctx)
			case <-e.notesDirty:
				e.persistNotifications(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	e.subs.Close()
}

func mark(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Hydrate fetches the directory and notifications in parallel. When the
// backend is unreachable the stores are filled from the cache instead and
// the fetch error is returned.
func (e *Engine) Hydrate(ctx context.Context) error {
	var (
		users []directory.ChatUser
		notes []notify.Notification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = e.remote.ListChatUsers(gctx)
		if err != nil {
			return fmt.Errorf("list chat users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		notes, err = e.remote.ListNotifications(gctx)
		if err != nil {
			return fmt.Errorf("list notifications: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if cacheErr := e.LoadCache(ctx); cacheErr != nil {
			return errors.Join(err, cacheErr)
		}
		return err
	}

	e.dir.Replace(users)
	if err := e.restoreLocal(ctx, users); err != nil {
		e.logger.Warn("failed to restore cached history", zap.Error(err))
	}
	e.notes.Replace(notes)
	e.hydrated.Store(true)
	mark(e.usersDirty)
	mark(e.notesDirty)
	if err := e.db.TouchHydrate(ctx, time.Now()); err != nil {
		e.logger.Warn("failed to record hydrate time", zap.Error(err))
	}
	e.logger.Info("hydrated from backend", zap.Int("users", len(users)), zap.Int("notifications", len(notes)))
	return nil
}

// LoadCache fills the stores from the sqlite cache.
func (e *Engine) LoadCache(ctx context.Context) error {
	users, err := e.db.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("load cached users: %w", err)
	}
	notes, err := e.db.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("load cached notifications: %w", err)
	}
	e.dir.Replace(users)
	if err := e.restoreLocal(ctx, users); err != nil {
		return err
	}
	e.notes.Replace(notes)
	e.hydrated.Store(true)
	e.logger.Info("loaded cached state", zap.Int("users", len(users)), zap.Int("notifications", len(notes)))
	return nil
}

// restoreLocal loads the cached history and pins of each chat. Pins and
// reactions exist only on this client, so the cache is their one source.
func (e *Engine) restoreLocal(ctx context.Context, users []directory.ChatUser) error {
	for _, u := range users {
		if len(e.dir.Messages(u.ID)) > 0 {
			continue
		}
		if err := e.loadCachedHistory(ctx, u.ID); err != nil {
			return err
		}
		pins, err := e.db.ListPins(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("load cached pins: %w", err)
		}
		for _, p := range pins {
			if err := e.dir.Pin(p.ConversationID, p.MessageID, p.PinnedBy, p.PinnedAt); err != nil {
				e.logger.Debug("skipping cached pin", zap.Error(err))
			}
		}
	}
	return nil
}

// LoadHistory fetches a chat's messages, falling back to the cache when the
// backend is unreachable.
func (e *Engine) LoadHistory(ctx context.Context, chatID string) error {
	msgs, err := e.remote.ListMessages(ctx, chatID)
	if err != nil {
		e.logger.Warn("history fetch failed, using cache", zap.String("chat_id", chatID), zap.Error(err))
		return e.loadCachedHistory(ctx, chatID)
	}
	if err := e.dir.SetHistory(chatID, msgs); err != nil {
		return err
	}
	if err := e.syncPins(ctx, chatID); err != nil {
		return err
	}
	// Cache the merged copies so local reactions and pins are not lost.
	for _, m := range e.dir.Messages(chatID) {
		if err := e.db.UpsertMessage(ctx, m); err != nil {
			return fmt.Errorf("cache message: %w", err)
		}
	}
	return nil
}

// syncPins reapplies the cached pins of a chat to a freshly fetched history
// and forgets the ones whose message is gone.
func (e *Engine) syncPins(ctx context.Context, chatID string) error {
	cached, err := e.db.ListPins(ctx, chatID)
	if err != nil {
		return fmt.Errorf("list cached pins: %w", err)
	}
	for _, p := range cached {
		err := e.dir.Pin(chatID, p.MessageID, p.PinnedBy, p.PinnedAt)
		if errors.Is(err, directory.ErrMessageNotFound) {
			if err := e.db.DeletePin(ctx, chatID, p.MessageID); err != nil {
				return fmt.Errorf("delete cached pin: %w", err)
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadCachedHistory(ctx context.Context, chatID string) error {
	msgs, err := e.db.ListMessages(ctx, chatID, time.Time{}, 500)
	if err != nil {
		return fmt.Errorf("load cached history: %w", err)
	}
	return e.dir.SetHistory(chatID, msgs)
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindPushNotification:
		n, ok := evt.Payload.(notify.Notification)
		if !ok {
			return
		}
		e.notes.Upsert(n)
		metrics.NotificationsReceived.Inc()

	case bus.KindPushMessage:
		msg, ok := evt.Payload.(*message.Message)
		if !ok {
			return
		}
		if err := e.IngestMessage(ctx, msg); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", msg.ID))
		}

	case bus.KindPushPresence:
		p, ok := evt.Payload.(feed.Presence)
		if !ok {
			return
		}
		if !e.dir.UpdatePresence(p.UserID, p.Online, p.LastSeen) {
			e.logger.Debug("presence for unknown user", zap.String("user_id", p.UserID))
		}

	case bus.KindPushChatRead:
		r, ok := evt.Payload.(feed.ChatRead)
		if !ok {
			return
		}
		if e.dir.MarkChatRead(r.ChatID) {
			if err := e.db.MarkChatRead(ctx, r.ChatID); err != nil {
				e.logger.Warn("failed to cache chat read", zap.Error(err), zap.String("chat_id", r.ChatID))
			}
		}
	}
}

// IngestMessage adds a message to the directory and the cache. A message for
// a chat the directory does not know yet triggers a directory refresh.
func (e *Engine) IngestMessage(ctx context.Context, msg *message.Message) error {
	err := e.dir.AppendMessage(msg)
	if errors.Is(err, directory.ErrChatNotFound) {
		if rerr := e.RefreshDirectory(ctx); rerr != nil {
			return fmt.Errorf("refresh directory for %s: %w", msg.ChatID, rerr)
		}
		err = e.dir.AppendMessage(msg)
	}
	if err != nil {
		return err
	}

	// The directory row must exist before the message row.
	if u, ok := e.dir.GetUserByID(msg.ChatID); ok {
		if err := e.db.UpsertUser(ctx, &u); err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
	}
	stored, ok := e.dir.Message(msg.ChatID, msg.ID)
	if !ok {
		stored = msg
	}
	if err := e.db.UpsertMessage(ctx, stored); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	metrics.MessagesIngested.WithLabelValues(string(msg.Type())).Inc()

	e.bus.Publish(bus.NewEvent(bus.KindMessageUpserted, MessageRef{ChatID: msg.ChatID, MsgID: msg.ID}))
	return nil
}

// RefreshDirectory refetches the chat list.
func (e *Engine) RefreshDirectory(ctx context.Context) error {
	users, err := e.remote.ListChatUsers(ctx)
	if err != nil {
		return err
	}
	e.dir.Replace(users)
	e.hydrated.Store(true)
	return nil
}

func (e *Engine) persistUsers(ctx context.Context) {
	if !e.hydrated.Load() {
		return
	}
	if err := e.db.ReplaceUsers(ctx, e.dir.Users()); err != nil {
		e.logger.Warn("failed to cache directory", zap.Error(err))
	}
}

func (e *Engine) persistNotifications(ctx context.Context) {
	if !e.hydrated.Load() {
		return
	}
	if err := e.db.ReplaceNotifications(ctx, e.notes.Snapshot().Items); err != nil {
		e.logger.Warn("failed to cache notifications", zap.Error(err))
	}
}

// Flush writes the current store state to the cache synchronously.
func (e *Engine) Flush(ctx context.Context) {
	e.persistUsers(ctx)
	e.persistNotifications(ctx)
}
