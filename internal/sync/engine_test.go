package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/feed"
	"github.com/matheus3301/tradechat/internal/message"
	"github.com/matheus3301/tradechat/internal/notify"
	"github.com/matheus3301/tradechat/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(nil); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeRemote struct {
	users   []directory.ChatUser
	history map[string][]*message.Message
	notes   []notify.Notification
	err     error
	calls   int
}

func (f *fakeRemote) ListChatUsers(context.Context) ([]directory.ChatUser, error) {
	f.calls++
	return f.users, f.err
}

func (f *fakeRemote) ListMessages(_ context.Context, chatID string) ([]*message.Message, error) {
	return f.history[chatID], f.err
}

func (f *fakeRemote) ListNotifications(context.Context) ([]notify.Notification, error) {
	return f.notes, f.err
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func text(chatID, id, sender, body string, at time.Time) *message.Message {
	return &message.Message{ID: id, ChatID: chatID, SenderID: sender, Timestamp: at, Payload: &message.Text{Body: body}}
}

type harness struct {
	db     *store.DB
	bus    *bus.Bus
	dir    *directory.Model
	notes  *notify.Store
	remote *fakeRemote
	engine *Engine
}

func newHarness(t *testing.T, remote *fakeRemote) *harness {
	t.Helper()
	h := &harness{
		db:     testDB(t),
		bus:    bus.New(),
		dir:    directory.NewModel("me"),
		notes:  notify.NewStore(),
		remote: remote,
	}
	h.engine = NewEngine(h.db, h.bus, h.dir, h.notes, remote, nil)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.engine.Start(context.Background())
	t.Cleanup(h.engine.Stop)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHydrate(t *testing.T) {
	h := newHarness(t, &fakeRemote{
		users: []directory.ChatUser{{ID: "alice", Name: "Alice", LastMessageAt: t0}, {ID: "bob", Name: "Bob"}},
		notes: []notify.Notification{{ID: "n1", ConversationID: "alice", Timestamp: t0}},
	})
	h.start(t)

	if err := h.engine.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if len(h.dir.Users()) != 2 {
		t.Errorf("directory has %d users, want 2", len(h.dir.Users()))
	}
	if got := h.notes.Snapshot().Unread; got != 1 {
		t.Errorf("unread = %d, want 1", got)
	}

	ctx := context.Background()
	waitFor(t, func() bool {
		users, _ := h.db.ListUsers(ctx)
		notes, _ := h.db.ListNotifications(ctx)
		return len(users) == 2 && len(notes) == 1
	})
	last, err := h.db.LastHydrate(ctx)
	if err != nil || last.IsZero() {
		t.Errorf("LastHydrate() = %v, %v", last, err)
	}
}

func TestHydrateFallsBackToCache(t *testing.T) {
	h := newHarness(t, &fakeRemote{err: errors.New("connection refused")})
	ctx := context.Background()

	if err := h.db.UpsertUser(ctx, &directory.ChatUser{ID: "alice", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertMessage(ctx, text("alice", "m1", "alice", "cached", t0)); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertPin(ctx, directory.PinnedMessage{ConversationID: "alice", MessageID: "m1", PinnedBy: "me", PinnedAt: t0}); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertNotification(ctx, &notify.Notification{ID: "n1", ConversationID: "alice", Timestamp: t0}); err != nil {
		t.Fatal(err)
	}

	err := h.engine.Hydrate(ctx)
	if err == nil {
		t.Fatal("Hydrate() should report the backend error")
	}
	if _, ok := h.dir.GetUserByID("alice"); !ok {
		t.Error("cached user not loaded")
	}
	if msgs := h.dir.Messages("alice"); len(msgs) != 1 || !msgs[0].IsPinned {
		t.Errorf("cached history = %v", msgs)
	}
	if len(h.dir.Pinned("alice")) != 1 {
		t.Error("cached pin not restored")
	}
	if h.notes.Snapshot().Unread != 1 {
		t.Error("cached notification not loaded")
	}
}

func TestPushNotification(t *testing.T) {
	h := newHarness(t, &fakeRemote{})
	h.start(t)

	ch, unsub := h.bus.Subscribe("notify.", 16)
	defer unsub()

	h.bus.Publish(bus.NewEvent(bus.KindPushNotification, notify.Notification{ID: "n1", ConversationID: "c1", Timestamp: t0}))

	waitFor(t, func() bool { return h.notes.Snapshot().Unread == 1 })

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindNotificationsChanged {
			t.Errorf("event kind = %q", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notify.changed")
	}
}

func TestIngestMessage(t *testing.T) {
	h := newHarness(t, &fakeRemote{})
	h.dir.Replace([]directory.ChatUser{{ID: "alice"}})
	h.start(t)

	ch, unsub := h.bus.Subscribe("message.", 10)
	defer unsub()

	ctx := context.Background()
	if err := h.engine.IngestMessage(ctx, text("alice", "m1", "alice", "hello", t0)); err != nil {
		t.Fatal(err)
	}

	u, _ := h.dir.GetUserByID("alice")
	if u.UnreadCount != 1 || u.LastMessage != "hello" {
		t.Errorf("user = %+v", u)
	}
	msgs, err := h.db.ListMessages(ctx, "alice", time.Time{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("cached %d messages, want 1", len(msgs))
	}

	select {
	case evt := <-ch:
		ref, ok := evt.Payload.(MessageRef)
		if evt.Kind != bus.KindMessageUpserted || !ok || ref.MsgID != "m1" {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.upserted event")
	}
}

func TestIngestMessageIdempotent(t *testing.T) {
	h := newHarness(t, &fakeRemote{})
	h.dir.Replace([]directory.ChatUser{{ID: "alice"}})
	ctx := context.Background()

	for range 2 {
		if err := h.engine.IngestMessage(ctx, text("alice", "m1", "alice", "hello", t0)); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(h.dir.Messages("alice")); n != 1 {
		t.Errorf("directory has %d messages, want 1", n)
	}
	u, _ := h.dir.GetUserByID("alice")
	if u.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1 (duplicate counted)", u.UnreadCount)
	}
}

func TestIngestMessageUnknownChatRefreshes(t *testing.T) {
	remote := &fakeRemote{users: []directory.ChatUser{{ID: "newcomer"}}}
	h := newHarness(t, remote)

	if err := h.engine.IngestMessage(context.Background(), text("newcomer", "m1", "newcomer", "hi", t0)); err != nil {
		t.Fatalf("IngestMessage() error = %v", err)
	}
	if remote.calls != 1 {
		t.Errorf("directory fetched %d times, want 1", remote.calls)
	}
	if len(h.dir.Messages("newcomer")) != 1 {
		t.Error("message not appended after refresh")
	}

	remote.users = nil
	err := h.engine.IngestMessage(context.Background(), text("ghost", "m2", "ghost", "boo", t0))
	if !errors.Is(err, directory.ErrChatNotFound) {
		t.Errorf("error = %v, want ErrChatNotFound", err)
	}
}

func TestPushPresenceAndChatRead(t *testing.T) {
	h := newHarness(t, &fakeRemote{})
	h.dir.Replace([]directory.ChatUser{{ID: "alice", UnreadCount: 4}})
	if err := h.db.UpsertUser(context.Background(), &directory.ChatUser{ID: "alice", UnreadCount: 4}); err != nil {
		t.Fatal(err)
	}
	h.start(t)

	h.bus.Publish(bus.NewEvent(bus.KindPushPresence, feed.Presence{UserID: "alice", Online: true, LastSeen: t0}))
	h.bus.Publish(bus.NewEvent(bus.KindPushChatRead, feed.ChatRead{ChatID: "alice"}))

	waitFor(t, func() bool {
		u, _ := h.dir.GetUserByID("alice")
		return u.IsOnline && u.UnreadCount == 0
	})
	waitFor(t, func() bool {
		u, _ := h.db.GetUser(context.Background(), "alice")
		return u != nil && u.UnreadCount == 0
	})
}

func TestLoadHistory(t *testing.T) {
	remote := &fakeRemote{history: map[string][]*message.Message{
		"alice": {text("alice", "m2", "me", "second", t0.Add(time.Minute)), text("alice", "m1", "alice", "first", t0)},
	}}
	h := newHarness(t, remote)
	h.dir.Replace([]directory.ChatUser{{ID: "alice"}})
	ctx := context.Background()
	if err := h.db.UpsertUser(ctx, &directory.ChatUser{ID: "alice"}); err != nil {
		t.Fatal(err)
	}

	if err := h.engine.LoadHistory(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	msgs := h.dir.Messages("alice")
	if len(msgs) != 2 || msgs[0].ID != "m1" {
		t.Fatalf("history = %v", msgs)
	}

	// Offline: the cache serves the same history.
	remote.err = errors.New("offline")
	h.dir.Replace(nil)
	h.dir.Replace([]directory.ChatUser{{ID: "alice"}})
	if err := h.engine.LoadHistory(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if len(h.dir.Messages("alice")) != 2 {
		t.Error("cached history not used")
	}
}

func TestStopReleasesSubscriptions(t *testing.T) {
	h := newHarness(t, &fakeRemote{})
	h.engine.Start(context.Background())
	if h.bus.Len() != 1 {
		t.Fatalf("bus subscribers = %d, want 1", h.bus.Len())
	}
	h.engine.Stop()
	if h.bus.Len() != 0 {
		t.Errorf("bus subscribers after Stop = %d, want 0", h.bus.Len())
	}
}

func TestLocalReactionsAndPinsSurviveReload(t *testing.T) {
	remote := &fakeRemote{
		users: []directory.ChatUser{{ID: "alice", Name: "Alice"}},
		history: map[string][]*message.Message{
			"alice": {text("alice", "m1", "alice", "rate?", t0), text("alice", "m2", "alice", "25k", t0.Add(time.Minute))},
		},
	}
	h := newHarness(t, remote)
	ctx := context.Background()
	if err := h.engine.Hydrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertUser(ctx, &directory.ChatUser{ID: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.LoadHistory(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	// What the directory service does on React and Pin.
	if _, err := h.dir.React("alice", "m1", "👍", "me"); err != nil {
		t.Fatal(err)
	}
	msg, _ := h.dir.Message("alice", "m1")
	if err := h.db.UpsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if err := h.dir.Pin("alice", "m1", "me", t0); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertPin(ctx, directory.PinnedMessage{ConversationID: "alice", MessageID: "m1", PinnedBy: "me", PinnedAt: t0}); err != nil {
		t.Fatal(err)
	}

	// Reopen the chat with the backend up.
	if err := h.engine.LoadHistory(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	msg, _ = h.dir.Message("alice", "m1")
	if msg.Reactions.Count("👍") != 1 || !msg.IsPinned {
		t.Errorf("after reopen: reactions=%v isPinned=%v", msg.Reactions, msg.IsPinned)
	}
	if n := len(h.dir.Pinned("alice")); n != 1 {
		t.Errorf("after reopen: pins=%d, want 1", n)
	}
	cached, err := h.db.ListMessages(ctx, "alice", time.Time{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range cached {
		if m.ID == "m1" && m.Reactions.Count("👍") != 1 {
			t.Errorf("cache after reopen: reactions=%v", m.Reactions)
		}
	}

	// A redelivered push copy must not wipe them either.
	if err := h.engine.IngestMessage(ctx, text("alice", "m1", "alice", "rate?", t0)); err != nil {
		t.Fatal(err)
	}
	msg, _ = h.dir.Message("alice", "m1")
	if msg.Reactions.Count("👍") != 1 || !msg.IsPinned {
		t.Errorf("after redelivery: reactions=%v isPinned=%v", msg.Reactions, msg.IsPinned)
	}

	// Restart: a fresh engine over the same cache, backend reachable.
	dir := directory.NewModel("me")
	restarted := NewEngine(h.db, bus.New(), dir, notify.NewStore(), remote, nil)
	if err := restarted.Hydrate(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(dir.Pinned("alice")); n != 1 {
		t.Errorf("after restart: pins=%d, want 1", n)
	}
	msg, ok := dir.Message("alice", "m1")
	if !ok || msg.Reactions.Count("👍") != 1 || !msg.IsPinned {
		t.Errorf("after restart: message = %+v", msg)
	}
	if err := restarted.LoadHistory(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	msg, _ = dir.Message("alice", "m1")
	if msg.Reactions.Count("👍") != 1 || !msg.IsPinned {
		t.Errorf("after restart reopen: reactions=%v isPinned=%v", msg.Reactions, msg.IsPinned)
	}
}

func TestLoadHistoryForgetsPinsOfDeletedMessages(t *testing.T) {
	remote := &fakeRemote{history: map[string][]*message.Message{
		"alice": {text("alice", "m1", "alice", "hi", t0)},
	}}
	h := newHarness(t, remote)
	h.dir.Replace([]directory.ChatUser{{ID: "alice"}})
	ctx := context.Background()
	if err := h.db.UpsertUser(ctx, &directory.ChatUser{ID: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertMessage(ctx, text("alice", "gone", "alice", "deleted upstream", t0.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertPin(ctx, directory.PinnedMessage{ConversationID: "alice", MessageID: "gone", PinnedBy: "me", PinnedAt: t0}); err != nil {
		t.Fatal(err)
	}

	if err := h.engine.LoadHistory(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if n := len(h.dir.Pinned("alice")); n != 0 {
		t.Errorf("pins = %d, want 0", n)
	}
	pins, err := h.db.ListPins(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(pins) != 0 {
		t.Errorf("cached pins = %v, want none", pins)
	}
}
