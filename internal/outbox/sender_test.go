package outbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/message"
	"github.com/matheus3301/tradechat/internal/store"
	"go.uber.org/zap"
)

// mockSender records calls and returns configurable results.
type mockSender struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
	delay time.Duration // artificial delay to observe intermediate states
}

type sendCall struct {
	ChatID      string
	ClientMsgID string
	Text        string
}

func (m *mockSender) SendText(_ context.Context, chatID, clientMsgID, text string) (*message.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, sendCall{ChatID: chatID, ClientMsgID: clientMsgID, Text: text})
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &message.Message{
		ID:        "server-" + clientMsgID,
		ChatID:    chatID,
		SenderID:  "me",
		Timestamp: time.Now(),
		Payload:   &message.Text{Body: text},
	}, nil
}

func (m *mockSender) snapshot() []sendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sendCall(nil), m.calls...)
}

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

func setup(t *testing.T, mock *mockSender) (*Sender, *store.DB, *directory.Model, *bus.Bus) {
	t.Helper()
	db := testDB(t)
	dir := directory.NewModel("me")
	dir.Replace([]directory.ChatUser{{ID: "alice", Name: "Alice"}})
	if err := db.UpsertUser(context.Background(), &directory.ChatUser{ID: "alice", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	return NewSender(db, mock, dir, b, logger), db, dir, b
}

func waitEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
		return bus.Event{}
	}
}

func TestEnqueueValidates(t *testing.T) {
	s, _, _, _ := setup(t, &mockSender{})
	ctx := context.Background()

	if _, err := s.Enqueue(ctx, "alice", "   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank text error = %v, want ErrEmptyText", err)
	}
	if _, err := s.Enqueue(ctx, "nobody", "hi"); !errors.Is(err, directory.ErrChatNotFound) {
		t.Errorf("unknown chat error = %v, want ErrChatNotFound", err)
	}
	id, err := s.Enqueue(ctx, "alice", "hi")
	if err != nil || id == "" {
		t.Fatalf("Enqueue() = %q, %v", id, err)
	}
}

func TestEnqueueAdminsOnlyGroup(t *testing.T) {
	s, db, dir, _ := setup(t, &mockSender{})
	ctx := context.Background()
	desk := directory.ChatUser{ID: "desk", IsGroup: true, Settings: directory.GroupSettings{OnlyAdminsCanPost: true}}
	dir.Replace([]directory.ChatUser{{ID: "alice"}, desk})

	if _, err := s.Enqueue(ctx, "desk", "bid 25k"); !errors.Is(err, directory.ErrPostNotAllowed) {
		t.Errorf("member error = %v, want ErrPostNotAllowed", err)
	}
	pending, err := db.PendingOutbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("rejected text was queued: %v", pending)
	}

	desk.IsAdmin = true
	dir.Replace([]directory.ChatUser{{ID: "alice"}, desk})
	if _, err := s.Enqueue(ctx, "desk", "bid 25k"); err != nil {
		t.Errorf("admin Enqueue() error = %v", err)
	}
}

func TestSenderProcessesPendingMessages(t *testing.T) {
	mock := &mockSender{}
	s, db, dir, b := setup(t, mock)

	ch, unsub := b.Subscribe(bus.KindMessageSendAck, 10)
	defer unsub()

	s.Start(context.Background())
	defer s.Stop()

	ctx := context.Background()
	clientID, err := s.Enqueue(ctx, "alice", "hello")
	if err != nil {
		t.Fatal(err)
	}

	evt := waitEvent(t, ch)
	ack, ok := evt.Payload.(SendAck)
	if !ok || ack.ClientMsgID != clientID || ack.ServerMsgID != "server-"+clientID {
		t.Fatalf("ack = %+v", evt.Payload)
	}

	calls := mock.snapshot()
	if len(calls) != 1 {
		t.Fatalf("got %d send calls, want 1", len(calls))
	}
	if calls[0].ChatID != "alice" || calls[0].Text != "hello" {
		t.Errorf("call = %+v, want {alice, hello}", calls[0])
	}

	pending, err := db.PendingOutbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 after send", len(pending))
	}

	msgs := dir.Messages("alice")
	if len(msgs) != 1 || msgs[0].ID != ack.ServerMsgID {
		t.Errorf("directory history = %v, want only the acknowledged copy", msgs)
	}
	cached, err := db.ListMessages(ctx, "alice", time.Time{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 1 || cached[0].ID != ack.ServerMsgID {
		t.Errorf("cached history = %d messages", len(cached))
	}
}

func TestSenderHandlesFailure(t *testing.T) {
	mock := &mockSender{err: fmt.Errorf("network error")}
	s, db, dir, b := setup(t, mock)

	ch, unsub := b.Subscribe(bus.KindMessageSendFailed, 10)
	defer unsub()

	ctx := context.Background()
	if err := db.QueueOutbox(ctx, "c1", "alice", "hello"); err != nil {
		t.Fatal(err)
	}

	s.Start(ctx)
	defer s.Stop()

	evt := waitEvent(t, ch)
	failure, ok := evt.Payload.(SendFailure)
	if !ok || failure.ClientMsgID != "c1" || failure.Error != "network error" {
		t.Errorf("failure = %+v", evt.Payload)
	}

	pending, err := db.PendingOutbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 (should be marked failed)", len(pending))
	}
	e, err := db.GetOutbox(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != store.OutboxFailed || e.ErrorMessage != "network error" {
		t.Errorf("entry = %+v", e)
	}
	if n := len(dir.Messages("alice")); n != 0 {
		t.Errorf("optimistic message left behind: %d", n)
	}
}

// TestSenderOptimisticInsert verifies the message is visible in the
// directory while the backend call is still in flight.
func TestSenderOptimisticInsert(t *testing.T) {
	mock := &mockSender{delay: 500 * time.Millisecond}
	s, db, dir, b := setup(t, mock)

	ctx := context.Background()
	if err := db.QueueOutbox(ctx, "c1", "alice", "optimistic"); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe(bus.KindMessageUpserted, 10)
	defer unsub()

	s.Start(ctx)
	defer s.Stop()

	evt := waitEvent(t, ch)
	if m, ok := evt.Payload.(*message.Message); !ok || m.ID != "c1" {
		t.Fatalf("upserted payload = %+v", evt.Payload)
	}

	msgs := dir.Messages("alice")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (optimistic insert)", len(msgs))
	}
	if msgs[0].ID != "c1" || msgs[0].SenderID != "me" || msgs[0].Preview() != "optimistic" {
		t.Errorf("optimistic message = %+v", msgs[0])
	}
	u, _ := dir.GetUserByID("alice")
	if u.UnreadCount != 0 {
		t.Errorf("own message bumped unread to %d", u.UnreadCount)
	}
}

func TestStartRequeuesInterruptedSends(t *testing.T) {
	mock := &mockSender{}
	s, db, _, b := setup(t, mock)
	ctx := context.Background()

	if err := db.QueueOutbox(ctx, "c1", "alice", "left over"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSending(ctx, "c1"); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe(bus.KindMessageSendAck, 10)
	defer unsub()

	s.Start(ctx)
	defer s.Stop()

	waitEvent(t, ch)
	if calls := mock.snapshot(); len(calls) != 1 || calls[0].ClientMsgID != "c1" {
		t.Errorf("calls = %+v", calls)
	}
}
