package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/tradechat/internal/backend"
	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/contractlog"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/message"
	"github.com/matheus3301/tradechat/internal/notify"
	"github.com/matheus3301/tradechat/internal/outbox"
	"github.com/matheus3301/tradechat/internal/rpc"
	"github.com/matheus3301/tradechat/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// serve registers fn's services on an in-memory listener and returns a
// connection to it.
func serve(t *testing.T, register func(*grpc.Server)) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, b *bus.Bus, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for b.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("bus has %d subscribers, want %d", b.Len(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func code(err error) codes.Code {
	return grpcstatus.Code(err)
}

type fakeRemote struct {
	mu  sync.Mutex
	err error
}

func (f *fakeRemote) ListNotifications(context.Context) ([]notify.Notification, error) {
	return nil, nil
}

func (f *fakeRemote) MarkNotificationRead(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeRemote) MarkAllNotificationsRead(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeRemote) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestSessionStatus(t *testing.T) {
	b := bus.New()
	machine := status.NewMachine(b)
	dir := directory.NewModel("me")
	dir.Replace([]directory.ChatUser{{ID: "alice"}, {ID: "bob"}})
	notes := notify.NewStore()
	notes.Upsert(notify.Notification{ID: "n1", Timestamp: t0})

	svc := NewSessionService(SessionInfo{Name: "main", APIBase: "http://localhost:5000"}, machine, b, dir, notes, nil, nil, nil)
	conn := serve(t, func(s *grpc.Server) { rpc.RegisterSessionServer(s, svc) })
	client := rpc.NewSessionClient(conn)

	resp, err := client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", resp.Session)
	assert.Equal(t, string(status.Booting), resp.Status)
	assert.Equal(t, 2, resp.ChatCount)
	assert.Equal(t, 1, resp.Unread)

	_, err = client.Refresh(context.Background())
	assert.Equal(t, codes.Unavailable, code(err))

	require.NoError(t, machine.Transition(status.Connecting))
	resp, err = client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, string(status.Connecting), resp.Status)
}

func TestSessionWatch(t *testing.T) {
	b := bus.New()
	machine := status.NewMachine(b)
	svc := NewSessionService(SessionInfo{Name: "main"}, machine, b, directory.NewModel("me"), notify.NewStore(), nil, nil, nil)
	conn := serve(t, func(s *grpc.Server) { rpc.RegisterSessionServer(s, svc) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := rpc.NewSessionClient(conn).Watch(ctx)
	require.NoError(t, err)
	waitSubscribers(t, b, 1)

	require.NoError(t, machine.TransitionWith(status.Connecting, "dialing"))

	evt, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, bus.KindFeedStatusChanged, evt.Kind)
	assert.Equal(t, "main", evt.Session)
	assert.NotEmpty(t, evt.ID)

	var change rpc.StatusChange
	require.NoError(t, json.Unmarshal(evt.Payload, &change))
	assert.Equal(t, rpc.StatusChange{From: "BOOTING", To: "CONNECTING", Reason: "dialing"}, change)
}

func seedNotifications(store *notify.Store) {
	var items []notify.Notification
	for i := range 12 {
		items = append(items, notify.Notification{
			ID:             fmt.Sprintf("n%02d", i),
			ConversationID: "alice",
			Timestamp:      t0.Add(time.Duration(i) * time.Minute),
			Read:           i < 9,
		})
	}
	store.Replace(items)
}

func TestNotificationService(t *testing.T) {
	store := notify.NewStore()
	seedNotifications(store)
	remote := &fakeRemote{}
	svc := NewNotificationService(notify.NewService(store, remote, nil), nil, bus.New(), "main", nil)
	conn := serve(t, func(s *grpc.Server) { rpc.RegisterNotificationServer(s, svc) })
	client := rpc.NewNotificationClient(conn)
	ctx := context.Background()

	list, err := client.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list.Items, 10)
	assert.Equal(t, 3, list.Unread)
	assert.Equal(t, "n11", list.Items[0].ID)

	all, err := client.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all.Items, 12)

	marked, err := client.MarkRead(ctx, "n11")
	require.NoError(t, err)
	assert.Equal(t, 2, marked.Unread)

	_, err = client.MarkRead(ctx, "")
	assert.Equal(t, codes.InvalidArgument, code(err))

	remote.fail(errors.New("backend down"))
	_, err = client.MarkRead(ctx, "n10")
	assert.Equal(t, codes.Unavailable, code(err))
	assert.Equal(t, 2, store.Snapshot().Unread, "failed mark must leave the store untouched")

	remote.fail(nil)
	marked, err = client.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked.Unread)
}

func TestNotificationWatch(t *testing.T) {
	store := notify.NewStore()
	b := bus.New()
	svc := NewNotificationService(notify.NewService(store, &fakeRemote{}, nil), nil, b, "main", nil)
	conn := serve(t, func(s *grpc.Server) { rpc.RegisterNotificationServer(s, svc) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := rpc.NewNotificationClient(conn).Watch(ctx)
	require.NoError(t, err)
	waitSubscribers(t, b, 1)

	store.Upsert(notify.Notification{ID: "n1", ConversationID: "alice", Title: "Paid", Timestamp: t0})
	b.Publish(bus.NewEvent(bus.KindNotificationsChanged, 1))

	evt, err := stream.Recv()
	require.NoError(t, err)
	var got rpc.ListNotificationsResponse
	require.NoError(t, json.Unmarshal(evt.Payload, &got))
	assert.Equal(t, 1, got.Unread)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Paid", got.Items[0].Title)
}

type fakeHistory struct {
	dir *directory.Model
}

func (f *fakeHistory) LoadHistory(_ context.Context, chatID string) error {
	return f.dir.SetHistory(chatID, []*message.Message{
		{ID: "m1", ChatID: chatID, SenderID: chatID, Timestamp: t0, Payload: &message.Text{Body: "see https://example.com/offer"}},
		{ID: "m2", ChatID: chatID, SenderID: "me", Timestamp: t0.Add(time.Minute), IsRead: true, Payload: &message.Image{URL: "https://cdn.example.com/a.png"}},
	})
}

type fakeEnqueuer struct {
	chats map[string]bool
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, chatID, text string) (string, error) {
	if text == "" {
		return "", outbox.ErrEmptyText
	}
	if !f.chats[chatID] {
		return "", fmt.Errorf("enqueue: %w", directory.ErrChatNotFound)
	}
	return "client-1", nil
}

func newDirectoryClient(t *testing.T) (*rpc.DirectoryClient, *directory.Model, *bus.Bus) {
	t.Helper()
	dir := directory.NewModel("me")
	dir.Replace([]directory.ChatUser{{ID: "alice", Name: "Alice", UnreadCount: 2}})
	b := bus.New()
	svc := NewDirectoryService(dir, nil, &fakeHistory{dir: dir}, &fakeEnqueuer{chats: map[string]bool{"alice": true}}, b, "main", nil)
	conn := serve(t, func(s *grpc.Server) { rpc.RegisterDirectoryServer(s, svc) })
	return rpc.NewDirectoryClient(conn), dir, b
}

func TestDirectoryOpenChat(t *testing.T) {
	client, dir, _ := newDirectoryClient(t)
	ctx := context.Background()

	chats, err := client.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats.Users, 1)

	opened, err := client.OpenChat(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", opened.User.Name)
	assert.Zero(t, opened.User.UnreadCount)
	require.Len(t, opened.Messages, 2)
	assert.Equal(t, message.TypeImage, opened.Messages[1].Type())

	active, ok := dir.Active()
	assert.True(t, ok)
	assert.Equal(t, "alice", active.ID)

	_, err = client.OpenChat(ctx, "nobody")
	assert.Equal(t, codes.NotFound, code(err))

	page, err := client.ListMessages(ctx, &rpc.ListMessagesRequest{ChatID: "alice", Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "m2", page.Messages[0].ID)

	shared, err := client.Shared(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/offer"}, shared.Shared.Links)
	assert.Len(t, shared.Shared.Images, 1)
}

func TestDirectorySendText(t *testing.T) {
	client, _, _ := newDirectoryClient(t)
	ctx := context.Background()

	resp, err := client.SendText(ctx, "alice", "hello")
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "client-1", resp.ClientMsgID)

	_, err = client.SendText(ctx, "alice", "")
	assert.Equal(t, codes.InvalidArgument, code(err))

	_, err = client.SendText(ctx, "ghost", "hi")
	assert.Equal(t, codes.NotFound, code(err))
}

func TestDirectorySendTextAdminsOnly(t *testing.T) {
	dir := directory.NewModel("me")
	restricted := directory.GroupSettings{OnlyAdminsCanPost: true}
	dir.Replace([]directory.ChatUser{
		{ID: "desk", Name: "OTC Desk", IsGroup: true, Settings: restricted},
		{ID: "ops", Name: "Ops", IsGroup: true, Settings: restricted, IsAdmin: true},
		{ID: "open", Name: "Open room", IsGroup: true},
	})
	enq := &fakeEnqueuer{chats: map[string]bool{"desk": true, "ops": true, "open": true}}
	svc := NewDirectoryService(dir, nil, &fakeHistory{dir: dir}, enq, bus.New(), "main", nil)
	conn := serve(t, func(s *grpc.Server) { rpc.RegisterDirectoryServer(s, svc) })
	client := rpc.NewDirectoryClient(conn)
	ctx := context.Background()

	_, err := client.SendText(ctx, "desk", "bid 25k")
	assert.Equal(t, codes.PermissionDenied, code(err))

	_, err = client.SendText(ctx, "ops", "bid 25k")
	assert.NoError(t, err)
	_, err = client.SendText(ctx, "open", "bid 25k")
	assert.NoError(t, err)
}

func TestDirectoryPinAndReact(t *testing.T) {
	client, dir, b := newDirectoryClient(t)
	ctx := context.Background()
	_, err := client.OpenChat(ctx, "alice")
	require.NoError(t, err)

	events, unsub := b.Subscribe("message.", 8)
	defer unsub()

	pins, err := client.Pin(ctx, &rpc.PinRequest{ChatID: "alice", MsgID: "m1"})
	require.NoError(t, err)
	require.Len(t, pins.Pinned, 1)
	assert.Equal(t, "me", pins.Pinned[0].PinnedBy)

	_, err = client.Pin(ctx, &rpc.PinRequest{ChatID: "alice", MsgID: "missing"})
	assert.Equal(t, codes.NotFound, code(err))

	pins, err = client.Pin(ctx, &rpc.PinRequest{ChatID: "alice", MsgID: "m1", Unpin: true})
	require.NoError(t, err)
	assert.Empty(t, pins.Pinned)

	react, err := client.React(ctx, &rpc.ReactRequest{ChatID: "alice", MsgID: "m1", Symbol: "👍"})
	require.NoError(t, err)
	assert.True(t, react.Changed)
	react, err = client.React(ctx, &rpc.ReactRequest{ChatID: "alice", MsgID: "m1", Symbol: "👍"})
	require.NoError(t, err)
	assert.False(t, react.Changed)

	msg, ok := dir.Message("alice", "m1")
	require.True(t, ok)
	assert.Equal(t, 1, msg.Reactions.Count("👍"))

	_, err = client.React(ctx, &rpc.ReactRequest{ChatID: "alice", MsgID: "m1", Symbol: " "})
	assert.Equal(t, codes.InvalidArgument, code(err))

	select {
	case evt := <-events:
		assert.Equal(t, bus.KindMessageUpserted, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("no message.upserted event")
	}
}

func TestDirectoryWatch(t *testing.T) {
	client, dir, b := newDirectoryClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.Watch(ctx)
	require.NoError(t, err)
	waitSubscribers(t, b, 1)

	b.Publish(bus.NewEvent(bus.KindFeedStatusChanged, nil))
	dir.Replace([]directory.ChatUser{{ID: "alice"}, {ID: "bob"}})
	b.Publish(bus.NewEvent(bus.KindDirectoryChanged, nil))

	evt, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, bus.KindDirectoryChanged, evt.Kind)
	var users []directory.ChatUser
	require.NoError(t, json.Unmarshal(evt.Payload, &users))
	assert.Len(t, users, 2)
}

func TestContractLogService(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/SmartContractLog", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"eventType":"Bet","txHash":"0x1","blockNumber":7,"amount":2.5,"timestamp":"2026-03-01T10:00:00Z"}]`))
	})
	mux.HandleFunc("GET /api/SmartContractLog/address/{address}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /api/SmartContractLog/dailySummary", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"date":"2026-03-01T00:00:00Z","totalTransactions":4,"totalVolume":10,"betCount":1}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api, err := backend.New(backend.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	svc := NewContractLogService(contractlog.New(api))
	conn := serve(t, func(s *grpc.Server) { rpc.RegisterContractLogServer(s, svc) })
	client := rpc.NewContractLogClient(conn)
	ctx := context.Background()

	all, err := client.All(ctx)
	require.NoError(t, err)
	require.Len(t, all.Logs, 1)
	assert.Equal(t, "1", all.Logs[0].ID)
	assert.Equal(t, uint64(7), all.Logs[0].BlockNumber)

	sum, err := client.DailySummary(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Summary.TotalTransactions)

	_, err = client.ByAddress(ctx, "0xabc")
	assert.Equal(t, codes.NotFound, code(err))

	_, err = client.ByEventType(ctx, "")
	assert.Equal(t, codes.InvalidArgument, code(err))

	_, err = client.ByDateRange(ctx, &rpc.ListLogsRequest{Start: t0, End: t0.Add(-time.Hour)})
	assert.Equal(t, codes.InvalidArgument, code(err))
}
