package model

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/message"
	"github.com/matheus3301/tradechat/internal/notify"
	"github.com/matheus3301/tradechat/internal/rpc"
)

// SessionAPI is the daemon's session service as the TUI uses it.
type SessionAPI interface {
	GetStatus(ctx context.Context) (*rpc.StatusResponse, error)
	Refresh(ctx context.Context) (*rpc.RefreshResponse, error)
	Watch(ctx context.Context) (rpc.EventReceiver, error)
}

// NotificationAPI is the daemon's notification service as the TUI uses it.
type NotificationAPI interface {
	List(ctx context.Context, limit int) (*rpc.ListNotificationsResponse, error)
	MarkRead(ctx context.Context, id string) (*rpc.MarkReadResponse, error)
	MarkAllRead(ctx context.Context) (*rpc.MarkReadResponse, error)
	Watch(ctx context.Context) (rpc.EventReceiver, error)
}

// DirectoryAPI is the daemon's directory service as the TUI uses it.
type DirectoryAPI interface {
	ListChats(ctx context.Context) (*rpc.ListChatsResponse, error)
	OpenChat(ctx context.Context, chatID string) (*rpc.OpenChatResponse, error)
	ListMessages(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error)
	SendText(ctx context.Context, chatID, text string) (*rpc.SendTextResponse, error)
	Pin(ctx context.Context, req *rpc.PinRequest) (*rpc.PinResponse, error)
	React(ctx context.Context, req *rpc.ReactRequest) (*rpc.ReactResponse, error)
	Shared(ctx context.Context, chatID string) (*rpc.SharedResponse, error)
	Watch(ctx context.Context) (rpc.EventReceiver, error)
}

// Clients groups the daemon services the TUI talks to.
type Clients struct {
	Session      SessionAPI
	Notification NotificationAPI
	Directory    DirectoryAPI
}

// Refresh reasons sent on RefreshCh.
const (
	RefreshStatus   = "status"
	RefreshChats    = "chats"
	RefreshMessages = "messages"
)

// watchRetry is how long a dropped Watch stream waits before reopening.
var watchRetry = 2 * time.Second

// ViewModel caches daemon state for the views. It doubles as the bell's
// notification source and navigator.
type ViewModel struct {
	mu sync.RWMutex

	clients  Clients
	status   *rpc.StatusResponse
	chats    []directory.ChatUser
	active   string
	messages []*message.Message
	pinned   []directory.PinnedMessage
	notes    *bus.Value[notify.Snapshot]
	onOpen   func(chatID string)
	onNotice func(string)

	refreshCh chan string
}

// NewViewModel creates a view model backed by the daemon clients.
func NewViewModel(c Clients) *ViewModel {
	return &ViewModel{
		clients:   c,
		notes:     bus.NewValue(notify.Snapshot{}),
		refreshCh: make(chan string, 16),
	}
}

// RefreshCh signals which part of the screen needs redrawing.
func (vm *ViewModel) RefreshCh() <-chan string {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh(what string) {
	select {
	case vm.refreshCh <- what:
	default:
	}
}

// SetOnOpen registers the callback fired when the bell routes to a chat.
func (vm *ViewModel) SetOnOpen(fn func(chatID string)) {
	vm.mu.Lock()
	vm.onOpen = fn
	vm.mu.Unlock()
}

// SetOnNotice registers the callback for problems reported by the daemon
// streams, such as a failed send.
func (vm *ViewModel) SetOnNotice(fn func(string)) {
	vm.mu.Lock()
	vm.onNotice = fn
	vm.mu.Unlock()
}

func (vm *ViewModel) notice(msg string) {
	vm.mu.RLock()
	fn := vm.onNotice
	vm.mu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

// LoadSessionStatus fetches the daemon status.
func (vm *ViewModel) LoadSessionStatus(ctx context.Context) error {
	resp, err := vm.clients.Session.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	vm.signalRefresh(RefreshStatus)
	return nil
}

// Refresh asks the daemon to hydrate again from the backend.
func (vm *ViewModel) Refresh(ctx context.Context) (*rpc.RefreshResponse, error) {
	return vm.clients.Session.Refresh(ctx)
}

// LoadChats fetches the directory.
func (vm *ViewModel) LoadChats(ctx context.Context) error {
	resp, err := vm.clients.Directory.ListChats(ctx)
	if err != nil {
		return err
	}
	vm.setChats(resp.Users)
	return nil
}

func (vm *ViewModel) setChats(users []directory.ChatUser) {
	vm.mu.Lock()
	vm.chats = users
	vm.mu.Unlock()
	vm.signalRefresh(RefreshChats)
}

// LoadNotifications fetches every notification.
func (vm *ViewModel) LoadNotifications(ctx context.Context) error {
	resp, err := vm.clients.Notification.List(ctx, 0)
	if err != nil {
		return err
	}
	vm.notes.Set(notify.Snapshot{Items: resp.Items, Unread: resp.Unread})
	return nil
}

// OpenChat makes chatID the active conversation and loads its history.
func (vm *ViewModel) OpenChat(ctx context.Context, chatID string) error {
	resp, err := vm.clients.Directory.OpenChat(ctx, chatID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.active = chatID
	vm.messages = resp.Messages
	vm.pinned = resp.Pinned
	for i := range vm.chats {
		if vm.chats[i].ID == chatID {
			vm.chats[i].UnreadCount = 0
		}
	}
	vm.mu.Unlock()
	vm.signalRefresh(RefreshMessages)
	return nil
}

// CloseChat clears the active conversation.
func (vm *ViewModel) CloseChat() {
	vm.mu.Lock()
	vm.active = ""
	vm.messages = nil
	vm.pinned = nil
	vm.mu.Unlock()
}

// ReloadMessages refetches the active conversation without marking it read.
func (vm *ViewModel) ReloadMessages(ctx context.Context) error {
	chatID := vm.ActiveChatID()
	if chatID == "" {
		return nil
	}
	resp, err := vm.clients.Directory.ListMessages(ctx, &rpc.ListMessagesRequest{ChatID: chatID})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.active == chatID {
		vm.messages = resp.Messages
	}
	vm.mu.Unlock()
	vm.signalRefresh(RefreshMessages)
	return nil
}

// SendText queues a text message to the active conversation.
func (vm *ViewModel) SendText(ctx context.Context, text string) error {
	chatID := vm.ActiveChatID()
	if chatID == "" {
		return fmt.Errorf("no conversation open")
	}
	_, err := vm.clients.Directory.SendText(ctx, chatID, text)
	return err
}

// TogglePin pins msgID in the active conversation, or unpins it if pinned.
func (vm *ViewModel) TogglePin(ctx context.Context, msgID string) error {
	chatID := vm.ActiveChatID()
	if chatID == "" {
		return fmt.Errorf("no conversation open")
	}
	unpin := slices.ContainsFunc(vm.Pinned(), func(p directory.PinnedMessage) bool { return p.MessageID == msgID })
	resp, err := vm.clients.Directory.Pin(ctx, &rpc.PinRequest{ChatID: chatID, MsgID: msgID, Unpin: unpin})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.active == chatID {
		vm.pinned = resp.Pinned
	}
	vm.mu.Unlock()
	return vm.ReloadMessages(ctx)
}

// React toggles the caller's reaction with symbol on msgID.
func (vm *ViewModel) React(ctx context.Context, msgID, symbol string, remove bool) error {
	chatID := vm.ActiveChatID()
	if chatID == "" {
		return fmt.Errorf("no conversation open")
	}
	if _, err := vm.clients.Directory.React(ctx, &rpc.ReactRequest{ChatID: chatID, MsgID: msgID, Symbol: symbol, Remove: remove}); err != nil {
		return err
	}
	return vm.ReloadMessages(ctx)
}

// Shared returns the links, images and files of the active conversation.
func (vm *ViewModel) Shared(ctx context.Context) (directory.Shared, error) {
	chatID := vm.ActiveChatID()
	if chatID == "" {
		return directory.Shared{}, fmt.Errorf("no conversation open")
	}
	resp, err := vm.clients.Directory.Shared(ctx, chatID)
	if err != nil {
		return directory.Shared{}, err
	}
	return resp.Shared, nil
}

// Subscribe streams the notification snapshot, starting with the current one.
func (vm *ViewModel) Subscribe(fn func(notify.Snapshot)) func() {
	return vm.notes.Subscribe(fn)
}

// MarkAsRead marks one notification read on the daemon, then locally.
func (vm *ViewModel) MarkAsRead(ctx context.Context, id string) error {
	if _, err := vm.clients.Notification.MarkRead(ctx, id); err != nil {
		return err
	}
	vm.notes.Update(func(snap notify.Snapshot) notify.Snapshot {
		return markRead(snap, func(n notify.Notification) bool { return n.ID == id })
	})
	return nil
}

// MarkAllAsRead marks every notification read on the daemon, then locally.
func (vm *ViewModel) MarkAllAsRead(ctx context.Context) error {
	if _, err := vm.clients.Notification.MarkAllRead(ctx); err != nil {
		return err
	}
	vm.notes.Update(func(snap notify.Snapshot) notify.Snapshot {
		return markRead(snap, func(notify.Notification) bool { return true })
	})
	return nil
}

// markRead flags the matching entries of the latest snapshot, which may
// already hold pushes that arrived during the call, and recounts unread.
func markRead(snap notify.Snapshot, match func(notify.Notification) bool) notify.Snapshot {
	items := slices.Clone(snap.Items)
	unread := 0
	for i := range items {
		if match(items[i]) {
			items[i].Read = true
		}
		if !items[i].Read {
			unread++
		}
	}
	return notify.Snapshot{Items: items, Unread: unread}
}

// OpenConversation routes the bell to a chat. It reports false when the
// chat is not in the directory.
func (vm *ViewModel) OpenConversation(id string) bool {
	vm.mu.RLock()
	known := slices.ContainsFunc(vm.chats, func(u directory.ChatUser) bool { return u.ID == id })
	fn := vm.onOpen
	vm.mu.RUnlock()
	if !known {
		return false
	}
	if fn != nil {
		fn(id)
	}
	return true
}

// Watch follows the daemon's session, notification and directory streams
// until ctx is done. Dropped streams are reopened.
func (vm *ViewModel) Watch(ctx context.Context) {
	go vm.follow(ctx, vm.clients.Session.Watch, vm.applySession)
	go vm.follow(ctx, vm.clients.Notification.Watch, vm.applyNotifications)
	go vm.follow(ctx, vm.clients.Directory.Watch, vm.applyDirectory)
}

func (vm *ViewModel) follow(ctx context.Context, open func(context.Context) (rpc.EventReceiver, error), apply func(context.Context, *rpc.Event)) {
	for ctx.Err() == nil {
		stream, err := open(ctx)
		if err == nil {
			for {
				evt, err := stream.Recv()
				if err != nil {
					break
				}
				apply(ctx, evt)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(watchRetry):
		}
	}
}

func (vm *ViewModel) applySession(ctx context.Context, _ *rpc.Event) {
	_ = vm.LoadSessionStatus(ctx)
}

func (vm *ViewModel) applyNotifications(_ context.Context, evt *rpc.Event) {
	var resp rpc.ListNotificationsResponse
	if err := json.Unmarshal(evt.Payload, &resp); err != nil {
		return
	}
	vm.notes.Set(notify.Snapshot{Items: resp.Items, Unread: resp.Unread})
}

func (vm *ViewModel) applyDirectory(ctx context.Context, evt *rpc.Event) {
	switch {
	case evt.Kind == bus.KindDirectoryChanged:
		var users []directory.ChatUser
		if err := json.Unmarshal(evt.Payload, &users); err != nil {
			return
		}
		vm.setChats(users)
	case strings.HasPrefix(evt.Kind, "message."):
		if msg := describeSendFailure(evt); msg != "" {
			vm.notice(msg)
		}
		var ref struct{ ChatID string }
		if err := json.Unmarshal(evt.Payload, &ref); err != nil {
			return
		}
		if ref.ChatID == vm.ActiveChatID() {
			_ = vm.ReloadMessages(ctx)
		}
	}
}

// describeSendFailure renders a send_failed payload, or "" for other events.
func describeSendFailure(evt *rpc.Event) string {
	if evt.Kind != bus.KindMessageSendFailed {
		return ""
	}
	var f struct{ ChatID, Error string }
	if err := json.Unmarshal(evt.Payload, &f); err != nil {
		return ""
	}
	return fmt.Sprintf("send to %s failed: %s", f.ChatID, f.Error)
}

// SessionStatus returns the last fetched status.
func (vm *ViewModel) SessionStatus() *rpc.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Chats returns a copy of the directory.
func (vm *ViewModel) Chats() []directory.ChatUser {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.chats)
}

// Chat looks up one directory entry.
func (vm *ViewModel) Chat(id string) (directory.ChatUser, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, u := range vm.chats {
		if u.ID == id {
			return u, true
		}
	}
	return directory.ChatUser{}, false
}

// ActiveChatID returns the open conversation, or "".
func (vm *ViewModel) ActiveChatID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// Messages returns the active conversation, oldest first.
func (vm *ViewModel) Messages() []*message.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// Pinned returns the pins of the active conversation.
func (vm *ViewModel) Pinned() []directory.PinnedMessage {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.pinned)
}

// Notifications returns the current notification snapshot.
func (vm *ViewModel) Notifications() notify.Snapshot {
	return vm.notes.Get()
}
