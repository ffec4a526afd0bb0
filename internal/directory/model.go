package directory

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/message"
)

var (
	// ErrChatNotFound is returned by mutations addressed to an unknown chat.
	ErrChatNotFound = errors.New("chat not found")
	// ErrMessageNotFound is returned by mutations addressed to an unknown message.
	ErrMessageNotFound = errors.New("message not found")
	// ErrPostNotAllowed is returned when a group only lets admins post.
	ErrPostNotAllowed = errors.New("only admins can post in this group")
)

var linkRe = regexp.MustCompile(`https?://[^\s<>"]+`)

// Model owns the chat entries and their per-chat state. Lookups of absent
// entries report false instead of failing.
//
// Observers are called synchronously after each change to the entry list and
// must not mutate the model from inside the callback.
type Model struct {
	pub sync.Mutex
	mu  sync.RWMutex

	self     string
	users    []*ChatUser
	index    map[string]*ChatUser
	messages map[string][]*message.Message
	pins     map[string][]PinnedMessage
	active   string

	state *bus.Value[[]ChatUser]
}

// NewModel creates an empty directory for the user identified by selfID.
func NewModel(selfID string) *Model {
	return &Model{
		self:     selfID,
		index:    make(map[string]*ChatUser),
		messages: make(map[string][]*message.Message),
		pins:     make(map[string][]PinnedMessage),
		state:    bus.NewValue[[]ChatUser](nil),
	}
}

// Self returns the id of the local user.
func (m *Model) Self() string { return m.self }

// Subscribe calls fn with the current entries and again after every change.
func (m *Model) Subscribe(fn func([]ChatUser)) func() {
	return m.state.Subscribe(fn)
}

// Users returns the entries, most recent conversation first.
func (m *Model) Users() []ChatUser {
	return m.state.Get()
}

// Replace installs a freshly fetched directory. Entries missing from users are
// dropped together with their messages and pins.
func (m *Model) Replace(users []ChatUser) {
	m.update(func() {
		keep := make(map[string]bool, len(users))
		m.users = m.users[:0]
		m.index = make(map[string]*ChatUser, len(users))
		for _, u := range users {
			u.UnreadCount = max(u.UnreadCount, 0)
			cu := u
			m.users = append(m.users, &cu)
			m.index[u.ID] = &cu
			keep[u.ID] = true
		}
		for id := range m.messages {
			if !keep[id] {
				delete(m.messages, id)
			}
		}
		for id := range m.pins {
			if !keep[id] {
				delete(m.pins, id)
			}
		}
		if !keep[m.active] {
			m.active = ""
		}
	})
}

// GetUserByID looks up an entry.
func (m *Model) GetUserByID(id string) (ChatUser, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.index[id]; ok {
		return *u, true
	}
	return ChatUser{}, false
}

// SelectUser makes id the active conversation.
func (m *Model) SelectUser(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[id]; !ok {
		return false
	}
	m.active = id
	return true
}

// OpenConversation selects the conversation a notification refers to.
func (m *Model) OpenConversation(id string) bool {
	return m.SelectUser(id)
}

// Active returns the selected conversation.
func (m *Model) Active() (ChatUser, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.index[m.active]; ok {
		return *u, true
	}
	return ChatUser{}, false
}

// UpdatePresence overwrites the presence of an entry.
func (m *Model) UpdatePresence(id string, online bool, lastSeen time.Time) bool {
	found := false
	m.update(func() {
		u, ok := m.index[id]
		if !ok {
			return
		}
		found = true
		u.IsOnline = online
		if !lastSeen.IsZero() {
			u.LastSeen = lastSeen
		}
	})
	return found
}

// AppendMessage adds or replaces a message in its chat history. A new inbound
// unread message in a chat other than the active one bumps the unread count.
func (m *Model) AppendMessage(msg *message.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	var err error
	m.update(func() {
		u, ok := m.index[msg.ChatID]
		if !ok {
			err = fmt.Errorf("append message %s: %w: %s", msg.ID, ErrChatNotFound, msg.ChatID)
			return
		}
		hist := m.messages[msg.ChatID]
		c := msg.Clone()
		if i := slices.IndexFunc(hist, func(x *message.Message) bool { return x.ID == msg.ID }); i >= 0 {
			keepLocal(c, hist[i])
			c.IsPinned = hist[i].IsPinned
			hist[i] = c
		} else {
			hist = append(hist, c)
			if msg.SenderID != m.self && !msg.IsRead && msg.ChatID != m.active {
				u.UnreadCount++
			}
		}
		sortByTime(hist)
		m.messages[msg.ChatID] = hist
		if last := hist[len(hist)-1]; !last.Timestamp.Before(u.LastMessageAt) {
			u.LastMessage = last.Preview()
			u.LastMessageAt = last.Timestamp
		}
	})
	return err
}

// SetHistory replaces the message history of a chat, as after a fetch.
func (m *Model) SetHistory(chatID string, msgs []*message.Message) error {
	var err error
	m.update(func() {
		u, ok := m.index[chatID]
		if !ok {
			err = fmt.Errorf("set history: %w: %s", ErrChatNotFound, chatID)
			return
		}
		prev := make(map[string]*message.Message, len(m.messages[chatID]))
		for _, msg := range m.messages[chatID] {
			prev[msg.ID] = msg
		}
		pinned := make(map[string]bool, len(m.pins[chatID]))
		for _, p := range m.pins[chatID] {
			pinned[p.MessageID] = true
		}

		hist := make([]*message.Message, 0, len(msgs))
		seen := make(map[string]bool, len(msgs))
		for _, msg := range msgs {
			if msg.ChatID != chatID || seen[msg.ID] {
				continue
			}
			seen[msg.ID] = true
			c := msg.Clone()
			keepLocal(c, prev[msg.ID])
			c.IsPinned = pinned[msg.ID]
			hist = append(hist, c)
		}
		sortByTime(hist)
		m.messages[chatID] = hist
		m.pins[chatID] = slices.DeleteFunc(m.pins[chatID], func(p PinnedMessage) bool { return !seen[p.MessageID] })
		if len(hist) > 0 {
			if last := hist[len(hist)-1]; !last.Timestamp.Before(u.LastMessageAt) {
				u.LastMessage = last.Preview()
				u.LastMessageAt = last.Timestamp
			}
		}
	})
	return err
}

// trimLink drops sentence punctuation the link pattern swallows. A closing
// parenthesis stays only when it balances one inside the link.
func trimLink(link string) string {
	for link != "" {
		last := link[len(link)-1]
		switch {
		case strings.IndexByte(".,;:!?'", last) >= 0:
		case last == ')' && strings.Count(link, "(") < strings.Count(link, ")"):
		default:
			return link
		}
		link = link[:len(link)-1]
	}
	return link
}

// keepLocal carries reactions made on this client over to a fresh copy of a
// message. The backend does not store reactions, so its copy never has them.
func keepLocal(fresh, old *message.Message) {
	if old == nil || len(old.Reactions) == 0 {
		return
	}
	if fresh.Reactions == nil {
		fresh.Reactions = message.Reactions{}
	}
	for symbol, users := range old.Reactions {
		for id := range users {
			fresh.Reactions.Add(symbol, id)
		}
	}
}

// ReplaceMessage swaps the message stored as oldID for msg, as when the
// backend acknowledges an optimistic send. If msg is already present (the
// push feed delivered it first) the old entry is simply dropped.
func (m *Model) ReplaceMessage(chatID, oldID string, msg *message.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	var err error
	m.update(func() {
		u, ok := m.index[chatID]
		if !ok {
			err = fmt.Errorf("replace message: %w: %s", ErrChatNotFound, chatID)
			return
		}
		hist := slices.DeleteFunc(m.messages[chatID], func(x *message.Message) bool { return x.ID == oldID })
		if !slices.ContainsFunc(hist, func(x *message.Message) bool { return x.ID == msg.ID }) {
			hist = append(hist, msg.Clone())
		}
		sortByTime(hist)
		m.messages[chatID] = hist
		last := hist[len(hist)-1]
		u.LastMessage = last.Preview()
		u.LastMessageAt = last.Timestamp
	})
	return err
}

// RemoveMessage drops a message from a chat's history.
func (m *Model) RemoveMessage(chatID, msgID string) bool {
	found := false
	m.update(func() {
		u, ok := m.index[chatID]
		if !ok {
			return
		}
		hist := m.messages[chatID]
		n := len(hist)
		hist = slices.DeleteFunc(hist, func(x *message.Message) bool { return x.ID == msgID })
		found = len(hist) != n
		m.messages[chatID] = hist
		if found && len(hist) > 0 {
			last := hist[len(hist)-1]
			u.LastMessage = last.Preview()
			u.LastMessageAt = last.Timestamp
		}
		if i := slices.IndexFunc(m.pins[chatID], func(p PinnedMessage) bool { return p.MessageID == msgID }); found && i >= 0 {
			m.pins[chatID] = slices.Delete(m.pins[chatID], i, i+1)
		}
	})
	return found
}

// Messages returns copies of a chat's messages, oldest first.
func (m *Model) Messages(chatID string) []*message.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.messages[chatID]
	out := make([]*message.Message, len(hist))
	for i, msg := range hist {
		out[i] = msg.Clone()
	}
	return out
}

// Message looks up one message.
func (m *Model) Message(chatID, msgID string) (*message.Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if msg := m.findLocked(chatID, msgID); msg != nil {
		return msg.Clone(), true
	}
	return nil, false
}

// MarkChatRead clears the unread marker of a chat and flags its messages read.
func (m *Model) MarkChatRead(chatID string) bool {
	found := false
	m.update(func() {
		u, ok := m.index[chatID]
		if !ok {
			return
		}
		found = true
		u.UnreadCount = 0
		for _, msg := range m.messages[chatID] {
			msg.IsRead = true
		}
	})
	return found
}

// Pin adds a message to its conversation's pin list.
func (m *Model) Pin(chatID, msgID, pinnedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findLocked(chatID, msgID)
	if msg == nil {
		return fmt.Errorf("pin %s/%s: %w", chatID, msgID, ErrMessageNotFound)
	}
	msg.IsPinned = true
	pins := m.pins[chatID]
	if i := slices.IndexFunc(pins, func(p PinnedMessage) bool { return p.MessageID == msgID }); i >= 0 {
		pins[i].PinnedBy, pins[i].PinnedAt = pinnedBy, at
		return nil
	}
	m.pins[chatID] = append(pins, PinnedMessage{MessageID: msgID, ConversationID: chatID, PinnedBy: pinnedBy, PinnedAt: at})
	return nil
}

// Unpin removes a message from the pin list.
func (m *Model) Unpin(chatID, msgID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	pins := m.pins[chatID]
	i := slices.IndexFunc(pins, func(p PinnedMessage) bool { return p.MessageID == msgID })
	if i < 0 {
		return false
	}
	m.pins[chatID] = slices.Delete(pins, i, i+1)
	if msg := m.findLocked(chatID, msgID); msg != nil {
		msg.IsPinned = false
	}
	return true
}

// Pinned returns a conversation's pins in pin order.
func (m *Model) Pinned(chatID string) []PinnedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.pins[chatID])
}

// React adds a reaction. Reacting twice with the same symbol is a no-op that
// reports false.
func (m *Model) React(chatID, msgID, symbol, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findLocked(chatID, msgID)
	if msg == nil {
		return false, fmt.Errorf("react %s/%s: %w", chatID, msgID, ErrMessageNotFound)
	}
	if msg.Reactions == nil {
		msg.Reactions = message.Reactions{}
	}
	return msg.Reactions.Add(symbol, userID), nil
}

// Unreact withdraws a reaction.
func (m *Model) Unreact(chatID, msgID, symbol, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findLocked(chatID, msgID)
	if msg == nil {
		return false, fmt.Errorf("unreact %s/%s: %w", chatID, msgID, ErrMessageNotFound)
	}
	return msg.Reactions.Remove(symbol, userID), nil
}

// SharedContent gathers links, images and files posted in a conversation.
func (m *Model) SharedContent(chatID string) Shared {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Shared
	for _, msg := range m.messages[chatID] {
		switch p := msg.Payload.(type) {
		case *message.Text:
			for _, link := range linkRe.FindAllString(p.Body, -1) {
				if link = trimLink(link); link != "" {
					s.Links = append(s.Links, link)
				}
			}
		case *message.Image:
			c := *p
			s.Images = append(s.Images, &c)
		case *message.File:
			c := *p
			s.Files = append(s.Files, &c)
		}
	}
	return s
}

func (m *Model) findLocked(chatID, msgID string) *message.Message {
	for _, msg := range m.messages[chatID] {
		if msg.ID == msgID {
			return msg
		}
	}
	return nil
}

// update runs fn under the write lock, then publishes the entry list.
func (m *Model) update(fn func()) {
	m.pub.Lock()
	defer m.pub.Unlock()

	m.mu.Lock()
	fn()
	slices.SortStableFunc(m.users, func(a, b *ChatUser) int {
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
	snap := make([]ChatUser, len(m.users))
	for i, u := range m.users {
		snap[i] = *u
	}
	m.mu.Unlock()

	m.state.Set(snap)
}

func sortByTime(msgs []*message.Message) {
	slices.SortStableFunc(msgs, func(a, b *message.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
