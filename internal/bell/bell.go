// Package bell drives the notification dropdown: an unread badge, the most
// recent entries, and routing a click to the referenced conversation.
package bell

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/notify"
	"github.com/matheus3301/tradechat/internal/timeago"
)

// MaxItems is how many notifications the dropdown lists.
const MaxItems = 10

// badgeCap is the largest count the badge spells out.
const badgeCap = 99

// Source is what the bell needs from the notification side.
type Source interface {
	Subscribe(fn func(notify.Snapshot)) func()
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
}

// Navigator opens a conversation. It reports false when the conversation is
// not in the directory.
type Navigator interface {
	OpenConversation(id string) bool
}

// Item is one dropdown row.
type Item struct {
	ID             string
	ConversationID string
	Title          string
	Body           string
	Age            string
	Unread         bool
}

// View is what the dropdown renders.
type View struct {
	Badge string
	Items []Item
}

// Bell binds a notification source to a navigator.
type Bell struct {
	source Source
	nav    Navigator
	now    func() time.Time

	mu       sync.Mutex
	snap     notify.Snapshot
	onChange func(View)
	subs     bus.Group
}

// Option configures a Bell.
type Option func(*Bell)

// WithClock overrides the clock used for age labels.
func WithClock(now func() time.Time) Option {
	return func(b *Bell) { b.now = now }
}

// New subscribes to source. onChange, if non-nil, is called with every new
// view, starting with the current one.
func New(source Source, nav Navigator, onChange func(View), opts ...Option) *Bell {
	b := &Bell{source: source, nav: nav, now: time.Now, onChange: onChange}
	for _, o := range opts {
		o(b)
	}
	b.subs.Add(source.Subscribe(b.update))
	return b
}

func (b *Bell) update(snap notify.Snapshot) {
	b.mu.Lock()
	b.snap = snap
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn(b.render(snap))
	}
}

// View returns the current dropdown contents.
func (b *Bell) View() View {
	b.mu.Lock()
	snap := b.snap
	b.mu.Unlock()
	return b.render(snap)
}

func (b *Bell) render(snap notify.Snapshot) View {
	now := b.now()
	v := View{Badge: Badge(snap.Unread)}
	for _, n := range snap.Recent(MaxItems) {
		v.Items = append(v.Items, Item{
			ID:             n.ID,
			ConversationID: n.ConversationID,
			Title:          n.Title,
			Body:           n.Body,
			Age:            timeago.Format(n.Timestamp, now),
			Unread:         !n.Read,
		})
	}
	return v
}

// Click marks a notification read and opens its conversation. If marking
// fails, nothing is opened.
func (b *Bell) Click(ctx context.Context, id string) error {
	b.mu.Lock()
	var target string
	for _, n := range b.snap.Items {
		if n.ID == id {
			target = n.ConversationID
			break
		}
	}
	b.mu.Unlock()
	if target == "" {
		return nil
	}

	if err := b.source.MarkAsRead(ctx, id); err != nil {
		return err
	}
	if !b.nav.OpenConversation(target) {
		return fmt.Errorf("conversation %s is not in the directory", target)
	}
	return nil
}

// MarkAll marks every notification read.
func (b *Bell) MarkAll(ctx context.Context) error {
	return b.source.MarkAllAsRead(ctx)
}

// Close releases the bell's subscriptions.
func (b *Bell) Close() {
	b.subs.Close()
}

// Badge renders an unread count; zero renders empty.
func Badge(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > badgeCap:
		return strconv.Itoa(badgeCap) + "+"
	default:
		return strconv.Itoa(unread)
	}
}
