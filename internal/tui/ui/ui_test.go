package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type page struct {
	*tview.Box
	name string
}

func (p page) Name() string       { return p.name }
func (p page) Hints() []MenuHint { return nil }

func newPage(name string) page { return page{Box: tview.NewBox(), name: name} }

func TestPagesStack(t *testing.T) {
	p := NewPages()
	var trails [][]string
	p.SetOnChange(func(_ Component, trail []string) { trails = append(trails, trail) })

	chats, thread, info := newPage("Chats"), newPage("Alice"), newPage("Details")
	p.Push("chats", chats)
	p.Push("thread", thread)
	p.Push("thread", thread)
	p.Push("info", info)
	require.Equal(t, 3, p.Depth())
	assert.Equal(t, []string{"Chats", "Alice", "Details"}, trails[len(trails)-1])

	top, ok := p.Pop()
	require.True(t, ok)
	assert.Equal(t, "Details", top.Name())
	id, _ := p.Top()
	assert.Equal(t, "thread", id)

	p.Reset("info", info)
	assert.Equal(t, 2, p.Depth())
	assert.Equal(t, []string{"Chats", "Details"}, trails[len(trails)-1])

	p.Reset("chats", chats)
	assert.Equal(t, 1, p.Depth())
	_, ok = p.Pop()
	assert.False(t, ok, "root is never popped")
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.Activate(PromptCommand)
	for _, cmd := range []string{"chat alice", "bell", "bell"} {
		p.remember(cmd)
	}
	assert.Equal(t, []string{"chat alice", "bell"}, p.History())

	p.Activate(PromptCommand)
	p.recall(-1)
	assert.Equal(t, "bell", p.GetText())
	p.recall(-1)
	assert.Equal(t, "chat alice", p.GetText())
	p.recall(-1)
	assert.Equal(t, "chat alice", p.GetText())
	p.recall(1)
	p.recall(1)
	assert.Equal(t, "", p.GetText())
}

func TestFlashErr(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	tests := []struct {
		err   error
		text  string
		level FlashLevel
	}{
		{status.Error(codes.Unavailable, "connection refused"), "send: daemon unavailable", FlashWarn},
		{status.Error(codes.NotFound, "open chat: chat not found"), "send: open chat: chat not found", FlashWarn},
		{status.Error(codes.PermissionDenied, "only admins can post in this group"), "send: only admins can post in this group", FlashWarn},
		{status.Error(codes.Internal, "boom"), "send: boom", FlashErr},
		{errors.New("plain"), "send: plain", FlashErr},
	}
	for _, tt := range tests {
		f.Err("send", tt.err)
		msg := f.Current()
		require.NotNil(t, msg)
		assert.Equal(t, tt.text, msg.Text)
		assert.Equal(t, tt.level, msg.Level)
	}

	f.Info("ok")
	now = now.Add(6 * time.Second)
	assert.Nil(t, f.Current())
}
