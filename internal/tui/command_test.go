package tui

import (
	"testing"

	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"chat  Alice Nguyen ", Command{Name: "chat", Args: "Alice Nguyen"}},
		{"REACT 👍", Command{Name: "react", Args: "👍"}},
		{"q", Command{Name: "quit"}},
		{"h", Command{Name: "help"}},
		{"notifications", Command{Name: "bell"}},
		{"read-all", Command{Name: "read-all"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCommand(tt.in), tt.in)
	}
}

func TestFindChat(t *testing.T) {
	chats := []directory.ChatUser{
		{ID: "u1", Name: "Alice"},
		{ID: "u2", Name: "Alicia"},
		{ID: "u3", Name: "Bob"},
		{ID: "bob", Name: "Robert"},
	}
	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"u2", "u2", true},
		{"bob", "bob", true},
		{"ALICE", "u1", true},
		{"ali", "", false},
		{"rob", "bob", true},
		{"zed", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := findChat(chats, tt.query)
		assert.Equal(t, tt.ok, ok, tt.query)
		assert.Equal(t, tt.want, got, tt.query)
	}
}
