package tui

import (
	"strings"

	"github.com/matheus3301/tradechat/internal/directory"
)

// Command is a parsed ":" command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses input without the leading ':'. Names are
// case-insensitive and "q" and "h" are shorthands.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	switch cmd.Name {
	case "q", "q!", "exit":
		cmd.Name = "quit"
	case "h":
		cmd.Name = "help"
	case "notifications", "n":
		cmd.Name = "bell"
	}
	return cmd
}

// findChat resolves query to a chat ID: an exact ID first, then a
// case-insensitive name, then a unique name prefix.
func findChat(chats []directory.ChatUser, query string) (string, bool) {
	if query == "" {
		return "", false
	}
	q := strings.ToLower(query)
	for _, u := range chats {
		if u.ID == query {
			return u.ID, true
		}
	}
	for _, u := range chats {
		if strings.ToLower(u.Name) == q {
			return u.ID, true
		}
	}
	match := ""
	for _, u := range chats {
		if strings.HasPrefix(strings.ToLower(u.Name), q) {
			if match != "" {
				return "", false
			}
			match = u.ID
		}
	}
	return match, match != ""
}
