package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/tradechat/internal/bell"
	"github.com/matheus3301/tradechat/internal/isotime"
	"github.com/matheus3301/tradechat/internal/rpc"
	"github.com/matheus3301/tradechat/internal/session"
	"github.com/matheus3301/tradechat/internal/timeago"
	"google.golang.org/grpc"
)

type clients struct {
	session *rpc.SessionClient
	notes   *rpc.NotificationClient
	chats   *rpc.DirectoryClient
	logs    *rpc.ContractLogClient
}

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName, err := session.Resolve(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	conn, err := rpc.Dial(session.SocketPath(sessionName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()
	c := newClients(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var out any
	switch args[0] {
	case "status":
		out, err = cmdStatus(ctx, c)
	case "refresh":
		out, err = c.session.Refresh(ctx)
	case "notifications", "notes":
		out, err = cmdNotifications(ctx, c, args[1:])
	case "chats":
		out, err = cmdChats(ctx, c)
	case "open":
		if len(args) < 2 {
			usageError("usage: tchatctl open <chat-id>")
		}
		out, err = cmdOpen(ctx, c, args[1])
	case "send":
		if len(args) < 3 {
			usageError("usage: tchatctl send <chat-id> <text...>")
		}
		out, err = c.chats.SendText(ctx, args[1], strings.Join(args[2:], " "))
	case "logs":
		out, err = cmdLogs(ctx, c, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *jsonFlag {
		outputJSON(out)
		return
	}
	printHuman(out)
}

func newClients(conn grpc.ClientConnInterface) *clients {
	return &clients{
		session: rpc.NewSessionClient(conn),
		notes:   rpc.NewNotificationClient(conn),
		chats:   rpc.NewDirectoryClient(conn),
		logs:    rpc.NewContractLogClient(conn),
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: tchatctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                        Show daemon and feed status")
	fmt.Fprintln(os.Stderr, "  refresh                       Reload chats and notifications from the backend")
	fmt.Fprintln(os.Stderr, "  notifications [list]          List the 10 most recent notifications")
	fmt.Fprintln(os.Stderr, "  notifications read <id>       Mark one notification read")
	fmt.Fprintln(os.Stderr, "  notifications read-all        Mark every notification read")
	fmt.Fprintln(os.Stderr, "  chats                         List conversations")
	fmt.Fprintln(os.Stderr, "  open <chat-id>                Show a conversation")
	fmt.Fprintln(os.Stderr, "  send <chat-id> <text...>      Queue a text message")
	fmt.Fprintln(os.Stderr, "  logs all                      List smart-contract events")
	fmt.Fprintln(os.Stderr, "  logs range <start> <end>      Events between two ISO-8601 dates")
	fmt.Fprintln(os.Stderr, "  logs type <event-type>        Events of one type (Bet, Deposit, ...)")
	fmt.Fprintln(os.Stderr, "  logs address <address>        Events involving an address")
	fmt.Fprintln(os.Stderr, "  logs summary <date>           Daily totals")
}

func usageError(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func cmdStatus(ctx context.Context, c *clients) (*rpc.StatusResponse, error) {
	return c.session.GetStatus(ctx)
}

func cmdNotifications(ctx context.Context, c *clients, args []string) (any, error) {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "list":
		return c.notes.List(ctx, bell.MaxItems)
	case "read":
		if len(args) < 2 {
			usageError("usage: tchatctl notifications read <id>")
		}
		return c.notes.MarkRead(ctx, args[1])
	case "read-all":
		return c.notes.MarkAllRead(ctx)
	}
	usageError("unknown notifications subcommand: " + sub)
	return nil, nil
}

func cmdChats(ctx context.Context, c *clients) (*rpc.ListChatsResponse, error) {
	return c.chats.ListChats(ctx)
}

func cmdOpen(ctx context.Context, c *clients, chatID string) (*rpc.OpenChatResponse, error) {
	return c.chats.OpenChat(ctx, chatID)
}

func cmdLogs(ctx context.Context, c *clients, args []string) (any, error) {
	if len(args) == 0 {
		args = []string{"all"}
	}
	switch args[0] {
	case "all":
		return c.logs.All(ctx)
	case "range":
		if len(args) < 3 {
			usageError("usage: tchatctl logs range <start> <end>")
		}
		start, err := isotime.Parse(args[1])
		if err != nil {
			return nil, err
		}
		end, err := isotime.Parse(args[2])
		if err != nil {
			return nil, err
		}
		return c.logs.ByDateRange(ctx, &rpc.ListLogsRequest{Start: start, End: end})
	case "type":
		if len(args) < 2 {
			usageError("usage: tchatctl logs type <event-type>")
		}
		return c.logs.ByEventType(ctx, args[1])
	case "address":
		if len(args) < 2 {
			usageError("usage: tchatctl logs address <address>")
		}
		return c.logs.ByAddress(ctx, args[1])
	case "summary":
		if len(args) < 2 {
			usageError("usage: tchatctl logs summary <date>")
		}
		date, err := isotime.Parse(args[1])
		if err != nil {
			return nil, err
		}
		return c.logs.DailySummary(ctx, date)
	}
	usageError("unknown logs subcommand: " + args[0])
	return nil, nil
}

func printHuman(v any) {
	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	switch r := v.(type) {
	case *rpc.StatusResponse:
		fmt.Fprintf(w, "Session:\t%s\n", r.Session)
		status := r.Status
		if r.Reason != "" {
			status += " (" + r.Reason + ")"
		}
		fmt.Fprintf(w, "Status:\t%s\n", status)
		fmt.Fprintf(w, "API:\t%s\n", r.APIBase)
		fmt.Fprintf(w, "Chats:\t%d\n", r.ChatCount)
		fmt.Fprintf(w, "Unread:\t%s\n", orZero(bell.Badge(r.Unread)))
		if !r.LastHydrate.IsZero() {
			fmt.Fprintf(w, "Synced:\t%s\n", timeago.Format(r.LastHydrate, now))
		}
		fmt.Fprintf(w, "Uptime:\t%s\n", (time.Duration(r.UptimeMs) * time.Millisecond).Round(time.Second))
	case *rpc.RefreshResponse:
		fmt.Fprintf(w, "Refreshed %d chats and %d notifications.\n", r.ChatCount, r.Notification)
	case *rpc.ListNotificationsResponse:
		if len(r.Items) == 0 {
			fmt.Fprintln(w, "No notifications.")
			return
		}
		for _, n := range r.Items {
			mark := " "
			if !n.Read {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, n.ID, n.Title, n.Body, timeago.Format(n.Timestamp, now))
		}
		fmt.Fprintf(w, "\n%d unread\n", r.Unread)
	case *rpc.MarkReadResponse:
		fmt.Fprintf(w, "%d unread\n", r.Unread)
	case *rpc.ListChatsResponse:
		for _, u := range r.Users {
			presence := ""
			if u.PresenceVisible() && u.IsOnline {
				presence = "online"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, orZero(bell.Badge(u.UnreadCount)), presence, u.LastMessage)
		}
	case *rpc.OpenChatResponse:
		fmt.Fprintf(w, "# %s\n", r.User.Name)
		for _, m := range r.Messages {
			pin := ""
			if m.IsPinned {
				pin = "📌"
			}
			fmt.Fprintf(w, "%s\t%s\t%s%s\n", timeago.Format(m.Timestamp, now), m.SenderID, m.Preview(), pin)
		}
	case *rpc.SendTextResponse:
		fmt.Fprintf(w, "Queued %s\n", r.ClientMsgID)
	case *rpc.ListLogsResponse:
		if len(r.Logs) == 0 {
			fmt.Fprintln(w, "No events.")
			return
		}
		fmt.Fprintln(w, "TIME\tTYPE\tAMOUNT\tFROM\tTO\tBLOCK\tTX")
		for _, l := range r.Logs {
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\t%s\t%d\t%s\n",
				l.Timestamp.Format(time.DateTime), l.EventType, l.Amount, l.FromAddress, l.ToAddress, l.BlockNumber, l.TxHash)
		}
	case *rpc.DailySummaryResponse:
		s := r.Summary
		fmt.Fprintf(w, "Date:\t%s\n", s.Date.Format(time.DateOnly))
		fmt.Fprintf(w, "Transactions:\t%d\n", s.TotalTransactions)
		fmt.Fprintf(w, "Volume:\t%.4f\n", s.TotalVolume)
		fmt.Fprintf(w, "Bet:\t%d\t%.4f\n", s.BetCount, s.BetAmount)
		fmt.Fprintf(w, "Deposit:\t%d\t%.4f\n", s.DepositCount, s.DepositAmount)
		fmt.Fprintf(w, "Withdrawal:\t%d\t%.4f\n", s.WithdrawalCount, s.WithdrawalAmount)
		fmt.Fprintf(w, "EmergencyPayout:\t%d\t%.4f\n", s.EmergencyPayoutCount, s.EmergencyPayoutAmount)
	default:
		outputJSON(v)
	}
}

func orZero(badge string) string {
	if badge == "" {
		return "0"
	}
	return badge
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
