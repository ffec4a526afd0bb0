// Package tui is the terminal client. It talks to the daemon only through
// its gRPC services.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/tradechat/internal/bell"
	"github.com/matheus3301/tradechat/internal/status"
	"github.com/matheus3301/tradechat/internal/tui/keys"
	"github.com/matheus3301/tradechat/internal/tui/model"
	"github.com/matheus3301/tradechat/internal/tui/ui"
	"github.com/matheus3301/tradechat/internal/tui/views"
	"github.com/rivo/tview"
)

// Clients are the daemon services the app needs.
type Clients = model.Clients

// Page IDs.
const (
	pageChats  = "chats"
	pageThread = "thread"
	pageBell   = "bell"
	pageInfo   = "info"
	pageHelp   = "help"
)

const rpcTimeout = 10 * time.Second

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	bell     *bell.Bell
	registry *keys.Registry
	flash    *ui.FlashModel
	session  string

	root        *tview.Flex
	pages       *ui.Pages
	sessionInfo *ui.SessionInfo
	menu        *ui.Menu
	crumbs      *ui.Crumbs
	flashBar    *ui.FlashBar
	prompt      *ui.Prompt
	statusBar   *views.StatusBar

	chatList *views.ConversationList
	thread   *views.MessageThread
	bellView *views.BellView
	info     *views.ConversationInfo
	help     *views.HelpView

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c Clients, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:         tview.NewApplication(),
		theme:       theme,
		vm:          model.NewViewModel(c),
		registry:    keys.NewRegistry(),
		flash:       ui.NewFlashModel(),
		session:     sessionName,
		pages:       ui.NewPages(),
		sessionInfo: ui.NewSessionInfo(theme),
		menu:        ui.NewMenu(theme),
		crumbs:      ui.NewCrumbs(theme),
		flashBar:    ui.NewFlashBar(theme),
		prompt:      ui.NewPrompt(theme),
		statusBar:   views.NewStatusBar(theme),
		chatList:    views.NewConversationList(theme),
		thread:      views.NewMessageThread(theme),
		bellView:    views.NewBellView(theme),
		info:        views.NewConversationInfo(theme),
		help:        views.NewHelpView(theme),
		ctx:         ctx,
		cancel:      cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.sessionInfo.Update(nil)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	r := a.registry
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: ':', Help: "Command", Handler: func() { a.showPrompt(ui.PromptCommand) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'b', Help: "Notifications", Handler: a.showBell})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: '?', Help: "Help", Handler: func() { a.push(pageHelp, a.help) }})
	r.AddGlobal(&keys.Action{Key: tcell.KeyRune, Rune: 'q', Help: "Quit/Back", Handler: func() {
		if !a.back() {
			a.Stop()
		}
	}})

	r.AddPage(pageChats, &keys.Action{Key: tcell.KeyRune, Rune: '/', Help: "Filter", Handler: func() { a.showPrompt(ui.PromptFilter) }})
	r.AddPage(pageChats, &keys.Action{Key: tcell.KeyRune, Rune: '0', Help: "Clear filter", Handler: a.chatList.ClearFilter})
	for n := 1; n <= 9; n++ {
		r.AddPage(pageChats, &keys.Action{Key: tcell.KeyRune, Rune: rune('0' + n), Hidden: true, Handler: func() {
			if id := a.chatList.ChatByIndex(n); id != "" {
				a.openChat(id)
			}
		}})
	}

	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'i', Help: "Compose", Handler: a.compose})
	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'j', Label: "j/k", Help: "Select", Handler: a.thread.SelectNext})
	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'k', Hidden: true, Handler: a.thread.SelectPrev})
	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'p', Help: "Pin", Handler: a.togglePin})
	r.AddPage(pageThread, &keys.Action{Key: tcell.KeyRune, Rune: 'd', Help: "Details", Handler: a.showInfo})

	r.AddPage(pageBell, &keys.Action{Key: tcell.KeyRune, Rune: 'a', Help: "Mark all read", Handler: a.markAllRead})
	r.AddPage(pageBell, &keys.Action{Key: tcell.KeyRune, Rune: 'b', Hidden: true, Handler: func() { a.back() }})
}

func (a *App) compose() {
	if !a.thread.CanCompose() {
		a.flash.Warn("only admins can post in this group")
		return
	}
	a.app.SetFocus(a.thread.Composer())
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, _ int) {
		if id := a.chatList.ChatByIndex(row); id != "" {
			a.openChat(id)
		}
	})

	a.bellView.SetSelectedFunc(func(int, int) {
		id := a.bellView.Selected()
		if id == "" {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			defer cancel()
			if err := a.bell.Click(ctx, id); err != nil {
				a.flash.Err("open notification", err)
			}
		}()
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			defer cancel()
			if err := a.vm.SendText(ctx, text); err != nil {
				a.flash.Err("send", err)
			}
		}()
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.chatList.SetFilter(text)
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(top ui.Component, trail []string) {
		id, _ := a.pages.Top()
		a.crumbs.Update(trail)
		a.menu.Update(append(top.Hints(), a.registry.Hints(id)...))
	})

	a.vm.SetOnOpen(a.openChat)
	a.vm.SetOnNotice(a.flash.Warn)

	a.bell = bell.New(a.vm, a.vm, func(v bell.View) {
		a.app.QueueUpdateDraw(func() {
			a.bellView.Update(v)
			a.statusBar.SetBadge(v.Badge)
		})
	})
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(a.sessionInfo, 0, 2, false).
		AddItem(a.menu, 0, 3, false).
		AddItem(ui.NewLogo(a.theme), 18, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.Push(pageChats, a.chatList)
	a.app.SetRoot(a.root, true).SetFocus(a.chatList)

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if a.prompt.HasFocus() {
			return ev
		}
		if a.thread.Composer().HasFocus() {
			if ev.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return ev
		}
		if ev.Key() == tcell.KeyEscape {
			a.back()
			return nil
		}
		page, _ := a.pages.Top()
		if a.registry.HandleEvent(page, ev) {
			return nil
		}
		return ev
	})
}

func (a *App) push(id string, c ui.Component) {
	a.pages.Push(id, c)
	a.focusTop()
}

// back pops the top page. It reports false on the root page.
func (a *App) back() bool {
	top, ok := a.pages.Pop()
	if !ok {
		return false
	}
	if top == a.thread {
		a.vm.CloseChat()
	}
	a.focusTop()
	return true
}

func (a *App) focusTop() {
	id, c := a.pages.Top()
	if id == pageThread {
		a.app.SetFocus(a.thread.Messages())
		return
	}
	a.app.SetFocus(c)
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusTop()
}

func (a *App) showBell() {
	a.push(pageBell, a.bellView)
}

// openChat loads chatID and shows it above the chat list. It may be called
// from any goroutine.
func (a *App) openChat(chatID string) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		if err := a.vm.OpenChat(ctx, chatID); err != nil {
			a.flash.Err("open chat", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			chat, _ := a.vm.Chat(chatID)
			if chat.ID == "" {
				chat.ID = chatID
			}
			a.thread.SetChat(chat, a.self())
			a.thread.Update(a.vm.Messages(), a.vm.Pinned())
			a.pages.Reset(pageThread, a.thread)
			a.focusTop()
		})
	}()
}

func (a *App) self() string {
	if st := a.vm.SessionStatus(); st != nil {
		return st.UserID
	}
	return ""
}

func (a *App) togglePin() {
	msgID := a.thread.SelectedMessage()
	if msgID == "" {
		a.flash.Warn("select a message first (j/k)")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		if err := a.vm.TogglePin(ctx, msgID); err != nil {
			a.flash.Err("pin", err)
		}
	}()
}

func (a *App) react(symbol string) {
	msgID := a.thread.SelectedMessage()
	switch {
	case a.vm.ActiveChatID() == "":
		a.flash.Warn("open a chat first")
		return
	case msgID == "":
		a.flash.Warn("select a message first (j/k)")
		return
	case symbol == "":
		a.flash.Warn("usage: :react <symbol>")
		return
	}
	remove := a.thread.HasReacted(symbol)
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		if err := a.vm.React(ctx, msgID, symbol, remove); err != nil {
			a.flash.Err("react", err)
		}
	}()
}

func (a *App) showInfo() {
	chatID := a.vm.ActiveChatID()
	if chatID == "" {
		a.flash.Warn("open a chat first")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		shared, err := a.vm.Shared(ctx)
		if err != nil {
			a.flash.Err("details", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			chat, _ := a.vm.Chat(chatID)
			a.info.Update(chat, a.vm.Pinned(), shared)
			a.push(pageInfo, a.info)
		})
	}()
}

func (a *App) markAllRead() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		if err := a.bell.MarkAll(ctx); err != nil {
			a.flash.Err("mark all read", err)
			return
		}
		a.flash.Info("all notifications read")
	}()
}

func (a *App) refresh() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		resp, err := a.vm.Refresh(ctx)
		if err != nil {
			a.flash.Err("refresh", err)
			return
		}
		a.flash.Info(fmt.Sprintf("refreshed %d chats, %d notifications", resp.ChatCount, resp.Notification))
	}()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.push(pageHelp, a.help)
	case "bell":
		a.showBell()
	case "read-all":
		a.markAllRead()
	case "refresh":
		a.refresh()
	case "chat":
		id, ok := findChat(a.vm.Chats(), cmd.Args)
		if !ok {
			a.flash.Warn(fmt.Sprintf("no single chat matches %q", cmd.Args))
			return
		}
		a.openChat(id)
	case "pin":
		a.togglePin()
	case "react":
		a.react(cmd.Args)
	case "info":
		a.showInfo()
	default:
		a.flash.Warn(fmt.Sprintf("unknown command %q", cmd.Name))
	}
}

// Run loads the initial state, follows the daemon streams and blocks until
// the user quits.
func (a *App) Run() error {
	defer a.bell.Close()
	defer a.cancel()

	go a.load()
	go a.refreshLoop()
	a.vm.Watch(a.ctx)

	return a.app.Run()
}

func (a *App) load() {
	ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
	defer cancel()

	if err := a.vm.LoadSessionStatus(ctx); err != nil {
		a.flash.Err("status", err)
	}
	if err := a.vm.LoadChats(ctx); err != nil {
		a.flash.Err("chats", err)
	}
	if err := a.vm.LoadNotifications(ctx); err != nil {
		a.flash.Err("notifications", err)
	}
}

// refreshLoop redraws what the view model reports as changed, and ticks the
// clock and flash expiry.
func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case what := <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(func() { a.redraw(what) })
		case <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.Current()) })
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.flashBar.Update(a.flash.Current())
				a.statusBar.Tick()
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) redraw(what string) {
	switch what {
	case model.RefreshStatus:
		st := a.vm.SessionStatus()
		a.sessionInfo.Update(st)
		if st == nil {
			return
		}
		a.statusBar.SetState(st.Status)
		if st.Status == string(status.AuthRequired) {
			a.flash.Warn("backend rejected the session; update session_cookie and restart the daemon")
		}
	case model.RefreshChats:
		a.chatList.Update(a.vm.Chats())
		if id := a.vm.ActiveChatID(); id != "" {
			if chat, ok := a.vm.Chat(id); ok {
				a.thread.SetChat(chat, a.self())
			}
		}
	case model.RefreshMessages:
		if a.vm.ActiveChatID() == a.thread.ChatID() {
			a.thread.Update(a.vm.Messages(), a.vm.Pinned())
		}
	}
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
