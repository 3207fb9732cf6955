package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/identity"
	"github.com/matheus3301/nchat/internal/tui/keys"
	"github.com/matheus3301/nchat/internal/tui/model"
	"github.com/matheus3301/nchat/internal/tui/ui"
	"github.com/matheus3301/nchat/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names.
const (
	PagePeers   = "Peers"
	PageThread  = "Thread"
	PageDetails = "Details"
	PageKeys    = "Keys"
	PageHelp    = "Help"
)

const actionTimeout = 15 * time.Second

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	registry *keys.Registry

	root     *tview.Flex
	pages    *ui.Pages
	info     *ui.SessionInfo
	menu     *ui.Menu
	logo     *ui.Logo
	crumbs   *ui.Crumbs
	flashBar *ui.FlashBar
	prompt   *ui.Prompt
	prompted bool

	peerList   *views.PeerList
	thread     *views.MessageThread
	details    *views.PeerInfo
	keyView    *views.KeyView
	help       *views.HelpView
	components map[string]ui.Component

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(vm *model.ViewModel) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		vm:       vm,
		registry: keys.NewRegistry(),
		pages:    ui.NewPages(),
		info:     ui.NewSessionInfo(theme),
		menu:     ui.NewMenu(theme),
		logo:     ui.NewLogo(theme),
		crumbs:   ui.NewCrumbs(theme),
		flashBar: ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		peerList: views.NewPeerList(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewPeerInfo(theme),
		keyView:  views.NewKeyView(theme),
		help:     views.NewHelpView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.components = map[string]ui.Component{
		PagePeers:   a.peerList,
		PageThread:  a.thread,
		PageDetails: a.details,
		PageKeys:    a.keyView,
		PageHelp:    a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	r := a.registry
	r.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command", Visible: true,
		Handler: func() { a.activatePrompt(ui.PromptCommand) },
	})
	r.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help", Visible: true,
		Handler: func() { a.push(PageHelp) },
	})
	r.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Quit/Back", Visible: true,
		Handler: a.back,
	})

	r.AddView(PagePeers, &keys.Action{
		Key: tcell.KeyEnter, Label: "Enter", Description: "Open", Visible: true,
		Handler: func() { a.openPeer(a.peerList.SelectedPeer()) },
	})
	r.AddView(PagePeers, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Filter", Visible: true,
		Handler: func() { a.activatePrompt(ui.PromptFilter) },
	})
	r.AddView(PagePeers, &keys.Action{
		Key: tcell.KeyRune, Rune: 's', Description: "Sort", Visible: true,
		Handler: func() { a.vm.Flash.Info("sort: " + a.peerList.CycleSort().String()) },
	})
	r.AddView(PagePeers, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Refresh", Visible: true,
		Handler: a.refreshPeers,
	})
	r.AddView(PagePeers, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "Details", Visible: true,
		Handler: func() { a.showDetails(a.peerList.SelectedPeer()) },
	})
	r.AddView(PagePeers, &keys.Action{
		Key: tcell.KeyRune, Rune: 'a', Description: "Add peer", Visible: true,
		Handler: func() {
			a.activatePrompt(ui.PromptCommand)
			a.prompt.SetText(CmdAdd + " ")
		},
	})
	r.AddView(PagePeers, &keys.Action{
		Key: tcell.KeyRune, Rune: '0', Description: "Clear filter",
		Handler: a.peerList.ClearFilter,
	})
	for n := '1'; n <= '9'; n++ {
		idx := int(n - '0')
		r.AddView(PagePeers, &keys.Action{
			Key: tcell.KeyRune, Rune: n,
			Handler: func() { a.openPeer(a.peerList.PeerByIndex(idx)) },
		})
	}

	r.AddView(PageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	r.AddView(PageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "Details", Visible: true,
		Handler: func() { a.showDetails(a.thread.Peer()) },
	})
}

func (a *App) setupCallbacks() {
	a.crumbs.SetLabel(func(page string) string {
		if c, ok := a.components[page]; ok {
			return c.Name()
		}
		return page
	})
	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		a.menu.Update(a.registry.Hints(a.pages.Current()))
	})

	a.peerList.SetSelectedFunc(func(row, _ int) {
		a.openPeer(a.peerList.PeerByIndex(row))
	})

	a.thread.SetOnDraft(a.vm.Thread.SetDraft)
	a.thread.SetOnSend(func(text string) {
		go func() {
			ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
			defer cancel()
			// Failures surface through the notice bus.
			_ = a.vm.Send(ctx, text)
		}()
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.closePrompt()
		switch mode {
		case ui.PromptFilter:
			a.peerList.SetFilter(text)
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(a.closePrompt)
}

func (a *App) setupLayout() {
	for name, c := range a.components {
		a.pages.AddPage(name, c, true, false)
	}

	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(a.logo, 18, 0, false)
	header.SetBackgroundColor(a.theme.BgColor)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.pages.Reset(PagePeers)
	a.app.SetFocus(a.peerList)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.prompted {
			return event
		}

		focused := a.app.GetFocus()
		if focused == a.thread.Composer() {
			if event.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return event
		}

		if event.Key() == tcell.KeyEscape {
			a.back()
			return nil
		}
		if event.Key() == tcell.KeyEnter && a.pages.Current() == PagePeers {
			// Table selection handles Enter.
			return event
		}
		if a.registry.HandleEvent(a.pages.Current(), event) {
			return nil
		}
		return event
	})
}

func (a *App) activatePrompt(mode ui.PromptMode) {
	if mode == ui.PromptFilter && a.pages.Current() != PagePeers {
		return
	}
	a.prompt.Activate(mode)
	if !a.prompted {
		a.root.AddItem(a.prompt, 3, 0, true)
		a.prompted = true
	}
	a.app.SetFocus(a.prompt)
}

func (a *App) closePrompt() {
	if a.prompted {
		a.root.RemoveItem(a.prompt)
		a.prompted = false
	}
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case PageThread:
		a.app.SetFocus(a.thread.Messages())
	default:
		if c, ok := a.components[a.pages.Current()]; ok {
			a.app.SetFocus(c)
		}
	}
}

func (a *App) push(name string) {
	if a.pages.Current() == name {
		return
	}
	if c, ok := a.components[a.pages.Current()]; ok {
		c.Stop()
	}
	a.pages.Push(name)
	a.components[name].Start()
	a.focusCurrent()
}

// back pops the current page, quitting from the root page.
func (a *App) back() {
	if a.pages.Depth() <= 1 {
		a.Stop()
		return
	}
	if c, ok := a.components[a.pages.Current()]; ok {
		c.Stop()
	}
	a.pages.Pop()
	a.components[a.pages.Current()].Start()
	a.focusCurrent()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case CmdQuit:
		a.Stop()
	case CmdHelp:
		a.push(PageHelp)
	case CmdPeers:
		a.pages.PopTo(PagePeers)
		a.focusCurrent()
	case CmdKeys:
		a.showKeys()
	case CmdRefresh:
		a.refreshPeers()
	case CmdPeer:
		p, ok := a.vm.FindPeer(cmd.Args)
		if !ok {
			a.vm.Flash.Warn("no peer matching " + cmd.Args)
			return
		}
		a.openPeer(p.PublicKey)
	case CmdAdd:
		if cmd.Args == "" {
			a.vm.Flash.Warn("usage: :add <npub|hex>")
			return
		}
		a.background(func(ctx context.Context) error { return a.vm.AddPeer(ctx, cmd.Args) })
	case CmdRestart:
		a.background(a.vm.Restart)
	default:
		a.vm.Flash.Warn(fmt.Sprintf("unknown command %q", cmd.Name))
	}
}

// background runs fn off the UI goroutine and flashes its error.
func (a *App) background(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.vm.Flash.Err(err)
		}
	}()
}

func (a *App) refreshPeers() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
		defer cancel()
		// Failures surface through the notice bus.
		_ = a.vm.Peers.Refresh(ctx)
	}()
}

func (a *App) openPeer(pubkey string) {
	if pubkey == "" {
		return
	}
	a.thread.SetPeer(pubkey, a.vm.PeerName(pubkey))
	a.thread.SetDraft(a.vm.Thread.Draft())
	a.peerList.SetActive(pubkey)
	a.pages.PopTo(PagePeers)
	a.push(PageThread)
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
		defer cancel()
		// Failures surface through the notice bus.
		_ = a.vm.OpenPeer(ctx, pubkey)
	}()
}

func (a *App) showDetails(pubkey string) {
	p, ok := a.vm.Peers.Peer(pubkey)
	if !ok {
		return
	}
	a.details.Update(p)
	a.push(PageDetails)
}

func (a *App) showKeys() {
	acct := a.vm.Account()
	if acct == nil {
		a.keyView.ShowKey("")
	} else if npub, err := identity.EncodePublic(acct.PublicKey); err != nil {
		a.keyView.ShowMessage("invalid account key: " + err.Error())
	} else {
		a.keyView.ShowKey(npub)
	}
	a.push(PageKeys)
}

// onEvent applies a bus event to the views. It runs on the UI goroutine.
func (a *App) onEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.PeersChanged:
		a.peerList.Update(a.vm.Peers.Peers())
		if pk := a.thread.Peer(); pk != "" {
			a.thread.SetPeer(pk, a.vm.PeerName(pk))
		}
	case bus.ThreadLoading:
		a.thread.SetLoading(model.Loading(evt))
	case bus.ThreadUpdated:
		a.thread.SetLoading(a.vm.Thread.Loading())
		a.thread.Update(a.vm.Thread.Entries(time.Now()))
	case bus.ThreadScroll:
		a.thread.ScrollToEnd()
	case bus.ThreadRefocus:
		a.thread.SetDraft(a.vm.Thread.Draft())
		if a.pages.Current() == PageThread && !a.prompted {
			a.app.SetFocus(a.thread.Composer())
		}
	}
	a.info.Update(a.vm.Session())
	a.flashBar.Update(a.vm.Flash.GetMessage())
}

func (a *App) watchFlash() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.vm.Flash.Watch():
		case <-ticker.C:
		}
		a.app.QueueUpdateDraw(func() {
			a.flashBar.Update(a.vm.Flash.GetMessage())
			a.info.Update(a.vm.Session())
		})
	}
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.peerList.Update(a.vm.Peers.Peers())
	a.info.Update(a.vm.Session())
	a.menu.Update(a.registry.Hints(PagePeers))
	a.crumbs.Update(a.pages.Stack())

	go a.vm.Watch(a.ctx, func(evt bus.Event) {
		a.app.QueueUpdateDraw(func() { a.onEvent(evt) })
	})
	go a.watchFlash()

	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
