package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/nchat/internal/thread"
	"github.com/matheus3301/nchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the active conversation and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	peerName string
	pubkey   string
	loading  bool
	onSend   func(text string)
	onDraft  func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetChangedFunc(func(text string) {
		if mt.onDraft != nil {
			mt.onDraft(text)
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		// The composer keeps its text until the send succeeds and the
		// thread asks for a refocus with the remaining draft.
		if text := composer.GetText(); strings.TrimSpace(text) != "" {
			mt.onSend(text)
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.peerName != "" {
		return mt.peerName
	}
	return "Thread"
}

// Start implements Component.
func (mt *MessageThread) Start() {}

// Stop implements Component.
func (mt *MessageThread) Stop() {}

// SetPeer switches the view to a conversation.
func (mt *MessageThread) SetPeer(pubkey, name string) {
	if pubkey != mt.pubkey {
		mt.messages.Clear()
	}
	mt.pubkey = pubkey
	mt.peerName = name
	mt.renderTitle()
}

// Peer returns the public key of the displayed conversation.
func (mt *MessageThread) Peer() string {
	return mt.pubkey
}

// SetLoading toggles the loading marker in the title.
func (mt *MessageThread) SetLoading(loading bool) {
	mt.loading = loading
	mt.renderTitle()
}

func (mt *MessageThread) renderTitle() {
	title := fmt.Sprintf(" %s ", tview.Escape(sanitizeLine(mt.Name())))
	if mt.loading {
		title += fmt.Sprintf("[%s](loading...)[-] ", colorName(mt.theme.LoadingColor))
	}
	mt.messages.SetTitle(title)
}

// SetOnSend sets the callback for a submitted composer line.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnDraft sets the callback for composer edits.
func (mt *MessageThread) SetOnDraft(fn func(text string)) {
	mt.onDraft = fn
}

// SetDraft replaces the composer text.
func (mt *MessageThread) SetDraft(text string) {
	if mt.composer.GetText() != text {
		mt.composer.SetText(text)
	}
}

// Update renders the conversation entries in order.
func (mt *MessageThread) Update(entries []thread.Entry) {
	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, RenderEntries(entries, mt.peerName, mt.theme))
}

// ScrollToEnd keeps the newest message in view.
func (mt *MessageThread) ScrollToEnd() {
	mt.messages.ScrollToEnd()
}

// RenderEntries formats entries as tview markup.
func RenderEntries(entries []thread.Entry, peerName string, theme *ui.Theme) string {
	in := colorName(theme.IncomingColor)
	out := colorName(theme.OutgoingColor)
	var sb strings.Builder
	for _, e := range entries {
		sender, color := "You", out
		if e.Message.Incoming {
			sender, color = peerName, in
		}
		if sender == "" {
			sender = "unknown"
		}
		body := e.Content.Display()
		if e.Content.Structured {
			sender += fmt.Sprintf(" [type %d]", e.Content.Type)
		}
		fmt.Fprintf(&sb, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			color, tview.Escape(sanitizeLine(sender)), e.Age,
			tview.Escape(sanitizeText(body)))
	}
	return sb.String()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

func colorName(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
