package views

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/matheus3301/nchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// KeyView shows the account public key as text and as a QR code so it can
// be shared with a phone.
type KeyView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewKeyView creates a new key view.
func NewKeyView(theme *ui.Theme) *KeyView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Public Key ")
	tv.SetTitleColor(theme.TitleColor)

	return &KeyView{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (kv *KeyView) Name() string { return "Keys" }

// Start implements Component.
func (kv *KeyView) Start() {}

// Stop implements Component.
func (kv *KeyView) Stop() {}

// ShowKey renders npub as text and QR code.
func (kv *KeyView) ShowKey(npub string) {
	kv.Clear()
	if npub == "" {
		kv.ShowMessage("No account bound yet.")
		return
	}
	_, _ = fmt.Fprintf(kv, "\n  [%s::b]%s[-:-:-]\n\n%s", colorName(kv.theme.CounterColor), npub, RenderQR(npub))
}

// ShowMessage displays a status message.
func (kv *KeyView) ShowMessage(msg string) {
	kv.Clear()
	_, _ = fmt.Fprintf(kv, "\n\n%s", tview.Escape(msg))
}

// RenderQR converts a string to a compact QR code using Unicode half-block
// characters, two modules per character cell.
func RenderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	qr.DisableBorder = false

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder

	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := false
			if y+1 < rows {
				bot = bitmap[y+1][x]
			}
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top && !bot:
				sb.WriteRune('▀')
			case !top && bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}

	return sb.String()
}
