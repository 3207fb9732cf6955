package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // true for 0-9 shortcuts (displayed in a different color)
}

// Component is a page of the shell. Start runs when the page comes to the
// top of the stack and Stop when it leaves.
type Component interface {
	tview.Primitive
	Name() string
	Start()
	Stop()
}
