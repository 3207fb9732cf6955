package thread

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/nchat/internal/api"
)

// Content is a message body classified for rendering.
type Content struct {
	// Structured is set for JSON objects carrying a numeric type >= 0.
	Structured bool
	Type       int
	Fields     map[string]any
	Text       string
}

// Decode classifies a raw message body. It never fails: anything that is
// not a structured object is opaque text.
func Decode(raw string) Content {
	c := Content{Text: raw, Type: api.PlainText}
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return c
	}
	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return c
	}
	n, ok := fields["type"].(float64)
	if !ok || n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return c
	}
	c.Structured = true
	c.Type = int(n)
	c.Fields = fields
	return c
}

// Display renders the content for a text surface.
func (c Content) Display() string {
	if !c.Structured {
		return c.Text
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(c.Text), "", "  "); err != nil {
		return c.Text
	}
	return buf.String()
}

// Entry is a thread message ready for display.
type Entry struct {
	Message api.Message
	Content Content
	Age     string
}

func newEntry(m api.Message, now time.Time) Entry {
	ts := m.EventCreatedAt
	if ts == 0 {
		ts = m.Time
	}
	age := ""
	if ts > 0 {
		age = humanize.RelTime(time.Unix(ts, 0), now, "ago", "from now")
	}
	return Entry{Message: m, Content: Decode(m.Message), Age: age}
}
