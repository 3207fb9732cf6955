package bus

import "time"

// Event kinds published by the sync core for the UI shell.
const (
	PeersChanged         = "peers.changed"
	ThreadUpdated        = "thread.updated"
	ThreadLoading        = "thread.loading"
	ThreadScroll         = "thread.scroll"
	ThreadRefocus        = "thread.refocus"
	ChannelStatusChanged = "channel.status_changed"
	NoticeError          = "notice.error"
	NoticeWarning        = "notice.warning"
)

// Event represents a core-to-UI signal published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Notice is the payload of NoticeError and NoticeWarning events.
type Notice struct {
	Message string
	Err     error
}

// Warn publishes a NoticeWarning.
func (b *Bus) Warn(msg string, err error) {
	b.Emit(NoticeWarning, Notice{Message: msg, Err: err})
}

// Fail publishes a NoticeError.
func (b *Bus) Fail(msg string, err error) {
	b.Emit(NoticeError, Notice{Message: msg, Err: err})
}
