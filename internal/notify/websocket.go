package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// Conn is one live push transport handle.
type Conn interface {
	// Read blocks until the next payload arrives, the peer closes, or ctx ends.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens push transports. Dial returning nil error is the
// transport-open signal.
type Dialer interface {
	Dial(ctx context.Context, accountID string) (Conn, error)
}

// WSDialer dials the backend WebSocket endpoint.
type WSDialer struct {
	// URL maps an account id to its endpoint.
	URL         func(accountID string) (string, error)
	Header      http.Header
	DialTimeout time.Duration
	ReadLimit   int64
}

// Dial implements Dialer.
func (d *WSDialer) Dial(ctx context.Context, accountID string) (Conn, error) {
	u, err := d.URL(accountID)
	if err != nil {
		return nil, err
	}
	if d.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.DialTimeout)
		defer cancel()
	}
	c, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: d.Header})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
