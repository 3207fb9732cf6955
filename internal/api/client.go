// Package api is a typed client for the nostrchat backend HTTP surface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/nchat/internal/metrics"
	"go.uber.org/zap"
)

const apiPrefix = "/nostrchat/api/v1"

// Tier selects which credential authorizes a request.
type Tier int

const (
	// ReadOnly uses the invoice key.
	ReadOnly Tier = iota
	// Admin uses the admin key.
	Admin
)

// Config holds the backend address and credentials.
type Config struct {
	BaseURL    string
	InvoiceKey string
	AdminKey   string
	Timeout    time.Duration
}

// Client calls the backend. It never retries; callers own retry policy.
type Client struct {
	baseURL    string
	invoiceKey string
	adminKey   string
	http       *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a client for the given backend.
func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		invoiceKey: cfg.InvoiceKey,
		adminKey:   cfg.AdminKey,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics.OrNop(m),
	}
}

// WebSocketURL returns the push channel address for an account.
func (c *Client) WebSocketURL(accountID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/ws/" + url.PathEscape(accountID)
	return u.String(), nil
}

// FetchAccount returns the account of the credential owner, or nil when none exists.
func (c *Client) FetchAccount(ctx context.Context) (*Account, error) {
	var acct *Account
	if err := c.do(ctx, "fetch_account", http.MethodGet, "/nostracct", ReadOnly, nil, &acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// CreateAccount registers a key pair as the operator account.
func (c *Client) CreateAccount(ctx context.Context, secret, pubkey string) (*Account, error) {
	req := CreateAccountRequest{PrivateKey: secret, PublicKey: pubkey}
	var acct Account
	if err := c.do(ctx, "create_account", http.MethodPost, "/nostracct", Admin, req, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// ToggleAccount flips the account's active flag.
func (c *Client) ToggleAccount(ctx context.Context, accountID string) (*Account, error) {
	var acct Account
	path := "/nostracct/" + url.PathEscape(accountID) + "/toggle"
	if err := c.do(ctx, "toggle_account", http.MethodPut, path, Admin, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// RequeryAccount asks the backend to refresh account data from relays.
func (c *Client) RequeryAccount(ctx context.Context, accountID string) (*Account, error) {
	var acct Account
	path := "/nostracct/" + url.PathEscape(accountID) + "/requery"
	if err := c.do(ctx, "requery_account", http.MethodPut, path, Admin, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// RepublishAccount asks the backend to publish the account data to relays again.
func (c *Client) RepublishAccount(ctx context.Context, accountID string) (*Account, error) {
	var acct Account
	path := "/nostracct/" + url.PathEscape(accountID) + "/republish"
	if err := c.do(ctx, "republish_account", http.MethodPut, path, Admin, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// DeleteAccountFromNostr retracts the account data from relays. The local
// account is kept.
func (c *Client) DeleteAccountFromNostr(ctx context.Context, accountID string) error {
	path := "/nostracct/" + url.PathEscape(accountID) + "/nostr"
	return c.do(ctx, "unpublish_account", http.MethodDelete, path, Admin, nil, nil)
}

// DeleteAccount removes the account and its messages.
func (c *Client) DeleteAccount(ctx context.Context, accountID string) error {
	path := "/nostracct/" + url.PathEscape(accountID)
	return c.do(ctx, "delete_account", http.MethodDelete, path, Admin, nil, nil)
}

// ListPeers returns the account's contacts with unread counters.
func (c *Client) ListPeers(ctx context.Context) ([]Peer, error) {
	var peers []Peer
	if err := c.do(ctx, "list_peers", http.MethodGet, "/peer", ReadOnly, nil, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// AddPeer adds a contact by public key.
func (c *Client) AddPeer(ctx context.Context, accountID, pubkey string) (*Peer, error) {
	req := AddPeerRequest{PublicKey: pubkey, AccountID: accountID}
	var peer Peer
	if err := c.do(ctx, "add_peer", http.MethodPost, "/peer", Admin, req, &peer); err != nil {
		return nil, err
	}
	return &peer, nil
}

// FetchThread returns the full conversation with a peer. The backend resets
// the peer's unread counter as a side effect.
func (c *Client) FetchThread(ctx context.Context, pubkey string) ([]Message, error) {
	var msgs []Message
	path := "/message/" + url.PathEscape(pubkey)
	if err := c.do(ctx, "fetch_thread", http.MethodGet, path, ReadOnly, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage persists and publishes a direct message, returning the stored copy.
func (c *Client) SendMessage(ctx context.Context, pubkey, text string) (*Message, error) {
	req := SendMessageRequest{Message: text, PublicKey: pubkey}
	var msg Message
	if err := c.do(ctx, "send_message", http.MethodPost, "/message", Admin, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RestartConnection asks the backend to reconnect to its relays.
func (c *Client) RestartConnection(ctx context.Context) error {
	return c.do(ctx, "restart_connection", http.MethodPut, "/restart", Admin, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, tier Tier, body, out any) (err error) {
	requestID := uuid.NewString()
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = string(KindOf(err))
		}
		c.metrics.APIRequests.WithLabelValues(op, result).Inc()
		c.logger.Debug("api request",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.String("result", result),
			zap.Duration("elapsed", time.Since(start)))
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Kind: KindDecode, Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return &RequestError{Kind: KindNetwork, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", requestID)
	key := c.invoiceKey
	if tier == Admin {
		key = c.adminKey
	}
	if key != "" {
		req.Header.Set("X-Api-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Kind: KindNetwork, Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 {
		return &RequestError{
			Kind:   kindForStatus(resp.StatusCode),
			Op:     op,
			Status: resp.StatusCode,
			Detail: errorDetail(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &RequestError{Kind: KindDecode, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// errorDetail extracts the backend's {"detail": ...} message. Validation
// errors carry a structured detail, which is returned as raw JSON.
func errorDetail(body []byte) string {
	var errResp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(errResp.Detail, &s); err == nil {
		return s
	}
	return string(errResp.Detail)
}
