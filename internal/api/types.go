package api

// AccountConfig is the mutable settings blob of an account.
type AccountConfig struct {
	Name              string `json:"name,omitempty"`
	About             string `json:"about,omitempty"`
	Picture           string `json:"picture,omitempty"`
	EventID           string `json:"event_id,omitempty"`
	SyncFromNostr     bool   `json:"sync_from_nostr,omitempty"`
	Active            bool   `json:"active"`
	RestoreInProgress bool   `json:"restore_in_progress"`
}

// Account identifies the local operator. Key material is opaque to the core.
type Account struct {
	ID         string        `json:"id"`
	PrivateKey string        `json:"private_key"`
	PublicKey  string        `json:"public_key"`
	Config     AccountConfig `json:"config"`
	Time       int64         `json:"time,omitempty"`
}

// CreateAccountRequest is the body of POST /nostracct.
type CreateAccountRequest struct {
	PrivateKey string        `json:"private_key"`
	PublicKey  string        `json:"public_key"`
	Config     AccountConfig `json:"config"`
}

// PeerProfile is the public profile of a contact.
type PeerProfile struct {
	Name  string `json:"name,omitempty"`
	About string `json:"about,omitempty"`
}

// Peer is a contact of the account, keyed by public key.
type Peer struct {
	AccountID      string       `json:"nostracct_id,omitempty"`
	PublicKey      string       `json:"public_key"`
	EventCreatedAt int64        `json:"event_created_at,omitempty"`
	Profile        *PeerProfile `json:"profile,omitempty"`
	UnreadMessages int          `json:"unread_messages"`
}

// DisplayName returns the profile name or a placeholder.
func (p Peer) DisplayName() string {
	if p.Profile != nil && p.Profile.Name != "" {
		return p.Profile.Name
	}
	return "unknown"
}

// About returns the profile about text, empty when unset.
func (p Peer) About() string {
	if p.Profile == nil {
		return ""
	}
	return p.Profile.About
}

// ShortKey abbreviates the public key as first16...last16.
func (p Peer) ShortKey() string {
	k := p.PublicKey
	if len(k) <= 35 {
		return k
	}
	return k[:16] + "..." + k[len(k)-16:]
}

// AddPeerRequest is the body of POST /peer.
type AddPeerRequest struct {
	PublicKey      string `json:"public_key"`
	AccountID      string `json:"nostracct_id"`
	UnreadMessages int    `json:"unread_messages"`
}

// PlainText is the message type of unstructured direct messages.
const PlainText = -1

// Message is one direct message of a conversation.
type Message struct {
	ID             string `json:"id"`
	EventID        string `json:"event_id,omitempty"`
	EventCreatedAt int64  `json:"event_created_at,omitempty"`
	Message        string `json:"message"`
	PublicKey      string `json:"public_key"`
	Type           int    `json:"type"`
	Incoming       bool   `json:"incoming"`
	Time           int64  `json:"time,omitempty"`
}

// Key returns the identifier used for duplicate suppression: the event id,
// or the backend row id when the event id is missing.
func (m Message) Key() string {
	if m.EventID != "" {
		return m.EventID
	}
	return m.ID
}

// SendMessageRequest is the body of POST /message.
type SendMessageRequest struct {
	Message   string `json:"message"`
	PublicKey string `json:"public_key"`
}
