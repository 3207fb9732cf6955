package notify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/nchat/internal/api"
)

// TypeDirectMessage is the only envelope type the core reacts to.
const TypeDirectMessage = "dm:-1"

// ErrMalformedEnvelope is returned for payloads that are not usable envelopes.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is a decoded push payload.
type Envelope struct {
	Type       string
	PeerPubkey string
	DM         *api.Message
}

type wireEnvelope struct {
	Type           string       `json:"type"`
	PeerPubkey     string       `json:"peerPubkey"`
	CustomerPubkey string       `json:"customerPubkey"`
	DM             *api.Message `json:"dm"`
}

// DecodeEnvelope parses a raw push payload. customerPubkey is accepted as an
// alias of peerPubkey; the message's own public key is the last fallback.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if w.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	env := Envelope{Type: w.Type, PeerPubkey: w.PeerPubkey, DM: w.DM}
	if env.PeerPubkey == "" {
		env.PeerPubkey = w.CustomerPubkey
	}
	if env.Type != TypeDirectMessage {
		return env, nil
	}
	if env.DM == nil {
		return Envelope{}, fmt.Errorf("%w: %s without dm", ErrMalformedEnvelope, env.Type)
	}
	if env.PeerPubkey == "" {
		env.PeerPubkey = env.DM.PublicKey
	}
	if env.PeerPubkey == "" {
		return Envelope{}, fmt.Errorf("%w: missing peer key", ErrMalformedEnvelope)
	}
	return env, nil
}
