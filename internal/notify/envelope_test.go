package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		peer    string
		typ     string
	}{
		{"peer pubkey", `{"type":"dm:-1","peerPubkey":"p1","dm":{"id":"1"}}`, false, "p1", TypeDirectMessage},
		{"customer alias", `{"type":"dm:-1","customerPubkey":"p2","dm":{"id":"1"}}`, false, "p2", TypeDirectMessage},
		{"peer wins over alias", `{"type":"dm:-1","peerPubkey":"p1","customerPubkey":"p2","dm":{"id":"1"}}`, false, "p1", TypeDirectMessage},
		{"falls back to dm key", `{"type":"dm:-1","dm":{"id":"1","public_key":"p3"}}`, false, "p3", TypeDirectMessage},
		{"other type", `{"type":"dm:0","customerPubkey":"p1"}`, false, "p1", "dm:0"},
		{"missing dm", `{"type":"dm:-1","peerPubkey":"p1"}`, true, "", ""},
		{"missing peer", `{"type":"dm:-1","dm":{"id":"1"}}`, true, "", ""},
		{"missing type", `{"peerPubkey":"p1"}`, true, "", ""},
		{"not json", `{`, true, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedEnvelope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.peer, env.PeerPubkey)
			assert.Equal(t, tt.typ, env.Type)
		})
	}
}
