// Package identity handles the operator's secp256k1 key pair and its
// NIP-19 bech32 encodings. Signing and encryption happen in the backend.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcutil/bech32"
)

const (
	PublicPrefix = "npub"
	SecretPrefix = "nsec"
)

// ErrInvalidKey is returned for keys that are malformed or out of range.
var ErrInvalidKey = errors.New("invalid key")

// KeyPair is a hex-encoded secret key and its x-only public key.
type KeyPair struct {
	Secret string
	Public string
}

// Generate creates a fresh key pair.
func Generate() (KeyPair, error) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	secret := hex.EncodeToString(padded(priv.D.Bytes()))
	return KeyPair{Secret: secret, Public: xOnly(priv.PubKey())}, nil
}

// PublicKey derives the x-only public key of a hex secret key.
func PublicKey(secretHex string) (string, error) {
	raw, err := decodeHex32(secretHex)
	if err != nil {
		return "", err
	}
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(btcec.S256().N) >= 0 {
		return "", fmt.Errorf("%w: secret out of range", ErrInvalidKey)
	}
	_, pub := btcec.PrivKeyFromBytes(btcec.S256(), raw)
	return xOnly(pub), nil
}

// ParseSecret accepts a secret as nsec1... or 64 hex characters and
// returns the key pair.
func ParseSecret(s string) (KeyPair, error) {
	s = strings.TrimSpace(s)
	secret := strings.ToLower(s)
	if strings.HasPrefix(secret, SecretPrefix+"1") {
		raw, err := decode(SecretPrefix, secret)
		if err != nil {
			return KeyPair{}, err
		}
		secret = hex.EncodeToString(raw)
	}
	pub, err := PublicKey(secret)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Secret: secret, Public: pub}, nil
}

// ParsePublic accepts a public key as npub1... or 64 hex characters and
// returns it as hex.
func ParsePublic(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, PublicPrefix+"1") {
		raw, err := decode(PublicPrefix, s)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(raw), nil
	}
	if _, err := decodeHex32(s); err != nil {
		return "", err
	}
	return s, nil
}

// EncodePublic returns the npub form of a hex public key.
func EncodePublic(pubHex string) (string, error) {
	return encode(PublicPrefix, pubHex)
}

// EncodeSecret returns the nsec form of a hex secret key.
func EncodeSecret(secretHex string) (string, error) {
	return encode(SecretPrefix, secretHex)
}

func encode(hrp, keyHex string) (string, error) {
	raw, err := decodeHex32(keyHex)
	if err != nil {
		return "", err
	}
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	return bech32.Encode(hrp, data)
}

func decode(wantHRP, s string) ([]byte, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if hrp != wantHRP {
		return nil, fmt.Errorf("%w: prefix %q, want %q", ErrInvalidKey, hrp, wantHRP)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(raw))
	}
	return raw, nil
}

func decodeHex32(s string) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: %d bytes, want 32", ErrInvalidKey, len(raw))
	}
	return raw, nil
}

func xOnly(pub *btcec.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed()[1:])
}

func padded(b []byte) []byte {
	if len(b) >= 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
