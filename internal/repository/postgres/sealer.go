package postgres

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	formatPlain  byte = 0
	formatSealed byte = 1
	nonceSize         = 24
)

// ErrUnsealCredentials is returned when stored credentials cannot be opened
// with the configured key.
var ErrUnsealCredentials = errors.New("cannot unseal source credentials")

// Sealer encrypts credential bags with NaCl secretbox. A Sealer without a
// key stores them as plain JSON.
type Sealer struct {
	key *[32]byte
}

// NewSealer creates a Sealer. key may be nil.
func NewSealer(key *[32]byte) *Sealer {
	return &Sealer{key: key}
}

// Seal encodes creds as format byte, then nonce and box (sealed) or JSON (plain).
// An empty bag encodes to nil.
func (s *Sealer) Seal(creds map[string]string) ([]byte, error) {
	if len(creds) == 0 {
		return nil, nil
	}
	msg, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}
	if s.key == nil {
		return append([]byte{formatPlain}, msg...), nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 1, 1+nonceSize+len(msg)+secretbox.Overhead)
	out[0] = formatSealed
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, msg, &nonce, s.key), nil
}

// Open reverses Seal.
func (s *Sealer) Open(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var msg []byte
	switch data[0] {
	case formatPlain:
		msg = data[1:]
	case formatSealed:
		if s.key == nil || len(data) < 1+nonceSize {
			return nil, ErrUnsealCredentials
		}
		var nonce [nonceSize]byte
		copy(nonce[:], data[1:1+nonceSize])
		opened, ok := secretbox.Open(nil, data[1+nonceSize:], &nonce, s.key)
		if !ok {
			return nil, ErrUnsealCredentials
		}
		msg = opened
	default:
		return nil, fmt.Errorf("unknown credentials format %d", data[0])
	}

	var creds map[string]string
	if err := json.Unmarshal(msg, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return creds, nil
}
