package notifications

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrAuthentication is returned when an envelope cannot be decoded under the
// configured key: wrong secret, truncated frame, or tampered bytes.
var ErrAuthentication = errors.New("envelope failed authentication")

// envelopeVersion tags the wire format so future codec changes can coexist
// with old senders.
const envelopeVersion = 1

// Envelope is the wire representation of a Notification. Version and Nonce
// are the only plaintext metadata; Data is the AEAD ciphertext of the
// JSON-serialized notification.
type Envelope struct {
	Version uint8  `json:"v"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// Encode seals a notification under key. Encoding keeps no state between
// calls; a fresh random nonce is drawn every time.
func Encode(key Key, n Notification) (Envelope, error) {
	plaintext, err := json.Marshal(n)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode notification: %w", err)
	}

	aead, err := chacha20poly1305.New(key.material[:])
	if err != nil {
		return Envelope{}, fmt.Errorf("encode notification: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("encode notification: %w", err)
	}

	data := aead.Seal(nil, nonce, plaintext, []byte{envelopeVersion})
	return Envelope{Version: envelopeVersion, Nonce: nonce, Data: data}, nil
}

// Decode opens an envelope under key. Any failure to authenticate -- wrong
// key, flipped bit, bad nonce length, unknown version -- returns
// ErrAuthentication; a notification is never produced from unverified bytes.
func Decode(key Key, e Envelope) (Notification, error) {
	if e.Version != envelopeVersion {
		return Notification{}, fmt.Errorf("%w: unsupported version %d", ErrAuthentication, e.Version)
	}
	if len(e.Nonce) != chacha20poly1305.NonceSize {
		return Notification{}, fmt.Errorf("%w: bad nonce length %d", ErrAuthentication, len(e.Nonce))
	}

	aead, err := chacha20poly1305.New(key.material[:])
	if err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}

	plaintext, err := aead.Open(nil, e.Nonce, e.Data, []byte{e.Version})
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	var n Notification
	if err := json.Unmarshal(plaintext, &n); err != nil {
		return Notification{}, fmt.Errorf("%w: undecodable payload", ErrAuthentication)
	}
	return n, nil
}

// MarshalBinary frames the envelope for stream transports:
// version byte, nonce, ciphertext.
func (e Envelope) MarshalBinary() ([]byte, error) {
	if len(e.Nonce) != chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("marshal envelope: bad nonce length %d", len(e.Nonce))
	}
	out := make([]byte, 0, 1+len(e.Nonce)+len(e.Data))
	out = append(out, e.Version)
	out = append(out, e.Nonce...)
	out = append(out, e.Data...)
	return out, nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (e *Envelope) UnmarshalBinary(b []byte) error {
	if len(b) < 1+chacha20poly1305.NonceSize {
		return fmt.Errorf("%w: short frame (%d bytes)", ErrAuthentication, len(b))
	}
	e.Version = b[0]
	e.Nonce = append([]byte(nil), b[1:1+chacha20poly1305.NonceSize]...)
	e.Data = append([]byte(nil), b[1+chacha20poly1305.NonceSize:]...)
	return nil
}
