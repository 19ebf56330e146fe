package notifications

import (
	"errors"

	"golang.org/x/crypto/blake2b"
)

// ErrEmptyKey is returned when a key is derived from an empty secret.
var ErrEmptyKey = errors.New("notification key secret is empty")

// Key holds the 32 bytes of material derived from the configured shared
// secret. Client and server must be configured with byte-identical secrets;
// the secret itself may be any non-zero length.
type Key struct {
	material [32]byte
}

// NewKey derives a Key from an arbitrary-length shared secret.
func NewKey(secret string) (Key, error) {
	if len(secret) == 0 {
		return Key{}, ErrEmptyKey
	}
	return Key{material: blake2b.Sum256([]byte(secret))}, nil
}

// Equal reports whether two keys were derived from the same secret.
func (k Key) Equal(other Key) bool { return k.material == other.material }
