package notifications

import (
	"errors"
	"strings"
	"testing"
)

func mustKey(t *testing.T, secret string) Key {
	t.Helper()
	k, err := NewKey(secret)
	if err != nil {
		t.Fatalf("NewKey(%q): %v", secret, err)
	}
	return k
}

func TestNewKeyRejectsEmptySecret(t *testing.T) {
	t.Parallel()
	if _, err := NewKey(""); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestKeyAcceptsAnySecretLength(t *testing.T) {
	t.Parallel()
	for _, secret := range []string{"k", "UVXu7wtbXHWNgAr6rWyPnaZbZK9aYin8", strings.Repeat("x", 512)} {
		if _, err := NewKey(secret); err != nil {
			t.Fatalf("NewKey(len=%d): %v", len(secret), err)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	key := mustKey(t, "shared-secret")
	want := NewMessage("deploy finished").Ready("deploy-done").Notification()

	env, err := Encode(key, want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(key, env)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestDecodeWrongKeyFails(t *testing.T) {
	t.Parallel()
	env, err := Encode(mustKey(t, "key-one"), NewMessage("hi").Ready("a").Notification())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(mustKey(t, "key-two"), env); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestDecodeTamperedDataFails(t *testing.T) {
	t.Parallel()
	key := mustKey(t, "shared-secret")
	env, err := Encode(key, NewMessage("hi").Ready("a").Notification())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	env.Data[0] ^= 0x01
	if _, err := Decode(key, env); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication after bit flip, got %v", err)
	}
}

func TestDecodeRejectsBadMetadata(t *testing.T) {
	t.Parallel()
	key := mustKey(t, "shared-secret")
	env, err := Encode(key, NewMessage("hi").Ready("a").Notification())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	wrongVersion := env
	wrongVersion.Version = 99
	if _, err := Decode(key, wrongVersion); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for unknown version, got %v", err)
	}

	shortNonce := env
	shortNonce.Nonce = env.Nonce[:4]
	if _, err := Decode(key, shortNonce); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for short nonce, got %v", err)
	}
}

func TestEnvelopeBinaryRoundTrip(t *testing.T) {
	t.Parallel()
	key := mustKey(t, "shared-secret")
	env, err := Encode(key, NewMessage("framed").Ready("pipe-test").Notification())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	b, err := env.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var back Envelope
	if err := back.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if _, err := Decode(key, back); err != nil {
		t.Fatalf("Decode after binary round trip: %v", err)
	}
}

func TestEnvelopeUnmarshalBinaryShortFrame(t *testing.T) {
	t.Parallel()
	var e Envelope
	if err := e.UnmarshalBinary([]byte{1, 2, 3}); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for short frame, got %v", err)
	}
}
