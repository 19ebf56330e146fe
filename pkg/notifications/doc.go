// Package notifications defines the units that move through the relay: a
// Message created by the embedding application, a ClientReadyMessage queued
// for transmission, a decoded Notification ready for routing, and the
// authenticated Envelope that crosses the wire.
//
// The envelope codec is an AEAD (ChaCha20-Poly1305) keyed by material derived
// from the shared secret. Decoding with the wrong key, or any bit-flip on the
// ciphertext, fails with ErrAuthentication; garbage is never routed.
package notifications
