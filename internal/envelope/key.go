package envelope

import (
	"fmt"
)

// KeySize is the AES-256 key length
const KeySize = 32

// Key is symmetric key material for sealing envelopes. A Key built from a
// handshake carries the keyId it was derived under; a shared-secret Key does not.
type Key struct {
	material []byte
	id       string
}

// NewSessionKey wraps a handshake-derived session key
func NewSessionKey(material []byte, keyID string) (*Key, error) {
	if len(material) != KeySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", KeySize, len(material))
	}
	m := make([]byte, KeySize)
	copy(m, material)
	return &Key{material: m, id: keyID}, nil
}

// NewSharedSecretKey builds a key from a manually configured shared secret.
// Returns nil for an empty secret.
func NewSharedSecretKey(secret string) *Key {
	if secret == "" {
		return nil
	}
	return &Key{material: NormalizeSecret(secret)}
}

// NormalizeSecret converts an arbitrary shared secret into exactly KeySize
// bytes: UTF-8 bytes truncated when longer, right-padded with zeros when
// shorter. This is only for the manual fallback; it adds no key stretching.
func NormalizeSecret(secret string) []byte {
	out := make([]byte, KeySize)
	copy(out, secret)
	return out
}

// ID returns the keyId the key was derived under, or "" for a shared-secret key
func (k *Key) ID() string {
	return k.id
}

// Material returns a copy of the raw key bytes
func (k *Key) Material() []byte {
	out := make([]byte, len(k.material))
	copy(out, k.material)
	return out
}
