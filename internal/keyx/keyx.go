// Package keyx implements the P-256 key agreement that turns a pairing
// handshake into a shared 32-byte session key.
package keyx

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// SessionKeySize is the length of every derived session key
	SessionKeySize = 32

	// Info is the HKDF info label shared by both ends of the handshake
	Info = "mobile-gamepad-ecdh"
)

var (
	// ErrInvalidPublicKey is returned when a peer public key cannot be decoded
	ErrInvalidPublicKey = errors.New("keyx: invalid public key")
	// ErrCurveMismatch is returned when a peer public key is not on P-256
	ErrCurveMismatch = errors.New("keyx: public key is not a P-256 key")
)

// KeyPair is an ephemeral P-256 key pair. The private half never leaves it.
type KeyPair struct {
	private *ecdh.PrivateKey
}

// GenerateKeyPair creates a fresh P-256 key pair
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate P-256 key: %w", err)
	}
	return &KeyPair{private: priv}, nil
}

// PublicKey returns the public half of the pair
func (k *KeyPair) PublicKey() *ecdh.PublicKey {
	return k.private.PublicKey()
}

// Export returns the public key as base64 SubjectPublicKeyInfo
func (k *KeyPair) Export() (string, error) {
	return ExportPublicKey(k.PublicKey())
}

// ExportPublicKey encodes pub as standard base64 of its DER SubjectPublicKeyInfo,
// the form carried in discovery responses, QR payloads and pairing requests.
func ExportPublicKey(pub *ecdh.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ParsePublicKey decodes a base64 SubjectPublicKeyInfo and checks that it is
// a P-256 key. A key on any other curve is rejected here rather than being
// allowed to produce a diverging session key later.
func ParsePublicKey(encoded string) (*ecdh.PublicKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrInvalidPublicKey
	}
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	switch key := parsed.(type) {
	case *ecdsa.PublicKey:
		if key.Curve != elliptic.P256() {
			return nil, ErrCurveMismatch
		}
		pub, err := key.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return pub, nil
	case *ecdh.PublicKey:
		if key.Curve() != ecdh.P256() {
			return nil, ErrCurveMismatch
		}
		return key, nil
	default:
		return nil, ErrCurveMismatch
	}
}

// DeriveSessionKey runs ECDH between local and remote, then HKDF-SHA256 with
// salt = keyID and info = Info. The result is deterministic for a given
// (local private, remote public, keyID) triple, so both ends of a handshake
// arrive at the same key without an extra round trip.
func DeriveSessionKey(local *KeyPair, remote *ecdh.PublicKey, keyID string) ([]byte, error) {
	if local == nil || local.private == nil || remote == nil {
		return nil, ErrInvalidPublicKey
	}
	if remote.Curve() != ecdh.P256() {
		return nil, ErrCurveMismatch
	}

	shared, err := local.private.ECDH(remote)
	if err != nil {
		return nil, fmt.Errorf("ecdh failed: %w", err)
	}

	kdf := hkdf.New(sha256.New, shared, []byte(keyID), []byte(Info))
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("hkdf expand failed: %w", err)
	}
	return key, nil
}

// DeriveSessionKeyFromBase64 parses the remote key and derives the session key
func DeriveSessionKeyFromBase64(local *KeyPair, remote string, keyID string) ([]byte, error) {
	pub, err := ParsePublicKey(remote)
	if err != nil {
		return nil, err
	}
	return DeriveSessionKey(local, pub, keyID)
}
