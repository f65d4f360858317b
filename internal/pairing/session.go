// Package pairing owns the host's pairing identity and both halves of the
// pairing handshake.
package pairing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/padlink/padlink/internal/envelope"
	"github.com/padlink/padlink/internal/keyx"
)

// ErrNoKeyPair is returned when a session key is requested before the first rotation
var ErrNoKeyPair = errors.New("pairing: key pair not initialized")

// Identity is one immutable generation of the host's pairing identity.
// KeyID, the key pair and the exported public key always belong together.
type Identity struct {
	KeyID     string
	PublicKey string
	keyPair   *keyx.KeyPair
}

// DeriveSessionKey derives the session key shared with the owner of clientPublicKey
func (id *Identity) DeriveSessionKey(clientPublicKey string) (*envelope.Key, error) {
	material, err := keyx.DeriveSessionKeyFromBase64(id.keyPair, clientPublicKey, id.KeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive session key: %w", err)
	}
	return envelope.NewSessionKey(material, id.KeyID)
}

// Session holds the current Identity. Rotate swaps in a whole new Identity,
// so readers on other goroutines never see a keyId paired with the wrong key.
type Session struct {
	current atomic.Pointer[Identity]
}

// NewSession creates a session with an initial identity
func NewSession() (*Session, error) {
	s := &Session{}
	if err := s.Rotate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Rotate generates a fresh key pair and keyId. Session keys derived from the
// previous identity are never offered again.
func (s *Session) Rotate() error {
	kp, err := keyx.GenerateKeyPair()
	if err != nil {
		return err
	}
	pub, err := kp.Export()
	if err != nil {
		return err
	}
	s.current.Store(&Identity{
		KeyID:     newKeyID(),
		PublicKey: pub,
		keyPair:   kp,
	})
	return nil
}

// Current returns the active identity, or nil before the first rotation
func (s *Session) Current() *Identity {
	return s.current.Load()
}

// KeyID returns the active keyId
func (s *Session) KeyID() string {
	if id := s.Current(); id != nil {
		return id.KeyID
	}
	return ""
}

// PublicKey returns the active base64 public key
func (s *Session) PublicKey() string {
	if id := s.Current(); id != nil {
		return id.PublicKey
	}
	return ""
}

// DeriveSessionKey derives a session key against the active identity
func (s *Session) DeriveSessionKey(clientPublicKey string) (*envelope.Key, error) {
	id := s.Current()
	if id == nil {
		return nil, ErrNoKeyPair
	}
	return id.DeriveSessionKey(clientPublicKey)
}

// newKeyID returns 128 random bits as lowercase hex
func newKeyID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
