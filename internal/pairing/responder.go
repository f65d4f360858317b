package pairing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/padlink/padlink/internal/envelope"
	"github.com/padlink/padlink/internal/wire"
)

var (
	// ErrPairCodeMismatch is returned when the request carries the wrong pairing code
	ErrPairCodeMismatch = errors.New("pairing: pairing code mismatch")
	// ErrStaleKeyID is returned when the request names a keyId other than the current one
	ErrStaleKeyID = errors.New("pairing: keyId does not match current session")
)

// Accepted is the result of a valid pairing exchange
type Accepted struct {
	Request    *wire.PairingExchangeRequest
	SessionKey *envelope.Key
	Ack        []byte
}

// Responder validates pairing exchanges against a Session. Every error it
// returns means "drop silently": no negative acknowledgement is ever sent.
type Responder struct {
	session  *Session
	pairCode string
}

// NewResponder creates a responder gated by pairCode (empty accepts any code)
func NewResponder(session *Session, pairCode string) *Responder {
	return &Responder{session: session, pairCode: pairCode}
}

// HandleExchange validates type, pairing code, keyId freshness and client key,
// in that order, then derives the session key and builds the ack.
func (r *Responder) HandleExchange(data []byte) (*Accepted, error) {
	req, err := wire.ParsePairingExchange(data)
	if err != nil {
		return nil, err
	}
	if !wire.PairCodeMatches(r.pairCode, req.PairCode) {
		return nil, ErrPairCodeMismatch
	}

	// Load the identity once so the keyId check and derivation use the same generation.
	id := r.session.Current()
	if id == nil {
		return nil, ErrNoKeyPair
	}
	if req.KeyID != id.KeyID {
		return nil, ErrStaleKeyID
	}

	key, err := id.DeriveSessionKey(req.ClientPublicKey)
	if err != nil {
		return nil, err
	}

	ack, err := json.Marshal(wire.PairingAck{Type: wire.TypePairingAck, KeyID: id.KeyID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ack: %w", err)
	}
	return &Accepted{Request: req, SessionKey: key, Ack: ack}, nil
}
