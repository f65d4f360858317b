// Package wire defines the tagged JSON messages exchanged over the
// discovery and stream ports.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType is the value of the "type" field every message carries
type MessageType string

const (
	// TypeDiscoveryRequest is broadcast by a client looking for a host
	TypeDiscoveryRequest MessageType = "mg_discovery_request"
	// TypeDiscoveryResponse is the unicast reply from a host
	TypeDiscoveryResponse MessageType = "mg_discovery_response"
	// TypePairingExchange carries the client's ephemeral public key
	TypePairingExchange MessageType = "mg_pairing_exchange"
	// TypePairingAck confirms a completed exchange
	TypePairingAck MessageType = "mg_pairing_ack"
	// TypePairingQR is the out-of-band payload shown as a QR code
	TypePairingQR MessageType = "mg_pairing_qr"
	// TypeGamepad is an unencrypted input snapshot
	TypeGamepad MessageType = "gamepad"
	// TypeGamepadEncrypted is an AES-GCM sealed input snapshot
	TypeGamepadEncrypted MessageType = "gamepad_encrypted"
)

const (
	// DefaultStreamPort carries pairing exchanges and input envelopes
	DefaultStreamPort = 9876
	// DefaultDiscoveryPort receives broadcast discovery requests
	DefaultDiscoveryPort = 9877
	// MaxMessageSize is the receive buffer size for every socket. It holds the
	// largest UDP payload, so no datagram is ever truncated.
	MaxMessageSize = 65535
)

var (
	// ErrMalformed is returned for datagrams that are not a JSON object of the expected shape
	ErrMalformed = errors.New("wire: malformed message")
	// ErrWrongType is returned when the "type" field does not match
	ErrWrongType = errors.New("wire: unexpected message type")
)

// DiscoveryRequest asks any listening host to identify itself
type DiscoveryRequest struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	PairCode  string      `json:"pairCode,omitempty"`
}

// DiscoveryResponse tells a client where to stream and which identity to pair with
type DiscoveryResponse struct {
	Type      MessageType `json:"type"`
	Host      string      `json:"host"`
	Port      int         `json:"port"`
	PairCode  string      `json:"pairCode,omitempty"`
	PublicKey string      `json:"publicKey,omitempty"`
	KeyID     string      `json:"keyId,omitempty"`
}

// PairingExchangeRequest is sent by the initiator to the stream port
type PairingExchangeRequest struct {
	Type            MessageType `json:"type"`
	PairCode        string      `json:"pairCode"`
	KeyID           string      `json:"keyId"`
	ClientPublicKey string      `json:"clientPublicKey"`
	DeviceName      string      `json:"deviceName,omitempty"`
}

// PairingAck is the responder's only reply to a valid exchange
type PairingAck struct {
	Type  MessageType `json:"type"`
	KeyID string      `json:"keyId"`
}

// EncryptedEnvelope wraps a sealed snapshot. Nonce and Payload are standard base64.
type EncryptedEnvelope struct {
	Type    MessageType `json:"type"`
	Nonce   string      `json:"nonce"`
	Payload string      `json:"payload"`
	KeyID   string      `json:"keyId,omitempty"`
}

// PeekType returns the "type" field of a JSON object without decoding the rest
func PeekType(data []byte) (MessageType, bool) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Type == nil {
		return "", false
	}
	return MessageType(*head.Type), true
}

// Unmarshal decodes data into v after checking that its type is want.
// Unknown fields are ignored.
func Unmarshal(data []byte, want MessageType, v any) error {
	got, ok := PeekType(data)
	if !ok {
		return ErrMalformed
	}
	if got != want {
		return fmt.Errorf("%w: got %q, want %q", ErrWrongType, got, want)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// ParseDiscoveryResponse decodes a discovery response, defaulting a missing port
func ParseDiscoveryResponse(data []byte) (*DiscoveryResponse, error) {
	var resp DiscoveryResponse
	if err := Unmarshal(data, TypeDiscoveryResponse, &resp); err != nil {
		return nil, err
	}
	if resp.Port == 0 {
		resp.Port = DefaultStreamPort
	}
	if resp.Port < 0 || resp.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrMalformed, resp.Port)
	}
	resp.Host = strings.TrimSpace(resp.Host)
	return &resp, nil
}

// ParsePairingExchange decodes a pairing request. All of pairCode, keyId and
// clientPublicKey must be present and non-blank.
func ParsePairingExchange(data []byte) (*PairingExchangeRequest, error) {
	var req PairingExchangeRequest
	if err := Unmarshal(data, TypePairingExchange, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PairCode) == "" ||
		strings.TrimSpace(req.KeyID) == "" ||
		strings.TrimSpace(req.ClientPublicKey) == "" {
		return nil, fmt.Errorf("%w: missing pairing field", ErrMalformed)
	}
	return &req, nil
}

// ParsePairingAck decodes a pairing acknowledgement
func ParsePairingAck(data []byte) (*PairingAck, error) {
	var ack PairingAck
	if err := Unmarshal(data, TypePairingAck, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// PairCodeMatches reports whether presented satisfies the configured pairing
// code. An empty configured code accepts anything. Comparison ignores case.
func PairCodeMatches(configured, presented string) bool {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return true
	}
	return strings.EqualFold(configured, strings.TrimSpace(presented))
}
