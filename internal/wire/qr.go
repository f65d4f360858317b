package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQR is returned when a scanned payload is not a complete pairing QR
var ErrInvalidQR = errors.New("wire: invalid pairing QR payload")

// PairingQRPayload carries the same data as a discovery response for
// out-of-band transfer. Every field is mandatory.
type PairingQRPayload struct {
	Type      MessageType `json:"type"`
	Host      string      `json:"host"`
	Port      int         `json:"port"`
	PairCode  string      `json:"pairCode"`
	PublicKey string      `json:"publicKey"`
	KeyID     string      `json:"keyId"`
}

// NewPairingQRPayload builds a payload with the type tag set
func NewPairingQRPayload(host string, port int, pairCode, publicKey, keyID string) PairingQRPayload {
	return PairingQRPayload{
		Type:      TypePairingQR,
		Host:      host,
		Port:      port,
		PairCode:  pairCode,
		PublicKey: publicKey,
		KeyID:     keyID,
	}
}

// Encode returns the JSON text to render into a QR code
func (p PairingQRPayload) Encode() (string, error) {
	p.Type = TypePairingQR
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal QR payload: %w", err)
	}
	return string(data), nil
}

// Validate checks that every field is present and the port is usable
func (p PairingQRPayload) Validate() error {
	if p.Type != TypePairingQR {
		return fmt.Errorf("%w: type %q", ErrInvalidQR, p.Type)
	}
	if strings.TrimSpace(p.Host) == "" ||
		strings.TrimSpace(p.PairCode) == "" ||
		strings.TrimSpace(p.PublicKey) == "" ||
		strings.TrimSpace(p.KeyID) == "" {
		return fmt.Errorf("%w: missing field", ErrInvalidQR)
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidQR, p.Port)
	}
	return nil
}

// DiscoveryResponse converts the payload into the equivalent discovery result
func (p PairingQRPayload) DiscoveryResponse() *DiscoveryResponse {
	return &DiscoveryResponse{
		Type:      TypeDiscoveryResponse,
		Host:      p.Host,
		Port:      p.Port,
		PairCode:  p.PairCode,
		PublicKey: p.PublicKey,
		KeyID:     p.KeyID,
	}
}

// ParsePairingQR decodes and validates scanned QR text
func ParsePairingQR(raw string) (*PairingQRPayload, error) {
	var p PairingQRPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQR, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
