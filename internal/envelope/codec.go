package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/padlink/padlink/internal/wire"
)

const (
	// NonceSize is the GCM nonce length (96 bits)
	NonceSize = 12
	// TagSize is the GCM authentication tag length (128 bits)
	TagSize = 16
)

// Encode serializes s. With a nil key the snapshot goes out as a plaintext
// "gamepad" message; otherwise it is sealed under a fresh random nonce.
func Encode(s InputSnapshot, key *Key) ([]byte, error) {
	plain, err := json.Marshal(plainMessage{Type: wire.TypeGamepad, InputSnapshot: s})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if key == nil {
		return plain, nil
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plain, nil)

	data, err := json.Marshal(wire.EncryptedEnvelope{
		Type:    wire.TypeGamepadEncrypted,
		Nonce:   base64.StdEncoding.EncodeToString(nonce),
		Payload: base64.StdEncoding.EncodeToString(sealed),
		KeyID:   key.id,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// Decode parses data with a single key configuration. A nil key means the
// datagram must be a plaintext snapshot. Any failure, including a tag
// mismatch, yields ok == false and never a partial snapshot.
func Decode(data []byte, key *Key) (InputSnapshot, bool) {
	if key == nil {
		return decodePlain(data, false)
	}

	var env wire.EncryptedEnvelope
	if err := wire.Unmarshal(data, wire.TypeGamepadEncrypted, &env); err != nil {
		return InputSnapshot{}, false
	}
	if env.KeyID != "" && key.id != "" && env.KeyID != key.id {
		return InputSnapshot{}, false
	}

	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonce) != NonceSize {
		return InputSnapshot{}, false
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil || len(sealed) < TagSize {
		return InputSnapshot{}, false
	}

	aead, err := newAEAD(key)
	if err != nil {
		return InputSnapshot{}, false
	}
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return InputSnapshot{}, false
	}
	return decodePlain(plain, true)
}

// decodePlain parses a plaintext snapshot. Inside an authenticated envelope
// the type tag may be omitted.
func decodePlain(data []byte, sealed bool) (InputSnapshot, bool) {
	var msg plainMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return InputSnapshot{}, false
	}
	switch {
	case msg.Type == wire.TypeGamepad:
	case sealed && msg.Type == "":
	default:
		return InputSnapshot{}, false
	}
	return msg.InputSnapshot, true
}

func newAEAD(key *Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key.material)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
