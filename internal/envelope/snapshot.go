// Package envelope frames input snapshots for the stream port, either as
// plaintext JSON or sealed with AES-256-GCM.
package envelope

import (
	"github.com/padlink/padlink/internal/wire"
)

// InputSnapshot is the absolute state of every tracked axis and button at one
// instant. A newer snapshot always supersedes an older one.
type InputSnapshot struct {
	Axes       map[string]float64 `json:"axes"`
	Buttons    map[string]bool    `json:"buttons"`
	DeviceName string             `json:"deviceName"`
	// Timestamp is the sender's wall clock in Unix milliseconds
	Timestamp int64 `json:"timestamp"`
}

// plainMessage is the on-wire form of an unencrypted snapshot, and also the
// plaintext sealed inside an encrypted envelope.
type plainMessage struct {
	Type wire.MessageType `json:"type"`
	InputSnapshot
}
