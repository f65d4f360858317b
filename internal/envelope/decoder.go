package envelope

// Source identifies which key configuration opened a datagram
type Source int

const (
	// SourceNone means the datagram was dropped
	SourceNone Source = iota
	// SourceSession means the handshake-derived session key opened it
	SourceSession
	// SourceSharedSecret means the static shared-secret key opened it
	SourceSharedSecret
	// SourcePlain means it was an unencrypted snapshot
	SourcePlain
)

// String returns a short label for logs
func (s Source) String() string {
	switch s {
	case SourceSession:
		return "session"
	case SourceSharedSecret:
		return "shared-secret"
	case SourcePlain:
		return "plain"
	default:
		return "none"
	}
}

// Decoder applies the receive-side key precedence: the negotiated session
// key first, then the static shared secret, then plaintext. It is owned by
// a single receive loop and is not safe for concurrent use.
type Decoder struct {
	session *Key
	shared  *Key
}

// NewDecoder creates a decoder with an optional static shared secret
func NewDecoder(sharedSecret string) *Decoder {
	return &Decoder{shared: NewSharedSecretKey(sharedSecret)}
}

// SetSessionKey installs the key produced by the latest handshake
func (d *Decoder) SetSessionKey(k *Key) {
	d.session = k
}

// Decode tries each configured key in precedence order
func (d *Decoder) Decode(data []byte) (InputSnapshot, Source, bool) {
	if d.session != nil {
		if s, ok := Decode(data, d.session); ok {
			return s, SourceSession, true
		}
	}
	if d.shared != nil {
		if s, ok := Decode(data, d.shared); ok {
			return s, SourceSharedSecret, true
		}
	}
	if s, ok := Decode(data, nil); ok {
		return s, SourcePlain, true
	}
	return InputSnapshot{}, SourceNone, false
}
