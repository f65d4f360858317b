package pairing

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/padlink/padlink/internal/keyx"
	"github.com/padlink/padlink/internal/wire"
)

func mustSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func exchangeRequest(t *testing.T, pairCode, keyID, clientPub string) []byte {
	t.Helper()
	data, err := json.Marshal(wire.PairingExchangeRequest{
		Type:            wire.TypePairingExchange,
		PairCode:        pairCode,
		KeyID:           keyID,
		ClientPublicKey: clientPub,
		DeviceName:      "pad",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestNewSessionHasIdentity(t *testing.T) {
	s := mustSession(t)
	if len(s.KeyID()) != 32 {
		t.Errorf("expected 32 hex chars of keyId, got %q", s.KeyID())
	}
	if _, err := keyx.ParsePublicKey(s.PublicKey()); err != nil {
		t.Errorf("exported public key does not parse: %v", err)
	}
}

func TestRotateReplacesIdentity(t *testing.T) {
	s := mustSession(t)
	before := s.Current()
	if err := s.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	after := s.Current()
	if before.KeyID == after.KeyID {
		t.Error("keyId did not change")
	}
	if before.PublicKey == after.PublicKey {
		t.Error("public key did not change")
	}
}

func TestZeroSessionDerive(t *testing.T) {
	var s Session
	if _, err := s.DeriveSessionKey("anything"); !errors.Is(err, ErrNoKeyPair) {
		t.Errorf("expected ErrNoKeyPair, got %v", err)
	}
	if s.KeyID() != "" || s.PublicKey() != "" {
		t.Error("zero session should expose no identity")
	}
}

func TestRotateConcurrentWithReaders(t *testing.T) {
	s := mustSession(t)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := s.Rotate(); err != nil {
				t.Errorf("Rotate: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		id := s.Current()
		exported, err := id.keyPair.Export()
		if err != nil {
			t.Fatalf("Export: %v", err)
		}
		if exported != id.PublicKey {
			t.Fatal("identity public key does not match its key pair")
		}
	}
	wg.Wait()
}

func TestResponderDerivesMatchingKey(t *testing.T) {
	s := mustSession(t)
	r := NewResponder(s, "1234")

	client, err := keyx.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	clientPub, _ := client.Export()

	accepted, err := r.HandleExchange(exchangeRequest(t, "1234", s.KeyID(), clientPub))
	if err != nil {
		t.Fatalf("HandleExchange: %v", err)
	}

	ack, err := wire.ParsePairingAck(accepted.Ack)
	if err != nil {
		t.Fatalf("ParsePairingAck: %v", err)
	}
	if ack.KeyID != s.KeyID() {
		t.Errorf("ack keyId %q, want %q", ack.KeyID, s.KeyID())
	}
	if accepted.Request.DeviceName != "pad" {
		t.Errorf("unexpected device name %q", accepted.Request.DeviceName)
	}

	clientKey, err := keyx.DeriveSessionKeyFromBase64(client, s.PublicKey(), s.KeyID())
	if err != nil {
		t.Fatalf("client derive: %v", err)
	}
	hostKey, err := s.DeriveSessionKey(clientPub)
	if err != nil {
		t.Fatalf("host derive: %v", err)
	}
	if accepted.SessionKey.ID() != s.KeyID() {
		t.Errorf("session key bound to %q", accepted.SessionKey.ID())
	}
	if !bytes.Equal(clientKey, hostKey.Material()) || !bytes.Equal(clientKey, accepted.SessionKey.Material()) {
		t.Error("client and host session keys differ")
	}
}

func TestResponderRejects(t *testing.T) {
	s := mustSession(t)
	client, _ := keyx.GenerateKeyPair()
	clientPub, _ := client.Export()
	oldKeyID := s.KeyID()
	staleRequest := exchangeRequest(t, "1234", oldKeyID, clientPub)
	if err := s.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	r := NewResponder(s, "1234")
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"stale keyId after rotation", staleRequest, ErrStaleKeyID},
		{"wrong pairing code", exchangeRequest(t, "9999", s.KeyID(), clientPub), ErrPairCodeMismatch},
		{"missing client key", exchangeRequest(t, "1234", s.KeyID(), ""), wire.ErrMalformed},
		{"wrong type", []byte(`{"type":"gamepad","axes":{}}`), wire.ErrWrongType},
		{"garbage", []byte(`nope`), wire.ErrMalformed},
		{"bad client key", exchangeRequest(t, "1234", s.KeyID(), "bm90IGEga2V5"), keyx.ErrInvalidPublicKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, err := r.HandleExchange(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if accepted != nil {
				t.Error("rejected request produced an ack")
			}
		})
	}
}

func TestResponderPairCodeCaseInsensitive(t *testing.T) {
	s := mustSession(t)
	client, _ := keyx.GenerateKeyPair()
	clientPub, _ := client.Export()

	r := NewResponder(s, "AbCd")
	if _, err := r.HandleExchange(exchangeRequest(t, "abcd", s.KeyID(), clientPub)); err != nil {
		t.Errorf("expected case-insensitive match, got %v", err)
	}

	open := NewResponder(s, "")
	if _, err := open.HandleExchange(exchangeRequest(t, "whatever", s.KeyID(), clientPub)); err != nil {
		t.Errorf("responder without code should accept, got %v", err)
	}
}
