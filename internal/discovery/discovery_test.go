package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/padlink/padlink/internal/pairing"
	"github.com/padlink/padlink/internal/wire"
)

func startResponder(t *testing.T, pairCode string) (*Responder, *pairing.Session) {
	t.Helper()
	session, err := pairing.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	r := NewResponder(ResponderConfig{
		ListenAddr: "127.0.0.1:0",
		StreamPort: 9876,
		PairCode:   pairCode,
		Session:    session,
	})
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(r.Stop)
	return r, session
}

func TestDiscoverWithMatchingCode(t *testing.T) {
	r, session := startResponder(t, "1234")

	resp, err := Discover(context.Background(), Options{
		PairCode: "1234",
		Timeout:  time.Second,
		Target:   r.Addr(),
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if resp.KeyID != session.KeyID() {
		t.Errorf("keyId %q, want %q", resp.KeyID, session.KeyID())
	}
	if resp.PublicKey != session.PublicKey() {
		t.Error("public key does not match session")
	}
	if resp.Port != 9876 || resp.PairCode != "1234" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Host != "127.0.0.1" {
		t.Errorf("expected loopback host, got %q", resp.Host)
	}
}

func TestDiscoverCaseInsensitiveCode(t *testing.T) {
	r, _ := startResponder(t, "AbCd")
	if _, err := Discover(context.Background(), Options{PairCode: "ABCD", Timeout: time.Second, Target: r.Addr()}); err != nil {
		t.Errorf("Discover: %v", err)
	}
}

func TestDiscoverWrongCodeIgnored(t *testing.T) {
	r, _ := startResponder(t, "1234")

	for _, code := range []string{"9999", ""} {
		_, err := Discover(context.Background(), Options{
			PairCode: code,
			Timeout:  200 * time.Millisecond,
			Target:   r.Addr(),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("code %q: expected ErrNotFound, got %v", code, err)
		}
	}
}

func TestDiscoverNoCodeRequired(t *testing.T) {
	r, session := startResponder(t, "")

	resp, err := Discover(context.Background(), Options{Timeout: time.Second, Target: r.Addr()})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if resp.KeyID != session.KeyID() {
		t.Errorf("keyId %q, want %q", resp.KeyID, session.KeyID())
	}
}

func TestDiscoverReflectsRotation(t *testing.T) {
	r, session := startResponder(t, "")
	if err := session.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	resp, err := Discover(context.Background(), Options{Timeout: time.Second, Target: r.Addr()})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if resp.KeyID != session.KeyID() {
		t.Error("response does not carry the rotated keyId")
	}
}

func TestDiscoverMalformedResponse(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer conn.Close()
	go func() {
		buf := make([]byte, wire.MaxMessageSize)
		_, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		conn.WriteToUDP([]byte(`{"type":"mg_discovery_response","port":"nope"}`), addr)
	}()

	_, err = Discover(context.Background(), Options{Timeout: time.Second, Target: conn.LocalAddr().(*net.UDPAddr)})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDiscoverFillsHostFromSource(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer conn.Close()
	go func() {
		buf := make([]byte, wire.MaxMessageSize)
		_, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		conn.WriteToUDP([]byte(`{"type":"mg_discovery_response"}`), addr)
	}()

	resp, err := Discover(context.Background(), Options{Timeout: time.Second, Target: conn.LocalAddr().(*net.UDPAddr)})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if resp.Host != "127.0.0.1" || resp.Port != wire.DefaultStreamPort {
		t.Errorf("unexpected defaults: %+v", resp)
	}
}

func TestResponderIgnoresOtherTypes(t *testing.T) {
	r, _ := startResponder(t, "")
	if r.accept([]byte(`{"type":"mg_pairing_exchange"}`)) {
		t.Error("non-discovery message accepted")
	}
	if r.accept([]byte(`not json`)) {
		t.Error("garbage accepted")
	}
	if !r.accept([]byte(`{"type":"mg_discovery_request","timestamp":1,"unknown":1}`)) {
		t.Error("valid request with unknown field rejected")
	}
}
