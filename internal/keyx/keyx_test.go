package keyx

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"testing"
)

func mustKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func TestDeriveSessionKeySymmetric(t *testing.T) {
	for _, keyID := range []string{"", "a1b2c3", "0123456789abcdef0123456789abcdef"} {
		a := mustKeyPair(t)
		b := mustKeyPair(t)

		ab, err := DeriveSessionKey(a, b.PublicKey(), keyID)
		if err != nil {
			t.Fatalf("derive a->b: %v", err)
		}
		ba, err := DeriveSessionKey(b, a.PublicKey(), keyID)
		if err != nil {
			t.Fatalf("derive b->a: %v", err)
		}
		if !bytes.Equal(ab, ba) {
			t.Errorf("keyID %q: session keys differ", keyID)
		}
		if len(ab) != SessionKeySize {
			t.Errorf("expected %d byte key, got %d", SessionKeySize, len(ab))
		}
	}
}

func TestDeriveSessionKeyDeterministic(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)

	first, err := DeriveSessionKey(a, b.PublicKey(), "kid")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, err := DeriveSessionKey(a, b.PublicKey(), "kid")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same inputs produced different keys")
	}

	other, err := DeriveSessionKey(a, b.PublicKey(), "kid2")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if bytes.Equal(first, other) {
		t.Error("different keyID produced the same key")
	}
}

func TestExportParseRoundTrip(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)

	exported, err := b.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	viaBase64, err := DeriveSessionKeyFromBase64(a, exported, "kid")
	if err != nil {
		t.Fatalf("DeriveSessionKeyFromBase64: %v", err)
	}
	direct, err := DeriveSessionKey(a, b.PublicKey(), "kid")
	if err != nil {
		t.Fatalf("DeriveSessionKey: %v", err)
	}
	if !bytes.Equal(viaBase64, direct) {
		t.Error("parsed public key derives a different session key")
	}
}

func TestParsePublicKeyRejectsOtherCurves(t *testing.T) {
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&p384.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}

	_, err = ParsePublicKey(base64.StdEncoding.EncodeToString(der))
	if !errors.Is(err, ErrCurveMismatch) {
		t.Errorf("expected ErrCurveMismatch, got %v", err)
	}
}

func TestParsePublicKeyMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not base64", "!!!not-base64!!!"},
		{"not der", base64.StdEncoding.EncodeToString([]byte("hello world"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.input)
			if !errors.Is(err, ErrInvalidPublicKey) {
				t.Errorf("expected ErrInvalidPublicKey, got %v", err)
			}
		})
	}
}

func TestDeriveSessionKeyNilInputs(t *testing.T) {
	a := mustKeyPair(t)
	if _, err := DeriveSessionKey(nil, a.PublicKey(), "kid"); err == nil {
		t.Error("expected error for nil local key pair")
	}
	if _, err := DeriveSessionKey(a, nil, "kid"); err == nil {
		t.Error("expected error for nil remote key")
	}
}
