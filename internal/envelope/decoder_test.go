package envelope

import (
	"bytes"
	"reflect"
	"testing"
)

func TestDecoderPrecedence(t *testing.T) {
	session, err := NewSessionKey(bytes.Repeat([]byte{3}, KeySize), "kid")
	if err != nil {
		t.Fatalf("NewSessionKey: %v", err)
	}
	shared := NewSharedSecretKey("change-me")
	snapshot := sampleSnapshot()

	dec := NewDecoder("change-me")

	tests := []struct {
		name       string
		key        *Key
		withSess   bool
		wantSource Source
		wantOK     bool
	}{
		{"plain without session", nil, false, SourcePlain, true},
		{"shared without session", shared, false, SourceSharedSecret, true},
		{"session envelope before handshake", session, false, SourceNone, false},
		{"session envelope after handshake", session, true, SourceSession, true},
		{"shared after handshake", shared, true, SourceSharedSecret, true},
		{"plain after handshake", nil, true, SourcePlain, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.withSess {
				dec.SetSessionKey(session)
			} else {
				dec.SetSessionKey(nil)
			}
			got, source, ok := dec.Decode(mustEncode(t, snapshot, tt.key))
			if ok != tt.wantOK || source != tt.wantSource {
				t.Fatalf("got source=%s ok=%v, want source=%s ok=%v", source, ok, tt.wantSource, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, snapshot) {
				t.Errorf("got %+v, want %+v", got, snapshot)
			}
		})
	}
}

func TestDecoderWithoutSharedSecret(t *testing.T) {
	dec := NewDecoder("")
	if _, _, ok := dec.Decode(mustEncode(t, sampleSnapshot(), NewSharedSecretKey("x"))); ok {
		t.Error("decoder without keys should drop encrypted envelopes")
	}
	if _, source, ok := dec.Decode(mustEncode(t, sampleSnapshot(), nil)); !ok || source != SourcePlain {
		t.Errorf("expected plain decode, got %s %v", source, ok)
	}
}
