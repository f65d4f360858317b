package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		verbose   bool
		wantDebug bool
	}{
		{verbose: false, wantDebug: false},
		{verbose: true, wantDebug: true},
	}
	for _, tt := range tests {
		log, err := New(tt.verbose)
		if err != nil {
			t.Fatalf("New(%v): %v", tt.verbose, err)
		}
		if got := log.Desugar().Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
			t.Errorf("New(%v) debug enabled = %v, want %v", tt.verbose, got, tt.wantDebug)
		}
		if !log.Desugar().Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("New(%v) info disabled", tt.verbose)
		}
	}
}
