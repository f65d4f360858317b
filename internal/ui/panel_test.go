package ui

import (
	"errors"
	"strings"
	"testing"
)

func TestRenderPanelPlain(t *testing.T) {
	SetNoColor(true)

	out := RenderPanel("Host ready", []Field{
		{Label: "Stream", Value: "0.0.0.0:9876"},
		{Label: "Key ID", Value: "0123456789abcdef0123456789abcdef"},
	})

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "Host ready") {
		t.Errorf("title missing: %q", lines[0])
	}
	width := len([]rune(lines[0]))
	for i, l := range lines {
		if n := len([]rune(l)); n != width {
			t.Errorf("line %d has width %d, want %d: %q", i, n, width, l)
		}
	}
	if !strings.Contains(out, "Key ID: 0123456789abcdef") {
		t.Errorf("field not rendered:\n%s", out)
	}
}

func TestRenderHelpersWithoutColor(t *testing.T) {
	SetNoColor(true)

	if got := RenderError(errors.New("boom")); got != "Error: boom" {
		t.Errorf("RenderError = %q", got)
	}
	if got := RenderSuccess("ok"); got != "ok" {
		t.Errorf("RenderSuccess = %q", got)
	}
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("4321"))
	if err != nil || got != "4321" {
		t.Fatalf("readLine = %q, %v", got, err)
	}
	got, err = readLine(strings.NewReader("abcd\nrest"))
	if err != nil || got != "abcd\n" {
		t.Fatalf("readLine = %q, %v", got, err)
	}
	if _, err := readLine(strings.NewReader("")); err == nil {
		t.Fatal("expected error on empty input")
	}
}
