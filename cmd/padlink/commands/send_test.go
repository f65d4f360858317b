package commands

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/envelope"
	"github.com/padlink/padlink/internal/transport"
)

func TestStreamLinesSendsValidSnapshots(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	sender := transport.NewSender(transport.SenderConfig{Addr: conn.LocalAddr().String()})
	defer sender.Close()

	input := strings.NewReader("{\"axes\":{\"left_stick_x\":0.5},\"buttons\":{\"a\":true}}\nnot json\n\n")
	err = streamLines(context.Background(), input, sender, "test-device", 5*time.Millisecond, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("streamLines: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	snap, ok := envelope.Decode(buf[:n], nil)
	if !ok {
		t.Fatalf("datagram did not decode as plaintext: %s", buf[:n])
	}
	if snap.DeviceName != "test-device" {
		t.Errorf("DeviceName = %q", snap.DeviceName)
	}
	if snap.Axes["left_stick_x"] != 0.5 || !snap.Buttons["a"] {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Timestamp == 0 {
		t.Error("timestamp not stamped")
	}
}

func TestStreamLinesSendsLatestWhenInputOutpacesRate(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	sender := transport.NewSender(transport.SenderConfig{Addr: conn.LocalAddr().String()})
	defer sender.Close()

	const total = 50
	var input strings.Builder
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&input, "{\"axes\":{\"left_stick_x\":%g}}\n", float64(i)/total)
	}
	err = streamLines(context.Background(), strings.NewReader(input.String()), sender, "test-device", 200*time.Millisecond, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("streamLines: %v", err)
	}

	var got []float64
	buf := make([]byte, 4096)
	deadline := 2 * time.Second
	for {
		conn.SetReadDeadline(time.Now().Add(deadline))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		snap, ok := envelope.Decode(buf[:n], nil)
		if !ok {
			t.Fatalf("datagram did not decode as plaintext: %s", buf[:n])
		}
		got = append(got, snap.Axes["left_stick_x"])
		deadline = 300 * time.Millisecond
	}

	if len(got) == 0 {
		t.Fatal("no snapshots received")
	}
	if len(got) >= total {
		t.Errorf("received %d snapshots for %d lines; faster input should be coalesced", len(got), total)
	}
	if last := got[len(got)-1]; last != 1 {
		t.Errorf("last snapshot left_stick_x = %v, want the final line's 1", last)
	}
}

func TestDemoSnapshotInRange(t *testing.T) {
	for _, elapsed := range []time.Duration{0, 250 * time.Millisecond, 1500 * time.Millisecond, 7 * time.Second} {
		s := demoSnapshot("demo", elapsed)
		for name, v := range s.Axes {
			if v < -1 || v > 1 {
				t.Errorf("%v: axis %s = %v out of range", elapsed, name, v)
			}
		}
		if s.DeviceName != "demo" {
			t.Errorf("DeviceName = %q", s.DeviceName)
		}
	}
	if !demoSnapshot("demo", 0).Buttons["a"] || demoSnapshot("demo", 1500*time.Millisecond).Buttons["a"] {
		t.Error("A button should toggle each second")
	}
}
