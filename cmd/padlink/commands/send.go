package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/config"
	"github.com/padlink/padlink/internal/envelope"
	"github.com/padlink/padlink/internal/transport"
	"github.com/padlink/padlink/internal/ui"
	"github.com/padlink/padlink/internal/wire"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Pair with a host and stream input snapshots",
	Long: `Pair with a host and stream input snapshots to it.

Snapshots are read from stdin as JSON lines, for example
  {"axes":{"left_stick_x":0.5},"buttons":{"a":true}}
With --demo a synthetic stick circle and a blinking A button are sent
instead. Frames are paced at --rate; when input arrives faster only the
latest snapshot is sent.

--no-pair skips the handshake and encrypts with the shared secret, or sends
plaintext with --plain.`,
	RunE: runSend,
}

func init() {
	addPairFlags(sendCmd)
	sendCmd.Flags().String("host", "", "Host stream address host:port (with --no-pair, skips discovery)")
	sendCmd.Flags().Bool("no-pair", false, "Skip the pairing handshake")
	sendCmd.Flags().Bool("plain", false, "With --no-pair, send unencrypted frames")
	sendCmd.Flags().String("shared-secret", "", "Static fallback secret (default: from settings)")
	sendCmd.Flags().Bool("demo", false, "Send a synthetic input pattern")
	sendCmd.Flags().Float64("rate", 60, "Frames per second")
	sendCmd.Flags().Duration("duration", 0, "Stop after this long (0 = until interrupted or EOF)")
}

func runSend(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	noPair, _ := cmd.Flags().GetBool("no-pair")
	plain, _ := cmd.Flags().GetBool("plain")
	demo, _ := cmd.Flags().GetBool("demo")
	rate, _ := cmd.Flags().GetFloat64("rate")
	duration, _ := cmd.Flags().GetDuration("duration")
	if rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", rate)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	senderCfg := transport.SenderConfig{Logger: log}
	if noPair {
		addr, err := streamAddr(ctx, cmd, settings)
		if err != nil {
			return err
		}
		senderCfg.Addr = addr
		if !plain {
			senderCfg.SharedSecret = settings.SharedSecret
		}
	} else {
		result, err := establish(ctx, cmd, settings, log)
		if err != nil {
			return err
		}
		fmt.Println(ui.RenderSuccess(fmt.Sprintf("Paired with %s (keyId %s)", result.Addr, result.KeyID)))
		senderCfg.Addr = result.Addr
		senderCfg.SessionKey = result.SessionKey
	}

	name, err := deviceName(cmd)
	if err != nil {
		return err
	}

	sender := transport.NewSender(senderCfg)
	defer sender.Close()

	interval := time.Duration(float64(time.Second) / rate)
	if demo {
		return streamDemo(ctx, sender, name, interval)
	}
	return streamLines(ctx, os.Stdin, sender, name, interval, log)
}

// streamAddr resolves --host, falling back to discovery
func streamAddr(ctx context.Context, cmd *cobra.Command, settings *config.Settings) (string, error) {
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		if _, _, err := net.SplitHostPort(host); err != nil {
			host = net.JoinHostPort(host, strconv.Itoa(settings.StreamPort))
		}
		return host, nil
	}
	pairCode, err := resolvePairCode(cmd, settings)
	if err != nil {
		return "", err
	}
	resp, err := findHost(ctx, cmd, settings, pairCode)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(resp.Host, strconv.Itoa(resp.Port)), nil
}

// streamLines sends one snapshot per JSON line of r
func streamLines(ctx context.Context, r io.Reader, sender *transport.Sender, name string, interval time.Duration, log *zap.SugaredLogger) error {
	// Holds at most the newest unsent snapshot; the reader replaces it.
	latest := make(chan envelope.InputSnapshot, 1)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, wire.MaxMessageSize), wire.MaxMessageSize)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var s envelope.InputSnapshot
			if err := json.Unmarshal(line, &s); err != nil {
				log.Warnf("send: skipping invalid line: %v", err)
				continue
			}
			if s.DeviceName == "" {
				s.DeviceName = name
			}
			select {
			case <-latest:
			default:
			}
			latest <- s
			if ctx.Err() != nil {
				return
			}
		}
		readErr <- scanner.Err()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			select {
			case s := <-latest:
				sender.Send(s)
				sent++
			default:
			}
			// Let the last frame leave before the sender closes.
			<-ticker.C
			log.Infof("send: input ended after %d snapshots", sent)
			return err
		case s := <-latest:
			sender.Send(s)
			sent++
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// streamDemo sends a stick moving in a circle and an A button that toggles every second
func streamDemo(ctx context.Context, sender *transport.Sender, name string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			sender.Send(demoSnapshot(name, now.Sub(start)))
		}
	}
}

func demoSnapshot(name string, elapsed time.Duration) envelope.InputSnapshot {
	phase := elapsed.Seconds() * math.Pi
	return envelope.InputSnapshot{
		Axes: map[string]float64{
			"left_stick_x":  math.Cos(phase),
			"left_stick_y":  math.Sin(phase),
			"right_stick_x": 0,
			"right_stick_y": 0,
			"left_trigger":  0,
			"right_trigger": (math.Sin(phase) + 1) / 2,
		},
		Buttons: map[string]bool{
			"a": int(elapsed.Seconds())%2 == 0,
		},
		DeviceName: name,
	}
}
