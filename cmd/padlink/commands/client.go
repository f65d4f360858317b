package commands

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/config"
	"github.com/padlink/padlink/internal/deviceid"
	"github.com/padlink/padlink/internal/discovery"
	"github.com/padlink/padlink/internal/pairing"
	"github.com/padlink/padlink/internal/ui"
	"github.com/padlink/padlink/internal/wire"
)

// addClientFlags registers the flags shared by discover, pair, send and qr
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("pair-code", "", "Pairing code (prompted for when omitted on a terminal)")
	cmd.Flags().String("target", "", "Discovery target host[:port] (default: broadcast)")
	cmd.Flags().Int("discovery-port", wire.DefaultDiscoveryPort, "Host discovery port")
	cmd.Flags().Duration("timeout", discovery.DefaultTimeout, "How long to wait for the host")
}

// addPairFlags registers the flags for commands that run the handshake
func addPairFlags(cmd *cobra.Command) {
	addClientFlags(cmd)
	cmd.Flags().String("qr", "", "Pairing QR payload (JSON); skips discovery")
	cmd.Flags().String("device-name", "", "Device name sent with the pairing request (default: persisted name)")
}

// resolvePairCode returns --pair-code, else asks on a terminal, else falls
// back to the settings file
func resolvePairCode(cmd *cobra.Command, settings *config.Settings) (string, error) {
	if code, _ := cmd.Flags().GetString("pair-code"); code != "" {
		return code, nil
	}
	if ui.IsInteractive() {
		code, err := ui.PromptSecret("Pairing code")
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ui.ErrEmptyInput) {
			return "", err
		}
	}
	return settings.PairCode, nil
}

// discoveryTarget resolves --target against --discovery-port
func discoveryTarget(cmd *cobra.Command, settings *config.Settings) (*net.UDPAddr, error) {
	target, _ := cmd.Flags().GetString("target")
	if target == "" {
		return &net.UDPAddr{IP: net.IPv4bcast, Port: settings.DiscoveryPort}, nil
	}
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(target, fmt.Sprint(settings.DiscoveryPort))
	}
	addr, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", target, err)
	}
	return addr, nil
}

// findHost runs discovery with a spinner
func findHost(ctx context.Context, cmd *cobra.Command, settings *config.Settings, pairCode string) (*wire.DiscoveryResponse, error) {
	target, err := discoveryTarget(cmd, settings)
	if err != nil {
		return nil, err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	spinner := ui.NewSpinner(fmt.Sprintf("Looking for a host via %s", target))
	spinner.Start()
	resp, err := discovery.Discover(ctx, discovery.Options{
		PairCode: pairCode,
		Timeout:  timeout,
		Target:   target,
	})
	spinner.Stop()
	return resp, err
}

// pairingTarget builds the handshake target from --qr or from discovery
func pairingTarget(ctx context.Context, cmd *cobra.Command, settings *config.Settings) (pairing.Target, error) {
	if raw, _ := cmd.Flags().GetString("qr"); raw != "" {
		payload, err := wire.ParsePairingQR(raw)
		if err != nil {
			return pairing.Target{}, err
		}
		code, _ := cmd.Flags().GetString("pair-code")
		return pairing.TargetFromDiscovery(payload.DiscoveryResponse(), code), nil
	}

	pairCode, err := resolvePairCode(cmd, settings)
	if err != nil {
		return pairing.Target{}, err
	}
	resp, err := findHost(ctx, cmd, settings, pairCode)
	if err != nil {
		return pairing.Target{}, err
	}
	return pairing.TargetFromDiscovery(resp, pairCode), nil
}

// deviceName resolves --device-name or the persisted name
func deviceName(cmd *cobra.Command) (string, error) {
	if name, _ := cmd.Flags().GetString("device-name"); name != "" {
		return name, nil
	}
	return deviceid.GetOrCreate()
}

// establish finds the host and runs the pairing handshake
func establish(ctx context.Context, cmd *cobra.Command, settings *config.Settings, log *zap.SugaredLogger) (*pairing.Result, error) {
	target, err := pairingTarget(ctx, cmd, settings)
	if err != nil {
		return nil, err
	}
	name, err := deviceName(cmd)
	if err != nil {
		return nil, err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	initiator := pairing.NewInitiator(name, timeout, log)
	spinner := ui.NewSpinner(fmt.Sprintf("Pairing with %s", target.Addr()))
	spinner.Start()
	result, err := initiator.Pair(ctx, target)
	spinner.Stop()
	if err != nil {
		return nil, fmt.Errorf("pairing with %s failed (%s): %w", target.Addr(), initiator.State(), err)
	}
	return result, nil
}
