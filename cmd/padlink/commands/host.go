package commands

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/discovery"
	"github.com/padlink/padlink/internal/mapping"
	"github.com/padlink/padlink/internal/metrics"
	"github.com/padlink/padlink/internal/monitor"
	"github.com/padlink/padlink/internal/pairing"
	"github.com/padlink/padlink/internal/registry"
	"github.com/padlink/padlink/internal/transport"
	"github.com/padlink/padlink/internal/ui"
	"github.com/padlink/padlink/internal/wire"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the host: answer discovery, accept pairings and decode input",
	Long: `Run the host side. The host listens for discovery broadcasts on the
discovery port and for pairing exchanges and input envelopes on the stream
port. Decoded input drives the mapped virtual controller; when no input
arrives for the idle timeout every button is released.

Send SIGHUP to rotate the pairing key pair. Clients paired with the old key
keep streaming; new pairings must use the new keyId.`,
	RunE: runHost,
}

func init() {
	hostCmd.Flags().Int("stream-port", wire.DefaultStreamPort, "UDP port for pairing and input")
	hostCmd.Flags().Int("discovery-port", wire.DefaultDiscoveryPort, "UDP port for discovery broadcasts")
	hostCmd.Flags().String("pair-code", "", "Pairing code (default: from settings)")
	hostCmd.Flags().String("shared-secret", "", "Static fallback secret (default: from settings)")
	hostCmd.Flags().String("advertise", "", "Address to advertise instead of the routed local address")
	hostCmd.Flags().String("profile", "", "Mapping profile name (default: from settings)")
	hostCmd.Flags().String("registry", "", "Paired-device registry file (default: ~/.padlink/devices.db)")
	hostCmd.Flags().Duration("status-interval", 10*time.Second, "How often to log stream status (0 disables)")
}

// hostObserver announces pairings, records them in the device registry and
// feeds latency into the history store
type hostObserver struct {
	log      *zap.SugaredLogger
	store    *metrics.Store
	registry *registry.Registry
}

func (o *hostObserver) PairingCompleted(ev transport.PairingEvent) {
	fmt.Println(ui.RenderSuccess(fmt.Sprintf("Paired %q from %s", ev.DeviceName, ev.Addr)))
	if prev := o.store.GetSummary(ev.DeviceName); prev != nil {
		o.log.Infof("host: %q re-paired; previous stream averaged %.1fms over %d samples",
			ev.DeviceName, prev.AvgMs, prev.SampleCount)
	}
	device, err := o.registry.RecordPairing(ev.DeviceName, ev.Addr, ev.KeyID, ev.ClientPublicKey, time.Now())
	if err != nil {
		o.log.Warnf("host: failed to record pairing: %v", err)
		return
	}
	if device.Pairings > 1 {
		o.log.Infof("host: %q has paired %d times", device.Name, device.Pairings)
	}
}

func (o *hostObserver) LatencyUpdated(device string, latency time.Duration) {
	o.store.AddSample(device, time.Now(), latency)
}

func runHost(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if code, _ := cmd.Flags().GetString("pair-code"); code != "" {
		settings.PairCode = code
	}
	advertise, _ := cmd.Flags().GetString("advertise")
	profileName, _ := cmd.Flags().GetString("profile")
	statusInterval, _ := cmd.Flags().GetDuration("status-interval")

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	session, err := pairing.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create pairing session: %w", err)
	}

	store := metrics.NewStore()
	defer store.Stop()

	devices, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer devices.Close()

	profile := settings.Profile(profileName)
	mapper := mapping.NewMapper(profile, mapping.LogController{Log: log})
	mon := monitor.New()

	server := transport.NewServer(transport.ServerConfig{
		ListenAddr:   fmt.Sprintf(":%d", settings.StreamPort),
		PairCode:     settings.PairCode,
		SharedSecret: settings.SharedSecret,
		Session:      session,
		Mapper:       mapper,
		Observer:     &hostObserver{log: log, store: store, registry: devices},
		Monitor:      mon,
		Logger:       log,
	})
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	responder := discovery.NewResponder(discovery.ResponderConfig{
		ListenAddr:    fmt.Sprintf(":%d", settings.DiscoveryPort),
		StreamPort:    settings.StreamPort,
		PairCode:      settings.PairCode,
		AdvertiseHost: advertise,
		Session:       session,
		Logger:        log,
	})
	if err := responder.Start(); err != nil {
		return err
	}
	defer responder.Stop()

	if advertise == "" {
		advertise = defaultAdvertiseHost()
	}

	fmt.Print(ui.RenderPanel("padlink host", []ui.Field{
		{Label: "Stream", Value: server.Addr().String()},
		{Label: "Discovery", Value: responder.Addr().String()},
		{Label: "Advertise", Value: advertise},
		{Label: "Pair code", Value: settings.PairCode},
		{Label: "Profile", Value: profile.Name},
		{Label: "Key ID", Value: session.KeyID()},
	}))
	if err := printQR(advertise, settings.StreamPort, settings.PairCode, session); err != nil {
		log.Warnf("host: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchdog := monitor.NewWatchdog(mon, settings.IdleTimeout(), mapper, log)
	go watchdog.Run(ctx, time.Second)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var statusC <-chan time.Time
	if statusInterval > 0 {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		statusC = ticker.C
	}
	lastStatus := time.Now()

	for {
		select {
		case <-ctx.Done():
			fmt.Println(ui.RenderDim("shutting down"))
			return nil
		case <-hup:
			if err := session.Rotate(); err != nil {
				log.Errorf("host: rotation failed: %v", err)
				continue
			}
			log.Infof("host: rotated pairing key, keyId=%s", session.KeyID())
			if err := printQR(advertise, settings.StreamPort, settings.PairCode, session); err != nil {
				log.Warnf("host: %v", err)
			}
		case now := <-statusC:
			logStatus(log, mon, store, devices, settings.IdleTimeout(), lastStatus)
			lastStatus = now
		}
	}
}

func logStatus(log *zap.SugaredLogger, mon *monitor.Monitor, store *metrics.Store, devices *registry.Registry, idle time.Duration, since time.Time) {
	if mon.IsIdle(idle) {
		log.Infof("host: idle")
		return
	}
	for _, s := range store.GetAllSummaries() {
		if err := devices.Touch(s.Device, time.UnixMilli(s.LastSeenMs)); err != nil {
			log.Warnf("host: failed to update device registry: %v", err)
		}
	}
	for _, line := range statusLines(store, since) {
		log.Infof("host: %s", line)
	}
}

// statusLines describes each device's latency history and how many samples
// arrived after since
func statusLines(store *metrics.Store, since time.Time) []string {
	var lines []string
	for _, s := range store.GetAllSummaries() {
		recent := len(store.GetHistory(s.Device, since.UnixMilli()))
		lines = append(lines, fmt.Sprintf("%s latency last=%.0fms avg=%.1fms min=%.0fms max=%.0fms (%d samples, %d new)",
			s.Device, s.LatestMs, s.AvgMs, s.MinMs, s.MaxMs, s.SampleCount, recent))
	}
	return lines
}

// defaultAdvertiseHost picks the address on the interface holding the
// default route. Nothing is sent.
func defaultAdvertiseHost() string {
	if ip := discovery.LocalAddrFor(&net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 9}); ip != nil {
		return ip.String()
	}
	return "127.0.0.1"
}

func printQR(host string, port int, pairCode string, session *pairing.Session) error {
	encoded, err := qrPayload(host, port, pairCode, session)
	if err != nil {
		return err
	}
	fmt.Println(ui.RenderDim("QR payload:"))
	fmt.Println(encoded)
	return nil
}

// qrPayload encodes the pairing QR payload for the current identity. A
// payload that clients would reject, e.g. one without a pairing code, is
// returned as an error instead.
func qrPayload(host string, port int, pairCode string, session *pairing.Session) (string, error) {
	id := session.Current()
	if id == nil {
		return "", pairing.ErrNoKeyPair
	}
	payload := wire.NewPairingQRPayload(host, port, pairCode, id.PublicKey, id.KeyID)
	if err := payload.Validate(); err != nil {
		return "", fmt.Errorf("no QR payload printed: %w", err)
	}
	encoded, err := payload.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode QR payload: %w", err)
	}
	return encoded, nil
}
