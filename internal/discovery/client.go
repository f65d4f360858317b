package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/padlink/padlink/internal/wire"
)

// DefaultTimeout bounds the wait for a discovery response
const DefaultTimeout = 1500 * time.Millisecond

// ErrNotFound is returned when no valid response arrives in time
var ErrNotFound = errors.New("discovery: no host found")

// Options controls a discovery probe
type Options struct {
	// PairCode is included in the request when the user already knows it
	PairCode string
	// Timeout bounds the wait for a response; zero uses DefaultTimeout
	Timeout time.Duration
	// Target is where the request is sent; nil means 255.255.255.255 on the default port
	Target *net.UDPAddr
}

// Discover sends one request and returns the first response. A timeout or a
// malformed response yields ErrNotFound; only local socket failures are
// reported as other errors.
func Discover(ctx context.Context, opts Options) (*wire.DiscoveryResponse, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	target := opts.Target
	if target == nil {
		target = &net.UDPAddr{IP: net.IPv4bcast, Port: wire.DefaultDiscoveryPort}
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery socket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	req, err := json.Marshal(wire.DiscoveryRequest{
		Type:      wire.TypeDiscoveryRequest,
		Timestamp: time.Now().UnixMilli(),
		PairCode:  opts.PairCode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := conn.WriteToUDP(req, target); err != nil {
		return nil, fmt.Errorf("failed to send discovery request to %s: %w", target, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(opts.Timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}
	buf := make([]byte, wire.MaxMessageSize)
	n, from, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrNotFound
	}

	resp, err := wire.ParseDiscoveryResponse(buf[:n])
	if err != nil {
		return nil, ErrNotFound
	}
	if resp.Host == "" {
		resp.Host = from.IP.String()
	}
	return resp, nil
}
