// Package discovery lets a client find a host on the local broadcast domain
// without knowing its address.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/pairing"
	"github.com/padlink/padlink/internal/wire"
)

const (
	// readPollInterval bounds how long a receive blocks before re-checking shutdown
	readPollInterval = time.Second
	// errorBackoff is the pause after a socket-level failure
	errorBackoff = 200 * time.Millisecond
)

// ResponderConfig configures a discovery responder
type ResponderConfig struct {
	// ListenAddr is the UDP address to bind, e.g. ":9877"
	ListenAddr string
	// StreamPort is advertised as the data/pairing port
	StreamPort int
	// PairCode gates responses; empty answers every request
	PairCode string
	// AdvertiseHost overrides the advertised address. Empty picks the local
	// address that routes to each requester.
	AdvertiseHost string
	Session       *pairing.Session
	Logger        *zap.SugaredLogger
}

// Responder answers discovery requests with the host's endpoint and current identity
type Responder struct {
	cfg  ResponderConfig
	log  *zap.SugaredLogger
	conn *net.UDPConn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewResponder creates a responder. Call Start to bind the socket.
func NewResponder(cfg ResponderConfig) *Responder {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%d", wire.DefaultDiscoveryPort)
	}
	if cfg.StreamPort == 0 {
		cfg.StreamPort = wire.DefaultStreamPort
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Responder{
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start binds the discovery socket and starts the receive loop
func (r *Responder) Start() error {
	addr, err := net.ResolveUDPAddr("udp4", r.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid discovery address %s: %w", r.cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to bind discovery port %s: %w", r.cfg.ListenAddr, err)
	}
	r.conn = conn

	r.wg.Add(1)
	go r.listenLoop()

	r.log.Infof("discovery: responder listening on %s", conn.LocalAddr())
	return nil
}

// Addr returns the bound address
func (r *Responder) Addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// Stop shuts down the receive loop and closes the socket
func (r *Responder) Stop() {
	r.cancel()
	if r.conn != nil {
		r.conn.Close()
	}
	r.wg.Wait()
	r.log.Infof("discovery: responder stopped")
}

// listenLoop receives discovery requests until Stop is called
func (r *Responder) listenLoop() {
	defer r.wg.Done()

	buf := make([]byte, wire.MaxMessageSize)
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		// Read deadline lets the loop observe cancellation
		r.conn.SetReadDeadline(time.Now().Add(readPollInterval))

		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if r.ctx.Err() != nil {
				return
			}
			r.log.Warnf("discovery: read error: %v", err)
			r.sleep(errorBackoff)
			continue
		}

		if !r.accept(buf[:n]) {
			r.log.Debugf("discovery: ignored request from %s", addr)
			continue
		}

		if err := r.reply(addr); err != nil {
			if r.ctx.Err() != nil {
				return
			}
			r.log.Warnf("discovery: reply to %s failed: %v", addr, err)
			r.sleep(errorBackoff)
		}
	}
}

// accept reports whether data is a request this responder should answer.
// With a pairing code configured, requests without the matching code get no
// reply at all.
func (r *Responder) accept(data []byte) bool {
	var req wire.DiscoveryRequest
	if err := wire.Unmarshal(data, wire.TypeDiscoveryRequest, &req); err != nil {
		return false
	}
	return wire.PairCodeMatches(r.cfg.PairCode, req.PairCode)
}

func (r *Responder) reply(to *net.UDPAddr) error {
	id := r.cfg.Session.Current()
	resp := wire.DiscoveryResponse{
		Type:     wire.TypeDiscoveryResponse,
		Host:     r.advertiseHost(to),
		Port:     r.cfg.StreamPort,
		PairCode: r.cfg.PairCode,
	}
	if id != nil {
		resp.PublicKey = id.PublicKey
		resp.KeyID = id.KeyID
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if _, err := r.conn.WriteToUDP(data, to); err != nil {
		return err
	}
	r.log.Debugf("discovery: answered %s with %s:%d keyId=%s", to, resp.Host, resp.Port, resp.KeyID)
	return nil
}

func (r *Responder) advertiseHost(to *net.UDPAddr) string {
	if r.cfg.AdvertiseHost != "" {
		return r.cfg.AdvertiseHost
	}
	if ip := LocalAddrFor(to); ip != nil {
		return ip.String()
	}
	return "127.0.0.1"
}

func (r *Responder) sleep(d time.Duration) {
	select {
	case <-r.ctx.Done():
	case <-time.After(d):
	}
}

// LocalAddrFor returns the local IP the kernel would use to reach remote.
// A connected UDP socket sends nothing, it only selects a route.
func LocalAddrFor(remote *net.UDPAddr) net.IP {
	conn, err := net.DialUDP("udp4", nil, remote)
	if err != nil {
		return nil
	}
	defer conn.Close()
	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP.IsUnspecified() {
		return nil
	}
	return local.IP
}
