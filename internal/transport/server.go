// Package transport runs the stream-port datagram loops: the host side that
// answers pairing exchanges and decodes input envelopes, and the client side
// that sends them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/envelope"
	"github.com/padlink/padlink/internal/monitor"
	"github.com/padlink/padlink/internal/pairing"
	"github.com/padlink/padlink/internal/wire"
)

const (
	// readPollInterval bounds how long a receive blocks before re-checking shutdown
	readPollInterval = time.Second
	// faultBackoff is the pause after a socket-level failure
	faultBackoff = 50 * time.Millisecond
)

// Mapper receives every decoded snapshot, e.g. to drive a virtual controller
type Mapper interface {
	Apply(s envelope.InputSnapshot)
}

// PairingEvent describes a completed pairing exchange
type PairingEvent struct {
	Addr            string
	PairCode        string
	KeyID           string
	ClientPublicKey string
	DeviceName      string
}

// Observer is notified of pairing and latency events. Calls happen on the
// receive loop and should return quickly.
type Observer interface {
	PairingCompleted(ev PairingEvent)
	LatencyUpdated(device string, latency time.Duration)
}

// ServerConfig configures the host receive loop
type ServerConfig struct {
	// ListenAddr is the UDP address to bind, e.g. ":9876"
	ListenAddr string
	// PairCode gates pairing exchanges; empty accepts any code
	PairCode string
	// SharedSecret is the optional static fallback key
	SharedSecret string
	Session      *pairing.Session
	Mapper       Mapper
	Observer     Observer
	// Monitor is created when nil
	Monitor *monitor.Monitor
	Logger  *zap.SugaredLogger
}

// Server is the host's stream-port loop. The active session key and the
// liveness timestamp are only written from the loop goroutine.
type Server struct {
	cfg       ServerConfig
	log       *zap.SugaredLogger
	responder *pairing.Responder
	decoder   *envelope.Decoder
	monitor   *monitor.Monitor
	conn      *net.UDPConn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server. Call Start to bind the socket.
func NewServer(cfg ServerConfig) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%d", wire.DefaultStreamPort)
	}
	if cfg.Monitor == nil {
		cfg.Monitor = monitor.New()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		log:       log,
		responder: pairing.NewResponder(cfg.Session, cfg.PairCode),
		decoder:   envelope.NewDecoder(cfg.SharedSecret),
		monitor:   cfg.Monitor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start binds the stream socket and starts the receive loop
func (s *Server) Start() error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid stream address %s: %w", s.cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind stream port %s: %w", s.cfg.ListenAddr, err)
	}
	s.conn = conn

	s.wg.Add(1)
	go s.listenLoop()

	s.log.Infof("transport: stream server listening on %s", conn.LocalAddr())
	return nil
}

// Stop cancels the loop, unblocks the pending receive and waits for exit
func (s *Server) Stop() {
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
	s.wg.Wait()
	s.log.Infof("transport: stream server stopped")
}

// Addr returns the bound address
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Monitor returns the liveness and latency monitor fed by this server
func (s *Server) Monitor() *monitor.Monitor {
	return s.monitor
}

func (s *Server) listenLoop() {
	defer s.wg.Done()

	buf := make([]byte, wire.MaxMessageSize)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(readPollInterval))

		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.log.Warnf("transport: read error: %v", err)
			s.sleep(faultBackoff)
			continue
		}

		s.handleDatagram(buf[:n], addr)
	}
}

// handleDatagram routes one datagram. A failure here, including a panic in
// a collaborator, drops the datagram and never ends the loop.
func (s *Server) handleDatagram(data []byte, addr *net.UDPAddr) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("transport: recovered while handling datagram from %s: %v", addr, r)
		}
	}()

	if t, ok := wire.PeekType(data); ok && t == wire.TypePairingExchange {
		s.handlePairing(data, addr)
		return
	}

	snapshot, source, ok := s.decoder.Decode(data)
	if !ok {
		s.log.Debugf("transport: dropped undecodable datagram from %s (%d bytes)", addr, len(data))
		return
	}

	if latency, ok := s.monitor.RecordFrame(snapshot); ok && s.cfg.Observer != nil {
		s.cfg.Observer.LatencyUpdated(snapshot.DeviceName, latency)
	}
	if s.cfg.Mapper != nil {
		s.cfg.Mapper.Apply(snapshot)
	}
	s.log.Debugf("transport: frame from %s via %s device=%q", addr, source, snapshot.DeviceName)
}

func (s *Server) handlePairing(data []byte, addr *net.UDPAddr) {
	accepted, err := s.responder.HandleExchange(data)
	if err != nil {
		if errors.Is(err, pairing.ErrNoKeyPair) {
			s.log.Errorf("transport: pairing session has no key pair")
			return
		}
		s.log.Debugf("transport: dropped pairing request from %s: %v", addr, err)
		return
	}

	s.decoder.SetSessionKey(accepted.SessionKey)
	if _, err := s.conn.WriteToUDP(accepted.Ack, addr); err != nil {
		s.log.Warnf("transport: failed to ack pairing from %s: %v", addr, err)
	}

	req := accepted.Request
	s.log.Infof("transport: paired with %s device=%q keyId=%s", addr, req.DeviceName, req.KeyID)
	if s.cfg.Observer != nil {
		s.cfg.Observer.PairingCompleted(PairingEvent{
			Addr:            addr.String(),
			PairCode:        req.PairCode,
			KeyID:           req.KeyID,
			ClientPublicKey: req.ClientPublicKey,
			DeviceName:      req.DeviceName,
		})
	}
}

func (s *Server) sleep(d time.Duration) {
	select {
	case <-s.ctx.Done():
	case <-time.After(d):
	}
}
