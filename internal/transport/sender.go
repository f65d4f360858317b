package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/envelope"
)

// SenderConfig configures the client send loop
type SenderConfig struct {
	// Addr is the host's stream endpoint, host:port
	Addr string
	// SessionKey from a completed handshake takes precedence over SharedSecret
	SessionKey *envelope.Key
	// SharedSecret is the static fallback; with neither set, frames go out in plaintext
	SharedSecret string
	Logger       *zap.SugaredLogger
}

// Sender delivers snapshots fire-and-forget from a single goroutine. The
// outbound socket is opened lazily and discarded after any send failure,
// so the next frame reopens it; the failed frame is not retried.
type Sender struct {
	addr string
	key  *envelope.Key
	log  *zap.SugaredLogger
	now  func() time.Time

	// queue holds at most one pending snapshot; a newer one replaces it
	queue chan envelope.InputSnapshot
	conn  *net.UDPConn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSender creates a sender and starts its send loop
func NewSender(cfg SenderConfig) *Sender {
	s := newSender(cfg)
	s.wg.Add(1)
	go s.run()
	return s
}

func newSender(cfg SenderConfig) *Sender {
	key := cfg.SessionKey
	if key == nil {
		key = envelope.NewSharedSecretKey(cfg.SharedSecret)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sender{
		addr:   cfg.Addr,
		key:    key,
		log:    log,
		now:    time.Now,
		queue:  make(chan envelope.InputSnapshot, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Send queues s for delivery without blocking. If a snapshot is still
// waiting it is replaced, since only the latest state matters.
func (s *Sender) Send(snapshot envelope.InputSnapshot) {
	if s.ctx.Err() != nil {
		return
	}
	for {
		select {
		case s.queue <- snapshot:
			return
		default:
		}
		select {
		case <-s.queue:
		default:
		}
	}
}

// Close stops the send loop and releases the socket
func (s *Sender) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Sender) run() {
	defer s.wg.Done()
	defer s.closeConn()

	for {
		select {
		case <-s.ctx.Done():
			return
		case snapshot := <-s.queue:
			if err := s.send(snapshot); err != nil {
				s.log.Debugf("transport: send to %s failed, socket reset: %v", s.addr, err)
			}
		}
	}
}

// send stamps, encodes and writes one snapshot
func (s *Sender) send(snapshot envelope.InputSnapshot) error {
	snapshot.Timestamp = s.now().UnixMilli()
	data, err := envelope.Encode(snapshot, s.key)
	if err != nil {
		return err
	}

	conn, err := s.ensureConn()
	if err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		s.closeConn()
		return err
	}
	return nil
}

// ensureConn opens the outbound socket if there is none
func (s *Sender) ensureConn() (*net.UDPConn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	raddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", s.addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket to %s: %w", s.addr, err)
	}
	s.conn = conn
	return conn, nil
}

func (s *Sender) closeConn() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}
