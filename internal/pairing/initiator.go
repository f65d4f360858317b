package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/padlink/padlink/internal/envelope"
	"github.com/padlink/padlink/internal/keyx"
	"github.com/padlink/padlink/internal/wire"
)

// DefaultTimeout bounds the wait for a pairing ack
const DefaultTimeout = 1500 * time.Millisecond

var (
	// ErrTimeout is returned when no ack arrives in time
	ErrTimeout = errors.New("pairing: no acknowledgement before timeout")
	// ErrAckMismatch is returned when the ack names a different keyId
	ErrAckMismatch = errors.New("pairing: acknowledgement keyId mismatch")
	// ErrInProgress is returned when Pair is called while another attempt runs
	ErrInProgress = errors.New("pairing: handshake already in progress")
)

// State is the initiator's handshake state
type State int

const (
	StateIdle State = iota
	StateKeyPairReady
	StateRequestSent
	StateEstablished
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateKeyPairReady:
		return "keypair-ready"
	case StateRequestSent:
		return "request-sent"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Target is everything the initiator learned about the host from discovery or a QR code
type Target struct {
	Host          string
	Port          int
	PairCode      string
	KeyID         string
	HostPublicKey string
}

// TargetFromDiscovery builds a Target from a discovery response. pairCode is
// the code the user entered; if empty, the one echoed by the host is used.
func TargetFromDiscovery(resp *wire.DiscoveryResponse, pairCode string) Target {
	if pairCode == "" {
		pairCode = resp.PairCode
	}
	return Target{
		Host:          resp.Host,
		Port:          resp.Port,
		PairCode:      pairCode,
		KeyID:         resp.KeyID,
		HostPublicKey: resp.PublicKey,
	}
}

// Addr returns host:port
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Result is an established pairing
type Result struct {
	SessionKey *envelope.Key
	KeyID      string
	Addr       string
}

// Initiator runs the client half of the handshake. It generates a new
// ephemeral key pair for every attempt; that pair is unrelated to the host's.
type Initiator struct {
	deviceName string
	timeout    time.Duration
	log        *zap.SugaredLogger

	mu    sync.Mutex
	state State
	// busy is set under mu by the call that wins the in-progress check
	busy bool
}

// NewInitiator creates an initiator. A zero timeout uses DefaultTimeout.
func NewInitiator(deviceName string, timeout time.Duration, log *zap.SugaredLogger) *Initiator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Initiator{
		deviceName: deviceName,
		timeout:    timeout,
		log:        log,
		state:      StateIdle,
	}
}

// State returns the current handshake state
func (i *Initiator) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Initiator) setState(s State) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
}

// Pair sends one exchange request and waits for the matching ack. Failures
// are not retried; the caller decides whether to call Pair again.
func (i *Initiator) Pair(ctx context.Context, target Target) (*Result, error) {
	i.mu.Lock()
	if i.busy {
		i.mu.Unlock()
		return nil, ErrInProgress
	}
	i.busy = true
	i.state = StateIdle
	i.mu.Unlock()
	defer func() {
		i.mu.Lock()
		i.busy = false
		i.mu.Unlock()
	}()

	result, err := i.pair(ctx, target)
	if err != nil {
		i.setState(StateFailed)
		i.log.Debugf("pairing: handshake with %s failed: %v", target.Addr(), err)
		return nil, err
	}
	i.setState(StateEstablished)
	i.log.Infof("pairing: established session with %s keyId=%s", result.Addr, result.KeyID)
	return result, nil
}

func (i *Initiator) pair(ctx context.Context, target Target) (*Result, error) {
	// Validate the host key before sending anything.
	hostKey, err := keyx.ParsePublicKey(target.HostPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid host public key: %w", err)
	}
	if target.KeyID == "" {
		return nil, fmt.Errorf("target has no keyId")
	}

	kp, err := keyx.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	clientPub, err := kp.Export()
	if err != nil {
		return nil, err
	}
	i.setState(StateKeyPairReady)

	raddr, err := net.ResolveUDPAddr("udp", target.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", target.Addr(), err)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open pairing socket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	req, err := json.Marshal(wire.PairingExchangeRequest{
		Type:            wire.TypePairingExchange,
		PairCode:        target.PairCode,
		KeyID:           target.KeyID,
		ClientPublicKey: clientPub,
		DeviceName:      i.deviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pairing request: %w", err)
	}
	if _, err := conn.WriteToUDP(req, raddr); err != nil {
		return nil, fmt.Errorf("failed to send pairing request: %w", err)
	}
	i.setState(StateRequestSent)

	if err := conn.SetReadDeadline(time.Now().Add(i.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}
	buf := make([]byte, wire.MaxMessageSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("pairing read failed: %w", err)
		}

		ack, err := wire.ParsePairingAck(buf[:n])
		if err != nil {
			continue
		}
		if ack.KeyID != target.KeyID {
			return nil, ErrAckMismatch
		}
		break
	}

	material, err := keyx.DeriveSessionKey(kp, hostKey, target.KeyID)
	if err != nil {
		return nil, err
	}
	key, err := envelope.NewSessionKey(material, target.KeyID)
	if err != nil {
		return nil, err
	}
	return &Result{SessionKey: key, KeyID: target.KeyID, Addr: raddr.String()}, nil
}
