package comm

import (
	"fmt"
	"io"

	"github.com/golang/glog"
)

// State is the logical state of a Session.
type State int

const (
	// StateUnconfigured means no handshake has been performed yet.
	StateUnconfigured State = iota
	// StateSynchronized means the handshake succeeded.
	StateSynchronized
	// StateKeyed means a key exchange succeeded after the handshake.
	StateKeyed
	// StateFaulted means an exchange failed and a new handshake is required.
	StateFaulted
)

// IsReady indicates if registers can be accessed.
func (s State) IsReady() bool {
	return s == StateSynchronized || s == StateKeyed
}

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateSynchronized:
		return "synchronized"
	case StateKeyed:
		return "keyed"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Session drives exchanges with one device over a byte stream.
type Session struct {
	rw    io.ReadWriter
	key   byte
	state State
	rekey bool
}

// NewSession creates a Session over rw. The key starts at zero, which
// disables obfuscation.
func NewSession(rw io.ReadWriter) *Session {
	return &Session{rw: rw}
}

// Key returns the current session key.
func (s *Session) Key() byte {
	return s.key
}

// SetKey installs a key negotiated earlier, e.g. by a previous process.
// The device keeps its key until it is power cycled.
func (s *Session) SetKey(key byte) {
	s.key = key
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// KeyRequired indicates the session was keyed when it faulted, so
// registers are refused until KeyExchange succeeds again.
func (s *Session) KeyRequired() bool {
	return s.rekey
}

// SendPacket writes payload as one frame obfuscated with the session key.
func (s *Session) SendPacket(payload []byte) error {
	if glog.V(4) {
		glog.Infof("TX % x (key %02x)", payload, s.key)
	}
	return s.fail(WritePacket(s.rw, s.key, payload))
}

// ReadPacket reads a response frame with n payload bytes.
func (s *Session) ReadPacket(n int) ([]byte, error) {
	payload, err := ReadPacket(s.rw, n)
	if err != nil {
		return nil, s.fail(err)
	}
	if glog.V(4) {
		glog.Infof("RX % x", payload)
	}
	return payload, nil
}

// Handshake synchronizes with the device. It is accepted in any state and
// is the only way out of StateFaulted. A session that faulted while keyed
// must also repeat KeyExchange before registers are accessible.
func (s *Session) Handshake() error {
	if _, err := s.rw.Write([]byte{OpSync}); err != nil {
		return s.fail(&TransportError{Op: "write", Err: err})
	}
	buf := make([]byte, 1)
	if _, err := io.ReadFull(s.rw, buf); err != nil {
		return s.fail(&TransportError{Op: "read", Err: err})
	}
	if buf[0] != AckSync {
		return s.fail(&UnexpectedResponseError{Code: buf[0]})
	}
	s.state = StateSynchronized
	glog.V(3).Info("handshake ok")
	return nil
}

// KeyExchange negotiates a session key and installs it before returning.
// All frames sent afterwards are obfuscated with the returned key.
func (s *Session) KeyExchange() (byte, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if err := s.SendPacket([]byte{OpKeyExchange, HostKey}); err != nil {
		return 0, err
	}
	resp, err := s.ReadPacket(2)
	if err != nil {
		return 0, err
	}
	if resp[0] != AckKeyExchange {
		return 0, s.fail(&UnexpectedResponseError{Code: resp[0]})
	}
	s.key = resp[1] ^ EncryptionKeyXOR
	s.state = StateKeyed
	s.rekey = false
	glog.V(3).Infof("key exchange ok, key %02x", s.key)
	return s.key, nil
}

// ReadAddress reads a single register.
func (s *Session) ReadAddress(addr Address) (byte, error) {
	if err := s.unlocked(); err != nil {
		return 0, err
	}
	if err := s.SendPacket(append([]byte{OpRead}, addr.Bytes()...)); err != nil {
		return 0, err
	}
	resp, err := s.ReadPacket(2)
	if err != nil {
		return 0, err
	}
	if resp[0] != AckRead {
		return 0, s.fail(&UnexpectedResponseError{Code: resp[0]})
	}
	return resp[1], nil
}

// ReadRange reads n consecutive registers starting at addr, one exchange
// per register.
func (s *Session) ReadRange(addr Address, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	values := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		v, err := s.ReadAddress(addr + Address(i))
		if err != nil {
			return values, err
		}
		values = append(values, v)
	}
	return values, nil
}

// WriteAddress writes up to MaxWriteLen bytes starting at addr.
// Oversized payloads are rejected before any I/O.
func (s *Session) WriteAddress(addr Address, values []byte) error {
	if len(values) > MaxWriteLen {
		return &PayloadTooLongError{Len: len(values)}
	}
	if err := s.unlocked(); err != nil {
		return err
	}
	body := make([]byte, 0, 3+len(values))
	body = append(body, WriteLengthByte(len(values)))
	body = append(body, addr.Bytes()...)
	body = append(body, values...)
	if err := s.SendPacket(body); err != nil {
		return err
	}
	resp, err := s.ReadPacket(1)
	if err != nil {
		return err
	}
	if resp[0] != Ack {
		return s.fail(&UnexpectedResponseError{Code: resp[0]})
	}
	return nil
}

func (s *Session) ready() error {
	switch s.state {
	case StateFaulted:
		return ErrFaulted
	case StateUnconfigured:
		return ErrNotSynchronized
	}
	return nil
}

// unlocked is ready plus the key exchange owed after a keyed fault.
func (s *Session) unlocked() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.rekey {
		return ErrKeyRequired
	}
	return nil
}

// fail moves the session to StateFaulted when err leaves the link in an
// unknown state, and returns err unchanged.
func (s *Session) fail(err error) error {
	if err != nil && faults(err) {
		if s.state != StateFaulted {
			glog.Warningf("session faulted: %v", err)
		}
		if s.state == StateKeyed {
			s.rekey = true
		}
		s.state = StateFaulted
	}
	return err
}
