// Package sim provides an in-memory ET-312 device for tests and dry runs.
package sim

import (
	"bytes"
	"errors"

	"github.com/golang/glog"

	"github.com/robotalks/estim.go/pkg/comm"
)

// ErrTimeout is returned by Read when the device has nothing to send,
// the way a serial port read times out.
var ErrTimeout = errors.New("sim: read timeout")

// DefaultKeyByte is the device half of the key exchange.
// With the fixed host key it yields a session key of 0xff.
const DefaultKeyByte byte = 0xaa

// replyError is what the device answers to frames it can't accept.
const replyError byte = 0x07

// Device emulates the device side of the protocol.
//
// Each Write is treated as one complete host frame, which is how
// comm.Session sends them. Responses are queued and drained by Read.
// Device is not safe for concurrent use.
type Device struct {
	// Memory is the register space.
	Memory [0x10000]byte
	// KeyByte is sent in key exchange replies.
	KeyByte byte
	// Frames records every host write, as received on the wire.
	Frames [][]byte

	key         byte
	synced      bool
	out         bytes.Buffer
	corruptNext bool
	injectCode  *byte
}

// NewDevice creates a Device with DefaultKeyByte.
func NewDevice() *Device {
	return &Device{KeyByte: DefaultKeyByte}
}

// Key returns the key the device currently expects host frames under.
func (d *Device) Key() byte {
	return d.key
}

// CorruptNextChecksum makes the next framed response carry a bad checksum.
func (d *Device) CorruptNextChecksum() {
	d.corruptNext = true
}

// InjectResponseCode replaces the code of the next response with code.
func (d *Device) InjectResponseCode(code byte) {
	d.injectCode = &code
}

// Read implements io.Reader.
func (d *Device) Read(p []byte) (int, error) {
	if d.out.Len() == 0 {
		return 0, ErrTimeout
	}
	return d.out.Read(p)
}

// Write implements io.Writer.
func (d *Device) Write(p []byte) (int, error) {
	d.Frames = append(d.Frames, append([]byte(nil), p...))
	if len(p) == 1 && p[0] == comm.OpSync {
		d.out.Reset()
		d.synced = true
		d.reply([]byte{comm.AckSync}, false)
		return len(p), nil
	}
	if !d.synced || len(p) < 2 {
		glog.V(5).Infof("sim: dropped % x", p)
		return len(p), nil
	}
	body, err := comm.DecodeFrame(comm.Obfuscate(p, d.key))
	if err != nil {
		glog.V(5).Infof("sim: %v", err)
		d.reply([]byte{replyError}, false)
		return len(p), nil
	}
	d.reply(d.handle(body), true)
	return len(p), nil
}

// Close implements io.Closer.
func (d *Device) Close() error {
	return nil
}

func (d *Device) handle(body []byte) []byte {
	switch op := body[0]; {
	case op == comm.OpKeyExchange && len(body) == 2:
		d.key = d.KeyByte ^ comm.EncryptionKeyXOR ^ body[1]
		return []byte{comm.AckKeyExchange, d.KeyByte}
	case op == comm.OpRead && len(body) == 3:
		return []byte{comm.AckRead, d.Memory[address(body[1:])]}
	case op&0x0f == comm.OpWrite&0x0f && len(body) >= 3 && len(body) <= comm.MaxFrameLen &&
		op == comm.WriteLengthByte(len(body)-3):
		copy(d.Memory[address(body[1:]):], body[3:])
		return []byte{comm.Ack}
	}
	return []byte{replyError}
}

func (d *Device) reply(payload []byte, framed bool) {
	if d.injectCode != nil {
		payload[0], d.injectCode = *d.injectCode, nil
	}
	d.out.Write(payload)
	if !framed {
		return
	}
	sum := comm.Checksum(payload)
	if d.corruptNext {
		sum, d.corruptNext = sum+1, false
	}
	d.out.WriteByte(sum)
}

func address(b []byte) int {
	return int(b[0]) | int(b[1])<<8
}
