package comm

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Request opcodes sent by the host.
const (
	// OpSync is the raw handshake probe, sent outside the packet codec.
	OpSync byte = 0x00
	// OpKeyExchange requests a session key.
	OpKeyExchange byte = 0x2f
	// OpRead reads a single register.
	OpRead byte = 0x3c
	// OpWrite is the low nibble of the write length byte.
	OpWrite byte = 0x3d
)

// Response codes sent by the device.
const (
	AckSync        byte = 0x07
	AckKeyExchange byte = 0x21
	AckRead        byte = 0x22
	Ack            byte = 0x06
)

const (
	// HostKey is the host half of the key exchange. Fixed at zero so the
	// negotiated key depends only on the device reply.
	HostKey byte = 0x00
	// EncryptionKeyXOR is mixed into the device key byte to derive the
	// session key.
	EncryptionKeyXOR byte = 0x55
	// MaxWriteLen is the maximum number of bytes in a single write.
	MaxWriteLen = 12
	// MaxFrameLen is the largest frame body the device accepts.
	MaxFrameLen = 3 + MaxWriteLen
)

// WriteLengthByte packs the payload length into the high nibble and the
// write opcode into the low nibble.
func WriteLengthByte(n int) byte {
	return byte(n<<4) | OpWrite
}

// Address is a register address in the device memory map.
type Address uint16

// Bytes returns the little-endian encoding sent on the wire.
func (a Address) Bytes() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(a))
	return b
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return fmt.Sprintf("0x%04x", uint16(a))
}

// ParseAddress parses a decimal or 0x-prefixed hexadecimal address.
func ParseAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(v), nil
}
