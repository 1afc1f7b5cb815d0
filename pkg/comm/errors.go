package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSynchronized indicates an exchange was attempted before a
	// successful handshake.
	ErrNotSynchronized = errors.New("not synchronized")
	// ErrFaulted indicates a previous exchange failed and the link state is
	// unknown. Only a handshake is accepted until it succeeds.
	ErrFaulted = errors.New("session faulted, handshake required")
	// ErrKeyRequired indicates a keyed session faulted and was synchronized
	// again. Registers stay locked until a new key exchange succeeds.
	ErrKeyRequired = errors.New("key exchange required after fault")
	// ErrInvalidCount indicates a negative register count.
	ErrInvalidCount = errors.New("invalid register count")
	// ErrPayloadTooLong is matched by PayloadTooLongError through errors.Is.
	ErrPayloadTooLong = errors.New("payload too long")
)

// TransportError wraps an I/O failure of the underlying stream.
// Read timeouts surface as TransportError too.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ChecksumError reports a received frame whose checksum byte does not match
// its payload.
type ChecksumError struct {
	Expected byte
	Actual   byte
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: computed 0x%02x, received 0x%02x", e.Expected, e.Actual)
}

// UnexpectedResponseError carries the response code the device replied with
// when a different one was required.
type UnexpectedResponseError struct {
	Code byte
}

// Error implements error.
func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response code 0x%02x", e.Code)
}

// PayloadTooLongError rejects a write with more than MaxWriteLen bytes.
type PayloadTooLongError struct {
	Len int
}

// Error implements error.
func (e *PayloadTooLongError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds maximum %d", e.Len, MaxWriteLen)
}

// Is makes errors.Is(err, ErrPayloadTooLong) work.
func (e *PayloadTooLongError) Is(target error) bool {
	return target == ErrPayloadTooLong
}

// faults reports whether err leaves the link in an unknown state.
func faults(err error) bool {
	var (
		te *TransportError
		ce *ChecksumError
		ue *UnexpectedResponseError
	)
	return errors.As(err, &te) || errors.As(err, &ce) || errors.As(err, &ue)
}
