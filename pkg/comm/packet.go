package comm

import "io"

// EncodeFrame returns the host-to-device wire bytes for payload:
// the payload followed by its checksum, both obfuscated with key.
// The checksum is computed over the plaintext payload.
func EncodeFrame(payload []byte, key byte) []byte {
	frame := make([]byte, len(payload)+1)
	copy(frame, payload)
	frame[len(payload)] = Checksum(payload)
	return Obfuscate(frame, key)
}

// DecodeFrame validates a device-to-host frame (payload followed by
// checksum, in the clear) and returns the payload.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, &TransportError{Op: "read", Err: io.ErrUnexpectedEOF}
	}
	payload, sum := frame[:len(frame)-1], frame[len(frame)-1]
	if c := Checksum(payload); c != sum {
		return nil, &ChecksumError{Expected: c, Actual: sum}
	}
	return payload, nil
}

// WritePacket writes payload as one obfuscated frame.
func WritePacket(w io.Writer, key byte, payload []byte) error {
	if _, err := w.Write(EncodeFrame(payload, key)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// ReadPacket reads a frame carrying n payload bytes plus the trailing
// checksum byte, and returns the validated payload.
func ReadPacket(r io.Reader, n int) ([]byte, error) {
	frame := make([]byte, n+1)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	return DecodeFrame(frame)
}
