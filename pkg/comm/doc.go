// Package comm implements the host side of the ET-312 serial protocol.
package comm

// The host talks to the device over a byte stream in strict
// request/response exchanges. Every frame carries an 8-bit additive
// checksum of its payload. After a key exchange, every byte the host
// sends (payload and checksum alike) is XOR-ed with the session key.
// Bytes coming back from the device are never obfuscated.
//
// A Session is not safe for concurrent use. Wrap it with a Client when
// it needs to be shared between goroutines.
