package comm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomBytes(r *rand.Rand, max int) []byte {
	b := make([]byte, r.Intn(max+1))
	r.Read(b)
	return b
}

func TestChecksum(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		expect byte
	}{
		{"empty", nil, 0},
		{"single", []byte{0x2a}, 0x2a},
		{"wraps", []byte{0xff, 0x02}, 0x01},
		{"key exchange", []byte{OpKeyExchange, HostKey}, 0x2f},
		{"read request", []byte{OpRead, 0x00, 0x05}, 0x41},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Checksum(tc.data))
		})
	}
}

func TestChecksumAdditive(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		a, b := randomBytes(r, 64), randomBytes(r, 64)
		ab := append(append([]byte(nil), a...), b...)
		require.Equal(t, Checksum(a)+Checksum(b), Checksum(ab))
	}
}

func TestObfuscate(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		x := randomBytes(r, 32)
		require.Equal(t, x, Obfuscate(x, 0))
		for k := 0; k < 256; k++ {
			require.Equal(t, x, Obfuscate(Obfuscate(x, byte(k)), byte(k)))
		}
	}
}

func TestObfuscateDoesNotMutate(t *testing.T) {
	x := []byte{1, 2, 3}
	y := Obfuscate(x, 0xff)
	require.Equal(t, []byte{1, 2, 3}, x)
	require.Equal(t, []byte{0xfe, 0xfd, 0xfc}, y)
}
