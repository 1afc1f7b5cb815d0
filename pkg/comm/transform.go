package comm

// Checksum is the wrapping 8-bit sum of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Obfuscate returns a copy of data with every byte XOR-ed with key.
// Applying it twice with the same key restores data.
func Obfuscate(data []byte, key byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key
	}
	return out
}
