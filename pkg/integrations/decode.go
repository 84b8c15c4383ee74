package integrations

// Decode reverses the service obfuscation: every byte is XORed with the key
// byte at the same position modulo the key length. The operation is its own
// inverse. An empty key returns an unchanged copy.
func Decode(raw []byte, key string) []byte {
	out := make([]byte, len(raw))
	if len(key) == 0 {
		copy(out, raw)
		return out
	}
	for i, b := range raw {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
