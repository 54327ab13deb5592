package crypto

// Wipe zeroes a sensitive buffer in place. Derived keys and decrypted
// plaintext pass through here on every exit path; key material must not
// outlive the call that derived it.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
