package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"
)

// nonceSource produces GCM nonces that cannot repeat under one provider:
// a random 4-byte prefix drawn at construction, followed by a 64-bit
// atomic counter. The composition makes reuse structurally impossible
// within a source rather than merely improbable.
type nonceSource struct {
	prefix  [4]byte
	counter atomic.Uint64
}

func newNonceSource() (*nonceSource, error) {
	src := &nonceSource{}
	if _, err := io.ReadFull(rand.Reader, src.prefix[:]); err != nil {
		return nil, fmt.Errorf("read nonce prefix: %w", err)
	}

	// Start the counter at a random offset so parallel processes with a
	// colliding prefix still diverge immediately.
	var seed [8]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return nil, fmt.Errorf("read counter seed: %w", err)
	}
	src.counter.Store(binary.BigEndian.Uint64(seed[:]))

	return src, nil
}

// Next returns a fresh 12-byte nonce.
func (s *nonceSource) Next() []byte {
	n := s.counter.Add(1)

	nonce := make([]byte, NonceSize)
	copy(nonce, s.prefix[:])
	binary.BigEndian.PutUint64(nonce[4:], n)
	return nonce
}
