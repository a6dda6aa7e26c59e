package holepunch

import (
	"crypto/rand"
	"fmt"
	"io"
)

const nonceSeedSize = 7

// NegotiateNonce exchanges a random 7-byte seed with the peer over the
// now-verified connection and returns the XOR of both sides' seeds as
// the base nonce for the chunked AEAD stream (spec.md §9). Binding the
// nonce to a value neither side alone controls means neither peer can
// force nonce reuse across sessions by replaying a fixed seed.
func NegotiateNonce(rw io.ReadWriter) ([7]byte, error) {
	var mySeed [nonceSeedSize]byte
	if _, err := rand.Read(mySeed[:]); err != nil {
		return [7]byte{}, fmt.Errorf("holepunch: generate nonce seed: %w", err)
	}
	if _, err := rw.Write(mySeed[:]); err != nil {
		return [7]byte{}, fmt.Errorf("holepunch: send nonce seed: %w", err)
	}

	var peerSeed [nonceSeedSize]byte
	if _, err := io.ReadFull(rw, peerSeed[:]); err != nil {
		return [7]byte{}, fmt.Errorf("holepunch: receive nonce seed: %w", err)
	}

	var base [7]byte
	for i := range base {
		base[i] = mySeed[i] ^ peerSeed[i]
	}
	return base, nil
}
