package holepunch

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"lukechampine.com/blake3"
)

// ErrPeerVerificationFailed is returned when the mutual challenge hash
// a peer replies with does not match what this side expected, meaning
// the party on the other end of the connection does not hold the same
// session key — almost always because two unrelated hole-punch
// attempts happened to land on the same port pair.
var ErrPeerVerificationFailed = fmt.Errorf("holepunch: peer verification failed")

const challengeSize = 32
const hashSize = 32

// verifyPeer runs the mutual challenge/response confirmation once a
// PAKE session key has been derived: both sides send a random
// challenge, then reply with BLAKE3(sessionKey || peer's challenge),
// and each checks the other's reply against its own expectation.
// Grounded directly on
// original_source/gday_hole_punch/src/hole_puncher.rs's verify_peer.
func verifyPeer(rw io.ReadWriter, sessionKey [32]byte) error {
	var myChallenge [challengeSize]byte
	if _, err := rand.Read(myChallenge[:]); err != nil {
		return fmt.Errorf("holepunch: generate challenge: %w", err)
	}
	if _, err := rw.Write(myChallenge[:]); err != nil {
		return fmt.Errorf("holepunch: send challenge: %w", err)
	}

	var peerChallenge [challengeSize]byte
	if _, err := io.ReadFull(rw, peerChallenge[:]); err != nil {
		return fmt.Errorf("holepunch: receive peer challenge: %w", err)
	}

	myHash := challengeHash(sessionKey, peerChallenge[:])
	if _, err := rw.Write(myHash[:]); err != nil {
		return fmt.Errorf("holepunch: send challenge reply: %w", err)
	}

	var peerHash [hashSize]byte
	if _, err := io.ReadFull(rw, peerHash[:]); err != nil {
		return fmt.Errorf("holepunch: receive peer reply: %w", err)
	}

	expected := challengeHash(sessionKey, myChallenge[:])
	if subtle.ConstantTimeCompare(expected[:], peerHash[:]) != 1 {
		return ErrPeerVerificationFailed
	}
	return nil
}

func challengeHash(sessionKey [32]byte, challenge []byte) [hashSize]byte {
	h := blake3.New(hashSize, nil)
	h.Write(sessionKey[:])
	h.Write(challenge)
	var out [hashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
