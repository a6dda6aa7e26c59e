// Package peercode implements the short, human-typeable codes users
// exchange out-of-band (over chat, voice, a sticky note) to find each
// other through a rendezvous server.
//
// A code encodes three numbers — which rendezvous server to use, which
// room to meet in, and the low-entropy secret both sides feed into the
// PAKE handshake — plus a checksum digit that catches transcription
// mistakes before a connection attempt is even made.
package peercode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for each distinguishable way a code can fail to
// decode, per spec.md §4.7/§7's error taxonomy (parse, wrong segment
// count, missing checksum, incorrect checksum, value too large).
var (
	// ErrCouldntParse is returned when a segment isn't valid hexadecimal.
	ErrCouldntParse = errors.New("peercode: field is not valid hex")

	// ErrWrongSegmentCount is returned when a code has neither three
	// (checksum-absent) nor four (checksum-present) dot-separated
	// segments.
	ErrWrongSegmentCount = errors.New("peercode: wrong number of segments")

	// ErrMissingChecksum is returned by ParseChecked when given the
	// three-segment, checksum-absent form.
	ErrMissingChecksum = errors.New("peercode: checksum segment is required")

	// ErrIncorrectChecksum is returned when a code parses but its
	// checksum digit does not match its three data fields — almost
	// always a typo.
	ErrIncorrectChecksum = errors.New("peercode: checksum mismatch")

	// ErrValueTooLarge is returned when a segment is valid hex but
	// overflows 64 bits.
	ErrValueTooLarge = errors.New("peercode: field value exceeds 64 bits")
)

// PeerCode is the decoded form of a short code.
type PeerCode struct {
	ServerID     uint64
	RoomCode     uint64
	SharedSecret uint64
}

// checksum computes the single base-17 check digit for a code, per
// spec.md §4.7: ((server_id % 17) + 2*(room_code % 17) + 3*(shared_secret % 17)) % 17.
func checksum(serverID, roomCode, sharedSecret uint64) uint64 {
	return ((serverID % 17) + 2*(roomCode%17) + 3*(sharedSecret%17)) % 17
}

// Encode renders p as "SERVERID.ROOMCODE.SECRET.CHECKSUM", each field
// uppercase hexadecimal with no leading zero padding — matching the
// worked example (27, 314, 15) → "1B.13A.F.3".
func (p PeerCode) Encode() string {
	cs := checksum(p.ServerID, p.RoomCode, p.SharedSecret)
	return strings.ToUpper(strings.Join([]string{
		strconv.FormatUint(p.ServerID, 16),
		strconv.FormatUint(p.RoomCode, 16),
		strconv.FormatUint(p.SharedSecret, 16),
		strconv.FormatUint(cs, 16),
	}, "."))
}

// Parse decodes and validates a short code produced by Encode. It
// accepts either case and tolerates surrounding whitespace, since codes
// are routinely read aloud and retyped by hand. Per spec.md §4.7, the
// checksum segment is optional: three dot-separated fields decode
// without checksum verification; four fields require the checksum to
// match.
func Parse(code string) (PeerCode, error) {
	fields := strings.Split(strings.TrimSpace(code), ".")
	if len(fields) != 3 && len(fields) != 4 {
		return PeerCode{}, fmt.Errorf("%w: want 3 or 4 dot-separated fields, got %d", ErrWrongSegmentCount, len(fields))
	}

	vals := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return PeerCode{}, fmt.Errorf("%w: field %d (%q)", ErrValueTooLarge, i, f)
			}
			return PeerCode{}, fmt.Errorf("%w: field %d (%q): %v", ErrCouldntParse, i, f, err)
		}
		vals[i] = v
	}

	p := PeerCode{ServerID: vals[0], RoomCode: vals[1], SharedSecret: vals[2]}
	if len(fields) == 3 {
		return p, nil
	}

	want := checksum(p.ServerID, p.RoomCode, p.SharedSecret)
	if vals[3] != want {
		return PeerCode{}, fmt.Errorf("%w: got %d, want %d", ErrIncorrectChecksum, vals[3], want)
	}
	return p, nil
}

// ParseChecked is like Parse but rejects the three-segment,
// checksum-absent form with ErrMissingChecksum. Interactive entry
// points (a human typing or reading back a code) should use this
// instead of Parse, since the checksum is what catches a transcription
// mistake before a connection attempt is made.
func ParseChecked(code string) (PeerCode, error) {
	fields := strings.Split(strings.TrimSpace(code), ".")
	if len(fields) == 3 {
		return PeerCode{}, ErrMissingChecksum
	}
	return Parse(code)
}
