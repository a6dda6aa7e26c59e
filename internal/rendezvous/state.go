// Package rendezvous implements the matchmaking server two gday peers
// use to exchange contact information before attempting to punch a
// hole between them. It never sees file contents or the AEAD session
// key — only room codes and socket addresses.
package rendezvous

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/postalsys/gday/internal/metrics"
	"github.com/postalsys/gday/internal/protocol"
	"golang.org/x/time/rate"
)

// DefaultRoomTimeout is how long a room waits for its second occupant
// before it is torn down.
const DefaultRoomTimeout = 10 * time.Minute

// occupant is one side's state within a room. It advances through the
// spec.md §4.4 state machine INITIAL -> OWNED_EMPTY -> OWNED_FILLING ->
// READY; hasAddr marks OWNED_FILLING and shared marks READY.
type occupant struct {
	public  protocol.Endpoint
	hasAddr bool
	local   []protocol.Endpoint
	shared  bool
	ready   chan protocol.FullContact // buffered, size 1; closed (without a send) on timeout
}

func newOccupant() *occupant {
	return &occupant{ready: make(chan protocol.FullContact, 1)}
}

// room holds the state for exactly two named slots, creator and
// joiner, meeting at a room code: rooms map 1:1 onto spec.md's Room
// type. The creator slot always exists once the room does (CreateRoom
// makes it); the joiner slot is created lazily by the joiner's first
// RecordPublicAddr.
type room struct {
	code    uint64
	creator *occupant
	joiner  *occupant
	timer   *time.Timer
}

func (r *room) occupant(isCreator bool) *occupant {
	if isCreator {
		return r.creator
	}
	return r.joiner
}

// State is the rendezvous server's in-memory state: the room table and
// a per-source-IP rate limiter. Mirrors spec.md §4.3's single-lock
// discipline — every mutating operation takes mu for its whole
// duration, so room transitions never interleave.
type State struct {
	mu           sync.Mutex
	rooms        map[uint64]*room
	limiters     map[string]*rate.Limiter
	roomTimeout  time.Duration
	maxPerMinute int
	metrics      *metrics.Metrics
}

// NewState builds an empty rendezvous state. maxRequestsPerMinute
// configures the per-IP token bucket used by Allow; roomTimeout is how
// long an incomplete room is kept around before being discarded.
func NewState(maxRequestsPerMinute int, roomTimeout time.Duration) *State {
	if roomTimeout <= 0 {
		roomTimeout = DefaultRoomTimeout
	}
	return &State{
		rooms:        make(map[uint64]*room),
		limiters:     make(map[string]*rate.Limiter),
		roomTimeout:  roomTimeout,
		maxPerMinute: maxRequestsPerMinute,
	}
}

// WithMetrics attaches m so room lifecycle events are reported to
// Prometheus. Passing nil (the default) disables metrics entirely.
func (s *State) WithMetrics(m *metrics.Metrics) *State {
	s.metrics = m
	return s
}

// OccupantHandle identifies one side's slot within a room, returned by
// CreateRoom or RecordPublicAddr and required by every subsequent call
// for that connection. occ is resolved once, up front, so later calls
// never need to re-find it through the room map — which matters once
// ShareContact removes a completed room from that map out from under a
// connection still waiting on AwaitPeerContact.
type OccupantHandle struct {
	RoomCode  uint64
	IsCreator bool
	occ       *occupant
}

// Allow reports whether a new mutating request from srcIP is within
// its per-minute budget, using one golang.org/x/time/rate token bucket
// per source address.
func (s *State) Allow(srcIP string) bool {
	if s.maxPerMinute <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[srcIP]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(s.maxPerMinute))/60, s.maxPerMinute)
		s.limiters[srcIP] = limiter
	}
	allowed := limiter.Allow()
	if !allowed && s.metrics != nil {
		s.metrics.RateLimitRejects.Inc()
	}
	return allowed
}

// CreateRoom implements spec.md's CreateRoom operation: it opens a
// fresh room for roomCode and claims the creator slot. A code held by a
// live room is rejected with ErrRoomCodeTaken rather than silently
// treated as a join; once that room completes or expires it leaves the
// table and the code can be created again. The joiner's side of a room
// is entered implicitly, through its
// first RecordPublicAddr (see RecordPublicAddr), never through this
// call.
func (s *State) CreateRoom(roomCode uint64) (OccupantHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomCode]; ok {
		return OccupantHandle{}, protocol.ErrRoomCodeTaken
	}

	r := &room{code: roomCode, creator: newOccupant()}
	s.rooms[roomCode] = r
	r.timer = time.AfterFunc(s.roomTimeout, func() { s.expireRoom(roomCode) })
	if s.metrics != nil {
		s.metrics.RoomsCreated.Inc()
		s.metrics.RoomsActive.Set(float64(len(s.rooms)))
	}
	return OccupantHandle{RoomCode: roomCode, IsCreator: true, occ: r.creator}, nil
}

// expireRoom tears down a room that never completed within the
// configured timeout. Any occupant still blocked in AwaitPeerContact
// has its ready channel closed (without a send), which that call
// reports as ErrPeerTimedOut — otherwise it would hang forever, since
// the ctx passed to AwaitPeerContact is the connection's lifetime, not
// the room's.
func (s *State) expireRoom(roomCode uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomCode]
	if !ok {
		return
	}
	delete(s.rooms, roomCode)
	if r.creator != nil {
		close(r.creator.ready)
	}
	if r.joiner != nil {
		close(r.joiner.ready)
	}
	if s.metrics != nil {
		s.metrics.RoomsExpired.Inc()
		s.metrics.RoomsActive.Set(float64(len(s.rooms)))
	}
}

// RecordPublicAddr implements spec.md's RecordPublicAddr operation:
// the server fills in the occupant's public endpoint from the TCP
// connection's observed remote address. On the creator's connection
// this follows CreateRoom; on the joiner's it is the first message for
// the room, and the joiner's slot is created here, lazily.
func (s *State) RecordPublicAddr(roomCode uint64, isCreator bool, remoteAddr net.Addr) (protocol.Endpoint, OccupantHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomCode]
	if !ok {
		return protocol.Endpoint{}, OccupantHandle{}, protocol.ErrRoomNotFound
	}

	occ := r.occupant(isCreator)
	if occ == nil {
		if isCreator {
			return protocol.Endpoint{}, OccupantHandle{}, fmt.Errorf("rendezvous: room %d has no creator occupant", roomCode)
		}
		occ = newOccupant()
		r.joiner = occ
	}

	if r.creator != nil && r.joiner != nil && r.timer != nil {
		r.timer.Stop()
	}

	ep, err := endpointFromAddr(remoteAddr)
	if err != nil {
		return protocol.Endpoint{}, OccupantHandle{}, err
	}
	occ.public = ep
	occ.hasAddr = true
	return ep, OccupantHandle{RoomCode: roomCode, IsCreator: isCreator, occ: occ}, nil
}

// ShareContact implements spec.md's ShareContact operation: it records
// this occupant's local addresses and, once both occupants of the room
// have shared, computes and delivers each side's FullContact via its
// ready channel, then removes the completed room.
func (s *State) ShareContact(h OccupantHandle, local []protocol.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.occ == nil {
		return protocol.ErrRoomNotFound
	}
	if h.occ.shared {
		return protocol.ErrAlreadyShared
	}
	h.occ.local = local
	h.occ.shared = true
	if s.metrics != nil {
		s.metrics.ContactsShared.Inc()
	}

	r, ok := s.rooms[h.RoomCode]
	if !ok {
		return nil
	}
	other := r.occupant(!h.IsCreator)
	if other == nil || !other.shared {
		return nil
	}

	mine := protocol.Contact{Local: h.occ.local, Public: h.occ.public}
	theirs := protocol.Contact{Local: other.local, Public: other.public}

	h.occ.ready <- protocol.FullContact{Local: mine, Peer: theirs}
	other.ready <- protocol.FullContact{Local: theirs, Peer: mine}

	if r.timer != nil {
		r.timer.Stop()
	}
	delete(s.rooms, h.RoomCode)
	if s.metrics != nil {
		s.metrics.RoomsActive.Set(float64(len(s.rooms)))
	}
	return nil
}

// AwaitPeerContact blocks until the room's occupants have both shared
// their contact, the room times out (ErrPeerTimedOut), or ctx is
// cancelled.
func (s *State) AwaitPeerContact(ctx context.Context, h OccupantHandle) (protocol.FullContact, error) {
	if h.occ == nil {
		return protocol.FullContact{}, protocol.ErrRoomNotFound
	}

	select {
	case fc, ok := <-h.occ.ready:
		if !ok {
			return protocol.FullContact{}, protocol.ErrPeerTimedOut
		}
		return fc, nil
	case <-ctx.Done():
		return protocol.FullContact{}, ctx.Err()
	}
}

// Close removes a room entirely, e.g. once a hole-punch attempt has
// been handed off and the rendezvous connection is no longer needed.
func (s *State) Close(roomCode uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomCode]; ok {
		if r.timer != nil {
			r.timer.Stop()
		}
		delete(s.rooms, roomCode)
		if s.metrics != nil {
			s.metrics.RoomsActive.Set(float64(len(s.rooms)))
		}
	}
}

// RoomCount reports how many rooms currently exist, for metrics.
func (s *State) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func endpointFromAddr(addr net.Addr) (protocol.Endpoint, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return protocol.Endpoint{}, fmt.Errorf("rendezvous: unexpected remote address type %T", addr)
	}
	return protocol.Endpoint{IP: tcpAddr.IP, Port: uint16(tcpAddr.Port)}, nil
}
