// internal/game/random.go
//
// Randomness sources for the engine.
//   - CryptoRand: crypto/rand, used for regular games.
//   - SeededRand: deterministic HMAC-SHA256 stream, used where a game must
//     replay identically (daily challenge) and be verifiable afterwards.
//   - Sequence: fixed values, for tests and scripted games.

package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
)

// Rand supplies uniformly distributed 32-bit values.
type Rand interface {
	Uint32() uint32
}

// CryptoRand reads from crypto/rand. A read failure panics; there is no
// meaningful way to continue a game without entropy.
type CryptoRand struct{}

func (CryptoRand) Uint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return binary.LittleEndian.Uint32(b[:])
}

// SeededRand derives bytes from HMAC-SHA256(serverSeed, "clientSeed:nonce:round"),
// 32 bytes per round, consumed four at a time.
type SeededRand struct {
	serverSeed string
	clientSeed string
	nonce      uint64

	mu     sync.Mutex
	round  uint64
	pos    int
	buffer [32]byte
}

// NewSeededRand starts a stream at round 0.
func NewSeededRand(serverSeed, clientSeed string, nonce uint64) *SeededRand {
	r := &SeededRand{serverSeed: serverSeed, clientSeed: clientSeed, nonce: nonce}
	r.fill()
	return r
}

func (r *SeededRand) Uint32() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos+4 > len(r.buffer) {
		r.round++
		r.fill()
	}
	v := binary.LittleEndian.Uint32(r.buffer[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *SeededRand) fill() {
	h := hmac.New(sha256.New, []byte(r.serverSeed))
	fmt.Fprintf(h, "%s:%d:%d", r.clientSeed, r.nonce, r.round)
	copy(r.buffer[:], h.Sum(nil))
	r.pos = 0
}

// Sequence returns its values in order, wrapping around. An empty
// Sequence always yields 0.
type Sequence struct {
	mu     sync.Mutex
	values []uint32
	next   int
}

func NewSequence(values ...uint32) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Uint32() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}
