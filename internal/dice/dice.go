// Package dice supplies die values to the game engine.
//
// The engine never generates randomness itself; callers inject a Source.
// NewRandom is deterministic for a given seed, so a stored seed is enough to
// replay a game, and Sequence serves fixed values for tests.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

const (
	Min = 1
	Max = 6
)

// Source produces die values in [Min, Max].
type Source interface {
	Roll() int
}

// Valid reports whether v is a face of a six-sided die.
func Valid(v int) bool { return v >= Min && v <= Max }

// Random is a seeded uniform die. Safe for concurrent use.
type Random struct {
	mu   sync.Mutex
	rng  *rand.Rand
	seed int64
}

// NewRandom returns a die seeded with seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed)), seed: seed}
}

// Roll returns the next die value.
func (r *Random) Roll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(Max) + Min
}

// Seed returns the seed the die was created with.
func (r *Random) Seed() int64 { return r.seed }

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Sequence replays fixed values in order, wrapping around at the end.
type Sequence struct {
	mu     sync.Mutex
	values []int
	next   int
}

// NewSequence panics when values is empty.
func NewSequence(values ...int) *Sequence {
	if len(values) == 0 {
		panic("dice: empty sequence")
	}
	return &Sequence{values: append([]int(nil), values...)}
}

func (s *Sequence) Roll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	return v
}
