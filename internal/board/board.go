// internal/board/board.go
//
// Board topology for a 100-tile Snake & Ladder board.
// Responsibilities:
//   - Hold the snake (head → tail) and ladder (bottom → top) tables.
//   - Validate the tables once at construction; they are immutable afterwards.
//   - Answer teleport lookups with an explicit (Teleport, bool) pair.
//
// Notes:
//   - A tile is either a snake head, a ladder bottom, or neither.
//   - Classic() returns the compiled-in 10 snake / 9 ladder layout.

package board

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

const (
	// FirstTile is where every player starts.
	FirstTile = 1
	// LastTile must be reached exactly to win.
	LastTile = 100
	// Rows and Cols describe the square grid.
	Rows = 10
	Cols = 10
)

var (
	ErrTileOutOfRange  = errors.New("tile out of range")
	ErrTileConflict    = errors.New("tile is both a snake head and a ladder bottom")
	ErrSnakeDirection  = errors.New("snake must lead to a lower tile")
	ErrLadderDirection = errors.New("ladder must lead to a higher tile")
)

// Kind distinguishes the two teleport types.
type Kind string

const (
	Snake  Kind = "snake"
	Ladder Kind = "ladder"
)

// Teleport is a single snake or ladder.
type Teleport struct {
	Kind Kind `json:"kind"`
	From int  `json:"from"`
	To   int  `json:"to"`
}

// Topology is the immutable snake/ladder table of a board.
type Topology struct {
	snakes  map[int]int // head -> tail
	ladders map[int]int // bottom -> top
}

// NewTopology validates and copies the given tables.
func NewTopology(snakes, ladders map[int]int) (*Topology, error) {
	t := &Topology{
		snakes:  make(map[int]int, len(snakes)),
		ladders: make(map[int]int, len(ladders)),
	}
	for head, tail := range snakes {
		if !InRange(head) || !InRange(tail) {
			return nil, fmt.Errorf("snake %d→%d: %w", head, tail, ErrTileOutOfRange)
		}
		if tail >= head {
			return nil, fmt.Errorf("snake %d→%d: %w", head, tail, ErrSnakeDirection)
		}
		t.snakes[head] = tail
	}
	for bottom, top := range ladders {
		if !InRange(bottom) || !InRange(top) {
			return nil, fmt.Errorf("ladder %d→%d: %w", bottom, top, ErrTileOutOfRange)
		}
		if top <= bottom {
			return nil, fmt.Errorf("ladder %d→%d: %w", bottom, top, ErrLadderDirection)
		}
		if _, dup := t.snakes[bottom]; dup {
			return nil, fmt.Errorf("tile %d: %w", bottom, ErrTileConflict)
		}
		t.ladders[bottom] = top
	}
	return t, nil
}

// Classic returns the standard board layout.
func Classic() *Topology {
	t, err := NewTopology(classicSnakes, classicLadders)
	if err != nil {
		panic("board: invalid classic layout: " + err.Error())
	}
	return t
}

var classicSnakes = map[int]int{
	16: 6, 47: 26, 49: 11, 56: 53, 62: 19,
	64: 60, 87: 24, 93: 73, 95: 75, 98: 78,
}

var classicLadders = map[int]int{
	1: 38, 4: 14, 9: 31, 21: 42, 28: 84,
	36: 44, 51: 67, 71: 91, 80: 100,
}

// Lookup reports the teleport starting at tile, if any.
// Snakes are checked before ladders, although a valid topology never has both.
func (t *Topology) Lookup(tile int) (Teleport, bool) {
	if to, ok := t.snakes[tile]; ok {
		return Teleport{Kind: Snake, From: tile, To: to}, true
	}
	if to, ok := t.ladders[tile]; ok {
		return Teleport{Kind: Ladder, From: tile, To: to}, true
	}
	return Teleport{}, false
}

// Snakes returns all snakes ordered by head tile.
func (t *Topology) Snakes() []Teleport { return list(t.snakes, Snake) }

// Ladders returns all ladders ordered by bottom tile.
func (t *Topology) Ladders() []Teleport { return list(t.ladders, Ladder) }

func list(m map[int]int, kind Kind) []Teleport {
	keys := lo.Keys(m)
	sort.Ints(keys)
	return lo.Map(keys, func(from int, _ int) Teleport {
		return Teleport{Kind: kind, From: from, To: m[from]}
	})
}

// InRange reports whether tile lies on the board.
func InRange(tile int) bool { return tile >= FirstTile && tile <= LastTile }
