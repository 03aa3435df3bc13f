// internal/game/types.go
//
// Core type definitions for the Snake & Ladder rules engine.
// Defines:
//   - Player: a seat at the table and its position on the board.
//   - OutcomeKind / Outcome: the result record of one resolved turn.
//   - Phase: Setup → InProgress → Finished.
//   - Sink: observer that receives every resolved turn.

package game

import "github.com/robalobadob/snakeladder/internal/board"

const (
	MinPlayers = 2
	MaxPlayers = 6
)

// Palette is the rotation of display colors handed to players in seat order.
// Colors are opaque tags; the engine never interprets them.
var Palette = []string{"red", "blue", "green", "orange", "purple", "cyan"}

// Player is one participant.
type Player struct {
	ID       int    `json:"id"`       // 1-based seat ordinal
	Name     string `json:"name"`     // Display name
	Color    string `json:"color"`    // Opaque render tag
	Position int    `json:"position"` // Tile in [1,100]
}

// OutcomeKind classifies a resolved turn.
type OutcomeKind string

const (
	Moved     OutcomeKind = "moved"
	Overshoot OutcomeKind = "overshoot"
	Win       OutcomeKind = "win"
)

// Outcome is the result of one ResolveTurn call.
//
// For an Overshoot, Landing and Final equal From.
// Teleport is set only when the landing tile held a snake or ladder.
type Outcome struct {
	Seq      int             `json:"seq"`    // 1-based turn counter
	Kind     OutcomeKind     `json:"kind"`   // moved | overshoot | win
	Player   Player          `json:"player"` // snapshot after the move
	Dice     int             `json:"dice"`
	From     int             `json:"from"`
	Landing  int             `json:"landing"` // pre-teleport tile
	Final    int             `json:"final"`
	Teleport *board.Teleport `json:"teleport,omitempty"`
	Next     int             `json:"next"`   // seat index to play next
	Rolled   bool            `json:"rolled"` // drawn from the game's own die
}

// Phase is the lifecycle state of a game.
type Phase string

const (
	Setup      Phase = "setup"
	InProgress Phase = "in_progress"
	Finished   Phase = "finished"
)

// Sink receives every resolved turn, synchronously, in order.
type Sink interface {
	OnTurn(Outcome)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Outcome)

func (f SinkFunc) OnTurn(o Outcome) { f(o) }

// MultiSink fans a turn out to several sinks in order. Nil entries are skipped.
type MultiSink []Sink

func (m MultiSink) OnTurn(o Outcome) {
	for _, s := range m {
		if s != nil {
			s.OnTurn(o)
		}
	}
}
