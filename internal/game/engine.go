// internal/game/engine.go
//
// Core game engine for a single Snake & Ladder session.
// Responsibilities:
//   - Seat 2–6 players at tile 1 in turn order.
//   - Validate and apply die values (exact roll needed to finish).
//   - Resolve snakes and ladders on the landing tile.
//   - Track state transitions: in_progress → finished.
//
// Notes:
//   - The die source and outcome sink are injected; the engine has no I/O.
//   - A Game is not safe for concurrent use; callers serialise turns.
//   - An overshooting roll skips the teleport and win checks and passes the turn.

package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/robalobadob/snakeladder/internal/board"
	"github.com/robalobadob/snakeladder/internal/dice"
)

var (
	ErrInvalidDiceValue   = errors.New("invalid dice value")
	ErrInvalidPlayerCount = errors.New("invalid player count")
	ErrGameNotRunning     = errors.New("game not running")
	ErrNoDiceSource       = errors.New("no dice source")
)

// Game holds the state of one session.
// The zero value is a game in Setup that refuses every turn.
type Game struct {
	ID string

	topology *board.Topology
	dice     dice.Source
	sink     Sink

	players []Player
	current int
	running bool
	turns   int
	winner  int // seat index, -1 while nobody has won
}

// Option configures New.
type Option func(*Game)

// WithTopology replaces the classic board. A nil topology is ignored.
func WithTopology(t *board.Topology) Option {
	return func(g *Game) {
		if t != nil {
			g.topology = t
		}
	}
}

// WithDice sets the source used by Roll.
func WithDice(d dice.Source) Option { return func(g *Game) { g.dice = d } }

// WithSink sets the observer notified after every turn.
func WithSink(s Sink) Option { return func(g *Game) { g.sink = s } }

// WithID fixes the game identifier instead of generating one.
func WithID(id string) Option { return func(g *Game) { g.ID = id } }

// New seats one player per name and starts the game.
// Blank names become "Player N".
func New(names []string, opts ...Option) (*Game, error) {
	if len(names) < MinPlayers || len(names) > MaxPlayers {
		return nil, fmt.Errorf("%w: %d (want %d-%d)", ErrInvalidPlayerCount, len(names), MinPlayers, MaxPlayers)
	}
	g := &Game{
		ID:       uuid.NewString(),
		topology: board.Classic(),
		winner:   -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.players = lo.Map(names, func(name string, i int) Player {
		name = strings.TrimSpace(name)
		if name == "" {
			name = DefaultName(i)
		}
		return Player{
			ID:       i + 1,
			Name:     name,
			Color:    Palette[i%len(Palette)],
			Position: board.FirstTile,
		}
	})
	g.running = true
	return g, nil
}

// DefaultNames returns "Player 1".."Player n".
func DefaultNames(n int) []string {
	return lo.Times(n, DefaultName)
}

// DefaultName is the name given to the seat at index i.
func DefaultName(i int) string { return fmt.Sprintf("Player %d", i+1) }

// Roll draws a value from the injected die source and resolves it.
func (g *Game) Roll() (Outcome, error) {
	if !g.running {
		return Outcome{}, ErrGameNotRunning
	}
	if g.dice == nil {
		return Outcome{}, ErrNoDiceSource
	}
	return g.resolve(g.dice.Roll(), true)
}

// ResolveTurn moves the current player by value and applies the board.
//
// Rules:
//   - value must be in [1,6]; otherwise nothing changes.
//   - Passing tile 100 forfeits the move; the turn still passes.
//   - A snake head or ladder bottom moves the player to its other end.
//   - Ending on tile 100, after any teleport, wins and stops the game.
func (g *Game) ResolveTurn(value int) (Outcome, error) {
	return g.resolve(value, false)
}

func (g *Game) resolve(value int, rolled bool) (Outcome, error) {
	if !g.running {
		return Outcome{}, ErrGameNotRunning
	}
	if !dice.Valid(value) {
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidDiceValue, value)
	}

	p := &g.players[g.current]
	g.turns++
	out := Outcome{
		Seq:    g.turns,
		Dice:   value,
		From:   p.Position,
		Rolled: rolled,
	}

	target := p.Position + value
	if target > board.LastTile {
		out.Kind = Overshoot
		out.Landing, out.Final = p.Position, p.Position
		g.advance()
		return g.emit(out, *p), nil
	}

	p.Position = target
	out.Landing = target
	if tp, ok := g.topology.Lookup(target); ok {
		out.Teleport = &tp
		p.Position = tp.To
	}
	out.Final = p.Position

	if p.Position == board.LastTile {
		out.Kind = Win
		g.running = false
		g.winner = g.current
		return g.emit(out, *p), nil
	}

	out.Kind = Moved
	g.advance()
	return g.emit(out, *p), nil
}

// Observe replaces the sink notified after every turn.
func (g *Game) Observe(s Sink) { g.sink = s }

// advance passes the turn round-robin.
func (g *Game) advance() {
	g.current = (g.current + 1) % len(g.players)
}

func (g *Game) emit(out Outcome, p Player) Outcome {
	out.Player = p
	out.Next = g.current
	if g.sink != nil {
		g.sink.OnTurn(out)
	}
	return out
}

// CurrentPlayer returns a snapshot of the player whose turn it is.
func (g *Game) CurrentPlayer() Player {
	if len(g.players) == 0 {
		return Player{}
	}
	return g.players[g.current]
}

// CurrentIndex returns the seat index of the current player.
func (g *Game) CurrentIndex() int { return g.current }

// Players returns a snapshot of all seats in turn order.
func (g *Game) Players() []Player {
	return append([]Player(nil), g.players...)
}

// IsRunning reports whether turns are still accepted.
func (g *Game) IsRunning() bool { return g.running }

// Turns returns how many turns have been resolved.
func (g *Game) Turns() int { return g.turns }

// Winner returns the winning player once the game is finished.
func (g *Game) Winner() (Player, bool) {
	if g.winner < 0 || len(g.players) == 0 {
		return Player{}, false
	}
	return g.players[g.winner], true
}

// Phase reports the lifecycle state.
func (g *Game) Phase() Phase {
	switch {
	case len(g.players) == 0:
		return Setup
	case g.running:
		return InProgress
	default:
		return Finished
	}
}

// Topology returns the board the game is played on.
func (g *Game) Topology() *board.Topology { return g.topology }
