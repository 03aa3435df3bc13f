// internal/history/store.go
//
// Durable record of games and the turns played in them.
// Live state stays in the in-memory store; this package keeps what a client
// needs to list past games or replay a finished one.

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/snakeladder/internal/board"
	"github.com/robalobadob/snakeladder/internal/dice"
	"github.com/robalobadob/snakeladder/internal/game"
)

// Owner identifies who started a game: a signed-in user or an anonymous cookie.
// Exactly one field is set.
type Owner struct {
	UserID string
	AnonID string
}

// GameRow is one row of the games table.
type GameRow struct {
	ID         string        `json:"id"`
	Seed       int64         `json:"seed"`
	Players    []game.Player `json:"players"`
	Status     string        `json:"status"`
	Turns      int           `json:"turns"`
	Winner     string        `json:"winner,omitempty"`
	StartedAt  string        `json:"startedAt"`
	FinishedAt string        `json:"finishedAt,omitempty"`
	Daily      string        `json:"daily,omitempty"` // date key of a daily challenge game
}

// TurnRow is one row of the turns table.
type TurnRow struct {
	Seq      int    `json:"seq"`
	PlayerID int    `json:"playerId"`
	Dice     int    `json:"dice"`
	From     int    `json:"from"`
	Landing  int    `json:"landing"`
	Final    int    `json:"final"`
	Teleport string `json:"teleport,omitempty"` // snake | ladder
	Kind     string `json:"kind"`
	Rolled   bool   `json:"rolled"`
}

// Store reads and writes game history.
type Store struct{ db *sql.DB }

// NewStore returns a Store backed by db.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// CreateGame inserts the opening row and bumps games_played for users.
func (s *Store) CreateGame(ctx context.Context, g *game.Game, seed int64, owner Owner) error {
	players, err := json.Marshal(g.Players())
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO games (id, user_id, anonymous_id, seed, players, status, turns, started_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		g.ID, nullable(owner.UserID), nullable(owner.AnonID), seed, string(players),
		string(g.Phase()), now(),
	); err != nil {
		return err
	}
	if owner.UserID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET games_played = games_played + 1 WHERE id=?`, owner.UserID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordTurn appends an outcome to the turn log and, on a win, closes the game.
func (s *Store) RecordTurn(ctx context.Context, gameID string, o game.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var teleport any
	if o.Teleport != nil {
		teleport = string(o.Teleport.Kind)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (game_id, seq, player_id, dice, from_tile, landing, final, teleport, kind, rolled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gameID, o.Seq, o.Player.ID, o.Dice, o.From, o.Landing, o.Final, teleport, string(o.Kind), o.Rolled, now(),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE games SET turns=MAX(turns, ?) WHERE id=?`, o.Seq, gameID); err != nil {
		return err
	}
	if o.Kind == game.Win {
		if err := finish(ctx, tx, gameID, o.Player.Name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// finish marks the game finished and bumps games_finished for its owner.
func finish(ctx context.Context, tx *sql.Tx, gameID, winner string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET status=?, winner=?, finished_at=? WHERE id=?`,
		string(game.Finished), winner, now(), gameID); err != nil {
		return err
	}
	var userID sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT user_id FROM games WHERE id=?`, gameID).Scan(&userID)
	if err != nil {
		return err
	}
	if !userID.Valid {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET games_finished = games_finished + 1 WHERE id=?`, userID.String)
	return err
}

// Game loads a single game row.
func (s *Store) Game(ctx context.Context, id string) (*GameRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seed, players, status, turns, COALESCE(winner,''), started_at, COALESCE(finished_at,''), COALESCE(daily,'')
		FROM games WHERE id=?`, id)
	return scanGame(row)
}

// GamesByUser lists a user's most recent games, newest first.
func (s *Store) GamesByUser(ctx context.Context, userID string, limit int) ([]GameRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, players, status, turns, COALESCE(winner,''), started_at, COALESCE(finished_at,''), COALESCE(daily,'')
		FROM games WHERE user_id=?
		ORDER BY started_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRow{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// Turns returns a game's turn log in play order.
func (s *Store) Turns(ctx context.Context, gameID string) ([]TurnRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, player_id, dice, from_tile, landing, final, COALESCE(teleport,''), kind, rolled
		FROM turns WHERE game_id=?
		ORDER BY seq ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TurnRow{}
	for rows.Next() {
		var t TurnRow
		if err := rows.Scan(&t.Seq, &t.PlayerID, &t.Dice, &t.From, &t.Landing, &t.Final, &t.Teleport, &t.Kind, &t.Rolled); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkDaily tags a game as the daily challenge of date.
func (s *Store) MarkDaily(ctx context.Context, gameID, date string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE games SET daily=? WHERE id=?`, date, gameID)
	return err
}

// DailyGame returns the id of the daily game owner already started on date.
func (s *Store) DailyGame(ctx context.Context, date string, owner Owner) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM games
		WHERE daily=? AND ((user_id IS NOT NULL AND user_id=?) OR (anonymous_id IS NOT NULL AND anonymous_id=?))
		ORDER BY started_at DESC LIMIT 1`,
		date, owner.UserID, owner.AnonID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

// ClaimAnon transfers anonymous games to a user account after sign-in.
func (s *Store) ClaimAnon(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	return err
}

// Replay rebuilds a game from its stored turns.
//
// The game gets a die seeded like the original one. Turns that were drawn
// from that die are drawn again, so the die is in step for the next roll;
// turns with a client value are applied as recorded. The returned game is in
// the state reached after the last recorded turn and has no sink.
func (s *Store) Replay(ctx context.Context, id string, top *board.Topology) (*game.Game, error) {
	row, err := s.Game(ctx, id)
	if err != nil {
		return nil, err
	}
	turns, err := s.Turns(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.Turns != len(turns) {
		return nil, fmt.Errorf("%w: game %s has %d of %d turns", ErrTurnGap, id, len(turns), row.Turns)
	}
	names := make([]string, len(row.Players))
	for i, p := range row.Players {
		names[i] = p.Name
	}
	g, err := game.New(names,
		game.WithID(row.ID),
		game.WithTopology(top),
		game.WithDice(dice.NewRandom(row.Seed)),
	)
	if err != nil {
		return nil, err
	}
	for i, t := range turns {
		if t.Seq != i+1 {
			return nil, fmt.Errorf("%w: game %s expected turn %d, found %d", ErrTurnGap, id, i+1, t.Seq)
		}
		var out game.Outcome
		if t.Rolled {
			out, err = g.Roll()
		} else {
			out, err = g.ResolveTurn(t.Dice)
		}
		if err != nil {
			return nil, fmt.Errorf("replay turn %d: %w", t.Seq, err)
		}
		if out.Dice != t.Dice || out.Final != t.Final {
			return nil, fmt.Errorf("%w: game %s turn %d", ErrReplayMismatch, id, t.Seq)
		}
	}
	return g, nil
}

var (
	// ErrTurnGap reports a turn log with a missing sequence number.
	ErrTurnGap = errors.New("turn log has a gap")
	// ErrReplayMismatch reports a replayed turn that differs from the recorded one.
	ErrReplayMismatch = errors.New("replay does not match recorded turn")
)

// ErrNotFound reports a missing game row.
var ErrNotFound = errors.New("not found")

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(r scanner) (*GameRow, error) {
	var g GameRow
	var players string
	if err := r.Scan(&g.ID, &g.Seed, &players, &g.Status, &g.Turns, &g.Winner, &g.StartedAt, &g.FinishedAt, &g.Daily); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(players), &g.Players); err != nil {
		return nil, err
	}
	return &g, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func now() string { return time.Now().UTC().Format(timeLayout) }
