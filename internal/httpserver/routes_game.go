// internal/httpserver/routes_game.go
//
// HTTP routes for playing a game.
//   - GET  /board            → snakes, ladders and tile grid positions
//   - POST /game/new         → seat 2–6 players, returns the game snapshot
//   - POST /game/roll        → roll for the current player (or apply a given die value)
//   - GET  /game/{id}        → snapshot (live, or rebuilt from history)
//   - GET  /game/{id}/turns  → persisted turn log
//   - GET  /game/{id}/events → WebSocket stream of outcomes
//   - /daily/*               → see routes_daily.go
//
// Each game gets its own seeded die; the seed is stored in history so any
// game can be replayed.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeladder/internal/board"
	"github.com/robalobadob/snakeladder/internal/dice"
	"github.com/robalobadob/snakeladder/internal/game"
	"github.com/robalobadob/snakeladder/internal/history"
	"github.com/robalobadob/snakeladder/internal/store"
)

// -----------------------------------------------------------------------------
// /board

type boardRes struct {
	Snakes  []board.Teleport `json:"snakes"`
	Ladders []board.Teleport `json:"ladders"`
	Squares []board.Square   `json:"squares"`
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, boardRes{
		Snakes:  s.topology.Snakes(),
		Ladders: s.topology.Ladders(),
		Squares: board.Squares(),
	})
}

// -----------------------------------------------------------------------------
// snapshot

// gameView is the JSON snapshot of a game.
type gameView struct {
	GameID  string        `json:"gameId"`
	Phase   game.Phase    `json:"phase"`
	Players []game.Player `json:"players"`
	Current int           `json:"current"` // seat index
	Turns   int           `json:"turns"`
	Winner  *game.Player  `json:"winner,omitempty"`
}

func viewOf(g *game.Game) gameView {
	v := gameView{
		GameID:  g.ID,
		Phase:   g.Phase(),
		Players: g.Players(),
		Current: g.CurrentIndex(),
		Turns:   g.Turns(),
	}
	if w, ok := g.Winner(); ok {
		v.Winner = &w
	}
	return v
}

// -----------------------------------------------------------------------------
// /game/new

// newGameReq is the payload for POST /game/new.
type newGameReq struct {
	Players int      `json:"players"`
	Names   []string `json:"names"`
	Seed    *int64   `json:"seed"` // optional fixed seed (testing / replays)
}

// handleNewGame seats the players, stores the live game and records its opening row.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if !decodeOptional(w, r, &req) {
		return
	}
	names, ok := req.seats()
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_player_count")
		return
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		var err error
		if seed, err = dice.NewSeed(); err != nil {
			log.Error().Err(err).Msg("new seed")
			writeError(w, http.StatusInternalServerError, "seed_failed")
			return
		}
	}

	g, ok := s.startGame(w, r, names, seed, s.ownerOf(w, r))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(g))
}

// seats resolves the seat names of a request.
// Names wins over Players; with neither, two default players are seated.
func (req newGameReq) seats() ([]string, bool) {
	if len(req.Names) > 0 {
		return req.Names, len(req.Names) >= game.MinPlayers && len(req.Names) <= game.MaxPlayers
	}
	n := req.Players
	if n == 0 {
		n = game.MinPlayers
	}
	if n < game.MinPlayers || n > game.MaxPlayers {
		return nil, false
	}
	return game.DefaultNames(n), true
}

// startGame builds a game on the shared board, holds it in the store and
// inserts its history row. On failure the error response is already written.
func (s *Server) startGame(w http.ResponseWriter, r *http.Request, names []string, seed int64, owner history.Owner) (*game.Game, bool) {
	id := uuid.NewString()
	g, err := game.New(names,
		game.WithID(id),
		game.WithTopology(s.topology),
		game.WithDice(dice.NewRandom(seed)),
		game.WithSink(s.sinkFor(id)),
	)
	if err != nil {
		if errors.Is(err, game.ErrInvalidPlayerCount) {
			writeError(w, http.StatusBadRequest, "invalid_player_count")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err := s.store.Save(r.Context(), g); err != nil {
		log.Error().Err(err).Msg("save game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return nil, false
	}
	if err := s.history.CreateGame(r.Context(), g, seed, owner); err != nil {
		log.Warn().Err(err).Str("gameId", g.ID).Msg("insert game row")
	}

	log.Info().Str("gameId", g.ID).Int("players", len(names)).Int64("seed", seed).Msg("game started")
	return g, true
}

// ownerOf returns the signed-in user, or the anonymous cookie (set if missing).
func (s *Server) ownerOf(w http.ResponseWriter, r *http.Request) history.Owner {
	if me := currentUser(r); me != nil {
		return history.Owner{UserID: me.ID}
	}
	return history.Owner{AnonID: s.ensureAnonID(w, r)}
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return false
	}
	return true
}

// -----------------------------------------------------------------------------
// /game/roll

// rollReq is the payload for POST /game/roll.
type rollReq struct {
	GameID string `json:"gameId"`
	Dice   *int   `json:"dice"` // optional; the game's own die is used when absent
}

// rollRes carries the outcome plus the snapshot after it.
type rollRes struct {
	Outcome game.Outcome `json:"outcome"`
	Game    gameView     `json:"game"`
}

// handleRoll resolves one turn and records it.
// A game missing from the store is resumed from history first.
// Daily games only accept the game's own die.
func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	var req rollReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	if req.Dice != nil {
		row, err := s.history.Game(r.Context(), req.GameID)
		if err == nil && row.Daily != "" {
			writeError(w, http.StatusBadRequest, "daily_dice_fixed")
			return
		}
	}

	var res rollRes
	roll := func(g *game.Game) error {
		var err error
		if req.Dice != nil {
			res.Outcome, err = g.ResolveTurn(*req.Dice)
		} else {
			res.Outcome, err = g.Roll()
		}
		if err != nil {
			return err
		}
		res.Game = viewOf(g)
		// recorded under the store lock so the turn log stays in order
		if err := s.history.RecordTurn(r.Context(), g.ID, res.Outcome); err != nil {
			log.Warn().Err(err).Str("gameId", g.ID).Int("seq", res.Outcome.Seq).Msg("record turn")
		}
		return nil
	}
	err := s.store.Update(r.Context(), req.GameID, roll)
	if errors.Is(err, store.ErrNotFound) {
		if _, rerr := s.resume(r.Context(), req.GameID); rerr == nil {
			err = s.store.Update(r.Context(), req.GameID, roll)
		} else if !errors.Is(rerr, history.ErrNotFound) {
			log.Warn().Err(rerr).Str("gameId", req.GameID).Msg("resume game")
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
		return
	case errors.Is(err, game.ErrInvalidDiceValue):
		writeError(w, http.StatusBadRequest, "invalid_dice")
		return
	case errors.Is(err, game.ErrGameNotRunning):
		log.Error().Err(err).Str("gameId", req.GameID).Msg("roll after game finished")
		writeError(w, http.StatusConflict, "game_finished")
		return
	default:
		log.Error().Err(err).Str("gameId", req.GameID).Msg("roll")
		writeError(w, http.StatusInternalServerError, "roll_failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// resume rebuilds a game from history and puts it back in the store.
func (s *Server) resume(ctx context.Context, id string) (*game.Game, error) {
	g, err := s.history.Replay(ctx, id, s.topology)
	if err != nil {
		return nil, err
	}
	g.Observe(s.sinkFor(id))
	return s.store.LoadOrSave(ctx, g)
}

// sinkFor fans outcomes of a game out to the log and the stream hub.
func (s *Server) sinkFor(id string) game.Sink {
	return game.MultiSink{logSink(id), s.hub.Sink(id)}
}

// -----------------------------------------------------------------------------
// /game/{id}

// handleGetGame returns the live snapshot, or replays the game from history
// when it is no longer held in memory.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	view, ok := s.loadView(r, chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleTurns returns the recorded turn log.
func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.history.Game(r.Context(), id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	turns, err := s.history.Turns(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("gameId", id).Msg("list turns")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

// handleEvents streams outcomes of a live game.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.View(r.Context(), id, func(*game.Game) error { return nil }); err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	s.hub.ServeWS(w, r, id)
}

// logSink writes every outcome to the structured log.
func logSink(gameID string) game.Sink {
	return game.SinkFunc(func(o game.Outcome) {
		ev := log.Info().
			Str("gameId", gameID).
			Int("seq", o.Seq).
			Str("player", o.Player.Name).
			Int("dice", o.Dice).
			Int("from", o.From).
			Int("final", o.Final).
			Str("kind", string(o.Kind))
		if o.Teleport != nil {
			ev = ev.Str("teleport", string(o.Teleport.Kind)).Int("landing", o.Landing)
		}
		ev.Msg("turn")
	})
}
