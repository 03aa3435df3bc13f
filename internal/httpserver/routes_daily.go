// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes two endpoints under /daily:
//   - GET  /daily     → today's date key and shared seed
//   - POST /daily/new → start today's daily game (or resume the one already started)
//
// Each player gets one daily game per day (looked up in history by owner + date).
// The seed is derived from date + salt, so everyone rolls the same die stream.

package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeladder/internal/daily"
	"github.com/robalobadob/snakeladder/internal/game"
	"github.com/robalobadob/snakeladder/internal/history"
	"github.com/robalobadob/snakeladder/internal/store"
)

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	r.Route("/daily", func(r chi.Router) {
		r.Get("/", s.handleDailyInfo)
		r.Post("/new", s.handleDailyNew)
	})
}

// dailyToday returns today's date key and seed.
func (s *Server) dailyToday() (string, int64) {
	now := time.Now().UTC()
	return daily.DateKey(now), daily.Seed(now, s.cfg.DailySalt)
}

type dailyInfoRes struct {
	Date string `json:"date"`
	Seed int64  `json:"seed"`
}

func (s *Server) handleDailyInfo(w http.ResponseWriter, r *http.Request) {
	date, seed := s.dailyToday()
	writeJSON(w, http.StatusOK, dailyInfoRes{Date: date, Seed: seed})
}

// dailyNewRes is returned by /daily/new.
type dailyNewRes struct {
	Date    string   `json:"date"`
	Resumed bool     `json:"resumed"`
	Game    gameView `json:"game"`
}

// handleDailyNew starts today's daily game for the caller.
// - If the caller already has a daily game for today → return it with Resumed=true.
// - Otherwise seat the players with today's seed.
func (s *Server) handleDailyNew(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if !decodeOptional(w, r, &req) {
		return
	}
	owner := s.ownerOf(w, r)
	date, seed := s.dailyToday()

	id, err := s.history.DailyGame(r.Context(), date, owner)
	switch {
	case err == nil:
		if view, ok := s.liveView(r, id); ok {
			writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Resumed: true, Game: view})
			return
		}
		log.Warn().Str("gameId", id).Msg("daily game row without replayable state")
	case !errors.Is(err, history.ErrNotFound):
		log.Error().Err(err).Msg("lookup daily game")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	names, ok := req.seats()
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_player_count")
		return
	}
	g, ok := s.startGame(w, r, names, seed, owner)
	if !ok {
		return
	}
	if err := s.history.MarkDaily(r.Context(), g.ID, date); err != nil {
		log.Warn().Err(err).Str("gameId", g.ID).Msg("mark daily")
	}
	writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Game: viewOf(g)})
}

// liveView returns the snapshot of id, resuming the game into the store
// when it is only held in history.
func (s *Server) liveView(r *http.Request, id string) (gameView, bool) {
	var view gameView
	err := s.store.View(r.Context(), id, func(g *game.Game) error {
		view = viewOf(g)
		return nil
	})
	if err == nil {
		return view, true
	}
	g, err := s.resume(r.Context(), id)
	if err != nil {
		log.Warn().Err(err).Str("gameId", id).Msg("resume daily game")
		return gameView{}, false
	}
	err = s.store.View(r.Context(), g.ID, func(g *game.Game) error {
		view = viewOf(g)
		return nil
	})
	return view, err == nil
}

// loadView returns the live snapshot of id, or one replayed from history.
func (s *Server) loadView(r *http.Request, id string) (gameView, bool) {
	var view gameView
	err := s.store.View(r.Context(), id, func(g *game.Game) error {
		view = viewOf(g)
		return nil
	})
	if err == nil {
		return view, true
	}
	if !errors.Is(err, store.ErrNotFound) {
		return gameView{}, false
	}
	g, err := s.history.Replay(r.Context(), id, s.topology)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			log.Warn().Err(err).Str("gameId", id).Msg("replay")
		}
		return gameView{}, false
	}
	return viewOf(g), true
}
