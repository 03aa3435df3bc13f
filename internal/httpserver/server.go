// internal/httpserver/server.go
//
// HTTP server wiring for the Snake & Ladder backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/board".
//   - Game endpoints (optional auth): POST /game/new, POST /game/roll, GET /game/{id}[/turns|/events], /daily.
//   - Auth + profile/stat endpoints (require auth): /auth/*, /stats/me, /games/mine.
//
// Notes:
//   - The server is the renderer-side collaborator of the rules engine: it owns
//     the die source of each game and fans outcomes out to log, history and stream.
//   - Live games are held in the store; history is written best effort.

package httpserver

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/robalobadob/snakeladder/internal/board"
	"github.com/robalobadob/snakeladder/internal/config"
	"github.com/robalobadob/snakeladder/internal/history"
	"github.com/robalobadob/snakeladder/internal/store"
	"github.com/robalobadob/snakeladder/internal/stream"
)

// Server bundles router, live game store, history and stream hub.
type Server struct {
	r        *chi.Mux
	cfg      config.Config
	store    store.Store
	db       *sql.DB
	history  *history.Store
	hub      *stream.Hub
	topology *board.Topology
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, db *sql.DB, hub *stream.Hub) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		store:    st,
		db:       db,
		history:  history.NewStore(db),
		hub:      hub,
		topology: board.Classic(),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(accessLog)
	s.r.Use(chimw.Recoverer)
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "snakeladder-go",
			"endpoints": []string{"/health", "/board", "POST /game/new", "POST /game/roll", "/game/{id}", "/daily", "/auth/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	s.r.Get("/board", s.handleBoard)

	// Game endpoints: OPTIONAL AUTH (guests can play).
	// The event stream is long-lived and stays outside the request timeout.
	s.r.With(s.withOptionalAuth()).Get("/game/{id}/events", s.handleEvents)
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(s.withOptionalAuth())
		r.Post("/game/new", s.handleNewGame)
		r.Post("/game/roll", s.handleRoll)
		r.Get("/game/{id}", s.handleGetGame)
		r.Get("/game/{id}/turns", s.handleTurns)
		s.mountDaily(r)
	})

	// Auth + profile/stats
	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }
