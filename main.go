package main

import (
	"context"
	"net/http"
	"net/url"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snakeladder/internal/config"
	"github.com/robalobadob/snakeladder/internal/history"
	"github.com/robalobadob/snakeladder/internal/httpserver"
	"github.com/robalobadob/snakeladder/internal/store"
	"github.com/robalobadob/snakeladder/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := history.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer db.Close()
	if err := history.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	hub := stream.NewHub(sameOrigin(cfg.ClientOrigin))
	srv := httpserver.New(cfg, store.NewMemoryStore(), db, hub)

	log.Info().Str("port", cfg.Port).Msg("starting snakeladder server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// sameOrigin accepts WebSocket handshakes from the configured client origin
// and from non-browser clients that send no Origin header.
func sameOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == allowed {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
