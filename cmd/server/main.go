package main

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shortvid-saver/internal/config"
	"shortvid-saver/internal/server"
	"shortvid-saver/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	configManager := config.NewManager()
	cfg, err := configManager.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}

	store, err := storage.NewSQLite(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing storage")
	}
	defer store.Close()

	srv := server.NewServer(cfg, store)
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
}
