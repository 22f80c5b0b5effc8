// Command migrate prepares location storage: it applies the PostgreSQL schema
// and can copy the location cache from one backend to another, e.g. when
// moving a deployment from the JSON file to Redis or PostgreSQL.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/geopogoda/internal/config"
	"github.com/valpere/geopogoda/internal/database"
	"github.com/valpere/geopogoda/internal/locations"
)

func main() {
	from := flag.String("from", "", "Backend to copy locations from (file, redis, postgres); empty skips the copy")
	to := flag.String("to", "", "Backend to copy locations to; defaults to storage.backend")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().
		Timestamp().
		Str("component", "migrate").
		Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	target := *to
	if target == "" {
		target = cfg.Storage.Backend
	}

	if target == config.StoragePostgres || *from == config.StoragePostgres {
		db, err := database.Connect(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		if err := database.Migrate(db); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		logger.Info().Msg("Schema migrations completed")
	}

	if *from == "" {
		return
	}
	if *from == target {
		logger.Fatal().Str("backend", target).Msg("Source and destination backends are the same")
	}

	src, closeSrc, err := openBackend(cfg, *from, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", *from).Msg("Failed to open source storage")
	}
	defer closeSrc()

	dst, closeDst, err := openBackend(cfg, target, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", target).Msg("Failed to open destination storage")
	}
	defer closeDst()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := database.CopyLocations(ctx, src, dst)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to copy locations")
	}

	logger.Info().
		Str("from", src.Name()).
		Str("to", dst.Name()).
		Int("entries", n).
		Msg("Location cache copied")
}

func openBackend(cfg *config.Config, backend string, logger *zerolog.Logger) (locations.Backend, func() error, error) {
	c := *cfg
	c.Storage.Backend = backend
	return database.OpenBackend(&c, logger)
}
