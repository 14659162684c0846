package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/halcyonfm/trackline/internal/repositories"
	"github.com/halcyonfm/trackline/internal/services"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/halcyonfm/trackline/internal/store"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}
	if level, err := log.ParseLevel(config.Logging.Level); err == nil {
		shared.SetLogLevel(logger, level)
	}

	provider := services.NewCatalogService(config.Catalog.BaseURL, nil)
	if config.Catalog.ClientID != "" && config.Catalog.ClientSecret != "" {
		err := provider.Authenticate(context.Background(), map[string]string{
			"client_id":     config.Catalog.ClientID,
			"client_secret": config.Catalog.ClientSecret,
		})
		if err != nil {
			logger.Warn("catalog authentication failed, feed disabled", "error", err)
		}
	}

	var db *sql.DB
	var archiver store.Archiver
	if _, err := os.Stat(config.Database.Path); err == nil {
		if db, err = shared.NewDatabase(config.Database.Path); err != nil {
			logger.Warn("failed to open archive database", "error", err)
		} else {
			shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
			archiver = repositories.NewCatalogArchive(
				repositories.NewTrackRepository(db),
				repositories.NewCollectionRepository(db),
			)
			defer db.Close()
		}
	}

	var limiter *rate.Limiter
	if config.Catalog.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.Catalog.RateLimit), 1)
	}

	st, err := store.New(store.Config{
		Logger:         logger,
		Archiver:       archiver,
		Limiter:        limiter,
		FirstPageDelay: time.Duration(config.Playback.FirstPageDelayMS) * time.Millisecond,
	})
	if err != nil {
		logger.Fatalf("failed to create store: %v", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:   config,
		Provider: provider,
		Store:    st,
		DB:       db,
		Logger:   logger,
	})
	if err := runner.registerLineups(); err != nil {
		logger.Fatalf("failed to register lineups: %v", err)
	}

	app := &cli.Command{
		Name:     "trackline",
		Usage:    "Browse the catalog and drive a playback queue from the terminal",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
