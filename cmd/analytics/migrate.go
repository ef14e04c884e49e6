package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/vendor-analytics/internal/repository/postgres"
)

func runMigrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" && cfg.Database.Host == "" {
		return errors.New("database is not configured")
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	applied, err := db.Migrate(c.Context)
	if err != nil {
		return err
	}
	log.Info().Strs("applied", applied).Msg("database is up to date")
	return nil
}
