package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"staybooking/internal/config"
	"staybooking/internal/database"
	"staybooking/internal/domain"
	"staybooking/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type seedStay struct {
	models.Stay `yaml:",inline"`
	Latitude    float64 `yaml:"lat"`
	Longitude   float64 `yaml:"lon"`
}

func loadSeedStays(path string) ([]seedStay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed struct {
		Stays []seedStay `yaml:"stays"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return seed.Stays, nil
}

// seedStays loads demo stays into an empty database. Entries without coordinates are geocoded.
func seedStays(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	geocoder domain.Geocoder,
	dispatcher domain.GeoSyncDispatcher,
	logger *zerolog.Logger,
) error {
	path := os.Getenv("SEED_PATH")
	if path == "" {
		path = cfg.SeedPath
	}
	if path == "" {
		return nil
	}

	count, err := db.CountStays(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	entries, err := loadSeedStays(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info().Str("seed_path", path).Msg("no seed file")
			return nil
		}
		return err
	}

	for i := range entries {
		stay := entries[i].Stay
		stay.Location = models.GeoPoint{Latitude: entries[i].Latitude, Longitude: entries[i].Longitude}
		if stay.Location == (models.GeoPoint{}) {
			p, err := geocoder.Geocode(ctx, stay.Address)
			if err != nil {
				logger.Warn().Err(err).Str("address", stay.Address).Msg("skip seed stay")
				continue
			}
			stay.Location = p
		}

		task, err := db.CreateStay(ctx, &stay)
		if err != nil {
			return fmt.Errorf("seed stay %q: %w", stay.Name, err)
		}
		dispatcher.Dispatch(ctx, task)
	}

	logger.Info().Int("stays", len(entries)).Str("seed_path", path).Msg("seed stays loaded")
	return nil
}
