package database

import (
	"fmt"

	"nikwetu/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DefaultCategories are the newsroom sections linked from the header.
var DefaultCategories = []models.Category{
	{Name: "Politics", Slug: "politics"},
	{Name: "Education", Slug: "education"},
	{Name: "Business", Slug: "business"},
	{Name: "Sports", Slug: "sports"},
	{Name: "Entertainment", Slug: "entertainment"},
	{Name: "Local News", Slug: "local-news"},
}

func RunMigrations(db *gorm.DB) error {
	log.Info().Msg("running database migrations")

	err := db.AutoMigrate(
		&models.Category{},
		&models.Profile{},
		&models.Post{},
		&models.User{},
	)
	if err != nil {
		log.Error().Err(err).Msg("error running migrations")
		return err
	}

	if err := SeedCategories(db); err != nil {
		return err
	}

	log.Info().Msg("migrations completed successfully")
	return nil
}

// SeedCategories inserts the default sections into an empty table.
func SeedCategories(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	categories := make([]models.Category, len(DefaultCategories))
	copy(categories, DefaultCategories)
	if err := db.Create(&categories).Error; err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	log.Info().Int("count", len(categories)).Msg("seeded categories")
	return nil
}
