package common

import (
	"fmt"
	"time"

	"nikwetu/config"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func ConnectDb(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DatabaseURL,
			PreferSimpleProtocol: true,
		})
		log.Info().Msg("connecting to postgres database")
	default:
		dialector = sqlite.Open(cfg.SQLitePath)
		log.Info().Str("path", cfg.SQLitePath).Msg("opening sqlite database")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              false,
		Logger:                                   GormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}

	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		return nil, fmt.Errorf("ping %s database: %w", cfg.DBDriver, err)
	}

	return db, nil
}

// OpenMemoryDb returns a private in-memory SQLite database.
func OpenMemoryDb() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Discard,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// every pooled connection would otherwise get its own empty database
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func GormLogger() gormlogger.Interface {
	zlogger := log.With().Str("component", "gorm").Logger()
	return gormlogger.New(&zlogger, gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
