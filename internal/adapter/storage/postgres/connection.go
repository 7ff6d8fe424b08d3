package postgres

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection initializes a PostgreSQL connection pool via GORM.
func NewConnection(url string, maxOpen, maxIdle int, logQueries bool, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if logQueries {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if maxIdle <= 0 {
		maxIdle = 10
	}
	if maxOpen <= 0 {
		maxOpen = 100
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)

	log.Info("Successfully connected to PostgreSQL")
	return db, nil
}

// RunMigrations - schema is managed via SQL files in migrations/.
// AutoMigrate cannot express the partial unique index on active credentials,
// so it stays disabled.
func RunMigrations(db *gorm.DB) error {
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
