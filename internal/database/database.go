package database

import (
	"fmt"
	"time"

	"github.com/investours/backend/internal/audit"
	"github.com/investours/backend/internal/config"
	"github.com/investours/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection with configuration
func InitDB(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dbConfig.URL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdle)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Run migrations
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	// Auto migrate all models
	err := db.AutoMigrate(
		// Identity view
		&models.Principal{},

		// Referral program
		&models.Referral{},
		&models.Earning{},
		&models.AttributedEvent{},
		&models.GFEProfile{},

		// Ledger
		&models.Wallet{},
		&models.Transaction{},
		&models.WithdrawalRequest{},

		// Audit trail
		&audit.AuditLog{},
	)
	if err != nil {
		return err
	}

	// At most one onboarding bonus per referral edge, enforced by the
	// database so overlapping sweeps cannot double-pay.
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_earnings_bonus_per_edge ON earnings(referral_id) WHERE type = 'bonus'",
	).Error
}
