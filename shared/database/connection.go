package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tvloc02/EventVer1-sub001/shared/config"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models"
	"github.com/tvloc02/EventVer1-sub001/shared/database/models/auth"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
)

// Models lists every table owned by the auth service, in migration order.
func Models() []any {
	return []any{
		&models.User{},
		&auth.PasswordResetToken{},
		&auth.PasswordResetAttempt{},
		&auth.EmailVerificationToken{},
		&auth.LoginAttempt{},
		&auth.AuditLog{},
	}
}

// getLogLevel returns appropriate log level based on environment
func getLogLevel(cfg *config.Config) logger.LogLevel {
	if cfg.DBHost == "localhost" || cfg.DBHost == "127.0.0.1" {
		return logger.Warn
	}
	return logger.Error
}

func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
	)
}

// Open connects to Postgres and configures the pool.
func Open(ctx context.Context, cfg *config.Config, log logging.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(getLogLevel(cfg)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(DSN(cfg)), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info(ctx, "database connection established", "host", cfg.DBHost, "db", cfg.DBName)
	return db, nil
}

// Migrate creates or updates the auth tables. It is a no-op when every
// table already exists.
func Migrate(ctx context.Context, db *gorm.DB, log logging.Logger) error {
	migrator := db.Migrator()

	allTablesExist := true
	for _, model := range Models() {
		if !migrator.HasTable(model) {
			allTablesExist = false
			break
		}
	}
	if allTablesExist {
		log.Debug(ctx, "database schema is up to date, skipping migration")
		return nil
	}

	created := 0
	for _, model := range Models() {
		if !migrator.HasTable(model) {
			created++
		}
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	log.Info(ctx, "database migrations completed", "tables_created", created)
	return nil
}

// Reset drops every auth table. Used by cmd/reset-db only.
func Reset(db *gorm.DB) error {
	ms := Models()
	for i := len(ms) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(ms[i]); err != nil {
			return fmt.Errorf("failed to drop %T: %w", ms[i], err)
		}
	}
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
