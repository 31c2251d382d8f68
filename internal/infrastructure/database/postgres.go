package database

import (
	"context"
	"fmt"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

// NewPostgresDB creates a new PostgreSQL database connection using GORM
func NewPostgresDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := cfg.GetDatabaseDSN()

	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database object: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MinConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)
	return db, nil
}

// Migrate applies pending migrations from dir using sql-migrate
func Migrate(db *gorm.DB, dir string, log *zap.Logger) (int, error) {
	if dir == "" {
		dir = "migrations"
	}
	migrations := &migrate.FileMigrationSource{Dir: dir}

	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get db connection during migrate up: %w", err)
	}

	n, err := migrate.Exec(sqlDB, "postgres", migrations, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("migrations applied", zap.String("dir", dir), zap.Int("count", n))
	return n, nil
}

// Rollback reverts up to max migrations from dir. max <= 0 reverts all of them.
func Rollback(db *gorm.DB, dir string, max int, log *zap.Logger) (int, error) {
	if dir == "" {
		dir = "migrations"
	}
	migrations := &migrate.FileMigrationSource{Dir: dir}

	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get db connection during migrate down: %w", err)
	}

	n, err := migrate.ExecMax(sqlDB, "postgres", migrations, migrate.Down, max)
	if err != nil {
		return 0, fmt.Errorf("failed to roll back migrations: %w", err)
	}

	log.Info("migrations rolled back", zap.String("dir", dir), zap.Int("count", n))
	return n, nil
}

// Ping checks the database connection
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CloseDB closes the database connection
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database object: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
