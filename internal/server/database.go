package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/payment-receipts/internal/common"
	repo "github.com/joseph-ayodele/payment-receipts/internal/repository"
)

const dialTimeout = 3 * time.Second

// ConnectDB opens the configured database, pings it, and applies migrations when enabled.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	logger.Info("connecting to database", "driver", cfg.Driver)
	db, err := repo.Open(ctx, repo.Config{
		Driver:          cfg.Driver,
		URL:             cfg.URL,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
		MaxConnIdleTime: cfg.MaxConnIdleTime,
		DialTimeout:     dialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if err := PingDB(ctx, db, logger, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := db.MigrateUp(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			db.Close()
			return nil, err
		}
	}

	logger.Info("successfully connected to database")
	return db, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *repo.DB, logger *slog.Logger, timeout time.Duration) error {
	logger.Debug("pinging database")
	if err := db.HealthCheck(ctx, timeout); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}
