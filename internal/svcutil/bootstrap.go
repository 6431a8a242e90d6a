// Package svcutil holds the tiny bits of boilerplate shared by every
// service's cmd/<service>/main.go: environment-variable fallback and the
// sweeper ticker loop.
package svcutil

import (
	"context"
	"os"
	"time"

	"github.com/warp/checkout-saga/internal/wal"
	"go.uber.org/zap"
)

// EnvOr returns the environment variable key, or fallback if unset/empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// RunSweeper calls sweeper.Run once immediately and then every interval
// until ctx is canceled.
func RunSweeper(ctx context.Context, sweeper *wal.Sweeper, interval time.Duration, logger *zap.Logger) {
	if err := sweeper.Run(ctx); err != nil {
		logger.Warn("sweep failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sweeper.Run(ctx); err != nil {
				logger.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}
