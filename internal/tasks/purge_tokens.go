package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// TokenPurger deletes expired API tokens.
type TokenPurger interface {
	PurgeExpiredTokens() (int64, error)
}

// PurgeExpiredTokensTask removes API tokens past their expiry.
type PurgeExpiredTokensTask struct{}

// Config returns the queue configuration for token purge tasks.
func (t PurgeExpiredTokensTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "purge_expired_tokens",
		MaxAttempts: 2,
		Backoff:     10 * time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// PurgeExpiredTokensProcessor creates a processor function for PurgeExpiredTokensTask.
func PurgeExpiredTokensProcessor(purger TokenPurger) backlite.QueueProcessor[PurgeExpiredTokensTask] {
	return func(ctx context.Context, _ PurgeExpiredTokensTask) error {
		if purger == nil {
			return fmt.Errorf("token purger not configured")
		}
		n, err := purger.PurgeExpiredTokens()
		if err != nil {
			return fmt.Errorf("purge expired tokens: %w", err)
		}
		if n > 0 {
			zap.L().Info("purged expired tokens", zap.Int64("deleted", n))
		}
		return nil
	}
}

// NewPurgeExpiredTokensQueue creates a backlite queue for token purge tasks.
func NewPurgeExpiredTokensQueue(purger TokenPurger) backlite.Queue {
	return backlite.NewQueue(PurgeExpiredTokensProcessor(purger))
}
