// Package retention periodically deletes refresh-token rows that can no
// longer affect any decision.
package retention

import (
	"context"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/logging"
)

// Deleter is implemented by tokenstore.Store.
type Deleter interface {
	DeleteOldTokens(ctx context.Context, expiredForDays, deactivatedForDays int) (int64, error)
}

type Janitor struct {
	store           Deleter
	expiredDays     int
	deactivatedDays int
	interval        time.Duration
	logger          logging.Logger
}

func NewJanitor(store Deleter, expiredDays, deactivatedDays int, interval time.Duration, l logging.Logger) *Janitor {
	if l == nil {
		l = logging.Nop()
	}
	return &Janitor{
		store:           store,
		expiredDays:     expiredDays,
		deactivatedDays: deactivatedDays,
		interval:        interval,
		logger:          l.With("module", "retention"),
	}
}

// Sweep runs a single cleanup pass.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	n, err := j.store.DeleteOldTokens(ctx, j.expiredDays, j.deactivatedDays)
	if err != nil {
		j.logger.Error(ctx, "refresh token cleanup failed", "error", err)
		return 0, err
	}
	if n > 0 {
		j.logger.Info(ctx, "refresh tokens deleted", "count", n)
	}
	return n, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
// A non-positive interval disables the loop after the first sweep.
func (j *Janitor) Run(ctx context.Context) {
	_, _ = j.Sweep(ctx)

	if j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = j.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}
