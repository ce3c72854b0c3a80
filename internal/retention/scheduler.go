package retention

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MidnightScheduler runs Job once at startup, then at every UTC midnight.
type MidnightScheduler struct {
	Job    func(ctx context.Context) error
	Name   string
	Logger *zap.Logger
}

// NextMidnight returns the first UTC midnight strictly after now.
func NextMidnight(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// Run blocks until ctx is done.
func (m *MidnightScheduler) Run(ctx context.Context) {
	// Run immediately once at startup
	m.runOnce(ctx)

	for {
		timer := time.NewTimer(time.Until(NextMidnight(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		m.runOnce(ctx)
	}
}

func (m *MidnightScheduler) runOnce(ctx context.Context) {
	start := time.Now()
	if err := m.Job(ctx); err != nil {
		m.Logger.Warn("scheduled job failed", zap.String("job", m.Name), zap.Error(err))
		return
	}
	m.Logger.Info("scheduled job done", zap.String("job", m.Name), zap.Duration("took", time.Since(start)))
}

// TradePruner deletes stored trades older than a retention window.
type TradePruner interface {
	DeleteOldTrades(ctx context.Context, before time.Time) error
}

// PruneTrades returns a job that removes trades older than keep.
func PruneTrades(p TradePruner, keep time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		return p.DeleteOldTrades(ctx, time.Now().Add(-keep))
	}
}
