// Package jobs holds scheduled maintenance that runs beside the sessions.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/DoyleJ11/last-life-backend/internal/store"
)

// ActiveCodes reports which sessions are still live in this process.
type ActiveCodes interface {
	ActiveCodes(ctx context.Context) ([]string, error)
}

// Cleanup deletes persisted lobby records that outlived the TTL and have no
// live session behind them.
type Cleanup struct {
	Store   store.Store
	Active  ActiveCodes
	TTL     time.Duration
	Timeout time.Duration
	Log     *zap.Logger
	Now     func() time.Time
}

func (c *Cleanup) Run(ctx context.Context) (int64, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	active, err := c.Active.ActiveCodes(ctx)
	if err != nil {
		return 0, fmt.Errorf("active codes: %w", err)
	}
	n, err := c.Store.DeleteStaleLobbies(ctx, now().Add(-c.TTL), active)
	if err != nil {
		return 0, fmt.Errorf("delete stale lobbies: %w", err)
	}
	return n, nil
}

func (c *Cleanup) task() {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := c.Run(ctx)
	if err != nil {
		c.Log.Warn("[cleanup] stale lobby sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		c.Log.Info("[cleanup] removed stale lobbies", zap.Int64("count", n))
	}
}

// Start schedules the sweep every interval. The caller owns the returned
// scheduler and must shut it down.
func Start(c *Cleanup, interval time.Duration) (gocron.Scheduler, error) {
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(c.task),
		gocron.WithName("stale-lobby-cleanup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	return sched, nil
}
