package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PriceUpdater runs one full refresh pass over the tracked tokens.
type PriceUpdater interface {
	UpdatePrices(ctx context.Context) error
}

// Updater drives periodic update passes from a single goroutine, so passes
// never overlap: a pass that runs long simply delays the next tick.
type Updater struct {
	engine   PriceUpdater
	interval time.Duration
	logger   *logrus.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewUpdater creates a background price updater
func NewUpdater(engine PriceUpdater, interval time.Duration, logger *logrus.Logger) *Updater {
	if interval == 0 {
		interval = time.Minute
	}
	return &Updater{
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the update loop. The first pass runs immediately.
func (u *Updater) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel

	u.wg.Add(1)
	go u.run(ctx)

	u.logger.WithField("interval", u.interval.String()).Info("Price updater started")
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (u *Updater) Stop() {
	if u.cancel == nil {
		return
	}
	u.cancel()
	u.wg.Wait()
	u.logger.Info("Price updater stopped")
}

func (u *Updater) run(ctx context.Context) {
	defer u.wg.Done()

	u.runPass(ctx)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			u.runPass(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (u *Updater) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := u.engine.UpdatePrices(ctx); err != nil {
		u.logger.WithError(err).Error("Price update pass failed")
	}
}
