package pricecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"price-cache-api/internal/cache"
	"price-cache-api/internal/models"
	"price-cache-api/internal/monitoring"
)

const (
	oneDayMs    = int64(24 * time.Hour / time.Millisecond)
	oneMinuteMs = int64(time.Minute / time.Millisecond)
)

var oneHundred = decimal.NewFromInt(100)

// PriceDeriver computes a single token's USD price from the chain.
type PriceDeriver interface {
	CalculatePriceInUSD(ctx context.Context, token string) (models.PricePoint, error)
}

// CatalogFetcher lists the tokens to seed the cache with.
type CatalogFetcher interface {
	FetchAllTokens(ctx context.Context) []string
}

// EngineConfig represents cache engine tuning
type EngineConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Engine orchestrates the token price cache: catalog bootstrap, batched
// periodic updates, lazy admission on read miss, and the read path.
//
// Callers must not overlap UpdatePrices passes; the engine does not
// serialize them internally. The Updater is the intended single driver.
type Engine struct {
	store      cache.TimeSeriesStore
	deriver    PriceDeriver
	catalog    CatalogFetcher
	batchSize  int
	batchDelay time.Duration
	metrics    *monitoring.Metrics
	logger     *logrus.Logger
}

// NewEngine creates a price cache engine
func NewEngine(store cache.TimeSeriesStore, deriver PriceDeriver, catalog CatalogFetcher, cfg EngineConfig, metrics *monitoring.Metrics, logger *logrus.Logger) *Engine {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 150
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = 5 * time.Second
	}

	return &Engine{
		store:      store,
		deriver:    deriver,
		catalog:    catalog,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
		metrics:    metrics,
		logger:     logger,
	}
}

// Initialize seeds the cache from the asset catalog: one series plus one
// popularity count per token, pipelined, then the initialized flag. Prices
// are not filled here; the first update pass does that, which keeps
// bootstrap cost bounded.
func (e *Engine) Initialize(ctx context.Context) error {
	tokens := e.catalog.FetchAllTokens(ctx)

	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = models.NormalizeToken(token)
	}

	if err := e.store.BootstrapSeries(ctx, keys); err != nil {
		return fmt.Errorf("bootstrapping series: %w", err)
	}

	if err := e.store.SetInitialized(ctx); err != nil {
		return fmt.Errorf("setting initialized flag: %w", err)
	}

	e.logger.WithField("tokens", len(keys)).Info("Price cache initialized")
	return nil
}

// UpdatePrices refreshes every tracked token, most popular first, in
// parallel batches with a fixed delay between them. A batch in which every
// derivation fails halts the pass with ErrNoPrices.
func (e *Engine) UpdatePrices(ctx context.Context) error {
	start := time.Now()

	err := e.updatePrices(ctx)
	if e.metrics != nil {
		e.metrics.RecordUpdatePass(err == nil, time.Since(start))
	}
	return err
}

func (e *Engine) updatePrices(ctx context.Context) error {
	keys, err := e.store.PopularityDesc(ctx)
	if err != nil {
		return fmt.Errorf("reading popularity set: %w", err)
	}
	if len(keys) == 0 {
		return ErrEmptyCatalog
	}

	for offset := 0; offset < len(keys); offset += e.batchSize {
		end := offset + e.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[offset:end]

		points := e.deriveBatch(ctx, batch)
		if len(points) == 0 {
			if e.metrics != nil {
				e.metrics.RecordBatch(false, 0)
			}
			return fmt.Errorf("%w: batch starting at %d", ErrNoPrices, offset)
		}

		if err := e.store.MultiAddPoints(ctx, points); err != nil {
			return fmt.Errorf("writing batch starting at %d: %w", offset, err)
		}
		if e.metrics != nil {
			e.metrics.RecordBatch(true, len(points))
		}

		e.logger.WithFields(logrus.Fields{
			"batch_size": len(batch),
			"written":    len(points),
		}).Debug("Price batch written")

		if end < len(keys) {
			select {
			case <-time.After(e.batchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}

// deriveBatch fans derivations out across the batch and collects the
// successes. Per-token failures are logged and dropped.
func (e *Engine) deriveBatch(ctx context.Context, tokens []string) []cache.Point {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		points = make([]cache.Point, 0, len(tokens))
	)

	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()

			start := time.Now()
			point, err := e.deriver.CalculatePriceInUSD(ctx, token)
			if e.metrics != nil {
				e.metrics.RecordDerivation(err == nil, time.Since(start))
			}
			if err != nil {
				e.logger.WithError(err).WithField("token", token).Warn("Price derivation failed")
				return
			}

			mu.Lock()
			points = append(points, cache.Point{
				Key:       token,
				Timestamp: point.Timestamp,
				Value:     point.Price,
			})
			mu.Unlock()
		}(token)
	}

	wg.Wait()
	return points
}

// GetPrice returns the token's current price and 24h percentage change, or
// nil when no price is available. A store read failure (typically a missing
// series) falls through to lazy admission; admission failures propagate to
// the caller.
func (e *Engine) GetPrice(ctx context.Context, token string) (*models.TokenPriceData, error) {
	if e.store == nil {
		return nil, nil
	}

	key := models.NormalizeToken(token)

	latest, err := e.store.GetLatest(ctx, key)
	if err != nil {
		e.logger.WithError(err).WithField("token", key).Debug("Cache miss, admitting token")
		return e.admitToken(ctx, key)
	}
	if latest == nil {
		// Series exists but holds no points yet; the next update tick fills it.
		if e.metrics != nil {
			e.metrics.RecordRead(monitoring.ReadMiss)
		}
		return nil, nil
	}

	delta := e.change24h(ctx, key, latest)

	if err := e.store.IncrementPopularity(ctx, key); err != nil {
		e.logger.WithError(err).WithField("token", key).Warn("Failed to increment popularity")
	}
	if e.metrics != nil {
		e.metrics.RecordRead(monitoring.ReadHit)
	}

	return &models.TokenPriceData{
		CurrentPrice:             latest.Price,
		PercentagePriceChange24h: delta,
	}, nil
}

// change24h looks for a sample in the one-minute window starting 24h before
// the latest point and computes the percentage change against it. The window
// absorbs jitter between ledger close times and the exact 24h instant. A
// missing or zero-valued old sample yields nil, never zero.
func (e *Engine) change24h(ctx context.Context, key string, latest *models.PricePoint) *decimal.Decimal {
	dayAgo := latest.Timestamp - oneDayMs

	old, err := e.store.RangeFirst(ctx, key, dayAgo, dayAgo+oneMinuteMs)
	if err != nil {
		e.logger.WithError(err).WithField("token", key).Debug("24h lookback failed")
		return nil
	}
	if old == nil || old.Price.IsZero() {
		return nil
	}

	delta := latest.Price.Sub(old.Price).DivRound(old.Price, divisionPrecision).Mul(oneHundred)
	return &delta
}

// admitToken brings a previously-unseen token into the cache during a read:
// derive first (a failed derivation must not touch the popularity set), then
// create the series, count it, and store the point. There is no prior sample,
// so the 24h change is nil.
//
// Two concurrent admissions of the same token are safe: series creation is
// idempotent and the LAST duplicate policy lets the later point win.
func (e *Engine) admitToken(ctx context.Context, key string) (*models.TokenPriceData, error) {
	point, err := e.deriver.CalculatePriceInUSD(ctx, key)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordRead(monitoring.ReadError)
		}
		return nil, fmt.Errorf("admitting %s: %w", key, err)
	}

	if err := e.store.CreateSeries(ctx, key); err != nil {
		return nil, fmt.Errorf("admitting %s: %w", key, err)
	}
	if err := e.store.IncrementPopularity(ctx, key); err != nil {
		return nil, fmt.Errorf("admitting %s: %w", key, err)
	}
	if err := e.store.AddPoint(ctx, key, point.Timestamp, point.Price); err != nil {
		return nil, fmt.Errorf("admitting %s: %w", key, err)
	}

	if e.metrics != nil {
		e.metrics.RecordRead(monitoring.ReadAdmitted)
	}
	e.logger.WithField("token", key).Info("Token admitted to price cache")

	return &models.TokenPriceData{
		CurrentPrice:             point.Price,
		PercentagePriceChange24h: nil,
	}, nil
}
