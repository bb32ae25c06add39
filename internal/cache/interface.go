package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"price-cache-api/internal/models"
)

// Reserved store keys and the label attached to every price series.
const (
	// TokenCounterKey is the sorted set ranking tokens by read count.
	TokenCounterKey = "token_counter"

	// InitializedKey holds "true" once the initial catalog bootstrap has run.
	// The engine never reads it; startup code does.
	InitializedKey = "price_cache_initialized"

	// PriceCacheLabelName and PriceCacheLabel tag each series so the
	// surrounding service can group-query price series.
	PriceCacheLabelName = "PRICE_CACHE_LABEL"
	PriceCacheLabel     = "ts:price"
)

// ErrSeriesNotFound reports that a time series does not exist in the store.
// The read path uses it to tell a missing series (lazy admission) apart from
// an existing series with no points yet.
var ErrSeriesNotFound = errors.New("time series not found")

// Point is one pending write in a multi-point append.
type Point struct {
	Key       string
	Timestamp int64
	Value     decimal.Decimal
}

// TimeSeriesStore is the semantic wrapper over the time-series backend used
// by the price cache engine.
type TimeSeriesStore interface {
	// CreateSeries creates the price series for key with the configured
	// retention, LAST duplicate policy and the price cache label. Creating a
	// series that already exists is not an error.
	CreateSeries(ctx context.Context, key string) error

	// AddPoint appends a single price point to key's series.
	AddPoint(ctx context.Context, key string, timestampMs int64, value decimal.Decimal) error

	// MultiAddPoints appends points across series in one atomic call.
	// An empty batch is an error, not a no-op.
	MultiAddPoints(ctx context.Context, points []Point) error

	// GetLatest returns the newest point of key's series, nil if the series
	// exists but holds no points, or ErrSeriesNotFound if it does not exist.
	GetLatest(ctx context.Context, key string) (*models.PricePoint, error)

	// RangeFirst returns the first point within [fromMs, toMs], or nil if the
	// window is empty.
	RangeFirst(ctx context.Context, key string, fromMs, toMs int64) (*models.PricePoint, error)

	// IncrementPopularity adds 1 to key's score in the popularity set.
	IncrementPopularity(ctx context.Context, key string) error

	// PopularityDesc returns all popularity set members, highest score first.
	PopularityDesc(ctx context.Context) ([]string, error)

	// BootstrapSeries pipelines series creation plus one popularity increment
	// for every key. Per-key failures are logged and skipped.
	BootstrapSeries(ctx context.Context, keys []string) error

	// SetInitialized marks the catalog bootstrap as complete.
	SetInitialized(ctx context.Context) error

	// IsInitialized reports whether the bootstrap flag is set.
	IsInitialized(ctx context.Context) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// StoreError represents a store operation failure
type StoreError struct {
	Operation string
	Key       string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store %s operation failed for key '%s': %v", e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("store %s operation failed: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new store error
func NewStoreError(operation, key string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Key:       key,
		Err:       err,
	}
}
