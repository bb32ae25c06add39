package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"price-cache-api/internal/config"
	"price-cache-api/internal/models"
)

// RedisStore implements TimeSeriesStore on RedisTimeSeries plus a sorted set
// for popularity. Prices are stored as the module's doubles; all arithmetic
// on them happens in decimal on the caller's side.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
	logger    *logrus.Logger
}

// NewRedisStore creates a store backed by a single Redis node.
func NewRedisStore(cfg *config.RedisConfig, retention time.Duration, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, NewStoreError("connect", "", err)
	}

	return &RedisStore{
		client:    client,
		retention: retention,
		logger:    logger,
	}, nil
}

func (s *RedisStore) seriesOptions() *redis.TSOptions {
	return &redis.TSOptions{
		Retention:       int(s.retention.Milliseconds()),
		DuplicatePolicy: "LAST",
		Labels:          map[string]string{PriceCacheLabelName: PriceCacheLabel},
	}
}

func (s *RedisStore) CreateSeries(ctx context.Context, key string) error {
	err := s.client.TSCreateWithArgs(ctx, key, s.seriesOptions()).Err()
	if err != nil {
		if isAlreadyExists(err) {
			s.logger.WithField("key", key).Debug("Time series already exists")
			return nil
		}
		return NewStoreError("ts.create", key, err)
	}
	return nil
}

func (s *RedisStore) AddPoint(ctx context.Context, key string, timestampMs int64, value decimal.Decimal) error {
	err := s.client.TSAdd(ctx, key, timestampMs, value.InexactFloat64()).Err()
	if err != nil {
		return NewStoreError("ts.add", key, err)
	}
	return nil
}

func (s *RedisStore) MultiAddPoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return NewStoreError("ts.madd", "", fmt.Errorf("empty batch"))
	}

	ktv := make([][]interface{}, len(points))
	for i, p := range points {
		ktv[i] = []interface{}{p.Key, p.Timestamp, p.Value.InexactFloat64()}
	}

	if err := s.client.TSMAdd(ctx, ktv).Err(); err != nil {
		return NewStoreError("ts.madd", "", err)
	}
	return nil
}

func (s *RedisStore) GetLatest(ctx context.Context, key string) (*models.PricePoint, error) {
	result, err := s.client.TSGet(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if isNotExists(err) {
			return nil, ErrSeriesNotFound
		}
		return nil, NewStoreError("ts.get", key, err)
	}
	// TS.GET on an existing empty series yields no sample.
	if result.Timestamp == 0 {
		return nil, nil
	}

	return &models.PricePoint{
		Timestamp: result.Timestamp,
		Price:     decimal.NewFromFloat(result.Value),
	}, nil
}

func (s *RedisStore) RangeFirst(ctx context.Context, key string, fromMs, toMs int64) (*models.PricePoint, error) {
	results, err := s.client.TSRangeWithArgs(ctx, key, int(fromMs), int(toMs), &redis.TSRangeOptions{
		Count: 1,
	}).Result()
	if err != nil {
		if err == redis.Nil || isNotExists(err) {
			return nil, nil
		}
		return nil, NewStoreError("ts.range", key, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	return &models.PricePoint{
		Timestamp: results[0].Timestamp,
		Price:     decimal.NewFromFloat(results[0].Value),
	}, nil
}

func (s *RedisStore) IncrementPopularity(ctx context.Context, key string) error {
	if err := s.client.ZIncrBy(ctx, TokenCounterKey, 1, key).Err(); err != nil {
		return NewStoreError("zincrby", key, err)
	}
	return nil
}

func (s *RedisStore) PopularityDesc(ctx context.Context) ([]string, error) {
	members, err := s.client.ZRevRange(ctx, TokenCounterKey, 0, -1).Result()
	if err != nil {
		return nil, NewStoreError("zrevrange", TokenCounterKey, err)
	}
	return members, nil
}

// BootstrapSeries creates every series and counts it once in the popularity
// set, in a single pipeline. Per-key failures are logged and skipped so one
// bad asset cannot abort the bootstrap.
func (s *RedisStore) BootstrapSeries(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, key := range keys {
		pipe.TSCreateWithArgs(ctx, key, s.seriesOptions())
		pipe.ZIncrBy(ctx, TokenCounterKey, 1, key)
	}

	cmds, execErr := pipe.Exec(ctx)
	if len(cmds) == 0 && execErr != nil {
		return NewStoreError("pipeline", "", execErr)
	}

	for _, cmd := range cmds {
		if err := cmd.Err(); err != nil && !isAlreadyExists(err) {
			s.logger.WithError(err).WithField("args", cmd.String()).Warn("Bootstrap command failed")
		}
	}
	return nil
}

func (s *RedisStore) SetInitialized(ctx context.Context) error {
	if err := s.client.Set(ctx, InitializedKey, "true", 0).Err(); err != nil {
		return NewStoreError("set", InitializedKey, err)
	}
	return nil
}

func (s *RedisStore) IsInitialized(ctx context.Context) (bool, error) {
	value, err := s.client.Get(ctx, InitializedKey).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, NewStoreError("get", InitializedKey, err)
	}
	return value == "true", nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return NewStoreError("ping", "", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// RedisTimeSeries reports these as plain error strings; the module has no
// typed errors to match on.

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func isNotExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "does not exist")
}
