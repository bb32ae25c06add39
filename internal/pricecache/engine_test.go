package pricecache

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"price-cache-api/internal/cache"
	"price-cache-api/internal/models"
)

// Mock TimeSeriesStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateSeries(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) AddPoint(ctx context.Context, key string, timestampMs int64, value decimal.Decimal) error {
	args := m.Called(ctx, key, timestampMs, value)
	return args.Error(0)
}

func (m *MockStore) MultiAddPoints(ctx context.Context, points []cache.Point) error {
	args := m.Called(ctx, points)
	return args.Error(0)
}

func (m *MockStore) GetLatest(ctx context.Context, key string) (*models.PricePoint, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PricePoint), args.Error(1)
}

func (m *MockStore) RangeFirst(ctx context.Context, key string, fromMs, toMs int64) (*models.PricePoint, error) {
	args := m.Called(ctx, key, fromMs, toMs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PricePoint), args.Error(1)
}

func (m *MockStore) IncrementPopularity(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) PopularityDesc(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) BootstrapSeries(ctx context.Context, keys []string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockStore) SetInitialized(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) IsInitialized(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Mock PriceDeriver
type MockDeriver struct {
	mock.Mock
}

func (m *MockDeriver) CalculatePriceInUSD(ctx context.Context, token string) (models.PricePoint, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.PricePoint), args.Error(1)
}

// Mock CatalogFetcher
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) FetchAllTokens(ctx context.Context) []string {
	args := m.Called(ctx)
	return args.Get(0).([]string)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestEngine(store *MockStore, deriver *MockDeriver, catalog *MockCatalog) *Engine {
	return NewEngine(store, deriver, catalog, EngineConfig{
		BatchSize:  2,
		BatchDelay: time.Millisecond,
	}, nil, testLogger())
}

func TestEngine_GetPrice(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UnixMilli()

	t.Run("warm read returns price with 24h change", func(t *testing.T) {
		store := new(MockStore)
		engine := newTestEngine(store, new(MockDeriver), new(MockCatalog))

		latest := &models.PricePoint{Timestamp: now, Price: decimal.RequireFromString("0.12")}
		old := &models.PricePoint{Timestamp: now - oneDayMs, Price: decimal.RequireFromString("0.10")}

		store.On("GetLatest", ctx, "YBX:GABC").Return(latest, nil)
		store.On("RangeFirst", ctx, "YBX:GABC", now-oneDayMs, now-oneDayMs+oneMinuteMs).Return(old, nil)
		store.On("IncrementPopularity", ctx, "YBX:GABC").Return(nil)

		data, err := engine.GetPrice(ctx, "YBX:GABC")

		require.NoError(t, err)
		require.NotNil(t, data)
		assert.True(t, data.CurrentPrice.Equal(decimal.RequireFromString("0.12")))
		require.NotNil(t, data.PercentagePriceChange24h)
		assert.True(t, data.PercentagePriceChange24h.Equal(decimal.NewFromInt(20)),
			"expected 20, got %s", data.PercentagePriceChange24h)

		store.AssertExpectations(t)
	})

	t.Run("no sample 24h back yields nil change", func(t *testing.T) {
		store := new(MockStore)
		engine := newTestEngine(store, new(MockDeriver), new(MockCatalog))

		latest := &models.PricePoint{Timestamp: now, Price: decimal.NewFromInt(3)}

		store.On("GetLatest", ctx, "XLM").Return(latest, nil)
		store.On("RangeFirst", ctx, "XLM", mock.Anything, mock.Anything).Return(nil, nil)
		store.On("IncrementPopularity", ctx, "XLM").Return(nil)

		data, err := engine.GetPrice(ctx, "XLM")

		require.NoError(t, err)
		require.NotNil(t, data)
		assert.Nil(t, data.PercentagePriceChange24h)
	})

	t.Run("zero-valued old sample yields nil change", func(t *testing.T) {
		store := new(MockStore)
		engine := newTestEngine(store, new(MockDeriver), new(MockCatalog))

		latest := &models.PricePoint{Timestamp: now, Price: decimal.NewFromInt(3)}
		old := &models.PricePoint{Timestamp: now - oneDayMs, Price: decimal.Zero}

		store.On("GetLatest", ctx, "XLM").Return(latest, nil)
		store.On("RangeFirst", ctx, "XLM", mock.Anything, mock.Anything).Return(old, nil)
		store.On("IncrementPopularity", ctx, "XLM").Return(nil)

		data, err := engine.GetPrice(ctx, "XLM")

		require.NoError(t, err)
		require.NotNil(t, data)
		assert.Nil(t, data.PercentagePriceChange24h)
	})

	t.Run("native input resolves the XLM series", func(t *testing.T) {
		store := new(MockStore)
		engine := newTestEngine(store, new(MockDeriver), new(MockCatalog))

		latest := &models.PricePoint{Timestamp: now, Price: decimal.NewFromInt(3)}

		store.On("GetLatest", ctx, "XLM").Return(latest, nil)
		store.On("RangeFirst", ctx, "XLM", mock.Anything, mock.Anything).Return(nil, nil)
		store.On("IncrementPopularity", ctx, "XLM").Return(nil)

		data, err := engine.GetPrice(ctx, "native")

		require.NoError(t, err)
		require.NotNil(t, data)
		store.AssertCalled(t, "GetLatest", ctx, "XLM")
	})

	t.Run("empty series returns no data without counting a hit", func(t *testing.T) {
		store := new(MockStore)
		engine := newTestEngine(store, new(MockDeriver), new(MockCatalog))

		store.On("GetLatest", ctx, "XLM").Return(nil, nil)

		data, err := engine.GetPrice(ctx, "XLM")

		require.NoError(t, err)
		assert.Nil(t, data)
		store.AssertNotCalled(t, "IncrementPopularity", mock.Anything, mock.Anything)
	})

	t.Run("missing series admits the token", func(t *testing.T) {
		store := new(MockStore)
		deriver := new(MockDeriver)
		engine := newTestEngine(store, deriver, new(MockCatalog))

		price := decimal.RequireFromString("0.0421")
		point := models.PricePoint{Timestamp: now, Price: price}

		store.On("GetLatest", ctx, "YBX:GABC").Return(nil, cache.ErrSeriesNotFound)
		deriver.On("CalculatePriceInUSD", ctx, "YBX:GABC").Return(point, nil)
		store.On("CreateSeries", ctx, "YBX:GABC").Return(nil)
		store.On("IncrementPopularity", ctx, "YBX:GABC").Return(nil)
		store.On("AddPoint", ctx, "YBX:GABC", now, price).Return(nil)

		data, err := engine.GetPrice(ctx, "YBX:GABC")

		require.NoError(t, err)
		require.NotNil(t, data)
		assert.True(t, data.CurrentPrice.Equal(price))
		assert.Nil(t, data.PercentagePriceChange24h)

		store.AssertExpectations(t)
		deriver.AssertExpectations(t)
	})

	t.Run("failed admission leaves the store untouched", func(t *testing.T) {
		store := new(MockStore)
		deriver := new(MockDeriver)
		engine := newTestEngine(store, deriver, new(MockCatalog))

		store.On("GetLatest", ctx, "BAD:TOKEN").Return(nil, cache.ErrSeriesNotFound)
		deriver.On("CalculatePriceInUSD", ctx, "BAD:TOKEN").Return(models.PricePoint{}, ErrNoPaths)

		data, err := engine.GetPrice(ctx, "BAD:TOKEN")

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoPaths)
		assert.Nil(t, data)

		store.AssertNotCalled(t, "CreateSeries", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "IncrementPopularity", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "AddPoint", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("popularity failure does not fail the read", func(t *testing.T) {
		store := new(MockStore)
		engine := newTestEngine(store, new(MockDeriver), new(MockCatalog))

		latest := &models.PricePoint{Timestamp: now, Price: decimal.NewFromInt(3)}

		store.On("GetLatest", ctx, "XLM").Return(latest, nil)
		store.On("RangeFirst", ctx, "XLM", mock.Anything, mock.Anything).Return(nil, nil)
		store.On("IncrementPopularity", ctx, "XLM").Return(errors.New("connection reset"))

		data, err := engine.GetPrice(ctx, "XLM")

		require.NoError(t, err)
		require.NotNil(t, data)
	})
}

func TestEngine_UpdatePrices(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UnixMilli()

	t.Run("empty popularity set", func(t *testing.T) {
		store := new(MockStore)
		engine := newTestEngine(store, new(MockDeriver), new(MockCatalog))

		store.On("PopularityDesc", ctx).Return([]string{}, nil)

		err := engine.UpdatePrices(ctx)

		assert.ErrorIs(t, err, ErrEmptyCatalog)
	})

	t.Run("partial batch failures are skipped", func(t *testing.T) {
		store := new(MockStore)
		deriver := new(MockDeriver)
		engine := newTestEngine(store, deriver, new(MockCatalog))

		store.On("PopularityDesc", ctx).Return([]string{"XLM", "YBX:GABC"}, nil)
		deriver.On("CalculatePriceInUSD", mock.Anything, "XLM").
			Return(models.PricePoint{Timestamp: now, Price: decimal.NewFromInt(3)}, nil)
		deriver.On("CalculatePriceInUSD", mock.Anything, "YBX:GABC").
			Return(models.PricePoint{}, ErrNoPaths)
		store.On("MultiAddPoints", ctx, mock.MatchedBy(func(points []cache.Point) bool {
			return len(points) == 1 && points[0].Key == "XLM"
		})).Return(nil)

		err := engine.UpdatePrices(ctx)

		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("fully failed batch halts the pass", func(t *testing.T) {
		store := new(MockStore)
		deriver := new(MockDeriver)
		engine := newTestEngine(store, deriver, new(MockCatalog))

		// Batch size is 2: the first batch fails completely and the pass must
		// stop before the third token is ever derived.
		store.On("PopularityDesc", ctx).Return([]string{"A:G1", "B:G2", "C:G3"}, nil)
		deriver.On("CalculatePriceInUSD", mock.Anything, "A:G1").Return(models.PricePoint{}, ErrNoPaths)
		deriver.On("CalculatePriceInUSD", mock.Anything, "B:G2").Return(models.PricePoint{}, ErrPriceTimeout)

		err := engine.UpdatePrices(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoPrices)
		store.AssertNotCalled(t, "MultiAddPoints", mock.Anything, mock.Anything)
		deriver.AssertNotCalled(t, "CalculatePriceInUSD", mock.Anything, "C:G3")
	})

	t.Run("tokens are processed across batches", func(t *testing.T) {
		store := new(MockStore)
		deriver := new(MockDeriver)
		engine := newTestEngine(store, deriver, new(MockCatalog))

		tokens := []string{"A:G1", "B:G2", "C:G3"}
		store.On("PopularityDesc", ctx).Return(tokens, nil)
		for _, token := range tokens {
			deriver.On("CalculatePriceInUSD", mock.Anything, token).
				Return(models.PricePoint{Timestamp: now, Price: decimal.NewFromInt(1)}, nil)
		}
		store.On("MultiAddPoints", ctx, mock.MatchedBy(func(points []cache.Point) bool {
			return len(points) == 2
		})).Return(nil).Once()
		store.On("MultiAddPoints", ctx, mock.MatchedBy(func(points []cache.Point) bool {
			return len(points) == 1
		})).Return(nil).Once()

		err := engine.UpdatePrices(ctx)

		require.NoError(t, err)
		store.AssertExpectations(t)
		deriver.AssertExpectations(t)
	})
}

func TestEngine_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("bootstraps normalized catalog and sets the flag", func(t *testing.T) {
		store := new(MockStore)
		catalog := new(MockCatalog)
		engine := newTestEngine(store, new(MockDeriver), catalog)

		catalog.On("FetchAllTokens", ctx).Return([]string{"native", "YBX:GABC"})
		store.On("BootstrapSeries", ctx, []string{"XLM", "YBX:GABC"}).Return(nil)
		store.On("SetInitialized", ctx).Return(nil)

		err := engine.Initialize(ctx)

		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("bootstrap failure skips the flag", func(t *testing.T) {
		store := new(MockStore)
		catalog := new(MockCatalog)
		engine := newTestEngine(store, new(MockDeriver), catalog)

		catalog.On("FetchAllTokens", ctx).Return([]string{"XLM"})
		store.On("BootstrapSeries", ctx, []string{"XLM"}).Return(errors.New("pipeline failed"))

		err := engine.Initialize(ctx)

		require.Error(t, err)
		store.AssertNotCalled(t, "SetInitialized", mock.Anything)
	})
}
