package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassifiers(t *testing.T) {
	t.Run("already exists", func(t *testing.T) {
		assert.True(t, isAlreadyExists(errors.New("ERR TSDB: key already exists")))
		assert.False(t, isAlreadyExists(errors.New("ERR TSDB: the key does not exist")))
		assert.False(t, isAlreadyExists(nil))
	})

	t.Run("does not exist", func(t *testing.T) {
		assert.True(t, isNotExists(errors.New("ERR TSDB: the key does not exist")))
		assert.False(t, isNotExists(errors.New("ERR TSDB: key already exists")))
		assert.False(t, isNotExists(nil))
	})
}

func TestMultiAddPoints_EmptyBatch(t *testing.T) {
	store := &RedisStore{}

	err := store.MultiAddPoints(context.Background(), nil)

	require.Error(t, err)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "ts.madd", storeErr.Operation)
}

func TestStoreError(t *testing.T) {
	t.Run("with key", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewStoreError("ts.get", "XLM", cause)

		assert.Contains(t, err.Error(), "ts.get")
		assert.Contains(t, err.Error(), "XLM")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("without key", func(t *testing.T) {
		err := NewStoreError("ping", "", errors.New("timeout"))
		assert.Contains(t, err.Error(), "ping")
	})
}
