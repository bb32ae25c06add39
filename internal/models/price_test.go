package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "XLM", NormalizeToken("native"))
	assert.Equal(t, "XLM", NormalizeToken("XLM"))
	assert.Equal(t, "YBX:GABC", NormalizeToken("YBX:GABC"))
	// Asset codes are case-sensitive; "Native" is just an odd code.
	assert.Equal(t, "Native", NormalizeToken("Native"))
}

func TestSplitToken(t *testing.T) {
	t.Run("valid identifier", func(t *testing.T) {
		code, issuer, ok := SplitToken("YBX:GABC")
		assert.True(t, ok)
		assert.Equal(t, "YBX", code)
		assert.Equal(t, "GABC", issuer)
	})

	t.Run("invalid identifiers", func(t *testing.T) {
		for _, token := range []string{"XLM", "YBX", ":GABC", "YBX:", ":"} {
			_, _, ok := SplitToken(token)
			assert.False(t, ok, "token %q", token)
		}
	})
}

func TestTokenPriceData_JSON(t *testing.T) {
	t.Run("nil change serializes as null", func(t *testing.T) {
		data := TokenPriceData{CurrentPrice: decimal.RequireFromString("0.12")}

		raw, err := json.Marshal(data)

		require.NoError(t, err)
		assert.JSONEq(t, `{"currentPrice": "0.12", "percentagePriceChange24h": null}`, string(raw))
	})

	t.Run("change is included when present", func(t *testing.T) {
		change := decimal.NewFromInt(20)
		data := TokenPriceData{
			CurrentPrice:             decimal.RequireFromString("0.12"),
			PercentagePriceChange24h: &change,
		}

		raw, err := json.Marshal(data)

		require.NoError(t, err)
		assert.JSONEq(t, `{"currentPrice": "0.12", "percentagePriceChange24h": "20"}`, string(raw))
	})
}
