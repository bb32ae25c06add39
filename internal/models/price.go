package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NativeToken is the canonical identifier of the chain's native asset.
// The input form "native" is rewritten to this at every key boundary, so
// NativeToken is the only spelling that ever reaches the store.
const NativeToken = "XLM"

// tokenSeparator splits an issued asset identifier into CODE and ISSUER.
const tokenSeparator = ":"

// NormalizeToken maps the "native" input form to NativeToken. Issued asset
// identifiers ("CODE:ISSUER") pass through unchanged; asset codes are
// case-sensitive on chain, so no case folding happens here.
func NormalizeToken(token string) string {
	if token == "native" {
		return NativeToken
	}
	return token
}

// SplitToken breaks an issued asset identifier into its code and issuer
// halves. It returns ok=false for the native token, a missing separator, or
// an empty half.
func SplitToken(token string) (code, issuer string, ok bool) {
	if token == NativeToken {
		return "", "", false
	}
	code, issuer, found := strings.Cut(token, tokenSeparator)
	if !found || code == "" || issuer == "" {
		return "", "", false
	}
	return code, issuer, true
}

// PricePoint is a single sample in a token's price series. Timestamp is the
// close time of the ledger the price was derived from, in milliseconds.
type PricePoint struct {
	Timestamp int64           `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// TokenPriceData is the payload returned by the read API. A nil
// PercentagePriceChange24h means no usable sample exists 24 hours back; it is
// serialized as null, never as zero.
type TokenPriceData struct {
	CurrentPrice             decimal.Decimal  `json:"currentPrice"`
	PercentagePriceChange24h *decimal.Decimal `json:"percentagePriceChange24h"`
}
