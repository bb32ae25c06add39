package pricecache

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"price-cache-api/internal/horizon"
	"price-cache-api/internal/models"
)

// The quote asset every price is expressed against, and the notional amount
// requested from the path finder.
const (
	usdcCode   = "USDC"
	usdcIssuer = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
)

var usdReceiveValue = decimal.NewFromInt(500)

// divisionPrecision is the number of decimal places carried through price
// division; the wire amounts have 7, so this is far beyond exact.
const divisionPrecision = 28

// ChainClient is the subset of the chain API the deriver needs.
type ChainClient interface {
	LatestLedgerCloseTime(ctx context.Context) (int64, error)
	StrictReceivePaths(ctx context.Context, sources []horizon.Asset, dest horizon.Asset, destAmount decimal.Decimal) ([]horizon.PathRecord, error)
}

// Deriver computes a token's USD price from on-chain payment paths.
type Deriver struct {
	chain   ChainClient
	timeout time.Duration
	logger  *logrus.Logger
}

// NewDeriver creates a price deriver
func NewDeriver(chain ChainClient, timeout time.Duration, logger *logrus.Logger) *Deriver {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Deriver{
		chain:   chain,
		timeout: timeout,
		logger:  logger,
	}
}

// CalculatePriceInUSD derives the token's USD price and the close time (ms)
// of the ledger it was derived against. The computation races a hard
// timeout; on expiry the in-flight work is abandoned.
func (d *Deriver) CalculatePriceInUSD(ctx context.Context, token string) (models.PricePoint, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		point models.PricePoint
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		point, err := d.derive(ctx, token)
		done <- outcome{point: point, err: err}
	}()

	select {
	case result := <-done:
		return result.point, result.err
	case <-ctx.Done():
		return models.PricePoint{}, fmt.Errorf("%w: %s after %s", ErrPriceTimeout, token, d.timeout)
	}
}

func (d *Deriver) derive(ctx context.Context, token string) (models.PricePoint, error) {
	token = models.NormalizeToken(token)

	sources, primaryCode, err := sourceAssets(token)
	if err != nil {
		return models.PricePoint{}, err
	}

	closeTimeMs, err := d.chain.LatestLedgerCloseTime(ctx)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("fetching latest ledger: %w", err)
	}

	records, err := d.chain.StrictReceivePaths(ctx, sources, usdcAsset(), usdReceiveValue)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("querying paths for %s: %w", token, err)
	}
	if len(records) == 0 {
		return models.PricePoint{}, fmt.Errorf("%w: %s", ErrNoPaths, token)
	}

	minAmount, err := minSourceAmount(records, primaryCode)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("selecting path for %s: %w", token, err)
	}

	return models.PricePoint{
		Timestamp: closeTimeMs,
		Price:     usdReceiveValue.DivRound(minAmount, divisionPrecision),
	}, nil
}

// sourceAssets builds the path query source set: the token itself plus the
// native asset as an extra hop so thinly-traded tokens still route via XLM.
func sourceAssets(token string) ([]horizon.Asset, string, error) {
	if token == models.NativeToken {
		return []horizon.Asset{horizon.NativeAsset()}, models.NativeToken, nil
	}

	code, issuer, ok := models.SplitToken(token)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrBadToken, token)
	}

	return []horizon.Asset{
		{Code: code, Issuer: issuer},
		horizon.NativeAsset(),
	}, code, nil
}

// minSourceAmount picks the cheapest route. The fold is seeded with the first
// record overall and runs over the records whose source code matches the
// primary asset; when that filter is empty the unfiltered seed stands. The
// fallback is intentional: native-source routes carry no source_asset_code,
// so an XLM query would otherwise never match.
func minSourceAmount(records []horizon.PathRecord, primaryCode string) (decimal.Decimal, error) {
	min, err := decimal.NewFromString(records[0].SourceAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable source amount %q: %w", records[0].SourceAmount, err)
	}

	for _, record := range records {
		if record.SourceAssetCode != primaryCode {
			continue
		}
		amount, err := decimal.NewFromString(record.SourceAmount)
		if err != nil {
			continue
		}
		if amount.LessThan(min) {
			min = amount
		}
	}

	if min.IsZero() {
		return decimal.Zero, fmt.Errorf("zero source amount")
	}
	return min, nil
}

func usdcAsset() horizon.Asset {
	return horizon.Asset{Code: usdcCode, Issuer: usdcIssuer}
}
