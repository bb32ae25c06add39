package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"price-cache-api/internal/config"
)

// Asset identifies a chain asset. The zero value is the native asset.
type Asset struct {
	Code   string
	Issuer string
}

// NativeAsset returns the chain's native asset
func NativeAsset() Asset {
	return Asset{}
}

// IsNative reports whether the asset is the chain's native asset
func (a Asset) IsNative() bool {
	return a.Code == ""
}

// String renders the asset in the wire form used by path queries
func (a Asset) String() string {
	if a.IsNative() {
		return "native"
	}
	return a.Code + ":" + a.Issuer
}

// Type returns the asset type discriminator used by the chain API
func (a Asset) Type() string {
	switch {
	case a.IsNative():
		return "native"
	case len(a.Code) <= 4:
		return "credit_alphanum4"
	default:
		return "credit_alphanum12"
	}
}

// PathRecord is one candidate payment path returned by a strict-receive query.
type PathRecord struct {
	SourceAssetType string `json:"source_asset_type"`
	SourceAssetCode string `json:"source_asset_code"`
	SourceAmount    string `json:"source_amount"`
}

type ledgerRecord struct {
	ClosedAt string `json:"closed_at"`
}

type ledgersEnvelope struct {
	Embedded struct {
		Records []ledgerRecord `json:"records"`
	} `json:"_embedded"`
}

type pathsEnvelope struct {
	Embedded struct {
		Records []PathRecord `json:"records"`
	} `json:"_embedded"`
}

// Client is an HTTP client for the chain's Horizon-style API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *logrus.Logger
}

// NewClient creates a chain API client
func NewClient(cfg *config.HorizonConfig, logger *logrus.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://horizon.stellar.org"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	requestsPerSecond := cfg.RequestsPerSecond
	if requestsPerSecond == 0 {
		requestsPerSecond = 50
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:      logger,
	}
}

// LatestLedgerCloseTime returns the close time of the most recent ledger in
// milliseconds since epoch.
func (c *Client) LatestLedgerCloseTime(ctx context.Context) (int64, error) {
	data, err := c.makeRequest(ctx, "/ledgers?order=desc&limit=1")
	if err != nil {
		return 0, err
	}

	var envelope ledgersEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return 0, fmt.Errorf("horizon: failed to parse ledgers response: %w", err)
	}
	if len(envelope.Embedded.Records) == 0 {
		return 0, fmt.Errorf("horizon: ledgers response contained no records")
	}

	closedAt, err := time.Parse(time.RFC3339, envelope.Embedded.Records[0].ClosedAt)
	if err != nil {
		return 0, fmt.Errorf("horizon: failed to parse ledger close time: %w", err)
	}

	return closedAt.UnixMilli(), nil
}

// StrictReceivePaths queries candidate payment paths that deliver destAmount
// of dest starting from any of the source assets.
func (c *Client) StrictReceivePaths(ctx context.Context, sources []Asset, dest Asset, destAmount decimal.Decimal) ([]PathRecord, error) {
	sourceAssets := make([]string, len(sources))
	for i, source := range sources {
		sourceAssets[i] = source.String()
	}

	query := url.Values{}
	query.Set("source_assets", strings.Join(sourceAssets, ","))
	query.Set("destination_asset_type", dest.Type())
	if !dest.IsNative() {
		query.Set("destination_asset_code", dest.Code)
		query.Set("destination_asset_issuer", dest.Issuer)
	}
	query.Set("destination_amount", destAmount.String())

	data, err := c.makeRequest(ctx, "/paths/strict-receive?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var envelope pathsEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("horizon: failed to parse paths response: %w", err)
	}

	return envelope.Embedded.Records, nil
}

// Ping checks if the chain API is reachable
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.makeRequest(ctx, "/ledgers?order=desc&limit=1")
	return err
}

func (c *Client) makeRequest(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("horizon: rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("horizon: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "price-cache-api/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("horizon: network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("horizon: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("horizon: HTTP %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
