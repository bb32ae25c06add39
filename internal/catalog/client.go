package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"price-cache-api/internal/config"
	"price-cache-api/internal/models"
)

// Quote asset; excluded from the tracked set along with the native token.
const quoteAssetCode = "USDC"

const assetListPath = "/explorer/public/asset?sort=volume7d&order=desc"

// Client walks the paginated asset catalog, most-traded assets first.
type Client struct {
	baseURL     string
	maxTokens   int
	httpClient  *http.Client
	pageLimiter *rate.Limiter
	logger      *logrus.Logger
}

// NewClient creates a catalog client
func NewClient(cfg *config.CatalogConfig, logger *logrus.Logger) *Client {
	pageDelay := cfg.PageDelay
	if pageDelay == 0 {
		pageDelay = 500 * time.Millisecond
	}

	maxTokens := cfg.InitialTokenCount
	if maxTokens == 0 {
		maxTokens = 1000
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pageLimiter: rate.NewLimiter(rate.Every(pageDelay), 1),
		logger:      logger,
	}
}

// FetchAllTokens walks catalog pages until the configured token count is
// reached, the next link disappears, or a request fails. Partial results are
// returned on failure; the walk never errors out to the caller.
func (c *Client) FetchAllTokens(ctx context.Context) []string {
	tokens := []string{models.NativeToken}
	seen := map[string]struct{}{models.NativeToken: {}}

	pageURL := c.baseURL + assetListPath
	for pageURL != "" && len(tokens) < c.maxTokens {
		if err := c.pageLimiter.Wait(ctx); err != nil {
			c.logger.WithError(err).Warn("Catalog walk cancelled")
			break
		}

		page, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			c.logger.WithError(err).WithField("url", pageURL).Error("Failed to fetch catalog page")
			break
		}

		for _, record := range page.Embedded.Records {
			if len(tokens) >= c.maxTokens {
				break
			}
			token, ok := tokenFromRecord(record)
			if !ok {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}

		pageURL = c.nextPageURL(page)
	}

	c.logger.WithField("count", len(tokens)).Info("Catalog walk complete")
	return tokens
}

func (c *Client) nextPageURL(page *pageEnvelope) string {
	if page.Links.Next == nil || page.Links.Next.Href == "" {
		return ""
	}
	href := page.Links.Next.Href
	if !strings.HasPrefix(href, "http") {
		return c.baseURL + href
	}
	return href
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*pageEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "price-cache-api/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: HTTP %d", resp.StatusCode)
	}

	var page pageEnvelope
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("catalog: failed to parse response: %w", err)
	}

	return &page, nil
}

// tokenFromRecord extracts a token identifier from a catalog record. The
// structured tomlInfo code/issuer pair is preferred; the flat
// "CODE-ISSUER-TYPE" asset string is the fallback.
func tokenFromRecord(record assetRecord) (string, bool) {
	if record.Asset == models.NativeToken || record.Asset == quoteAssetCode {
		return "", false
	}

	if record.TomlInfo != nil && record.TomlInfo.Code != "" && record.TomlInfo.Issuer != "" {
		return record.TomlInfo.Code + ":" + record.TomlInfo.Issuer, true
	}

	parts := strings.Split(record.Asset, "-")
	if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
		return parts[0] + ":" + parts[1], true
	}

	return "", false
}

// Response envelope types

type pageEnvelope struct {
	Embedded struct {
		Records []assetRecord `json:"records"`
	} `json:"_embedded"`
	Links struct {
		Next *pageLink `json:"next"`
	} `json:"_links"`
}

type pageLink struct {
	Href string `json:"href"`
}

type assetRecord struct {
	Asset    string    `json:"asset"`
	TomlInfo *tomlInfo `json:"tomlInfo"`
}

type tomlInfo struct {
	Code   string `json:"code"`
	Issuer string `json:"issuer"`
}
