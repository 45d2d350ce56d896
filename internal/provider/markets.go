package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/market-sync/internal/model"
)

// MaxTopAssets is the largest page size the provider accepts.
const MaxTopAssets = 250

// FetchTopAssets fetches the top count assets ordered by market cap.
// An empty apiKey falls back to the key the client was built with.
// It returns either a fully validated batch or an error, never partial data.
func (c *Client) FetchTopAssets(ctx context.Context, count int, apiKey string) ([]model.Asset, time.Time, error) {
	if count < 1 || count > MaxTopAssets {
		return nil, time.Time{}, fmt.Errorf("%w: count must be between 1 and %d, got %d", ErrInvalidArgument, MaxTopAssets, count)
	}
	if apiKey == "" {
		apiKey = c.apiKey
	}

	query := url.Values{}
	query.Set("vs_currency", c.currency)
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(count))
	query.Set("page", "1")
	query.Set("sparkline", "false")
	query.Set("price_change_percentage", "24h")

	var items []json.RawMessage
	if err := c.getJSON(ctx, "/coins/markets", query, apiKey, &items); err != nil {
		return nil, time.Time{}, fmt.Errorf("fetch top assets: %w", err)
	}
	asOf := c.now().UTC()

	if len(items) > count {
		items = items[:count]
	}

	results := ConvertItems(items)
	assets := make([]model.Asset, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			c.logger.Warn("dropping invalid asset",
				"index", r.Issue.Index,
				"id", r.Issue.ID,
				"field", r.Issue.Field,
				"reason", r.Issue.Reason,
			)
			continue
		}
		assets = append(assets, r.Asset)
	}

	if len(items) > 0 && len(assets) == 0 {
		return nil, time.Time{}, fmt.Errorf("fetch top assets: %w (%d items)", ErrAllAssetsInvalid, len(items))
	}

	c.logger.Debug("fetched top assets",
		"requested", count,
		"received", len(items),
		"valid", len(assets),
	)

	return assets, asOf, nil
}
