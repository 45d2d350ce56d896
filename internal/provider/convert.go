package provider

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rickgao/market-sync/internal/model"
)

// ItemResult is the outcome of validating one raw provider item.
// Exactly one of Asset (when Issue is nil) or Issue is meaningful.
type ItemResult struct {
	Asset model.Asset
	Issue *model.ValidationIssue
}

// OK reports whether the item passed validation.
func (r ItemResult) OK() bool {
	return r.Issue == nil
}

// ConvertItems decodes and validates every raw item independently.
func ConvertItems(items []json.RawMessage) []ItemResult {
	results := make([]ItemResult, len(items))
	for i, raw := range items {
		results[i] = convertItem(i, raw)
	}
	return results
}

func convertItem(index int, raw json.RawMessage) ItemResult {
	var m MarketAsset
	if err := json.Unmarshal(raw, &m); err != nil {
		return ItemResult{Issue: &model.ValidationIssue{
			Index:  index,
			Field:  "item",
			Reason: "does not match schema: " + err.Error(),
		}}
	}
	return m.toResult(index)
}

// ToModel converts a provider item into an asset without validating it.
func (m MarketAsset) ToModel() model.Asset {
	a := model.Asset{
		ID:                strings.TrimSpace(m.ID),
		Symbol:            strings.ToLower(strings.TrimSpace(m.Symbol)),
		Name:              strings.TrimSpace(m.Name),
		Image:             m.Image,
		Class:             model.ClassCrypto,
		PercentChange24h:  m.PriceChangePercentage24h,
		Volume24h:         m.TotalVolume,
		MarketCap:         m.MarketCap,
		MarketCapRank:     m.MarketCapRank,
		High24h:           m.High24h,
		Low24h:            m.Low24h,
		CirculatingSupply: m.CirculatingSupply,
		TotalSupply:       m.TotalSupply,
		MaxSupply:         m.MaxSupply,
		LastUpdated:       ParseTimestamp(m.LastUpdated),
	}
	if m.CurrentPrice != nil {
		a.Price = *m.CurrentPrice
	}
	return a
}

func (m MarketAsset) toResult(index int) ItemResult {
	if m.CurrentPrice == nil {
		return ItemResult{Issue: &model.ValidationIssue{Index: index, ID: m.ID, Field: "current_price", Reason: "is required"}}
	}
	if m.LastUpdated != "" && ParseTimestamp(m.LastUpdated).IsZero() {
		return ItemResult{Issue: &model.ValidationIssue{Index: index, ID: m.ID, Field: "last_updated", Reason: "is not a valid timestamp"}}
	}

	a := m.ToModel()
	if err := model.ValidateAsset(a); err != nil {
		var issue *model.ValidationIssue
		if !errors.As(err, &issue) {
			issue = &model.ValidationIssue{ID: m.ID, Field: "item", Reason: err.Error()}
		}
		issue.Index = index
		return ItemResult{Issue: issue}
	}

	return ItemResult{Asset: a}
}

// ParseTimestamp parses an ISO 8601 timestamp into UTC.
// Returns the zero time for empty or invalid input.
func ParseTimestamp(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t.UTC()
}
