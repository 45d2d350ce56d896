package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Market Data Types
// -----------------------------------------------------------------------------

// AssetClass categorizes a tradeable instrument.
type AssetClass string

const (
	ClassCrypto    AssetClass = "crypto"
	ClassIndex     AssetClass = "index"
	ClassForex     AssetClass = "forex"
	ClassCommodity AssetClass = "commodity"
	ClassETF       AssetClass = "etf"
)

// ParseAssetClass converts a string to an AssetClass.
func ParseAssetClass(s string) (AssetClass, error) {
	switch c := AssetClass(strings.ToLower(strings.TrimSpace(s))); c {
	case ClassCrypto, ClassIndex, ClassForex, ClassCommodity, ClassETF:
		return c, nil
	default:
		return "", fmt.Errorf("unknown asset class %q", s)
	}
}

// Asset is one tradeable instrument as reported by the provider.
type Asset struct {
	ID     string     `json:"id"`
	Symbol string     `json:"symbol"`
	Name   string     `json:"name"`
	Image  string     `json:"image,omitempty"`
	Class  AssetClass `json:"asset_class"`

	Price             decimal.Decimal  `json:"price"`                        // Always present, > 0
	PercentChange24h  *decimal.Decimal `json:"percent_change_24h"`           // May be negative
	Volume24h         *decimal.Decimal `json:"volume_24h"`                   // >= 0
	MarketCap         *decimal.Decimal `json:"market_cap"`                   // >= 0
	MarketCapRank     *int             `json:"market_cap_rank,omitempty"`    // >= 1
	High24h           *decimal.Decimal `json:"high_24h,omitempty"`           // >= 0
	Low24h            *decimal.Decimal `json:"low_24h,omitempty"`            // >= 0
	CirculatingSupply *decimal.Decimal `json:"circulating_supply,omitempty"` // >= 0
	TotalSupply       *decimal.Decimal `json:"total_supply,omitempty"`       // >= 0
	MaxSupply         *decimal.Decimal `json:"max_supply,omitempty"`         // >= 0

	LastUpdated time.Time `json:"last_updated"`
}

// Snapshot is a timestamped set of assets. Degraded marks data that did not come
// fresh from the primary pipeline.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp_utc"`
	Assets    []Asset   `json:"assets"`
	Degraded  bool      `json:"degraded"`
}

// NewSnapshot builds a non-degraded snapshot from a freshly fetched batch.
func NewSnapshot(asOf time.Time, assets []Asset) Snapshot {
	return Snapshot{
		Timestamp: asOf.UTC(),
		Assets:    assets,
		Degraded:  false,
	}
}

// EmptySnapshot is the degraded placeholder served when no data source has anything.
func EmptySnapshot(now time.Time) Snapshot {
	return Snapshot{
		Timestamp: now.UTC(),
		Assets:    []Asset{},
		Degraded:  true,
	}
}

// WithDegraded returns a copy of s with the degraded flag set to d.
// The asset slice is shared; snapshots are never mutated in place.
func (s Snapshot) WithDegraded(d bool) Snapshot {
	s.Degraded = d
	return s
}

// HistoryRecord is a snapshot as persisted in the history series.
type HistoryRecord struct {
	Snapshot  Snapshot  `json:"snapshot"`
	WrittenAt time.Time `json:"written_at"` // Assigned by the store
}

// SnapshotCacheKey is the freshness cache key for the current snapshot.
const SnapshotCacheKey = "market:snapshot"

// Source identifies which tier served a read.
type Source string

const (
	SourceCache   Source = "cache"
	SourceDurable Source = "durable"
	SourceEmpty   Source = "empty"
)

// -----------------------------------------------------------------------------
// Operational Types
// -----------------------------------------------------------------------------

// SchedulerStatus is the last-known state of a sync job.
type SchedulerStatus struct {
	Name          string     `json:"name"`
	Enabled       bool       `json:"enabled"`
	LastRunID     string     `json:"last_run_id,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastItemCount int        `json:"last_item_count"`
}

// Level is the severity of an audit event.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Outcome is the result of a completed tick.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// AuditEvent is one immutable entry in the audit log.
type AuditEvent struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	RunID     string         `json:"run_id,omitempty"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"` // Assigned by the store
}
