package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrValidation is matched by every schema validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationIssue describes why a single asset (or snapshot) failed validation.
type ValidationIssue struct {
	Index  int    // Position in the input batch, -1 if not applicable
	ID     string // Asset ID if known
	Field  string
	Reason string
}

func (v *ValidationIssue) Error() string {
	if v.ID != "" {
		return fmt.Sprintf("asset %q: %s %s", v.ID, v.Field, v.Reason)
	}
	if v.Index >= 0 {
		return fmt.Sprintf("asset[%d]: %s %s", v.Index, v.Field, v.Reason)
	}
	return fmt.Sprintf("%s %s", v.Field, v.Reason)
}

// Unwrap makes errors.Is(issue, ErrValidation) hold.
func (v *ValidationIssue) Unwrap() error {
	return ErrValidation
}

// ValidateAsset checks the invariants every stored or served asset must satisfy.
func ValidateAsset(a Asset) error {
	issue := func(field, reason string) error {
		return &ValidationIssue{Index: -1, ID: a.ID, Field: field, Reason: reason}
	}

	if a.ID == "" {
		return issue("id", "is required")
	}
	if a.Symbol == "" {
		return issue("symbol", "is required")
	}
	if a.Name == "" {
		return issue("name", "is required")
	}
	if _, err := ParseAssetClass(string(a.Class)); err != nil {
		return issue("asset_class", "is invalid")
	}
	if !a.Price.IsPositive() {
		return issue("price", "must be positive")
	}

	nonNegative := []struct {
		field string
		value *decimal.Decimal
	}{
		{"volume_24h", a.Volume24h},
		{"market_cap", a.MarketCap},
		{"high_24h", a.High24h},
		{"low_24h", a.Low24h},
		{"circulating_supply", a.CirculatingSupply},
		{"total_supply", a.TotalSupply},
		{"max_supply", a.MaxSupply},
	}
	for _, f := range nonNegative {
		if f.value != nil && f.value.IsNegative() {
			return issue(f.field, "must not be negative")
		}
	}

	if a.MarketCapRank != nil && *a.MarketCapRank < 1 {
		return issue("market_cap_rank", "must be >= 1")
	}
	if a.LastUpdated.IsZero() {
		return issue("last_updated", "is required")
	}

	return nil
}

// ValidateSnapshot checks a snapshot before it is persisted or after it is read back.
func ValidateSnapshot(s Snapshot) error {
	if s.Timestamp.IsZero() {
		return &ValidationIssue{Index: -1, Field: "timestamp_utc", Reason: "is required"}
	}
	if len(s.Assets) == 0 {
		return &ValidationIssue{Index: -1, Field: "assets", Reason: "must contain at least one asset"}
	}
	for i, a := range s.Assets {
		if err := ValidateAsset(a); err != nil {
			var vi *ValidationIssue
			if errors.As(err, &vi) {
				vi.Index = i
			}
			return err
		}
	}
	return nil
}
