package market

import (
	"context"
	"slices"
	"strings"

	"github.com/rickgao/market-sync/internal/model"
)

// DefaultMoversCount is used when GetMovers is asked for n <= 0.
const DefaultMoversCount = 5

// Movers are the largest 24h gainers and losers of the current snapshot.
type Movers struct {
	Gainers  []model.Asset `json:"gainers"` // Best first
	Losers   []model.Asset `json:"losers"`  // Worst first
	Degraded bool          `json:"degraded"`
	Source   model.Source  `json:"source"`
}

// GetMovers derives gainers and losers from the current tiered snapshot.
// Losers are drawn only from assets not already listed as gainers, so when
// fewer than 2n assets carry a 24h change the losers list is shorter than n
// and may be empty. See RankMovers.
func (a *Accessor) GetMovers(ctx context.Context, n int) Movers {
	snap, source := a.GetSnapshot(ctx)
	gainers, losers := RankMovers(snap.Assets, n)
	return Movers{
		Gainers:  gainers,
		Losers:   losers,
		Degraded: snap.Degraded,
		Source:   source,
	}
}

// RankMovers drops assets without a 24h change and sorts the rest by change,
// descending. Gainers are the first n. Losers are the last n of what remains,
// worst first, so an asset never appears in both lists.
func RankMovers(assets []model.Asset, n int) (gainers, losers []model.Asset) {
	if n <= 0 {
		n = DefaultMoversCount
	}

	ranked := make([]model.Asset, 0, len(assets))
	for _, a := range assets {
		if a.PercentChange24h != nil {
			ranked = append(ranked, a)
		}
	}

	slices.SortStableFunc(ranked, compareMovers)

	g := min(n, len(ranked))
	gainers = append([]model.Asset{}, ranked[:g]...)

	rest := ranked[g:]
	l := min(n, len(rest))
	losers = make([]model.Asset, 0, l)
	for i := len(rest) - 1; i >= len(rest)-l; i-- {
		losers = append(losers, rest[i])
	}
	return gainers, losers
}

// compareMovers orders by change descending, then rank ascending (unranked
// last), then symbol.
func compareMovers(a, b model.Asset) int {
	if c := b.PercentChange24h.Cmp(*a.PercentChange24h); c != 0 {
		return c
	}
	switch {
	case a.MarketCapRank != nil && b.MarketCapRank != nil:
		if *a.MarketCapRank != *b.MarketCapRank {
			if *a.MarketCapRank < *b.MarketCapRank {
				return -1
			}
			return 1
		}
	case a.MarketCapRank != nil:
		return -1
	case b.MarketCapRank != nil:
		return 1
	}
	return strings.Compare(a.Symbol, b.Symbol)
}
