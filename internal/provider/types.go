package provider

import "github.com/shopspring/decimal"

// MarketAsset is one element of the GET /coins/markets response.
type MarketAsset struct {
	ID                       string           `json:"id"`
	Symbol                   string           `json:"symbol"`
	Name                     string           `json:"name"`
	Image                    string           `json:"image,omitempty"`
	CurrentPrice             *decimal.Decimal `json:"current_price"`
	PriceChangePercentage24h *decimal.Decimal `json:"price_change_percentage_24h"`
	TotalVolume              *decimal.Decimal `json:"total_volume"`
	MarketCap                *decimal.Decimal `json:"market_cap"`
	MarketCapRank            *int             `json:"market_cap_rank"`
	High24h                  *decimal.Decimal `json:"high_24h"`
	Low24h                   *decimal.Decimal `json:"low_24h"`
	CirculatingSupply        *decimal.Decimal `json:"circulating_supply"`
	TotalSupply              *decimal.Decimal `json:"total_supply"`
	MaxSupply                *decimal.Decimal `json:"max_supply"`
	LastUpdated              string           `json:"last_updated"`
}
