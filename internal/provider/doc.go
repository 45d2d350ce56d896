// Package provider is the HTTP client for the third-party market data provider.
//
// The provider exposes a CoinGecko-compatible endpoint:
//
//	GET /coins/markets?vs_currency=usd&order=market_cap_desc&per_page=N&page=1
//
// Requests are retried with fixed backoff delays; HTTP 429 responses carrying a
// Retry-After header are honoured. Each item of the response is validated
// individually and invalid items are dropped.
package provider
