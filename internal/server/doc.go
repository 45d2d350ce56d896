// Package server exposes the market snapshot over HTTP.
//
// Routes:
//
//	GET  /api/v1/market/snapshot  current snapshot, X-Data-Source header
//	GET  /api/v1/market/movers    top gainers and losers (?n=5)
//	POST /api/v1/market/sync      manual sync tick
//	GET  /api/v1/market/status    scheduler status
//	GET  /health                  component health
//	GET  /metrics                 Prometheus metrics (configurable path)
//	GET  /ws/market               snapshot stream
package server
