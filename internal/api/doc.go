// Package api hosts the optional status server that runs alongside a crawl.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/sites and /v1/sites/{site} for live per-site crawl summaries.
package api
