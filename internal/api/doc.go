// Package api hosts the HTTP server, middleware and handlers. Routes:
//   - POST /api/fetch-product reads a merchant product page into text.
//   - POST /api/generate-content turns product text into marketing copy.
//   - GET /healthz and /readyz for container probes.
//   - GET /metrics for Prometheus scraping.
package api
