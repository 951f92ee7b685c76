// Package api hosts the HTTP server, middleware, and REST handlers of the icon
// browser. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET / for the embedded single-page UI and /icons/... for raw assets.
//   - GET /v1/icons and /v1/categories for filtering.
//   - GET /v1/icons/{id}/download for single SVG/PNG downloads.
//   - POST /v1/exports and GET /v1/exports/{id}[/download] for draw.io
//     library exports, which run asynchronously on the worker pool.
//   - GET /v1/status for the transient status line.
package api
