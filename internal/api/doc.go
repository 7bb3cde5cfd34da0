// Package api hosts the HTTP server used in serve mode. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /scrape runs one crawl synchronously and answers "completed",
//     "failed", or 409 "already running". The run is bound to the server's
//     lifetime, not the request's, so a dropped client does not cancel it.
//   - POST /operator/resume releases a crawl paused on a verification page.
package api
