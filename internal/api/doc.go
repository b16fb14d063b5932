// Package api hosts the HTTP server, middleware, and REST handlers of the
// blog. Notable routes:
//   - GET/POST /articles and GET/PATCH/DELETE /articles/{id} for article
//     management; everything but the single-article read needs a bearer token.
//   - GET /publishArticles for the public list of published articles.
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus.
//   - /admin and /admin/* for the admin application (history fallback).
//   - Every other GET is a server-rendered page behind the readiness gate.
package api
