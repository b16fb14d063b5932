// Package cmd defines the blogserver command line.
//
// Architecture overview:
//   - HTTP surface: internal/api.Server routes /articles and /publishArticles to the article store,
//     /admin and /admin/* to the admin application (history fallback), and every other GET to the
//     server-rendered page pipeline. Operational routes (/healthz, /readyz, /metrics) and static files
//     are answered before the readiness gate.
//   - Page pipeline: a render.Renderer is built from the server bundle and the HTML shell and published
//     through ssr.Holder. Until one exists, ssr.Gate answers with the placeholder text. The dispatcher
//     builds a render context per request (site title, raw request URI, script injection) and writes
//     the rendered HTML with an ETag.
//   - Renderer lifecycle: production builds once at startup and exits if the build fails; development
//     builds on startup if the files exist and rebuilds on every change seen by internal/watcher. A
//     failed rebuild keeps the previous renderer.
//   - Persistence: article.Store is backed by memory, Postgres (pgx), or SQLite, chosen by store.backend.
//   - Plumbing: Viper loads config from file and BLOG_* env; zap logs; Prometheus metrics on /metrics;
//     OpenTelemetry traces go to an OTLP/HTTP collector when telemetry.otlp_endpoint is set.
//
// Commands:
//   - serve: run the server until SIGINT/SIGTERM.
//   - token: print a signed bearer token for the article management routes.
package cmd
