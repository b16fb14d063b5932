package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-ssr/internal/article"
	"github.com/JakeFAU/blog-ssr/internal/auth"
	"github.com/JakeFAU/blog-ssr/internal/metrics"
	"github.com/JakeFAU/blog-ssr/internal/ssr"
	"github.com/JakeFAU/blog-ssr/internal/telemetry"
)

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Store    article.Store
	Verifier *auth.Verifier
	Gate     *ssr.Gate

	// Pages renders every request that passes the gate.
	Pages http.Handler

	// Admin serves /admin and /admin/*.
	Admin http.Handler

	// StaticDirs are searched in order for existing files before the gate.
	StaticDirs []string

	// DistDirs are searched after the gate, ahead of Pages.
	DistDirs []string
	Logger   *zap.Logger
}

// Server wires HTTP handlers to the article store and the page pipeline.
type Server struct {
	router chi.Router
	store  article.Store
	gate   *ssr.Gate
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  deps.Store,
		gate:   deps.Gate,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(requestBodyLimitMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	requireAuth := auth.Require(deps.Verifier, logger.Named("auth"))
	r.Route("/articles", func(r chi.Router) {
		r.With(requireAuth).Get("/", s.listArticles)
		r.With(requireAuth).Post("/", s.createArticle)
		r.Get("/{id}", s.getArticle)
		r.With(requireAuth).Patch("/{id}", s.updateArticle)
		r.With(requireAuth).Delete("/{id}", s.deleteArticle)
	})
	r.Get("/publishArticles", s.listPublished)

	static := newStaticFiles(deps.StaticDirs)
	if deps.Admin != nil {
		admin := static.fallthroughTo(deps.Gate.Middleware(deps.Admin))
		for _, pattern := range []string{"/admin", "/admin/*"} {
			r.Get(pattern, admin.ServeHTTP)
			r.Head(pattern, admin.ServeHTTP)
		}
	}

	pages := deps.Pages
	if pages == nil {
		pages = http.NotFoundHandler()
	}
	pages = newStaticFiles(deps.DistDirs).fallthroughTo(pages)
	site := static.fallthroughTo(deps.Gate.Middleware(pages))
	r.Get("/*", site.ServeHTTP)
	r.Head("/*", site.ServeHTTP)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	state := s.gate.State()
	status := http.StatusOK
	if state != ssr.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": state.String()})
}

type responseWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wrote {
		rw.status = code
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wrote = true
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
