package ssr

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/blog-ssr/internal/hash/sha256"
	"github.com/JakeFAU/blog-ssr/internal/logging"
	"github.com/JakeFAU/blog-ssr/internal/metrics"
	"github.com/JakeFAU/blog-ssr/internal/render"
)

// Options configures a Dispatcher.
type Options struct {
	Title       string
	Scripts     map[string]string
	Development bool
	Logger      *zap.Logger
}

// Dispatcher renders the requested URL with the active renderer.
type Dispatcher struct {
	holder  *Holder
	title   string
	scripts render.ScriptLookup
	dev     bool
	hasher  *sha256.Hasher
	logger  *zap.Logger
}

// NewDispatcher builds a Dispatcher reading renderers from holder.
func NewDispatcher(holder *Holder, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scripts := make(map[string]string, len(opts.Scripts))
	for k, v := range opts.Scripts {
		scripts[k] = v
	}
	return &Dispatcher{
		holder:  holder,
		title:   opts.Title,
		scripts: render.MapLookup(scripts),
		dev:     opts.Development,
		hasher:  sha256.New(),
		logger:  logger,
	}
}

// NewContext builds the render context for r. The URL is the raw request
// URI so the client router sees the query string too.
func (d *Dispatcher) NewContext(r *http.Request) render.Context {
	url := r.RequestURI
	if url == "" {
		url = r.URL.RequestURI()
	}
	return render.NewContext(d.title, url, d.scripts)
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := logging.FromContext(r.Context(), d.logger)

	renderer := d.holder.Load()
	if renderer == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	rc := d.NewContext(r)
	html, err := renderer.RenderToString(r.Context(), rc)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveRender(metrics.ResultError, elapsed)
		logger.Error("render failed", zap.String("url", rc.URL), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	metrics.ObserveRender(metrics.ResultOK, elapsed)

	body := []byte(html)
	etag := d.hasher.ETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			logger.Debug("write page failed", zap.Error(err))
		}
	}

	if d.dev {
		logger.Info("whole request",
			zap.String("url", rc.URL),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
