// Package spa serves the admin single-page application with history-mode
// fallback: client-side routes under /admin resolve to the admin entry file.
package spa

import (
	"net/http"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Prefix is the path owned by the admin application.
const Prefix = "/admin"

// Rule rewrites request paths matching From to the file To.
type Rule struct {
	From *regexp.Regexp
	To   string
}

// DefaultRules send the admin root and login screen to the admin entry.
func DefaultRules(index string) []Rule {
	return []Rule{
		{From: regexp.MustCompile(`^/admin$`), To: index},
		{From: regexp.MustCompile(`^/admin/login`), To: index},
	}
}

// Config configures a Fallback.
type Config struct {
	Dir    string
	Index  string
	Rules  []Rule
	Logger *zap.Logger
}

// Fallback rewrites admin routes and serves the rewritten file from Dir.
type Fallback struct {
	index  string
	rules  []Rule
	files  http.Handler
	logger *zap.Logger
}

// New builds a Fallback. Nil rules use DefaultRules.
func New(cfg Config) *Fallback {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	index := cfg.Index
	if index == "" {
		index = "/admin.html"
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules(index)
	}
	return &Fallback{
		index:  index,
		rules:  rules,
		files:  http.FileServer(http.Dir(cfg.Dir)),
		logger: logger,
	}
}

// Matches reports whether p belongs to the admin application.
func Matches(p string) bool {
	return p == Prefix || strings.HasPrefix(p, Prefix+"/")
}

// Rewrite returns the file path served for p. The first matching rule wins;
// otherwise the index is used. Paths whose last segment has a dot, and
// requests that do not accept HTML, keep their own path.
func (f *Fallback) Rewrite(r *http.Request) string {
	p := r.URL.Path
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return p
	}
	if !acceptsHTML(r.Header.Get("Accept")) {
		return p
	}
	for _, rule := range f.rules {
		if rule.From.MatchString(p) {
			return rule.To
		}
	}
	if strings.Contains(path.Base(p), ".") {
		return p
	}
	return f.index
}

func (f *Fallback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := f.Rewrite(r)
	if target != r.URL.Path {
		f.logger.Debug("rewriting admin path",
			zap.String("method", r.Method),
			zap.String("from", r.URL.Path),
			zap.String("to", target),
		)
	}
	req := r.Clone(r.Context())
	req.URL.Path = target
	req.URL.RawPath = ""
	f.files.ServeHTTP(w, req)
}

// acceptsHTML treats a missing Accept header as a browser navigation.
func acceptsHTML(accept string) bool {
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}
