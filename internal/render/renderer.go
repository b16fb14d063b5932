// Package render turns a server bundle and an HTML shell into a Renderer that
// produces full pages per request.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNoEntry is returned when the bundle does not name a usable entry.
var ErrNoEntry = errors.New("bundle entry missing")

const tracerName = "github.com/JakeFAU/blog-ssr/internal/render"

// Options tunes the component cache. A shared Cache outlives renderers
// across rebuilds and is purged by each New; without one, New allocates a
// cache from the size and TTL.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Cache     *Cache
}

// Renderer renders pages. It is immutable after New and safe for
// concurrent use.
type Renderer struct {
	entry      string
	app        *template.Template
	shell      *template.Template
	cache      *Cache
	generation uint64
}

type shellData struct {
	Title string
	URL   string
}

// New parses the bundle and shell.
func New(bundle Bundle, shellSrc string, opts Options) (*Renderer, error) {
	if bundle.Entry == "" {
		return nil, ErrNoEntry
	}
	if _, ok := bundle.Files[bundle.Entry]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoEntry, bundle.Entry)
	}

	app := template.New("bundle").Funcs(placeholderFuncs())
	names := make([]string, 0, len(bundle.Files))
	for name := range bundle.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := app.New(name).Parse(bundle.Files[name]); err != nil {
			return nil, fmt.Errorf("parse bundle file %q: %w", name, err)
		}
	}

	head, tail := splitShell(shellSrc)
	shell := template.New("shell").Funcs(placeholderFuncs())
	if _, err := shell.New("head").Parse(head); err != nil {
		return nil, fmt.Errorf("parse template head: %w", err)
	}
	if _, err := shell.New("tail").Parse(tail); err != nil {
		return nil, fmt.Errorf("parse template tail: %w", err)
	}

	cache := opts.Cache
	if cache == nil {
		cache = NewCache(opts.CacheSize, opts.CacheTTL)
	}

	return &Renderer{
		entry:      bundle.Entry,
		app:        app,
		shell:      shell,
		cache:      cache,
		generation: cache.nextGeneration(),
	}, nil
}

// LoadFromFiles builds a Renderer from the bundle and template on disk.
func LoadFromFiles(bundlePath, templatePath string, opts Options) (*Renderer, error) {
	bundle, err := LoadBundle(bundlePath)
	if err != nil {
		return nil, err
	}
	shell, err := LoadTemplate(templatePath)
	if err != nil {
		return nil, err
	}
	return New(bundle, shell, opts)
}

// RenderToString renders the full page for rc.
func (r *Renderer) RenderToString(ctx context.Context, rc Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("render %s: %w", rc.URL, err)
	}
	_, span := otel.Tracer(tracerName).Start(ctx, "render.page")
	span.SetAttributes(attribute.String("render.url", rc.URL))
	defer span.End()

	out, err := r.render(rc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return "", err
	}
	return out, nil
}

func (r *Renderer) render(rc Context) (string, error) {
	app, err := r.app.Clone()
	if err != nil {
		return "", fmt.Errorf("clone bundle: %w", err)
	}
	app.Funcs(template.FuncMap{
		"script": rc.Script,
		"cached": r.cachedFunc(app),
	})
	shell, err := r.shell.Clone()
	if err != nil {
		return "", fmt.Errorf("clone template: %w", err)
	}
	shell.Funcs(template.FuncMap{"script": rc.Script})

	var buf bytes.Buffer
	data := shellData{Title: rc.Title, URL: rc.URL}
	if err := shell.ExecuteTemplate(&buf, "head", data); err != nil {
		return "", fmt.Errorf("execute template head: %w", err)
	}
	if err := app.ExecuteTemplate(&buf, r.entry, rc); err != nil {
		return "", fmt.Errorf("render %s: %w", r.entry, err)
	}
	if err := shell.ExecuteTemplate(&buf, "tail", data); err != nil {
		return "", fmt.Errorf("execute template tail: %w", err)
	}
	return buf.String(), nil
}

// cachedFunc backs the `cached "key" "component" data` template function.
func (r *Renderer) cachedFunc(set *template.Template) func(key, name string, data any) (template.HTML, error) {
	return func(key, name string, data any) (template.HTML, error) {
		cacheKey := scopedKey(r.generation, name+"::"+key)
		if html, ok := r.cache.get(cacheKey); ok {
			return html, nil
		}
		var buf bytes.Buffer
		if err := set.ExecuteTemplate(&buf, name, data); err != nil {
			return "", fmt.Errorf("render component %s: %w", name, err)
		}
		html := template.HTML(buf.String()) //nolint:gosec // produced by html/template
		r.cache.add(cacheKey, html)
		return html, nil
	}
}

// CacheLen reports the number of cached component renders.
func (r *Renderer) CacheLen() int {
	return r.cache.Len()
}

// placeholderFuncs lets templates parse before per-request funcs are bound.
func placeholderFuncs() template.FuncMap {
	return template.FuncMap{
		"script": func(string) template.HTML { return "" },
		"cached": func(string, string, any) (template.HTML, error) { return "", nil },
	}
}
