package ssr

import (
	"sync/atomic"

	"github.com/JakeFAU/blog-ssr/internal/metrics"
	"github.com/JakeFAU/blog-ssr/internal/render"
)

// Holder publishes the active renderer to concurrent readers.
type Holder struct {
	current atomic.Pointer[render.Renderer]
}

// NewHolder returns an empty holder.
func NewHolder() *Holder {
	metrics.SetRendererReady(false)
	return &Holder{}
}

// Load returns the active renderer or nil before the first build.
func (h *Holder) Load() *render.Renderer {
	return h.current.Load()
}

// Store replaces the active renderer. Storing nil is ignored.
func (h *Holder) Store(r *render.Renderer) {
	if r == nil {
		return
	}
	h.current.Store(r)
	metrics.SetRendererReady(true)
}

// BuildFunc produces a fresh renderer from the current bundle and template.
type BuildFunc func() (*render.Renderer, error)

// Rebuild runs build and installs the result. On failure the previous
// renderer, if any, stays active.
func (h *Holder) Rebuild(build BuildFunc) error {
	r, err := build()
	metrics.ObserveRendererBuild(err)
	if err != nil {
		return err
	}
	h.Store(r)
	return nil
}
