package ssr

import (
	"net/http"
)

// State is the readiness of the page pipeline.
type State int

const (
	NotReady State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "waiting"
}

// Gate holds page requests back until a renderer exists.
type Gate struct {
	holder      *Holder
	placeholder string
}

// NewGate builds a gate answering with placeholder while not ready.
func NewGate(holder *Holder, placeholder string) *Gate {
	return &Gate{holder: holder, placeholder: placeholder}
}

// State reports whether a renderer is installed.
func (g *Gate) State() State {
	if g.holder.Load() == nil {
		return NotReady
	}
	return Ready
}

// Middleware answers 200 with the placeholder text while NotReady and passes
// through once Ready.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.State() == Ready {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(g.placeholder))
	})
}
