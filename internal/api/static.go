package api

import (
	"net/http"
	"path"
)

// staticFiles serves regular files found under any of its roots and hands
// everything else to the next handler.
type staticFiles struct {
	roots []http.Dir
}

func newStaticFiles(dirs []string) staticFiles {
	roots := make([]http.Dir, 0, len(dirs))
	for _, d := range dirs {
		if d != "" {
			roots = append(roots, http.Dir(d))
		}
	}
	return staticFiles{roots: roots}
}

func (s staticFiles) fallthroughTo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.serve(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s staticFiles) serve(w http.ResponseWriter, r *http.Request) bool {
	name := path.Clean("/" + r.URL.Path)
	if name == "/" {
		return false
	}
	for _, root := range s.roots {
		f, err := root.Open(name)
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			_ = f.Close()
			continue
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		_ = f.Close()
		return true
	}
	return false
}
