package render

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// OutletMarker is where the rendered application is spliced into the shell.
const OutletMarker = "<!--ssr-outlet-->"

// Bundle is the server build of the client application: a set of named
// html/template sources plus the entry component executed per request.
type Bundle struct {
	Entry string            `json:"entry"`
	Files map[string]string `json:"files"`
}

// ParseBundle decodes a bundle document and checks that its entry exists.
func ParseBundle(data []byte) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Entry == "" {
		return Bundle{}, fmt.Errorf("%w: bundle has no entry", ErrNoEntry)
	}
	if _, ok := b.Files[b.Entry]; !ok {
		return Bundle{}, fmt.Errorf("%w: %q not in bundle files", ErrNoEntry, b.Entry)
	}
	return b, nil
}

// LoadBundle reads and parses the bundle at path.
func LoadBundle(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("read bundle: %w", err)
	}
	return ParseBundle(data)
}

// LoadTemplate reads the HTML shell at path.
func LoadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

// splitShell cuts the shell around the outlet. Without an outlet the app is
// placed before the last </body>, or at the very end.
func splitShell(src string) (head, tail string) {
	if i := strings.Index(src, OutletMarker); i >= 0 {
		return src[:i], src[i+len(OutletMarker):]
	}
	if i := strings.LastIndex(strings.ToLower(src), "</body>"); i >= 0 {
		return src[:i], src[i:]
	}
	return src, ""
}
