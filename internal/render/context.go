package render

import "html/template"

// ScriptLookup resolves an asset type to a script URL, or "" when unknown.
type ScriptLookup func(kind string) string

// Context is the per-request input to a render.
type Context struct {
	Title   string
	URL     string
	scripts ScriptLookup
}

// NewContext builds a render context. A nil lookup renders no scripts.
func NewContext(title, url string, scripts ScriptLookup) Context {
	return Context{Title: title, URL: url, scripts: scripts}
}

// Script returns an async script tag for the asset type, or nothing when the
// type has no URL configured.
func (c Context) Script(kind string) template.HTML {
	if c.scripts == nil {
		return ""
	}
	url := c.scripts(kind)
	if url == "" {
		return ""
	}
	return template.HTML(`<script src="` + template.HTMLEscapeString(url) + `" async></script>`) //nolint:gosec // url is escaped
}

// MapLookup adapts a static type->URL map to a ScriptLookup.
func MapLookup(m map[string]string) ScriptLookup {
	return func(kind string) string {
		return m[kind]
	}
}
