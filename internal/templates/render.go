// Package templates handles HTML template rendering for Datastar SSE responses.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

//go:embed fragments/*.html pages/*.html
var embedded embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// css marks a server-built style string as safe for a style attribute
	"css": func(s string) template.CSS {
		return template.CSS(s)
	},
}

// Renderer manages HTML fragment and page templates.
type Renderer struct {
	templates *template.Template
	minifier  *minify.M
	mu        sync.RWMutex
}

// New creates a renderer from the embedded fragments and pages.
func New() (*Renderer, error) {
	return NewFS(embedded)
}

// NewFS creates a renderer from fragments/*.html and pages/*.html in fsys.
// Use os.DirFS to serve templates from disk during development.
func NewFS(fsys fs.FS) (*Renderer, error) {
	tmpl, err := parse(fsys)
	if err != nil {
		return nil, err
	}

	m := minify.New()
	m.AddFunc("text/html", html.Minify)

	return &Renderer{templates: tmpl, minifier: m}, nil
}

func parse(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, "fragments/*.html", "pages/*.html")
}

// Render renders a named template to a minified string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return r.minifier.String("text/html", buf.String())
}

// RenderToBuffer renders a named template to a buffer without minifying.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload reloads templates from fsys (useful for dev hot-reload).
func (r *Renderer) Reload(fsys fs.FS) error {
	tmpl, err := parse(fsys)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
