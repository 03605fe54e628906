package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
)

//go:embed templates
var templateFS embed.FS

// Templates returns the embedded template tree rooted at templates/.
func Templates() fs.FS {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic("handler: embedded templates missing: " + err.Error())
	}
	return sub
}

// Renderer manages template parsing and rendering with one isolated
// template set per page.
//
// Templates are organized as:
//   - layouts/app.html - the base layout, defines "app"
//   - components/*.html - reusable components shared by every page
//   - pages/*.html - one file per screen, each defines "content"
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewRenderer parses every page of fsys.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		logger:    logger,
	}
	if err := r.load(fsys); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) load(fsys fs.FS) error {
	components, err := fs.Glob(fsys, "components/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob components: %w", err)
	}

	base, err := template.New("app").Funcs(TemplateFuncs()).ParseFS(fsys, "layouts/app.html")
	if err != nil {
		return fmt.Errorf("failed to parse app layout: %w", err)
	}
	if len(components) > 0 {
		base, err = base.ParseFS(fsys, components...)
		if err != nil {
			return fmt.Errorf("failed to parse components: %w", err)
		}
	}

	pages, err := fs.Glob(fsys, "pages/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob pages: %w", err)
	}
	for _, page := range pages {
		pageTmpl, err := base.Clone()
		if err != nil {
			return fmt.Errorf("failed to clone layout for %s: %w", page, err)
		}
		pageTmpl, err = pageTmpl.ParseFS(fsys, page)
		if err != nil {
			return fmt.Errorf("failed to parse page %s: %w", page, err)
		}

		// Store as "clients", "sales", etc.
		name := strings.TrimSuffix(path.Base(page), path.Ext(page))
		r.templates[name] = pageTmpl
	}

	r.logger.Info("templates loaded", "count", len(r.templates))
	return nil
}

// Render renders a page to an io.Writer.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "app", data)
}

// RenderHTTP renders a page directly to an http.ResponseWriter.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, name string, data any) {
	// Render to buffer first to catch errors before writing headers
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", "name", name, "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// ListTemplates returns the loaded page names, sorted.
func (r *Renderer) ListTemplates() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
