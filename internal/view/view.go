package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"memo-server/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	PageIndex    = "index"
	PageNew      = "new"
	PageEdit     = "edit"
	PageShow     = "show"
	PageBackup   = "backup"
	PageNotFound = "not_found"
	PageError    = "error"
)

var pages = []string{PageIndex, PageNew, PageEdit, PageShow, PageBackup, PageNotFound, PageError}

// Renderer holds one parsed template set per page, each sharing the layout.
type Renderer struct {
	templates map[string]*template.Template
}

func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"title": domain.Title,
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+page+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		templates[page] = t
	}

	return &Renderer{templates: templates}, nil
}

// Render executes page into a buffer first so a template error never
// leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data interface{}) error {
	t, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
