// Package handler contains the HTTP handlers: the server-rendered pages, the
// OAuth flow, and the JSON /api/github endpoints the pages call.
//
// Handlers parse the request, call a service (or the dashboard page
// controller), and write the response. Business rules live elsewhere.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/integration-dashboard/internal/dashboard"
)

// Page templates. Each is parsed together with base.html, which defines the
// "base" layout and calls {{template "content" .}}.
const (
	pageSignIn       = "sign_in"
	pageIntegrations = "integrations"
	pageGitHub       = "github"
)

var pageNames = []string{pageSignIn, pageIntegrations, pageGitHub}

// pageData is what every page template receives. Pages read only the fields
// they need.
type pageData struct {
	Title   string
	Refresh int // seconds; zero means no <meta http-equiv="refresh">
	Login   string
	Flashes []string

	LoginURL     string // sign_in
	GitHubLinked bool   // integrations
	ConnectURL   string // integrations

	View dashboard.View // github
}

// Renderer holds the parsed templates, one set per page.
//
// TEMPLATE SETS:
// Every page defines "content", so the pages cannot share one set. Each page
// gets its own clone of the layout instead.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
}

// NewRenderer parses base.html plus every page template from fsys.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{
		pages:  make(map[string]*template.Template, len(pageNames)),
		logger: logger,
	}

	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, "base.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}

	return r, nil
}

// render executes page into a buffer first, so a template error still
// produces a clean 500 instead of half a page.
func (r *Renderer) render(w http.ResponseWriter, status int, page string, data pageData) {
	tmpl, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown page template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		r.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
