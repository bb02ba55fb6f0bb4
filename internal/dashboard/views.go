package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/blikh/co2-dashboard/internal/groupcard"
	"github.com/blikh/co2-dashboard/internal/session"
)

//go:embed web
var webFS embed.FS

type cardView struct {
	*groupcard.Card
	ExpandURL string
	ReturnTo  string
}

type indexView struct {
	User  session.State
	Cards []cardView
}

type groupView struct {
	User    session.State
	Card    cardView
	SelfURL string
}

type loginView struct {
	User    session.State
	Error   bool
	Expired bool
}

type errorView struct {
	User    session.State
	Message string
}

var pageNames = []string{"index", "group", "login", "error"}

type pages struct {
	tmpl map[string]*template.Template
}

var funcs = template.FuncMap{
	"join":     strings.Join,
	"grams":    func(v float64) string { return fmt.Sprintf("%.3f", v) },
	"sizeKB":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"pathPart": url.PathEscape,
}

func loadPages() (*pages, error) {
	p := &pages{tmpl: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(webFS,
			"web/templates/layout.html",
			"web/templates/card.html",
			"web/templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("dashboard: parse %s template: %w", name, err)
		}
		p.tmpl[name] = t
	}
	return p, nil
}

// render executes into a buffer first so a template failure never leaves
// a half-written page behind.
func (p *pages) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := p.tmpl[name].Execute(&buf, data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
