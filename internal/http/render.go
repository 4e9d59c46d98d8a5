package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"lifehub/internal/core"
)

const layoutFile = "templates/layout.html"

var pageFiles = []string{
	"budget.html",
	"journal.html",
	"book.html",
	"chapter.html",
	"placeholder.html",
	"signin.html",
	"error.html",
}

// navItem is one entry of the top navigation.
type navItem struct {
	Label string
	Href  string
}

var navItems = []navItem{
	{Label: "Budget", Href: "/budget"},
	{Label: "Book Journal", Href: "/journal"},
	{Label: "Planner", Href: "/planner"},
	{Label: "Calendar", Href: "/calendar"},
	{Label: "Tools", Href: "/tools"},
}

// page is what the layout sees; Content is the page-specific data.
type page struct {
	Title   string
	Active  string
	User    *core.User
	Nav     []navItem
	Content any
}

type renderer struct {
	pages  map[string]*template.Template
	policy *bluemonday.Policy
}

func newRenderer(fsys fs.FS) (*renderer, error) {
	policy := bluemonday.UGCPolicy()
	r := &renderer{pages: make(map[string]*template.Template), policy: policy}

	base, err := template.New("layout.html").Funcs(r.funcs()).ParseFS(fsys, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	for _, name := range pageFiles {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		t, err := clone.ParseFS(fsys, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"money": formatMoney,
		"label": func(c core.Category) string { return c.Label() },
		"date":  func(t time.Time) string { return t.Local().Format("Jan 2, 2006") },
		"pct":   func(f float64) string { return fmt.Sprintf("%.1f", f) },
		"safeContent": func(html string) template.HTML {
			return template.HTML(r.policy.Sanitize(html))
		},
	}
}

// render executes into a buffer first so a template error never leaves a half-written page.
func (r *renderer) render(w http.ResponseWriter, status int, name string, data page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	if data.Nav == nil {
		data.Nav = navItems
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
