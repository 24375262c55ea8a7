package view

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/web"
)

// ErrUnknownTheme is returned for themes without a template.
var ErrUnknownTheme = errors.New("view: unknown theme")

// Theme selects the invoice layout.
type Theme string

const (
	ThemeMinimal      Theme = "minimal"
	ThemeProfessional Theme = "professional"
)

// ParseTheme maps a query value to a Theme, defaulting to minimal.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case "", ThemeMinimal:
		return ThemeMinimal, nil
	case ThemeProfessional:
		return ThemeProfessional, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTheme, s)
	}
}

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across page templates.
type TemplateData struct {
	Title       string
	CurrentPath string
	Data        any
}

// SurfaceOptions controls how the preview surface is rendered.
type SurfaceOptions struct {
	Theme Theme
	// Zoom scales the whole surface; used when rasterizing at more than 1x.
	Zoom float64
}

// Surface is the data handed to the invoice templates.
type Surface struct {
	Doc      invoice.Document
	Totals   invoice.Totals
	Theme    Theme
	Zoom     float64
	Messages []string
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(funcMap()).ParseFS(web.Templates,
		"templates/layouts/*.html",
		"templates/partials/*.html",
		"templates/pages/*.html",
		"templates/invoice/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"money": invoice.FormatMoney,
		"qty": func(v float64) string {
			s := invoice.FormatQuantity(v)
			s = strings.TrimRight(s, "0")
			return strings.TrimRight(s, ".")
		},
		"lineTotal": invoice.LineTotal,
		"longDate": func(iso string) string {
			t, err := invoice.ParseDate(iso)
			if err != nil {
				return iso
			}
			return t.Format("January 2, 2006")
		},
		"percent": func(v float64) string {
			s := fmt.Sprintf("%.2f", v)
			s = strings.TrimRight(s, "0")
			return strings.TrimRight(s, ".") + "%"
		},
		"isPercent": func(t invoice.DiscountType) bool { return t == invoice.DiscountPercent },
		"zoomCSS": func(z float64) template.CSS {
			if z <= 1 {
				return ""
			}
			return template.CSS(fmt.Sprintf("zoom: %g;", z))
		},
	}
}

// Render executes a named page template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// RenderSurface writes the standalone preview document for doc.
func (e *Engine) RenderSurface(w io.Writer, doc invoice.Document, totals invoice.Totals, opts SurfaceOptions) error {
	if e == nil || e.templates == nil {
		return fmt.Errorf("template engine not initialised")
	}
	theme := opts.Theme
	if theme == "" {
		theme = ThemeMinimal
	}
	name := "invoice/" + string(theme)
	if e.templates.Lookup(name) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, theme)
	}
	return e.templates.ExecuteTemplate(w, name, Surface{
		Doc:      doc,
		Totals:   totals,
		Theme:    theme,
		Zoom:     opts.Zoom,
		Messages: invoice.Validate(doc),
	})
}

// SurfaceHTML renders the preview into a string.
func (e *Engine) SurfaceHTML(doc invoice.Document, totals invoice.Totals, opts SurfaceOptions) (string, error) {
	buf := &bytes.Buffer{}
	if err := e.RenderSurface(buf, doc, totals, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EditorPage feeds the editor shell page.
type EditorPage struct {
	Preview  string
	Saved    []string
	Theme    Theme
	Messages []string
}
