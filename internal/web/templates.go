package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/markup"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateData holds common data passed to all templates
type TemplateData struct {
	Title           string
	UserID          uuid.UUID
	IsAuthenticated bool
	CSRFToken       string
	Next            string
	Error           string
	Success         string
	Data            interface{}
}

// templates is the global template cache
var templates map[string]*template.Template

var funcs = template.FuncMap{
	"brl":     markup.BRL,
	"percent": markup.Percent,
	"num": func(v float64, digits int) string {
		return markup.Decimal(v, digits)
	},
	"dec": func(d decimal.Decimal) string {
		f, _ := d.Float64()
		return markup.Decimal(f, 2)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006")
	},
	"datetime": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Format("02/01/2006 15:04")
	},
}

var pages = []string{
	"login.html",
	"survey.html",
	"dashboard.html",
	"invites.html",
	"services.html",
	"proposals.html",
	"proposal_detail.html",
	"risk.html",
	"risk_detail.html",
	"pricing.html",
}

// InitTemplates parses and caches all templates
func InitTemplates() error {
	templates = make(map[string]*template.Template, len(pages))

	for _, page := range pages {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", page, err)
		}
		templates[page] = tmpl
	}

	log.Info().Int("count", len(templates)).Msg("Templates initialized")
	return nil
}

// RenderTemplate renders a template with the given data
func RenderTemplate(w http.ResponseWriter, r *http.Request, name string, data *TemplateData) {
	RenderTemplateStatus(w, r, http.StatusOK, name, data)
}

// RenderTemplateStatus renders a template with an explicit status code.
func RenderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, name string, data *TemplateData) {
	tmpl, ok := templates[name]
	if !ok {
		log.Error().Str("template", name).Msg("Template not found")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := tmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render template")
		return
	}
}
