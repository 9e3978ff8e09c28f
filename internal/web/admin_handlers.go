package web

import (
	"errors"
	"net/http"
	"sort"

	"github.com/aliuyar1234/nr01desk/internal/catalog"
	"github.com/aliuyar1234/nr01desk/internal/dashboard"
	"github.com/aliuyar1234/nr01desk/internal/pricing"
	"github.com/aliuyar1234/nr01desk/internal/proposals"
	"github.com/aliuyar1234/nr01desk/internal/risk"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HandleDashboardPage handles GET /admin
func HandleDashboardPage(svc *survey.Service, reports *dashboard.Service, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()
		filter := dashboard.Filter{AssessmentID: q.Get("assessment_id"), Department: q.Get("department")}

		data := newPage(w, r, "Painel", isProduction)
		if data == nil {
			return
		}

		assessments, err := svc.ListAssessments(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list assessments")
			data.Error = "Falha ao carregar avaliações"
		}

		var report *dashboard.Report
		if filter.AssessmentID != "" {
			report, err = reports.Build(ctx, filter)
			if err != nil {
				log.Error().Err(err).Str("assessment_id", filter.AssessmentID).Msg("Failed to build dashboard")
				data.Error = "Falha ao carregar o painel"
			}
		}

		data.Data = map[string]interface{}{
			"Filter":      filter,
			"Assessments": assessments,
			"Report":      report,
			"Departments": svc.Instrument().Departments,
		}
		RenderTemplate(w, r, "dashboard.html", data)
	}
}

// InviteRow pairs an invite with its respondent link.
type InviteRow struct {
	survey.Invite
	Status survey.InviteStatus
	Link   string
}

// HandleInvitesPage handles GET /admin/invites
func HandleInvitesPage(svc *survey.Service, baseURL string, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := survey.InviteFilter{
			AssessmentID: q.Get("assessment_id"),
			Department:   q.Get("department"),
			Status:       survey.InviteStatus(q.Get("status")),
		}
		if filter.Status != "" && !filter.Status.IsValid() {
			filter.Status = ""
		}

		data := newPage(w, r, "Convites", isProduction)
		if data == nil {
			return
		}

		invites, err := svc.ListInvites(r.Context(), filter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list invites")
			data.Error = "Falha ao carregar convites"
		}
		rows := make([]InviteRow, 0, len(invites))
		for _, inv := range invites {
			rows = append(rows, InviteRow{Invite: inv, Status: inv.Status(), Link: survey.InviteLink(baseURL, inv.Token)})
		}

		data.Data = map[string]interface{}{
			"Filter":      filter,
			"Invites":     rows,
			"Departments": svc.Instrument().Departments,
		}
		RenderTemplate(w, r, "invites.html", data)
	}
}

// HandleServicesPage handles GET /admin/services
func HandleServicesPage(c *catalog.Catalog, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		category := r.URL.Query().Get("category")

		data := newPage(w, r, "Serviços", isProduction)
		if data == nil {
			return
		}

		var (
			services []catalog.Service
			err      error
		)
		if category != "" {
			services, err = c.ListByCategory(ctx, category)
		} else {
			services, err = c.List(ctx)
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to list services")
			data.Error = "Falha ao carregar serviços"
		}
		categories, err := c.Categories(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list categories")
		}

		data.Data = map[string]interface{}{
			"Category":   category,
			"Categories": categories,
			"Services":   services,
		}
		RenderTemplate(w, r, "services.html", data)
	}
}

// HandleProposalsPage handles GET /admin/proposals
func HandleProposalsPage(p *proposals.Service, c *catalog.Catalog, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()
		filter := proposals.ListFilter{Client: q.Get("client")}
		if raw := q.Get("status"); raw != "" {
			if status, err := proposals.ParseStatus(raw); err == nil {
				filter.Status = status
			}
		}

		data := newPage(w, r, "Propostas", isProduction)
		if data == nil {
			return
		}

		list, err := p.List(ctx, filter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list proposals")
			data.Error = "Falha ao carregar propostas"
		}
		services, err := c.List(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list services")
		}

		data.Data = map[string]interface{}{
			"Filter":    filter,
			"Proposals": list,
			"Services":  services,
			"Statuses":  proposals.Statuses(),
			"Regimes":   pricing.Regimes(),
		}
		RenderTemplate(w, r, "proposals.html", data)
	}
}

// HandleProposalDetailPage handles GET /admin/proposals/{proposal_id}. The
// page is laid out for printing.
func HandleProposalDetailPage(p *proposals.Service, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "proposal_id"))
		if err != nil {
			http.Error(w, "Invalid proposal ID", http.StatusBadRequest)
			return
		}

		prop, err := p.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, proposals.ErrProposalNotFound) {
				http.Error(w, "Proposal not found", http.StatusNotFound)
				return
			}
			log.Error().Err(err).Msg("Failed to get proposal")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := newPage(w, r, "Proposta - "+prop.ClientName, isProduction)
		if data == nil {
			return
		}
		data.Data = map[string]interface{}{
			"Proposal": prop,
			"Statuses": proposals.Statuses(),
		}
		RenderTemplate(w, r, "proposal_detail.html", data)
	}
}

// HandleRiskPage handles GET /admin/risk
func HandleRiskPage(s *risk.Service, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := risk.ListFilter{Client: q.Get("client"), Sector: q.Get("sector")}
		if raw := q.Get("level"); raw != "" {
			if level, ok := risk.ParseLevel(raw); ok {
				filter.Level = level
			}
		}

		data := newPage(w, r, "Avaliações de Risco", isProduction)
		if data == nil {
			return
		}

		list, err := s.List(r.Context(), filter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list risk assessments")
			data.Error = "Falha ao carregar avaliações"
		}

		data.Data = map[string]interface{}{
			"Filter":      filter,
			"Assessments": list,
			"Levels":      risk.Levels(),
			"Factors":     risk.DefaultFactors(),
			"MaxFactor":   risk.MaxFactor,
		}
		RenderTemplate(w, r, "risk.html", data)
	}
}

// HandleRiskDetailPage handles GET /admin/risk/{assessment_id}
func HandleRiskDetailPage(s *risk.Service, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "assessment_id"))
		if err != nil {
			http.Error(w, "Invalid assessment ID", http.StatusBadRequest)
			return
		}

		a, err := s.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, risk.ErrAssessmentNotFound) {
				http.Error(w, "Assessment not found", http.StatusNotFound)
				return
			}
			log.Error().Err(err).Msg("Failed to get risk assessment")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := newPage(w, r, "Avaliação - "+a.ClientName, isProduction)
		if data == nil {
			return
		}
		data.Data = map[string]interface{}{
			"Assessment": a,
			"Factors":    factorRows(a.Factors),
		}
		RenderTemplate(w, r, "risk_detail.html", data)
	}
}

// FactorRow is one scored factor with its display label.
type FactorRow struct {
	Label string
	Value int
}

// factorRows lists the known factors in form order, then any others by key.
func factorRows(factors risk.Factors) []FactorRow {
	rows := make([]FactorRow, 0, len(factors))
	known := map[string]bool{}
	for _, f := range risk.DefaultFactors() {
		known[f.Key] = true
		if v, ok := factors[f.Key]; ok {
			rows = append(rows, FactorRow{Label: f.Label, Value: v})
		}
	}
	var extra []string
	for k := range factors {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		rows = append(rows, FactorRow{Label: k, Value: factors[k]})
	}
	return rows
}

// HandlePricingPage handles GET /admin/pricing
func HandlePricingPage(store *pricing.Store, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := newPage(w, r, "Precificação", isProduction)
		if data == nil {
			return
		}

		params, err := store.Get(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to load pricing parameters")
			data.Error = "Falha ao carregar parâmetros"
			defaults := pricing.DefaultParameters()
			params = &defaults
		}
		hour, err := params.TechnicalHour()
		if err != nil {
			log.Warn().Err(err).Msg("Pricing parameters yield no technical hour")
		}

		data.Data = map[string]interface{}{
			"Params":        params,
			"TechnicalHour": hour,
			"Regimes":       pricing.Regimes(),
		}
		RenderTemplate(w, r, "pricing.html", data)
	}
}
