package app

import (
	"net/http"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/aliuyar1234/nr01desk/internal/catalog"
	"github.com/aliuyar1234/nr01desk/internal/config"
	"github.com/aliuyar1234/nr01desk/internal/dashboard"
	"github.com/aliuyar1234/nr01desk/internal/export"
	"github.com/aliuyar1234/nr01desk/internal/metrics"
	"github.com/aliuyar1234/nr01desk/internal/pricing"
	"github.com/aliuyar1234/nr01desk/internal/proposals"
	"github.com/aliuyar1234/nr01desk/internal/risk"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/aliuyar1234/nr01desk/internal/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// submitsPerMinute bounds anonymous questionnaire traffic per IP.
const submitsPerMinute = 30

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config, s *Services) *chi.Mux {
	r := chi.NewRouter()

	isProduction := !cfg.IsDev()
	inst := s.Survey.Instrument()
	auditor := s.Auditor
	uploadLimits := survey.UploadLimits{MaxBytes: cfg.MaxUploadBytes, MaxRows: cfg.MaxUploadRows}
	reminderAfter := time.Duration(cfg.ReminderAfterDays) * 24 * time.Hour

	origins := []string{cfg.BaseURL}
	if cfg.APIURL != "" && cfg.APIURL != cfg.BaseURL {
		origins = append(origins, cfg.APIURL)
	}

	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{apperrors.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.AuthMiddleware(cfg.JWTSecret))

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))
	if cfg.MetricsEnabled {
		r.With(MetricsAuthMiddleware(cfg.MetricsToken)).Handle("/metrics", metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	})

	// Public pages
	r.Group(func(r chi.Router) {
		r.Use(NoCacheMiddleware)
		r.Get("/login", web.HandleLoginPage(isProduction))
		r.With(CSRFMiddleware(), LoginRateLimitMiddleware()).
			Post("/login", auth.HandleLogin(s.Admins, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))
		r.With(CSRFMiddleware()).Post("/logout", auth.HandleLogout)

		r.With(SubmitRateLimitMiddleware(submitsPerMinute)).
			Get(survey.FormPath, web.HandleSurveyPage(s.Flow, inst, isProduction))
		r.With(SubmitRateLimitMiddleware(submitsPerMinute), CSRFMiddleware()).
			Post(survey.FormPath, web.HandleSurveySubmit(s.Flow, inst, auditor, isProduction))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())
		r.With(LoginRateLimitMiddleware()).
			Post("/login", auth.HandleLogin(s.Admins, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))
		r.With(auth.RequireAuth).Post("/logout", auth.HandleLogout)
	})

	// Respondent API. The token in the path is the only credential, so no
	// session or CSRF cookie is involved.
	r.Route("/api/v1/survey/{token}", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(NoCacheMiddleware)
		r.Use(SubmitRateLimitMiddleware(submitsPerMinute))
		r.Get("/", survey.HandleOpenSurvey(s.Flow))
		r.Post("/", survey.HandleSubmitSurvey(s.Flow, auditor))
	})

	// Admin API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(CSRFMiddleware())
		r.Use(auth.RequireAuth)

		r.Get("/instrument", survey.HandleInstrument(s.Survey))
		r.Get("/assessments", survey.HandleListAssessments(s.Survey))
		r.Get("/responses", survey.HandleListResponses(s.Survey))
		r.Get("/dashboard", dashboard.HandleReport(s.Dashboard))
		r.Get("/audit", audit.HandleList(s.AuditReader))
		r.Post("/reminders", survey.HandleSendReminders(s.Dispatcher, auditor, reminderAfter))

		r.Route("/invites", func(r chi.Router) {
			r.Post("/", survey.HandleCreateInvite(s.Survey, s.Dispatcher, auditor, cfg.BaseURL))
			r.Get("/", survey.HandleListInvites(s.Survey, cfg.BaseURL))
			r.Post("/bulk", survey.HandleBulkUpload(s.Survey, s.Dispatcher, auditor, uploadLimits))
			r.Get("/{invite_id}", survey.HandleGetInvite(s.Survey, cfg.BaseURL))
			r.Delete("/{invite_id}", survey.HandleDeleteInvite(s.Survey, auditor))
			r.Post("/{invite_id}/resend", survey.HandleResendInvite(s.Dispatcher, auditor, cfg.BaseURL))
		})

		r.Route("/services", func(r chi.Router) {
			r.Get("/", catalog.HandleList(s.Catalog))
			r.Post("/", catalog.HandleCreate(s.Catalog, auditor))
			r.Get("/categories", catalog.HandleCategories(s.Catalog))
			r.Get("/export.csv", catalog.HandleExportCSV(s.Catalog))
			r.Post("/import", catalog.HandleImportCSV(s.Catalog, auditor, cfg.MaxUploadBytes, cfg.MaxUploadRows))
			r.Get("/{service_id}", catalog.HandleGet(s.Catalog))
			r.Patch("/{service_id}", catalog.HandleUpdate(s.Catalog, auditor))
			r.Delete("/{service_id}", catalog.HandleDelete(s.Catalog, auditor))
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Post("/technical-hour", pricing.HandleTechnicalHour())
			r.Post("/item", pricing.HandleProposalItem(s.Pricing))
			r.Get("/parameters", pricing.HandleGetParameters(s.Pricing))
			r.Put("/parameters", pricing.HandleUpdateParameters(s.Pricing, auditor))
		})

		r.Route("/proposals", func(r chi.Router) {
			r.Get("/", proposals.HandleList(s.Proposals))
			r.Post("/", proposals.HandleCreate(s.Proposals, auditor))
			r.Get("/{proposal_id}", proposals.HandleGet(s.Proposals))
			r.Get("/{proposal_id}/pdf", proposals.HandlePDF(s.Proposals))
			r.Patch("/{proposal_id}/status", proposals.HandleUpdateStatus(s.Proposals, auditor))
			r.Delete("/{proposal_id}", proposals.HandleDelete(s.Proposals, auditor))
		})

		r.Route("/risk-assessments", func(r chi.Router) {
			r.Get("/", risk.HandleList(s.Risk))
			r.Post("/", risk.HandleCreate(s.Risk, auditor))
			r.Get("/{assessment_id}", risk.HandleGet(s.Risk))
			r.Patch("/{assessment_id}", risk.HandleUpdate(s.Risk, auditor))
			r.Delete("/{assessment_id}", risk.HandleDelete(s.Risk, auditor))
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/invites.csv", export.HandleInvitesCSV(s.Survey))
			r.Get("/responses.csv", export.HandleResponsesCSV(s.Survey, inst, auditor))
			r.Get("/departments.csv", export.HandleDepartmentsCSV(s.Dashboard))
			r.Get("/{collection}", export.HandleDocument(s.Exporter, auditor))
		})
	})

	// Admin pages
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAuthPage)
		r.Use(NoCacheMiddleware)

		r.Get("/", web.HandleDashboardPage(s.Survey, s.Dashboard, isProduction))
		r.Get("/invites", web.HandleInvitesPage(s.Survey, cfg.BaseURL, isProduction))
		r.Get("/services", web.HandleServicesPage(s.Catalog, isProduction))
		r.Get("/pricing", web.HandlePricingPage(s.Pricing, isProduction))
		r.Get("/proposals", web.HandleProposalsPage(s.Proposals, s.Catalog, isProduction))
		r.Get("/proposals/{proposal_id}", web.HandleProposalDetailPage(s.Proposals, isProduction))
		r.Get("/risk", web.HandleRiskPage(s.Risk, isProduction))
		r.Get("/risk/{assessment_id}", web.HandleRiskDetailPage(s.Risk, isProduction))
	})

	return r
}

// handleHealthz returns a simple liveness check
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz reports 503 until the database answers a ping.
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
