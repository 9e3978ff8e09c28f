package export

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/aliuyar1234/nr01desk/internal/dashboard"
	"github.com/aliuyar1234/nr01desk/internal/instrument"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func attachment(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func csvName(prefix string, r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("assessment_id")); id != "" {
		return prefix + "_" + id + ".csv"
	}
	return prefix + ".csv"
}

// HandleInvitesCSV handles GET /api/v1/export/invites.csv
func HandleInvitesCSV(surveys SurveyLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		invites, err := surveys.ListInvites(r.Context(), survey.InviteFilter{
			AssessmentID: q.Get("assessment_id"),
			Department:   q.Get("department"),
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to list invites for export")
			apperrors.WriteInternalError(w, r, "Failed to export invites")
			return
		}

		var buf bytes.Buffer
		if err := WriteInvitesCSV(&buf, invites); err != nil {
			log.Error().Err(err).Msg("Failed to write invites CSV")
			apperrors.WriteInternalError(w, r, "Failed to export invites")
			return
		}
		attachment(w, "text/csv; charset=utf-8", csvName("convites", r), buf.Bytes())
	}
}

// HandleResponsesCSV handles GET /api/v1/export/responses.csv
func HandleResponsesCSV(surveys SurveyLister, inst *instrument.Instrument, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()
		filter := survey.ResponseFilter{
			AssessmentID: q.Get("assessment_id"),
			Department:   q.Get("department"),
		}

		responses, err := surveys.ListResponses(ctx, filter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list responses for export")
			apperrors.WriteInternalError(w, r, "Failed to export responses")
			return
		}

		var buf bytes.Buffer
		if err := WriteResponsesCSV(&buf, inst, responses); err != nil {
			log.Error().Err(err).Msg("Failed to write responses CSV")
			apperrors.WriteInternalError(w, r, "Failed to export responses")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventResponsesExported, audit.EntityResponse, filter.AssessmentID, map[string]interface{}{
			"format":     "csv",
			"department": filter.Department,
			"count":      len(responses),
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		attachment(w, "text/csv; charset=utf-8", csvName("respostas", r), buf.Bytes())
	}
}

// HandleDepartmentsCSV handles GET /api/v1/export/departments.csv
func HandleDepartmentsCSV(reports *dashboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		report, err := reports.Build(r.Context(), dashboard.Filter{AssessmentID: q.Get("assessment_id")})
		if err != nil {
			log.Error().Err(err).Msg("Failed to build dashboard for export")
			apperrors.WriteInternalError(w, r, "Failed to export departments")
			return
		}

		var buf bytes.Buffer
		if err := WriteDepartmentsCSV(&buf, report.Departments); err != nil {
			log.Error().Err(err).Msg("Failed to write departments CSV")
			apperrors.WriteInternalError(w, r, "Failed to export departments")
			return
		}
		attachment(w, "text/csv; charset=utf-8", csvName("departamentos", r), buf.Bytes())
	}
}

// HandleDocument handles GET /api/v1/export/{collection}, returning the same
// JSON document the export command writes.
func HandleDocument(e *Exporter, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		c, ok := CollectionByKey(chi.URLParam(r, "collection"))
		if !ok {
			apperrors.WriteNotFound(w, r, "Unknown collection")
			return
		}

		b, err := e.Snapshot(ctx)
		if err != nil {
			log.Error().Err(err).Str("collection", c.Key).Msg("Failed to load export snapshot")
			apperrors.WriteInternalError(w, r, "Failed to export collection")
			return
		}

		var buf bytes.Buffer
		if err := WriteDocument(&buf, c, b.records(c)); err != nil {
			log.Error().Err(err).Str("collection", c.Key).Msg("Failed to encode export document")
			apperrors.WriteInternalError(w, r, "Failed to export collection")
			return
		}

		if c == Responses {
			if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventResponsesExported, audit.EntityResponse, "", map[string]interface{}{
				"format":          "json",
				"count":           len(b.Responses),
				"answers_omitted": b.AnswersOmitted,
			}); err != nil {
				log.Error().Err(err).Msg("Failed to log audit event")
			}
		}

		attachment(w, "application/json", c.File, buf.Bytes())
	}
}
