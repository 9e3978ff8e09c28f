package risk

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HandleCreate handles POST /api/v1/risk-assessments
func HandleCreate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var in Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		a, err := svc.Create(ctx, in)
		if err != nil {
			writeRiskError(w, r, err, "Failed to create risk assessment")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventRiskCreated, audit.EntityRisk, a.ID.String(), map[string]interface{}{
			"client_name": a.ClientName,
			"risk_level":  string(a.RiskLevel),
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, a)
	}
}

// HandleList handles GET /api/v1/risk-assessments?client=&sector=&level=
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{Client: q.Get("client"), Sector: q.Get("sector")}
		if raw := q.Get("level"); raw != "" {
			level, ok := ParseLevel(raw)
			if !ok {
				apperrors.WriteBadRequest(w, r, "Invalid risk level")
				return
			}
			filter.Level = level
		}

		assessments, err := svc.List(r.Context(), filter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list risk assessments")
			apperrors.WriteInternalError(w, r, "Failed to list risk assessments")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, assessments)
	}
}

// HandleGet handles GET /api/v1/risk-assessments/{assessment_id}
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "assessment_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid assessment ID")
			return
		}

		a, err := svc.Get(r.Context(), id)
		if err != nil {
			writeRiskError(w, r, err, "Failed to get risk assessment")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, a)
	}
}

// HandleUpdate handles PATCH /api/v1/risk-assessments/{assessment_id}
func HandleUpdate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := uuid.Parse(chi.URLParam(r, "assessment_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid assessment ID")
			return
		}

		var patch Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		a, err := svc.Update(ctx, id, patch)
		if err != nil {
			writeRiskError(w, r, err, "Failed to update risk assessment")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventRiskUpdated, audit.EntityRisk, id.String(), nil); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, a)
	}
}

// HandleDelete handles DELETE /api/v1/risk-assessments/{assessment_id}
func HandleDelete(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := uuid.Parse(chi.URLParam(r, "assessment_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid assessment ID")
			return
		}

		if err := svc.Delete(ctx, id); err != nil {
			writeRiskError(w, r, err, "Failed to delete risk assessment")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventRiskDeleted, audit.EntityRisk, id.String(), nil); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func writeRiskError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr ValidationError
	switch {
	case errors.As(err, &verr):
		apperrors.WriteValidationError(w, r, "Invalid risk assessment", verr)
	case errors.Is(err, ErrNoFactors):
		apperrors.WriteValidationError(w, r, "Invalid risk assessment", map[string]string{"factors": err.Error()})
	case errors.Is(err, ErrAssessmentNotFound):
		apperrors.WriteNotFound(w, r, "Risk assessment not found")
	default:
		log.Error().Err(err).Msg(msg)
		apperrors.WriteInternalError(w, r, msg)
	}
}
