package dashboard

import (
	"net/http"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/rs/zerolog/log"
)

// HandleReport handles GET /api/v1/dashboard?assessment_id=&department=
func HandleReport(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := Filter{AssessmentID: q.Get("assessment_id"), Department: q.Get("department")}
		if filter.AssessmentID == "" {
			apperrors.WriteValidationError(w, r, "Assessment is required", map[string]string{
				"assessment_id": "assessment_id is required",
			})
			return
		}

		report, err := svc.Build(r.Context(), filter)
		if err != nil {
			log.Error().Err(err).Str("assessment_id", filter.AssessmentID).Msg("Failed to build dashboard")
			apperrors.WriteInternalError(w, r, "Failed to build dashboard")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, report)
	}
}
