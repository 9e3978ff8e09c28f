package audit

import (
	"net/http"
	"strconv"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/rs/zerolog/log"
)

// HandleList handles GET /api/v1/audit?entity_type=&entity_id=&limit=
func HandleList(reader *Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := Filter{
			EntityType: q.Get("entity_type"),
			EntityID:   q.Get("entity_id"),
		}
		if raw := q.Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				filter.Limit = v
			}
		}

		events, err := reader.ListRecent(r.Context(), filter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list audit log")
			apperrors.WriteInternalError(w, r, "Failed to list audit log")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"events": events,
		})
	}
}
