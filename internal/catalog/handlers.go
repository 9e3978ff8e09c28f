package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// HandleList handles GET /api/v1/services
func HandleList(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			services []Service
			err      error
		)
		if category := r.URL.Query().Get("category"); category != "" {
			services, err = c.ListByCategory(r.Context(), category)
		} else {
			services, err = c.List(r.Context())
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to list services")
			apperrors.WriteInternalError(w, r, "Failed to list services")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, services)
	}
}

// HandleCategories handles GET /api/v1/services/categories
func HandleCategories(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := c.Categories(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to list categories")
			apperrors.WriteInternalError(w, r, "Failed to list categories")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, categories)
	}
}

// HandleCreate handles POST /api/v1/services
func HandleCreate(c *Catalog, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var in Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		svc, err := c.Create(ctx, in)
		if err != nil {
			writeServiceError(w, r, err, "Failed to create service")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventServiceCreated, audit.EntityService, svc.ID, map[string]interface{}{
			"name": svc.Name,
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, svc)
	}
}

// HandleGet handles GET /api/v1/services/{service_id}
func HandleGet(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := c.Get(r.Context(), chi.URLParam(r, "service_id"))
		if err != nil {
			writeServiceError(w, r, err, "Failed to get service")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, svc)
	}
}

// HandleUpdate handles PATCH /api/v1/services/{service_id}
func HandleUpdate(c *Catalog, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "service_id")

		var patch Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		svc, err := c.Update(ctx, id, patch)
		if err != nil {
			writeServiceError(w, r, err, "Failed to update service")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventServiceUpdated, audit.EntityService, id, nil); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, svc)
	}
}

// HandleDelete handles DELETE /api/v1/services/{service_id}
func HandleDelete(c *Catalog, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "service_id")

		if err := c.Delete(ctx, id); err != nil {
			writeServiceError(w, r, err, "Failed to delete service")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventServiceDeleted, audit.EntityService, id, nil); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleExportCSV handles GET /api/v1/services/export.csv
func HandleExportCSV(c *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := c.List(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to list services")
			apperrors.WriteInternalError(w, r, "Failed to export services")
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="servicos.csv"`)
		if err := WriteCSV(w, services); err != nil {
			log.Error().Err(err).Msg("Failed to write services csv")
		}
	}
}

// HandleImportCSV handles POST /api/v1/services/import with a multipart
// "file" field.
func HandleImportCSV(c *Catalog, auditor *audit.Writer, maxBytes int64, maxRows int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64*1024)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				apperrors.WritePayloadTooLarge(w, r, "Upload too large")
				return
			}
			apperrors.WriteBadRequest(w, r, "Invalid multipart form")
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			apperrors.WriteBadRequest(w, r, "CSV file is required")
			return
		}
		defer file.Close()

		records, err := ReadCSV(io.LimitReader(file, maxBytes), maxRows)
		if err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		n, err := c.ImportRecords(ctx, records)
		if err != nil {
			log.Error().Err(err).Msg("Failed to import services")
			apperrors.WriteInternalError(w, r, "Failed to import services")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventServicesImported, audit.EntityService, "", map[string]interface{}{
			"count": n,
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]int{"imported": n})
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr ValidationError
	switch {
	case errors.As(err, &verr):
		apperrors.WriteValidationError(w, r, "Invalid service", verr)
	case errors.Is(err, ErrServiceNotFound):
		apperrors.WriteNotFound(w, r, "Service not found")
	case errors.Is(err, ErrServiceExists):
		apperrors.WriteConflict(w, r, "Service id already exists")
	default:
		log.Error().Err(err).Msg(msg)
		apperrors.WriteInternalError(w, r, msg)
	}
}
