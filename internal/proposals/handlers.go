package proposals

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HandleCreate handles POST /api/v1/proposals
func HandleCreate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var in CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		p, err := svc.Create(ctx, in)
		if err != nil {
			writeProposalError(w, r, err, "Failed to create proposal")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventProposalCreated, audit.EntityProposal, p.ID.String(), map[string]interface{}{
			"client_name": p.ClientName,
			"final_total": p.FinalTotal.StringFixed(2),
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, p)
	}
}

// HandleList handles GET /api/v1/proposals?status=&client=
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter ListFilter
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := ParseStatus(raw)
			if err != nil {
				apperrors.WriteBadRequest(w, r, "Invalid status")
				return
			}
			filter.Status = status
		}
		filter.Client = r.URL.Query().Get("client")

		proposals, err := svc.List(r.Context(), filter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list proposals")
			apperrors.WriteInternalError(w, r, "Failed to list proposals")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, proposals)
	}
}

// HandleGet handles GET /api/v1/proposals/{proposal_id}
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "proposal_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid proposal ID")
			return
		}

		p, err := svc.Get(r.Context(), id)
		if err != nil {
			writeProposalError(w, r, err, "Failed to get proposal")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, p)
	}
}

// HandlePDF handles GET /api/v1/proposals/{proposal_id}/pdf
func HandlePDF(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "proposal_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid proposal ID")
			return
		}

		p, err := svc.Get(r.Context(), id)
		if err != nil {
			writeProposalError(w, r, err, "Failed to get proposal")
			return
		}

		var buf bytes.Buffer
		if err := RenderPDF(&buf, p, time.Now()); err != nil {
			log.Error().Err(err).Str("proposal_id", id.String()).Msg("Failed to render proposal PDF")
			apperrors.WriteInternalError(w, r, "Failed to render proposal PDF")
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", PDFFilename(p)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

// UpdateStatusRequest is the body of PATCH /api/v1/proposals/{proposal_id}/status
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// HandleUpdateStatus handles PATCH /api/v1/proposals/{proposal_id}/status
func HandleUpdateStatus(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := uuid.Parse(chi.URLParam(r, "proposal_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid proposal ID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		p, err := svc.UpdateStatus(ctx, id, Status(req.Status))
		if err != nil {
			writeProposalError(w, r, err, "Failed to update proposal status")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventProposalStatus, audit.EntityProposal, id.String(), map[string]interface{}{
			"status": string(p.Status),
		}); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, p)
	}
}

// HandleDelete handles DELETE /api/v1/proposals/{proposal_id}
func HandleDelete(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := uuid.Parse(chi.URLParam(r, "proposal_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid proposal ID")
			return
		}

		if err := svc.Delete(ctx, id); err != nil {
			writeProposalError(w, r, err, "Failed to delete proposal")
			return
		}

		if err := auditor.Entity(ctx, auth.GetUserID(ctx), audit.EventProposalDeleted, audit.EntityProposal, id.String(), nil); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func writeProposalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr ValidationError
	switch {
	case errors.As(err, &verr):
		apperrors.WriteValidationError(w, r, "Invalid proposal", verr)
	case errors.Is(err, ErrInvalidStatus):
		apperrors.WriteBadRequest(w, r, "Invalid status")
	case errors.Is(err, ErrProposalNotFound):
		apperrors.WriteNotFound(w, r, "Proposal not found")
	default:
		log.Error().Err(err).Msg(msg)
		apperrors.WriteInternalError(w, r, msg)
	}
}
