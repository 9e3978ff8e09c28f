package survey

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/apperrors"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/aliuyar1234/nr01desk/internal/mailer"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CreateInviteRequest represents the request to create an invite
type CreateInviteRequest struct {
	AssessmentID  string `json:"assessment_id"`
	EmployeeName  string `json:"employee_name"`
	EmployeeEmail string `json:"employee_email"`
	Department    string `json:"department"`
	Send          bool   `json:"send"`
}

// InviteResponse adds the respondent link to an invite.
type InviteResponse struct {
	*Invite
	Status InviteStatus `json:"status"`
	Link   string       `json:"link"`
}

func toInviteResponse(inv *Invite, baseURL string) InviteResponse {
	return InviteResponse{Invite: inv, Status: inv.Status(), Link: InviteLink(baseURL, inv.Token)}
}

// HandleCreateInvite handles POST /api/v1/invites
func HandleCreateInvite(svc *Service, dispatcher *Dispatcher, auditor *audit.Writer, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := auth.GetUserID(ctx)

		var req CreateInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		inv, err := svc.CreateInvite(ctx, CreateInviteParams{
			AssessmentID:  req.AssessmentID,
			EmployeeName:  req.EmployeeName,
			EmployeeEmail: req.EmployeeEmail,
			Department:    req.Department,
		})
		if err != nil {
			var fieldErrs FieldErrors
			if errors.As(err, &fieldErrs) {
				apperrors.WriteValidationError(w, r, "Invalid invite", fieldErrs)
				return
			}
			log.Error().Err(err).Msg("Failed to create invite")
			apperrors.WriteInternalError(w, r, "Failed to create invite")
			return
		}

		if err := auditor.LogInviteCreated(ctx, userID, inv.ID, inv.AssessmentID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		sendError := ""
		if req.Send && dispatcher != nil {
			if err := dispatcher.SendInvite(ctx, inv); err != nil {
				log.Warn().Err(err).Str("invite_id", inv.ID.String()).Msg("Invite created but email failed")
				sendError = err.Error()
			} else if refreshed, err := svc.GetInvite(ctx, inv.ID); err == nil {
				inv = refreshed
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"invite":     toInviteResponse(inv, baseURL),
			"send_error": sendError,
		})
	}
}

// HandleListInvites handles GET /api/v1/invites
func HandleListInvites(svc *Service, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := InviteFilter{
			AssessmentID: q.Get("assessment_id"),
			Department:   q.Get("department"),
			Status:       InviteStatus(q.Get("status")),
		}
		if filter.Status != "" && !filter.Status.IsValid() {
			apperrors.WriteBadRequest(w, r, "status must be one of: pending, sent, opened, completed")
			return
		}

		invites, err := svc.ListInvites(r.Context(), filter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list invites")
			apperrors.WriteInternalError(w, r, "Failed to list invites")
			return
		}

		out := make([]InviteResponse, len(invites))
		for i := range invites {
			out[i] = toInviteResponse(&invites[i], baseURL)
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invites": out,
		})
	}
}

// HandleGetInvite handles GET /api/v1/invites/{invite_id}
func HandleGetInvite(svc *Service, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invite ID")
			return
		}

		inv, err := svc.GetInvite(r.Context(), id)
		if err != nil {
			if errors.Is(err, ErrInviteNotFound) {
				apperrors.WriteNotFound(w, r, "Invite not found")
				return
			}
			log.Error().Err(err).Msg("Failed to get invite")
			apperrors.WriteInternalError(w, r, "Failed to get invite")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invite": toInviteResponse(inv, baseURL),
		})
	}
}

// HandleDeleteInvite handles DELETE /api/v1/invites/{invite_id}
func HandleDeleteInvite(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invite ID")
			return
		}

		if err := svc.DeleteInvite(ctx, id); err != nil {
			if errors.Is(err, ErrInviteNotFound) {
				apperrors.WriteNotFound(w, r, "Invite not found")
				return
			}
			log.Error().Err(err).Msg("Failed to delete invite")
			apperrors.WriteInternalError(w, r, "Failed to delete invite")
			return
		}

		if err := auditor.LogInviteDeleted(ctx, auth.GetUserID(ctx), id); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}

// HandleResendInvite handles POST /api/v1/invites/{invite_id}/resend
func HandleResendInvite(dispatcher *Dispatcher, auditor *audit.Writer, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invite ID")
			return
		}

		inv, err := dispatcher.Resend(ctx, id)
		if err != nil {
			writeSendError(w, r, err)
			return
		}

		if err := auditor.LogInviteResent(ctx, auth.GetUserID(ctx), id); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invite": toInviteResponse(inv, baseURL),
		})
	}
}

func writeSendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInviteNotFound):
		apperrors.WriteNotFound(w, r, "Invite not found")
	case errors.Is(err, ErrAlreadyCompleted):
		apperrors.WriteConflict(w, r, "Invite already completed")
	case errors.Is(err, mailer.ErrNotConfigured):
		apperrors.WriteServiceUnavailable(w, r, "Email relay is not configured")
	default:
		log.Error().Err(err).Msg("Failed to send invite")
		apperrors.WriteBadGateway(w, r, "Failed to send email")
	}
}

// HandleBulkUpload handles POST /api/v1/invites/bulk (multipart form with
// assessment_id, file and an optional send=true)
func HandleBulkUpload(svc *Service, dispatcher *Dispatcher, auditor *audit.Writer, limits UploadLimits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		assessmentID, rows, ok := readBulkUpload(w, r, limits)
		if !ok {
			return
		}

		var notify Notifier
		if r.FormValue("send") == "true" && dispatcher != nil {
			notify = dispatcher.Notifier()
		}

		results := svc.BulkInvite(ctx, assessmentID, rows, notify)
		created, sent, failed := BulkSummary(results)

		if err := auditor.LogInviteBulkUploaded(ctx, auth.GetUserID(ctx), assessmentID, created, sent, failed); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"created": created,
			"sent":    sent,
			"failed":  failed,
			"results": results,
		})
	}
}

// readBulkUpload parses the multipart upload and writes the error response
// itself when it returns false.
func readBulkUpload(w http.ResponseWriter, r *http.Request, limits UploadLimits) (string, []BulkRow, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBytes+64*1024)
	if err := r.ParseMultipartForm(limits.MaxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apperrors.WritePayloadTooLarge(w, r, "Upload too large")
			return "", nil, false
		}
		apperrors.WriteBadRequest(w, r, "Invalid multipart form")
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apperrors.WriteBadRequest(w, r, "CSV file is required")
		return "", nil, false
	}
	defer file.Close()

	if err := limits.ValidateSize(header.Size); err != nil {
		apperrors.WritePayloadTooLarge(w, r, err.Error())
		return "", nil, false
	}

	rows, err := ParseBulkCSV(io.LimitReader(file, limits.MaxBytes), limits)
	if err != nil {
		if errors.Is(err, ErrTooManyRows) {
			apperrors.WritePayloadTooLarge(w, r, err.Error())
			return "", nil, false
		}
		apperrors.WriteBadRequest(w, r, err.Error())
		return "", nil, false
	}

	return r.FormValue("assessment_id"), rows, true
}

// RemindersRequest represents the request to run reminders
type RemindersRequest struct {
	AssessmentID string `json:"assessment_id"`
}

// HandleSendReminders handles POST /api/v1/reminders
func HandleSendReminders(dispatcher *Dispatcher, auditor *audit.Writer, after time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req RemindersRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				apperrors.WriteBadRequest(w, r, "Invalid request body")
				return
			}
		}

		res, err := dispatcher.SendReminders(ctx, after, req.AssessmentID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to run reminders")
			apperrors.WriteInternalError(w, r, "Failed to run reminders")
			return
		}

		userID := auth.GetUserID(ctx)
		if err := auditor.LogRemindersSent(ctx, &userID, req.AssessmentID, res.Sent, res.Failed); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, res)
	}
}

// HandleListAssessments handles GET /api/v1/assessments
func HandleListAssessments(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListAssessments(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to list assessments")
			apperrors.WriteInternalError(w, r, "Failed to list assessments")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"assessments": list,
		})
	}
}

// HandleListResponses handles GET /api/v1/responses. Raw answers are only
// included with answers=true.
func HandleListResponses(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		responses, err := svc.ListResponses(r.Context(), ResponseFilter{
			AssessmentID: q.Get("assessment_id"),
			Department:   q.Get("department"),
			WithAnswers:  q.Get("answers") == "true",
		})
		if err != nil {
			if errors.Is(err, ErrAnswersSealed) {
				apperrors.WriteConflict(w, r, "Answers are sealed and cannot be opened by this server")
				return
			}
			log.Error().Err(err).Msg("Failed to list responses")
			apperrors.WriteInternalError(w, r, "Failed to list responses")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"responses": responses,
		})
	}
}

// HandleInstrument handles GET /api/v1/instrument
func HandleInstrument(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteSuccess(w, r, http.StatusOK, svc.Instrument())
	}
}

// SurveyStateResponse is what a respondent client sees for a token.
type SurveyStateResponse struct {
	State        State  `json:"state"`
	AssessmentID string `json:"assessment_id,omitempty"`
	Draft        *Draft `json:"draft,omitempty"`
}

// HandleOpenSurvey handles GET /api/v1/survey/{token}
func HandleOpenSurvey(flow *Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step := flow.Open(r.Context(), chi.URLParam(r, "token"))
		if step.State != StateValidUnanswered {
			apperrors.WriteNotFound(w, r, "Invalid or already used link")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, SurveyStateResponse{
			State:        step.State,
			AssessmentID: step.Invite.AssessmentID,
			Draft:        &step.Draft,
		})
	}
}

// HandleSubmitSurvey handles POST /api/v1/survey/{token}
func HandleSubmitSurvey(flow *Flow, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var draft Draft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		step, err := flow.Submit(ctx, chi.URLParam(r, "token"), draft)
		if err != nil {
			log.Error().Err(err).Msg("Failed to submit response")
			apperrors.WriteInternalError(w, r, "Failed to submit response")
			return
		}

		switch step.State {
		case StateSubmitted:
			if err := auditor.LogResponseSubmitted(ctx, step.Response.ID, step.Response.AssessmentID); err != nil {
				log.Error().Err(err).Msg("Failed to log audit event")
			}
			apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
				"state":    step.State,
				"response": step.Response,
			})
		case StateAnswering:
			apperrors.WriteValidationError(w, r, "Questionnaire incomplete", step.Errors)
		default:
			apperrors.WriteNotFound(w, r, "Invalid or already used link")
		}
	}
}
