package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	EventLogin              = "auth.login"
	EventLoginFailed        = "auth.login_failed"
	EventAdminCreated       = "admin.created"
	EventPasswordReset      = "admin.password_reset"
	EventInviteCreated      = "invite.created"
	EventInviteBulkUploaded = "invite.bulk_uploaded"
	EventInviteResent       = "invite.resent"
	EventInviteDeleted      = "invite.deleted"
	EventResponseSubmitted  = "response.submitted"
	EventRemindersSent      = "reminders.sent"
	EventServiceCreated     = "service.created"
	EventServiceUpdated     = "service.updated"
	EventServiceDeleted     = "service.deleted"
	EventServicesImported   = "service.imported"
	EventProposalCreated    = "proposal.created"
	EventProposalStatus     = "proposal.status_updated"
	EventProposalDeleted    = "proposal.deleted"
	EventRiskCreated        = "risk.created"
	EventRiskUpdated        = "risk.updated"
	EventRiskDeleted        = "risk.deleted"
	EventPricingUpdated     = "pricing.parameters_updated"
	EventResponsesExported  = "export.responses"
	EventLegacyImported     = "legacy.imported"
)

// Entity types recorded alongside events.
const (
	EntityAdmin    = "admin_user"
	EntityInvite   = "copsoq_invite"
	EntityResponse = "copsoq_response"
	EntityService  = "service"
	EntityProposal = "proposal"
	EntityRisk     = "risk_assessment"
	EntityPricing  = "pricing_parameters"
	EntityImport   = "legacy_import"
)

// Writer provides methods to write audit log entries. A nil Writer logs
// nothing, which keeps handler tests free of a database.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	ActorUserID *uuid.UUID
	Action      string
	EntityType  string
	EntityID    string
	Meta        map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	if w == nil || w.pool == nil {
		return nil
	}

	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (actor_user_id, action, entity_type, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := w.pool.Exec(ctx, query, toNullUUID(params.ActorUserID), params.Action, params.EntityType, params.EntityID, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Str("entity_type", params.EntityType).
		Str("entity_id", params.EntityID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")

	return nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil || *id == uuid.Nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// Entity logs an admin action on one record.
func (w *Writer) Entity(ctx context.Context, actor uuid.UUID, action, entityType, entityID string, meta map[string]interface{}) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &actor,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Meta:        meta,
	})
}

func (w *Writer) LogLogin(ctx context.Context, userID uuid.UUID, ip string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventLogin,
		EntityType:  EntityAdmin,
		EntityID:    userID.String(),
		Meta: map[string]interface{}{
			"ip": ip,
		},
	})
}

func (w *Writer) LogLoginFailed(ctx context.Context, login, ip string) error {
	return w.Log(ctx, LogParams{
		Action:     EventLoginFailed,
		EntityType: EntityAdmin,
		Meta: map[string]interface{}{
			"login": login,
			"ip":    ip,
		},
	})
}

func (w *Writer) LogAdminCreated(ctx context.Context, userID uuid.UUID, username string) error {
	return w.Log(ctx, LogParams{
		Action:     EventAdminCreated,
		EntityType: EntityAdmin,
		EntityID:   userID.String(),
		Meta: map[string]interface{}{
			"username": username,
		},
	})
}

func (w *Writer) LogPasswordReset(ctx context.Context, userID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		Action:     EventPasswordReset,
		EntityType: EntityAdmin,
		EntityID:   userID.String(),
	})
}

func (w *Writer) LogInviteCreated(ctx context.Context, actor, inviteID uuid.UUID, assessmentID string) error {
	return w.Entity(ctx, actor, EventInviteCreated, EntityInvite, inviteID.String(), map[string]interface{}{
		"assessment_id": assessmentID,
	})
}

func (w *Writer) LogInviteBulkUploaded(ctx context.Context, actor uuid.UUID, assessmentID string, created, sent, failed int) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &actor,
		Action:      EventInviteBulkUploaded,
		EntityType:  EntityInvite,
		Meta: map[string]interface{}{
			"assessment_id": assessmentID,
			"created":       created,
			"sent":          sent,
			"failed":        failed,
		},
	})
}

func (w *Writer) LogInviteResent(ctx context.Context, actor, inviteID uuid.UUID) error {
	return w.Entity(ctx, actor, EventInviteResent, EntityInvite, inviteID.String(), nil)
}

func (w *Writer) LogInviteDeleted(ctx context.Context, actor, inviteID uuid.UUID) error {
	return w.Entity(ctx, actor, EventInviteDeleted, EntityInvite, inviteID.String(), nil)
}

// LogResponseSubmitted has no actor: respondents are not admin users.
func (w *Writer) LogResponseSubmitted(ctx context.Context, responseID uuid.UUID, assessmentID string) error {
	return w.Log(ctx, LogParams{
		Action:     EventResponseSubmitted,
		EntityType: EntityResponse,
		EntityID:   responseID.String(),
		Meta: map[string]interface{}{
			"assessment_id": assessmentID,
		},
	})
}

func (w *Writer) LogRemindersSent(ctx context.Context, actor *uuid.UUID, assessmentID string, sent, failed int) error {
	return w.Log(ctx, LogParams{
		ActorUserID: actor,
		Action:      EventRemindersSent,
		EntityType:  EntityInvite,
		Meta: map[string]interface{}{
			"assessment_id": assessmentID,
			"sent":          sent,
			"failed":        failed,
		},
	})
}

// Event represents an audit log entry as read back by Reader.
type Event struct {
	ID          uuid.UUID              `json:"id"`
	ActorUserID *uuid.UUID             `json:"actor_user_id,omitempty"`
	ActorName   string                 `json:"actor_username,omitempty"`
	Action      string                 `json:"action"`
	EntityType  string                 `json:"entity_type"`
	EntityID    string                 `json:"entity_id"`
	Meta        map[string]interface{} `json:"meta"`
	CreatedAt   time.Time              `json:"created_at"`
}
