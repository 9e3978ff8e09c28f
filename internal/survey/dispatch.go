package survey

import (
	"context"
	"fmt"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/mailer"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Dispatcher emails invites and reminders and records the send on the invite.
type Dispatcher struct {
	svc        *Service
	sender     mailer.Sender
	baseURL    string
	senderName string
}

func NewDispatcher(svc *Service, sender mailer.Sender, baseURL, senderName string) *Dispatcher {
	return &Dispatcher{
		svc:        svc,
		sender:     sender,
		baseURL:    baseURL,
		senderName: senderName,
	}
}

// SendInvite emails the invitation and marks the invite sent. A failed send
// leaves the invite unsent.
func (d *Dispatcher) SendInvite(ctx context.Context, inv *Invite) error {
	msg, err := mailer.RenderInviteEmail(d.emailData(inv))
	if err != nil {
		return err
	}
	msg.To = inv.EmployeeEmail
	msg.ToName = inv.EmployeeName

	if err := d.sender.Send(ctx, msg); err != nil {
		return err
	}
	if err := d.svc.MarkSent(ctx, inv.ID); err != nil {
		return fmt.Errorf("email sent but failed to mark invite sent: %w", err)
	}

	log.Info().
		Str("invite_id", inv.ID.String()).
		Str("assessment_id", inv.AssessmentID).
		Msg("Invite sent")
	return nil
}

// Resend emails an existing invite again. Completed invites are refused.
func (d *Dispatcher) Resend(ctx context.Context, id uuid.UUID) (*Invite, error) {
	inv, err := d.svc.GetInvite(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Completed {
		return nil, ErrAlreadyCompleted
	}
	if err := d.SendInvite(ctx, inv); err != nil {
		return nil, err
	}
	return d.svc.GetInvite(ctx, id)
}

// SendReminder emails the reminder template and stamps reminded_at.
func (d *Dispatcher) SendReminder(ctx context.Context, inv *Invite) error {
	msg, err := mailer.RenderReminderEmail(d.emailData(inv))
	if err != nil {
		return err
	}
	msg.To = inv.EmployeeEmail
	msg.ToName = inv.EmployeeName

	if err := d.sender.Send(ctx, msg); err != nil {
		return err
	}
	return d.svc.MarkReminded(ctx, inv.ID)
}

// Notifier adapts SendInvite for BulkInvite.
func (d *Dispatcher) Notifier() Notifier {
	return d.SendInvite
}

func (d *Dispatcher) emailData(inv *Invite) mailer.EmailData {
	return mailer.EmailData{
		EmployeeName:   inv.EmployeeName,
		AssessmentName: inv.AssessmentID,
		Link:           InviteLink(d.baseURL, inv.Token),
		SenderName:     d.senderName,
	}
}

// ReminderResult summarizes one reminder run.
type ReminderResult struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// SendReminders reminds every sent, unanswered invite whose last contact is
// older than after. An empty assessmentID covers all assessments. Failures
// are logged and counted; the run continues.
func (d *Dispatcher) SendReminders(ctx context.Context, after time.Duration, assessmentID string) (ReminderResult, error) {
	cutoff := d.svc.now().Add(-after)
	invites, err := d.svc.ReminderCandidates(ctx, cutoff, assessmentID)
	if err != nil {
		return ReminderResult{}, err
	}

	res := ReminderResult{Candidates: len(invites)}
	for i := range invites {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		inv := &invites[i]
		if err := d.SendReminder(ctx, inv); err != nil {
			res.Failed++
			log.Warn().Err(err).
				Str("invite_id", inv.ID.String()).
				Msg("Failed to send reminder")
			continue
		}
		res.Sent++
	}
	return res, nil
}
