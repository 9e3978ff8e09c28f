// Package reminders schedules the periodic reminder run for invites that
// were sent but never answered.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner sends reminders for invites last contacted more than after ago.
// *survey.Dispatcher implements it.
type Runner interface {
	SendReminders(ctx context.Context, after time.Duration, assessmentID string) (survey.ReminderResult, error)
}

// RunReminderJob runs one reminder pass over every assessment and logs the
// results. This is the entry point called by the cron scheduler.
func RunReminderJob(ctx context.Context, runner Runner, auditor *audit.Writer, afterDays int) (survey.ReminderResult, error) {
	log.Info().
		Int("after_days", afterDays).
		Msg("Starting reminder job")

	startTime := time.Now()

	res, err := runner.SendReminders(ctx, time.Duration(afterDays)*24*time.Hour, "")
	if err != nil {
		log.Error().Err(err).Msg("Failed to send reminders")
		return res, fmt.Errorf("reminder run failed: %w", err)
	}

	if res.Candidates > 0 {
		if err := auditor.LogRemindersSent(ctx, nil, "", res.Sent, res.Failed); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}
	}

	log.Info().
		Int("candidates", res.Candidates).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Dur("duration", time.Since(startTime)).
		Msg("Reminder job completed")

	return res, nil
}

// NewScheduler returns a stopped cron scheduler that runs RunReminderJob on
// schedule. Schedules are evaluated in UTC unless they carry a CRON_TZ=
// prefix. Each run gets timeout to finish.
func NewScheduler(schedule string, runner Runner, auditor *audit.Writer, afterDays int, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(schedule, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Reminder job panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := RunReminderJob(ctx, runner, auditor, afterDays); err != nil {
			log.Error().Err(err).Msg("Reminder job failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reminder job: %w", err)
	}

	return c, nil
}
