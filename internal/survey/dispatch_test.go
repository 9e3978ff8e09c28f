package survey

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatcher_SendInvite(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	sender := &recordingSender{}
	d := NewDispatcher(svc, sender, "https://survey.example.com", "Black Belt Consultoria")
	inv := createAna(t, svc)

	require.NoError(t, d.SendInvite(ctx, inv))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	require.Equal(t, "ana@x.com", msg.To)
	require.Equal(t, "Ana Silva", msg.ToName)
	require.Equal(t, "Convite - COPSOQ-II (NR-01)", msg.Subject)
	require.Contains(t, msg.Text, "https://survey.example.com/COPSOQ-II?token="+inv.Token)

	got, err := svc.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, got.Sent)
	require.NotNil(t, got.SentAt)
}

func TestDispatcher_ResendCompletedRefused(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	sender := &recordingSender{}
	d := NewDispatcher(svc, sender, "https://survey.example.com", "x")
	inv := createAna(t, svc)
	require.NoError(t, svc.MarkCompleted(ctx, inv.Token))

	_, err := d.Resend(ctx, inv.ID)
	require.ErrorIs(t, err, ErrAlreadyCompleted)
	require.Empty(t, sender.sent)
}

func TestDispatcher_SendReminders(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newMemStore()
	now := start
	svc := NewService(store, WithClock(func() time.Time { return now }))
	sender := &recordingSender{}
	d := NewDispatcher(svc, sender, "https://survey.example.com", "x")

	stale := createAna(t, svc)
	require.NoError(t, svc.MarkSent(ctx, stale.ID))

	answered, err := svc.CreateInvite(ctx, CreateInviteParams{AssessmentID: "NR01-2025-A", EmployeeName: "Bruno", EmployeeEmail: "bruno@x.com"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkSent(ctx, answered.ID))
	require.NoError(t, svc.MarkCompleted(ctx, answered.Token))

	_, err = svc.CreateInvite(ctx, CreateInviteParams{AssessmentID: "NR01-2025-A", EmployeeName: "Carla", EmployeeEmail: "carla@x.com"})
	require.NoError(t, err)

	now = start.Add(4 * 24 * time.Hour)
	res, err := d.SendReminders(ctx, 3*24*time.Hour, "")
	require.NoError(t, err)
	require.Equal(t, ReminderResult{Candidates: 1, Sent: 1}, res)
	require.Len(t, sender.sent, 1)
	require.Equal(t, "Lembrete - COPSOQ-II (NR-01)", sender.sent[0].Subject)

	got, err := svc.GetInvite(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ReminderCount)
	require.NotNil(t, got.RemindedAt)

	// reminded just now, so a second run finds nothing
	res, err = d.SendReminders(ctx, 3*24*time.Hour, "")
	require.NoError(t, err)
	require.Equal(t, 0, res.Candidates)
}
