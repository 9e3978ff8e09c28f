package integration

import (
	"context"
	"testing"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIntegration_AuditWriterReader(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	admin, err := auth.NewService(pool).CreateAdmin(ctx, "auditora", "auditora@example.com", "Segura123")
	require.NoError(t, err)

	writer := audit.NewWriter(pool)
	reader := audit.NewReader(pool)

	inviteID := uuid.New()
	require.NoError(t, writer.LogAdminCreated(ctx, admin.ID, admin.Username))
	pause()
	require.NoError(t, writer.LogLoginFailed(ctx, "auditora", "10.0.0.7"))
	pause()
	require.NoError(t, writer.LogInviteCreated(ctx, admin.ID, inviteID, "NR01-2025"))
	pause()
	require.NoError(t, writer.LogInviteBulkUploaded(ctx, admin.ID, "NR01-2025", 5, 4, 1))
	pause()
	require.NoError(t, writer.LogInviteResent(ctx, admin.ID, inviteID))

	all, err := reader.ListRecent(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, audit.EventInviteResent, all[0].Action)
	require.Equal(t, audit.EventAdminCreated, all[4].Action)
	for i := 1; i < len(all); i++ {
		require.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "events are newest first")
	}

	bulk := all[1]
	require.Equal(t, audit.EventInviteBulkUploaded, bulk.Action)
	require.Equal(t, "auditora", bulk.ActorName)
	require.Equal(t, admin.ID, *bulk.ActorUserID)
	require.Equal(t, "NR01-2025", bulk.Meta["assessment_id"])
	require.Equal(t, float64(5), bulk.Meta["created"])
	require.Equal(t, float64(4), bulk.Meta["sent"])
	require.Equal(t, float64(1), bulk.Meta["failed"])

	failed := all[3]
	require.Equal(t, audit.EventLoginFailed, failed.Action)
	require.Nil(t, failed.ActorUserID)
	require.Empty(t, failed.ActorName)
	require.Equal(t, "10.0.0.7", failed.Meta["ip"])

	created := all[4]
	require.Equal(t, admin.ID.String(), created.EntityID)
	require.Equal(t, "auditora", created.Meta["username"])

	byInvite, err := reader.ListRecent(ctx, audit.Filter{EntityType: audit.EntityInvite, EntityID: inviteID.String()})
	require.NoError(t, err)
	require.Len(t, byInvite, 2)
	require.Equal(t, audit.EventInviteResent, byInvite[0].Action)
	require.Empty(t, byInvite[0].Meta)
	require.Equal(t, audit.EventInviteCreated, byInvite[1].Action)
	require.Equal(t, "NR01-2025", byInvite[1].Meta["assessment_id"])

	limited, err := reader.ListRecent(ctx, audit.Filter{EntityType: audit.EntityInvite, Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)

	// Out-of-range limits fall back to the default page.
	clamped, err := reader.ListRecent(ctx, audit.Filter{Limit: 500})
	require.NoError(t, err)
	require.Len(t, clamped, 5)
}

func TestIntegration_AuditNilWriterIsNoop(t *testing.T) {
	var writer *audit.Writer
	require.NoError(t, writer.LogLogin(context.Background(), uuid.New(), "127.0.0.1"))
}

// pause keeps NOW() strictly increasing between audit writes.
func pause() { time.Sleep(5 * time.Millisecond) }
