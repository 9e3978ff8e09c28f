package survey

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists invites and responses. Implementations must make
// SubmitResponse atomic: the response insert and the completed flag flip
// either both happen or neither does.
type Store interface {
	InsertInvite(ctx context.Context, inv *Invite) error
	// ImportInvite inserts or replaces an invite by id, keeping its token.
	ImportInvite(ctx context.Context, inv *Invite) error
	GetInvite(ctx context.Context, id uuid.UUID) (*Invite, error)
	GetInviteByToken(ctx context.Context, token string) (*Invite, error)
	ListInvites(ctx context.Context, filter InviteFilter) ([]Invite, error)
	ListAssessments(ctx context.Context) ([]AssessmentSummary, error)
	DeleteInvite(ctx context.Context, id uuid.UUID) error

	// Flag transitions report whether the flag changed. An already-set flag
	// is left alone, timestamp included. A missing invite yields ErrInviteNotFound.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkOpened(ctx context.Context, token string, at time.Time) (bool, error)
	MarkCompleted(ctx context.Context, token string, at time.Time) (bool, error)

	// ListReminderCandidates returns sent, uncompleted invites whose last
	// contact (reminder or first send) is before cutoff.
	ListReminderCandidates(ctx context.Context, cutoff time.Time, assessmentID string) ([]Invite, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error

	// SubmitResponse locks the invite behind token, calls build with it, stores
	// the returned response and marks the invite completed at resp.CreatedAt.
	SubmitResponse(ctx context.Context, token string, build func(inv *Invite) (*Response, error)) (*Response, error)
	ImportResponse(ctx context.Context, resp *Response) error
	ListResponses(ctx context.Context, filter ResponseFilter) ([]Response, error)
}
