package survey

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store for unit tests.
type memStore struct {
	mu        sync.Mutex
	invites   map[uuid.UUID]*Invite
	responses []Response
	failNext  error
}

func newMemStore() *memStore {
	return &memStore{invites: map[uuid.UUID]*Invite{}}
}

func (m *memStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) byToken(token string) *Invite {
	for _, inv := range m.invites {
		if inv.Token == token {
			return inv
		}
	}
	return nil
}

func (m *memStore) InsertInvite(ctx context.Context, inv *Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if m.byToken(inv.Token) != nil {
		return ErrDuplicateToken
	}
	cp := *inv
	m.invites[inv.ID] = &cp
	return nil
}

func (m *memStore) ImportInvite(ctx context.Context, inv *Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invites[inv.ID] = &cp
	return nil
}

func (m *memStore) GetInvite(ctx context.Context, id uuid.UUID) (*Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[id]
	if !ok {
		return nil, ErrInviteNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memStore) GetInviteByToken(ctx context.Context, token string) (*Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	inv := m.byToken(token)
	if inv == nil {
		return nil, ErrInviteNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memStore) ListInvites(ctx context.Context, filter InviteFilter) ([]Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invite
	for _, inv := range m.invites {
		if filter.AssessmentID != "" && inv.AssessmentID != filter.AssessmentID {
			continue
		}
		if filter.Department != "" && inv.Department != filter.Department {
			continue
		}
		if filter.Status != "" && inv.Status() != filter.Status {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListAssessments(ctx context.Context) ([]AssessmentSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := map[string]*AssessmentSummary{}
	for _, inv := range m.invites {
		s, ok := byID[inv.AssessmentID]
		if !ok {
			s = &AssessmentSummary{AssessmentID: inv.AssessmentID, FirstInvite: inv.CreatedAt}
			byID[inv.AssessmentID] = s
		}
		s.Invites++
		if inv.Completed {
			s.Completed++
		}
		if inv.CreatedAt.Before(s.FirstInvite) {
			s.FirstInvite = inv.CreatedAt
		}
	}
	var out []AssessmentSummary
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssessmentID < out[j].AssessmentID })
	return out, nil
}

func (m *memStore) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[id]; !ok {
		return ErrInviteNotFound
	}
	delete(m.invites, id)
	for i := range m.responses {
		if m.responses[i].InviteID != nil && *m.responses[i].InviteID == id {
			m.responses[i].InviteID = nil
		}
	}
	return nil
}

func setFlag(flag *bool, at **time.Time, now time.Time) bool {
	if *flag {
		return false
	}
	*flag = true
	t := now
	*at = &t
	return true
}

func (m *memStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[id]
	if !ok {
		return false, ErrInviteNotFound
	}
	return setFlag(&inv.Sent, &inv.SentAt, at), nil
}

func (m *memStore) MarkOpened(ctx context.Context, token string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.byToken(token)
	if inv == nil {
		return false, ErrInviteNotFound
	}
	return setFlag(&inv.Opened, &inv.OpenedAt, at), nil
}

func (m *memStore) MarkCompleted(ctx context.Context, token string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.byToken(token)
	if inv == nil {
		return false, ErrInviteNotFound
	}
	return setFlag(&inv.Completed, &inv.CompletedAt, at), nil
}

func (m *memStore) ListReminderCandidates(ctx context.Context, cutoff time.Time, assessmentID string) ([]Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invite
	for _, inv := range m.invites {
		if !inv.Sent || inv.Completed {
			continue
		}
		if assessmentID != "" && inv.AssessmentID != assessmentID {
			continue
		}
		last := *inv.SentAt
		if inv.RemindedAt != nil {
			last = *inv.RemindedAt
		}
		if last.Before(cutoff) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memStore) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invites[id]
	if !ok {
		return ErrInviteNotFound
	}
	t := at
	inv.RemindedAt = &t
	inv.ReminderCount++
	return nil
}

func (m *memStore) SubmitResponse(ctx context.Context, token string, build func(inv *Invite) (*Response, error)) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	inv := m.byToken(token)
	if inv == nil {
		return nil, ErrInviteNotFound
	}
	if inv.Completed {
		return nil, ErrAlreadyCompleted
	}
	cp := *inv
	resp, err := build(&cp)
	if err != nil {
		return nil, err
	}
	if err := checkAnswerColumns(resp); err != nil {
		return nil, err
	}
	m.responses = append(m.responses, *resp)
	setFlag(&inv.Completed, &inv.CompletedAt, resp.CreatedAt)
	return resp, nil
}

func (m *memStore) ImportResponse(ctx context.Context, resp *Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.responses {
		if r.ID == resp.ID || r.Token == resp.Token {
			return nil
		}
	}
	if err := checkAnswerColumns(resp); err != nil {
		return err
	}
	m.responses = append(m.responses, *resp)
	return nil
}

func (m *memStore) ListResponses(ctx context.Context, filter ResponseFilter) ([]Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Response
	for _, r := range m.responses {
		if filter.AssessmentID != "" && r.AssessmentID != filter.AssessmentID {
			continue
		}
		if filter.Department != "" && r.Department != filter.Department {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// checkAnswerColumns mirrors the copsoq_responses_answers constraint: clear
// and sealed answers are never stored together.
func checkAnswerColumns(resp *Response) error {
	if resp.Responses != nil && resp.AnswersSealed != "" {
		return errors.New("response stores both clear and sealed answers")
	}
	return nil
}
