package survey

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/instrument"
	"github.com/aliuyar1234/nr01desk/internal/mailer"
	"github.com/stretchr/testify/require"
)

func allAnswers(v int) Answers {
	answers := Answers{}
	for _, id := range instrument.COPSOQ().QuestionIDs() {
		answers[id] = v
	}
	return answers
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	opts = append([]Option{WithClock(fixedClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))}, opts...)
	return NewService(store, opts...), store
}

func createAna(t *testing.T, svc *Service) *Invite {
	t.Helper()
	inv, err := svc.CreateInvite(context.Background(), CreateInviteParams{
		AssessmentID:  "NR01-2025-A",
		EmployeeName:  "Ana Silva",
		EmployeeEmail: "ana@x.com",
		Department:    "RH",
	})
	require.NoError(t, err)
	return inv
}

func anaDraft(answers Answers) Draft {
	return Draft{
		EmployeeName:  "Ana Silva",
		EmployeeEmail: "ana@x.com",
		Department:    "RH",
		Answers:       answers,
	}
}

// recordingSender captures messages instead of sending them.
type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail map[string]error
}

func (s *recordingSender) Send(ctx context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[msg.To]; err != nil {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}
