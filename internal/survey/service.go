package survey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/instrument"
	"github.com/aliuyar1234/nr01desk/internal/metrics"
	"github.com/aliuyar1234/nr01desk/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FormPath is the respondent form route. Invite links point here.
const FormPath = "/COPSOQ-II"

// Sealer encrypts raw answers at rest. Open may fail when only the public
// half of the key is configured.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(ciphertext string) ([]byte, error)
}

// Service implements the invite lifecycle and response capture.
type Service struct {
	store  Store
	inst   *instrument.Instrument
	sealer Sealer
	now    func() time.Time
}

type Option func(*Service)

// WithSealer stores answers encrypted instead of in clear.
func WithSealer(s Sealer) Option {
	return func(svc *Service) { svc.sealer = s }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// WithInstrument overrides the default COPSOQ-II instrument.
func WithInstrument(inst *instrument.Instrument) Option {
	return func(svc *Service) { svc.inst = inst }
}

func NewService(store Store, opts ...Option) *Service {
	svc := &Service{
		store: store,
		inst:  instrument.COPSOQ(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Instrument returns the questionnaire the service scores against.
func (s *Service) Instrument() *instrument.Instrument {
	return s.inst
}

// InviteLink builds the respondent URL for a token.
func InviteLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + FormPath + "?token=" + url.QueryEscape(token)
}

// CreateInviteParams are the admin-supplied invite fields.
type CreateInviteParams struct {
	AssessmentID  string
	EmployeeName  string
	EmployeeEmail string
	Department    string
}

// Validate normalizes the params and reports field errors.
func (p *CreateInviteParams) Validate() FieldErrors {
	p.AssessmentID = validation.NormalizeAssessmentID(p.AssessmentID)
	p.EmployeeName = strings.TrimSpace(p.EmployeeName)
	p.EmployeeEmail = validation.NormalizeEmail(p.EmployeeEmail)
	p.Department = strings.TrimSpace(p.Department)

	errs := FieldErrors{}
	if err := validation.ValidateAssessmentID(p.AssessmentID); err != nil {
		errs["assessment_id"] = err.Error()
	}
	if err := validation.ValidateName(p.EmployeeName); err != nil {
		errs["name"] = err.Error()
	}
	if err := validation.ValidateEmail(p.EmployeeEmail); err != nil {
		errs["email"] = err.Error()
	}
	if len(p.Department) > 100 {
		errs["department"] = "department must be at most 100 characters"
	}
	return errs.OrNil()
}

// CreateInvite persists a new invite with a fresh token and all flags false.
func (s *Service) CreateInvite(ctx context.Context, params CreateInviteParams) (*Invite, error) {
	if errs := params.Validate(); errs != nil {
		return nil, errs
	}

	for attempt := 0; attempt < 3; attempt++ {
		token, err := GenerateToken()
		if err != nil {
			return nil, err
		}

		inv := &Invite{
			ID:            uuid.New(),
			AssessmentID:  params.AssessmentID,
			EmployeeName:  params.EmployeeName,
			EmployeeEmail: params.EmployeeEmail,
			Department:    params.Department,
			Token:         token,
			CreatedAt:     s.now(),
		}
		err = s.store.InsertInvite(ctx, inv)
		if err == nil {
			metrics.InvitesCreated.Inc()
			return inv, nil
		}
		if !errors.Is(err, ErrDuplicateToken) {
			return nil, err
		}
	}

	return nil, errors.New("failed to generate unique invite token")
}

// Validate reports whether token opens the form: the invite exists and is
// not completed. Store failures are logged and read as false.
func (s *Service) Validate(ctx context.Context, token string) bool {
	if !plausibleToken(token) {
		return false
	}
	inv, err := s.store.GetInviteByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrInviteNotFound) {
			log.Error().Err(err).Msg("Failed to look up invite token")
		}
		return false
	}
	return !inv.Completed
}

// GetByToken returns the invite behind a token.
func (s *Service) GetByToken(ctx context.Context, token string) (*Invite, error) {
	if !plausibleToken(token) {
		return nil, ErrInviteNotFound
	}
	return s.store.GetInviteByToken(ctx, token)
}

func (s *Service) GetInvite(ctx context.Context, id uuid.UUID) (*Invite, error) {
	return s.store.GetInvite(ctx, id)
}

func (s *Service) ListInvites(ctx context.Context, filter InviteFilter) ([]Invite, error) {
	return s.store.ListInvites(ctx, filter)
}

func (s *Service) ListAssessments(ctx context.Context) ([]AssessmentSummary, error) {
	return s.store.ListAssessments(ctx)
}

// DeleteInvite removes an invite. Responses already submitted keep their
// data and lose only the back-reference.
func (s *Service) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteInvite(ctx, id)
}

// MarkSent records that the invite email went out. Repeated calls keep the
// first timestamp.
func (s *Service) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.store.MarkSent(ctx, id, s.now())
	return err
}

// MarkOpened records the first time the respondent opened the form.
func (s *Service) MarkOpened(ctx context.Context, token string) error {
	_, err := s.store.MarkOpened(ctx, token, s.now())
	return err
}

// MarkCompleted flips the completed flag outside of a submission, for admin
// corrections and imports. AddResponse does this itself.
func (s *Service) MarkCompleted(ctx context.Context, token string) error {
	_, err := s.store.MarkCompleted(ctx, token, s.now())
	return err
}

// AddResponse validates a draft, scores it and stores it against the invite
// behind token, completing the invite in the same step. A token that was
// already used yields ErrAlreadyCompleted and stores nothing.
func (s *Service) AddResponse(ctx context.Context, token string, draft Draft) (*Response, error) {
	if !plausibleToken(token) {
		return nil, ErrInviteNotFound
	}
	draft.normalize()
	if errs := draft.Validate(s.inst); errs != nil {
		return nil, errs
	}

	scores := Score(s.inst, draft.Answers)

	stored, err := s.store.SubmitResponse(ctx, token, func(inv *Invite) (*Response, error) {
		inviteID := inv.ID
		resp := &Response{
			ID:                uuid.New(),
			InviteID:          &inviteID,
			AssessmentID:      inv.AssessmentID,
			EmployeeName:      draft.EmployeeName,
			EmployeeEmail:     draft.EmployeeEmail,
			Department:        draft.Department,
			Token:             token,
			Comments:          draft.Comments,
			DimensionScores:   scores.Dimensions,
			MissingDimensions: scores.Missing,
			OverallScore:      scores.Overall,
			CreatedAt:         s.now(),
		}
		if err := s.attachAnswers(resp, draft.Answers); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ResponsesSubmitted.Inc()
	return stored, nil
}

func (s *Service) attachAnswers(resp *Response, answers Answers) error {
	if s.sealer == nil {
		resp.Responses = answers
		return nil
	}
	resp.Responses = nil
	plaintext, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	sealed, err := s.sealer.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("failed to seal answers: %w", err)
	}
	resp.AnswersSealed = sealed
	return nil
}

// ListResponses returns responses matching filter. With filter.WithAnswers,
// sealed answers are decrypted; that fails with ErrAnswersSealed when the
// service cannot open them.
func (s *Service) ListResponses(ctx context.Context, filter ResponseFilter) ([]Response, error) {
	responses, err := s.store.ListResponses(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !filter.WithAnswers {
		return responses, nil
	}

	for i := range responses {
		r := &responses[i]
		if !r.Sealed() || r.Responses != nil {
			continue
		}
		if s.sealer == nil {
			return nil, ErrAnswersSealed
		}
		plaintext, err := s.sealer.Open(r.AnswersSealed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAnswersSealed, err)
		}
		if err := json.Unmarshal(plaintext, &r.Responses); err != nil {
			return nil, fmt.Errorf("failed to decode sealed answers for response %s: %w", r.ID, err)
		}
	}
	return responses, nil
}

// ImportInvite stores an invite carried over from another system, keeping
// its id and token.
func (s *Service) ImportInvite(ctx context.Context, inv *Invite) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.Token == "" {
		return errors.New("imported invite has no token")
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	normalizeFlag(&inv.Sent, &inv.SentAt, inv.CreatedAt)
	normalizeFlag(&inv.Opened, &inv.OpenedAt, inv.CreatedAt)
	normalizeFlag(&inv.Completed, &inv.CompletedAt, inv.CreatedAt)
	return s.store.ImportInvite(ctx, inv)
}

// ImportResponse stores a response carried over from another system. Scores
// are recomputed from the answers so imported data obeys the same rules. A
// response without answers (a scores-only export) keeps the scores it has.
func (s *Service) ImportResponse(ctx context.Context, resp *Response) error {
	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	if resp.Token == "" {
		resp.Token = "legacy-" + resp.ID.String()
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = s.now()
	}

	if len(resp.Responses) == 0 && len(resp.DimensionScores) > 0 {
		resp.Responses = nil
		return s.store.ImportResponse(ctx, resp)
	}

	answers := Answers{}
	for id, v := range resp.Responses {
		if _, ok := s.inst.DimensionOf(id); ok && s.inst.InScale(v) {
			answers[id] = v
		}
	}
	scores := Score(s.inst, answers)
	resp.DimensionScores = scores.Dimensions
	resp.MissingDimensions = scores.Missing
	resp.OverallScore = scores.Overall
	if err := s.attachAnswers(resp, answers); err != nil {
		return err
	}
	return s.store.ImportResponse(ctx, resp)
}

// normalizeFlag keeps a flag and its timestamp consistent: a set flag
// without a time gets fallback, a time without the flag sets it.
func normalizeFlag(flag *bool, at **time.Time, fallback time.Time) {
	switch {
	case *flag && *at == nil:
		t := fallback
		*at = &t
	case !*flag && *at != nil:
		*flag = true
	}
}

// ReminderCandidates lists sent, uncompleted invites last contacted before cutoff.
func (s *Service) ReminderCandidates(ctx context.Context, cutoff time.Time, assessmentID string) ([]Invite, error) {
	return s.store.ListReminderCandidates(ctx, cutoff, assessmentID)
}

// MarkReminded stamps reminded_at and bumps the reminder count.
func (s *Service) MarkReminded(ctx context.Context, id uuid.UUID) error {
	return s.store.MarkReminded(ctx, id, s.now())
}
