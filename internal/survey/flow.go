package survey

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/aliuyar1234/nr01desk/internal/instrument"
	"github.com/aliuyar1234/nr01desk/internal/validation"
	"github.com/rs/zerolog/log"
)

// State is where a respondent is in the form flow.
type State string

const (
	StateNoToken         State = "NO_TOKEN"
	StateInvalidToken    State = "INVALID_TOKEN"
	StateValidUnanswered State = "VALID_UNANSWERED"
	StateAnswering       State = "ANSWERING"
	StateSubmitted       State = "SUBMITTED"
)

// FieldErrors maps form field names to messages. It doubles as the error
// returned for a rejected draft.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// OrNil returns nil for an empty map so callers can compare against nil.
func (fe FieldErrors) OrNil() FieldErrors {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Draft is one submission attempt: the answers and identification fields the
// respondent has filled in so far. Nothing is persisted until Submit.
type Draft struct {
	EmployeeName  string  `json:"employee_name"`
	EmployeeEmail string  `json:"employee_email"`
	Department    string  `json:"department"`
	Comments      string  `json:"comments"`
	Answers       Answers `json:"responses"`
}

// DraftFromInvite prefills identification fields from the invite.
func DraftFromInvite(inv *Invite) Draft {
	return Draft{
		EmployeeName:  inv.EmployeeName,
		EmployeeEmail: inv.EmployeeEmail,
		Department:    inv.Department,
		Answers:       Answers{},
	}
}

// DraftFromForm reads a posted questionnaire. Answers outside the scale or
// not parseable are dropped and will show up as unanswered.
func DraftFromForm(form url.Values, inst *instrument.Instrument) Draft {
	d := Draft{
		EmployeeName:  form.Get("employee_name"),
		EmployeeEmail: form.Get("employee_email"),
		Department:    form.Get("department"),
		Comments:      form.Get("comments"),
		Answers:       Answers{},
	}
	for _, id := range inst.QuestionIDs() {
		raw := strings.TrimSpace(form.Get(id))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || !inst.InScale(v) {
			continue
		}
		d.Answers[id] = v
	}
	return d
}

func (d *Draft) normalize() {
	d.EmployeeName = strings.TrimSpace(d.EmployeeName)
	d.EmployeeEmail = validation.NormalizeEmail(d.EmployeeEmail)
	d.Department = strings.TrimSpace(d.Department)
	d.Comments = strings.TrimSpace(d.Comments)
	if d.Answers == nil {
		d.Answers = Answers{}
	}
}

// Validate requires every question answered within the scale, plus name,
// email and department.
func (d *Draft) Validate(inst *instrument.Instrument) FieldErrors {
	errs := FieldErrors{}
	if err := validation.ValidateName(d.EmployeeName); err != nil {
		errs["employee_name"] = err.Error()
	}
	if err := validation.ValidateEmail(d.EmployeeEmail); err != nil {
		errs["employee_email"] = err.Error()
	}
	switch {
	case d.Department == "":
		errs["department"] = "department is required"
	case len(d.Department) > 100:
		errs["department"] = "department must be at most 100 characters"
	}
	if len(d.Comments) > 5000 {
		errs["comments"] = "comments must be at most 5000 characters"
	}

	var unanswered []string
	for _, id := range inst.QuestionIDs() {
		v, ok := d.Answers[id]
		if !ok || !inst.InScale(v) {
			unanswered = append(unanswered, id)
		}
	}
	if len(unanswered) > 0 {
		errs["responses"] = strconv.Itoa(len(unanswered)) + " question(s) unanswered: " + strings.Join(unanswered, ", ")
	}
	for id := range d.Answers {
		if _, ok := inst.DimensionOf(id); !ok {
			errs["responses"] = "unknown question " + id
			break
		}
	}
	return errs.OrNil()
}

// Step is the outcome of one flow transition.
type Step struct {
	State    State
	Invite   *Invite
	Draft    Draft
	Errors   FieldErrors
	Response *Response
}

// Flow drives the respondent form: token check, open, answer, submit.
type Flow struct {
	svc *Service
}

func NewFlow(svc *Service) *Flow {
	return &Flow{svc: svc}
}

// Open resolves a token to the form state and records the first open.
func (f *Flow) Open(ctx context.Context, token string) Step {
	if strings.TrimSpace(token) == "" {
		return Step{State: StateNoToken}
	}
	if !f.svc.Validate(ctx, token) {
		return Step{State: StateInvalidToken}
	}

	inv, err := f.svc.GetByToken(ctx, token)
	if err != nil {
		return Step{State: StateInvalidToken}
	}
	if err := f.svc.MarkOpened(ctx, token); err != nil {
		log.Error().Err(err).Str("invite_id", inv.ID.String()).Msg("Failed to mark invite opened")
	}

	return Step{State: StateValidUnanswered, Invite: inv, Draft: DraftFromInvite(inv)}
}

// Submit stores the draft. A rejected draft keeps the flow in ANSWERING with
// the field errors; a token that is gone or already used ends in
// INVALID_TOKEN. Other errors are returned for the caller to report.
func (f *Flow) Submit(ctx context.Context, token string, draft Draft) (Step, error) {
	if strings.TrimSpace(token) == "" {
		return Step{State: StateNoToken}, nil
	}

	resp, err := f.svc.AddResponse(ctx, token, draft)
	if err != nil {
		var fieldErrs FieldErrors
		switch {
		case errors.As(err, &fieldErrs):
			inv, _ := f.svc.GetByToken(ctx, token)
			if inv == nil || inv.Completed {
				return Step{State: StateInvalidToken}, nil
			}
			draft.normalize()
			return Step{State: StateAnswering, Invite: inv, Draft: draft, Errors: fieldErrs}, nil
		case errors.Is(err, ErrAlreadyCompleted), errors.Is(err, ErrInviteNotFound):
			return Step{State: StateInvalidToken}, nil
		default:
			return Step{State: StateAnswering, Draft: draft}, err
		}
	}

	return Step{State: StateSubmitted, Response: resp}, nil
}
