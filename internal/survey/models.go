package survey

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInviteNotFound   = errors.New("invite not found")
	ErrAlreadyCompleted = errors.New("invite already completed")
	ErrDuplicateToken   = errors.New("invite token already exists")
	ErrAnswersSealed    = errors.New("answers are sealed and no identity is configured")
)

// Invite is one employee's access grant to one assessment's questionnaire.
// Token never changes after creation and Completed never goes back to false.
type Invite struct {
	ID            uuid.UUID  `json:"id"`
	AssessmentID  string     `json:"assessment_id"`
	EmployeeName  string     `json:"employee_name"`
	EmployeeEmail string     `json:"employee_email"`
	Department    string     `json:"department"`
	Token         string     `json:"token"`
	Sent          bool       `json:"sent"`
	SentAt        *time.Time `json:"sent_at"`
	Opened        bool       `json:"opened"`
	OpenedAt      *time.Time `json:"opened_at"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	RemindedAt    *time.Time `json:"reminded_at,omitempty"`
	ReminderCount int        `json:"reminder_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// InviteStatus is the furthest lifecycle step an invite has reached.
type InviteStatus string

const (
	StatusPending   InviteStatus = "pending"
	StatusSent      InviteStatus = "sent"
	StatusOpened    InviteStatus = "opened"
	StatusCompleted InviteStatus = "completed"
)

func (s InviteStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusOpened, StatusCompleted:
		return true
	}
	return false
}

// Status derives the lifecycle step from the flags.
func (inv *Invite) Status() InviteStatus {
	switch {
	case inv.Completed:
		return StatusCompleted
	case inv.Opened:
		return StatusOpened
	case inv.Sent:
		return StatusSent
	default:
		return StatusPending
	}
}

// InviteFilter narrows invite listings. Zero values match everything.
type InviteFilter struct {
	AssessmentID string
	Department   string
	Status       InviteStatus
}

// Answers maps question ids (q1..q56) to Likert values.
type Answers map[string]int

// Response is a submitted questionnaire with its derived scores.
type Response struct {
	ID                uuid.UUID          `json:"id"`
	InviteID          *uuid.UUID         `json:"invite_id,omitempty"`
	AssessmentID      string             `json:"assessment_id"`
	EmployeeName      string             `json:"employee_name"`
	EmployeeEmail     string             `json:"employee_email"`
	Department        string             `json:"department"`
	Token             string             `json:"token"`
	Responses         Answers            `json:"responses,omitempty"`
	AnswersSealed     string             `json:"-"`
	Comments          string             `json:"comments,omitempty"`
	DimensionScores   map[string]float64 `json:"dimension_scores"`
	MissingDimensions []string           `json:"missing_dimensions,omitempty"`
	OverallScore      float64            `json:"overall_score"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Sealed reports whether the raw answers are stored encrypted.
func (r *Response) Sealed() bool {
	return r.AnswersSealed != ""
}

// ResponseFilter narrows response listings. WithAnswers asks for sealed
// answers to be decrypted; without it sealed responses carry scores only.
type ResponseFilter struct {
	AssessmentID string
	Department   string
	WithAnswers  bool
}

// AssessmentSummary is one row of the assessment picker.
type AssessmentSummary struct {
	AssessmentID string    `json:"assessment_id"`
	Invites      int       `json:"invites"`
	Completed    int       `json:"completed"`
	FirstInvite  time.Time `json:"first_invite"`
}
