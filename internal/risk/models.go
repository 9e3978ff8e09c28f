// Package risk records NR-01 psychosocial risk assessments of client
// companies and scores them from weighted factors.
package risk

import (
	"errors"
	"html/template"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/markup"
	"github.com/aliuyar1234/nr01desk/internal/validation"
	"github.com/google/uuid"
)

var (
	// ErrAssessmentNotFound is returned when a risk assessment is not found
	ErrAssessmentNotFound = errors.New("risk assessment not found")

	// ErrNoFactors is returned when an assessment has no factors to score
	ErrNoFactors = errors.New("at least one factor is required")
)

// Level is the risk band of a score.
type Level string

const (
	LevelLow      Level = "Baixo"
	LevelMedium   Level = "Médio"
	LevelHigh     Level = "Alto"
	LevelVeryHigh Level = "Muito Alto"
)

// Levels lists the bands from lowest to highest.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh, LevelVeryHigh}
}

// ParseLevel accepts a level by name, ignoring case.
func ParseLevel(s string) (Level, bool) {
	for _, l := range Levels() {
		if strings.EqualFold(string(l), strings.TrimSpace(s)) {
			return l, true
		}
	}
	return "", false
}

// StatusCompleted is the status of every recorded assessment.
const StatusCompleted = "completed"

// MaxFactor is the top of the 0..10 factor scale.
const MaxFactor = 10

// Factor is one psychosocial factor offered on the assessment form.
type Factor struct {
	Key   string
	Label string
}

// DefaultFactors are the factors the assessment form asks for.
func DefaultFactors() []Factor {
	return []Factor{
		{Key: "carga_trabalho", Label: "Carga de Trabalho"},
		{Key: "controle", Label: "Controle sobre Trabalho"},
		{Key: "apoio_social", Label: "Apoio Social"},
		{Key: "seguranca", Label: "Segurança no Emprego"},
		{Key: "equilibrio", Label: "Relação Trabalho-Vida"},
	}
}

// Factors maps factor names to a value on the 0..10 scale.
type Factors map[string]int

// Score averages the factors and scales the mean to 0..100, rounded to two
// decimals, then bands it: up to 25 Baixo, 50 Médio, 75 Alto, above that
// Muito Alto.
func Score(factors Factors) (float64, Level, error) {
	if len(factors) == 0 {
		return 0, "", ErrNoFactors
	}
	sum := 0
	for _, v := range factors {
		sum += v
	}
	avg := float64(sum) / float64(len(factors)) * 10
	score := math.Round(avg*100) / 100
	return score, LevelFor(score), nil
}

// LevelFor bands a 0..100 score.
func LevelFor(score float64) Level {
	switch {
	case score <= 25:
		return LevelLow
	case score <= 50:
		return LevelMedium
	case score <= 75:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// Assessment is one NR-01 risk assessment of a client.
type Assessment struct {
	ID                uuid.UUID `json:"id"`
	ClientName        string    `json:"client_name"`
	Sector            string    `json:"sector"`
	EmployeesCount    int       `json:"employees_count"`
	Factors           Factors   `json:"factors"`
	RiskScore         float64   `json:"risk_score"`
	RiskLevel         Level     `json:"risk_level"`
	Recommendations   string    `json:"recommendations"`
	PreventiveActions string    `json:"preventive_actions"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RecommendationsHTML renders the Markdown recommendations.
func (a *Assessment) RecommendationsHTML() template.HTML {
	return markup.MustHTML(a.Recommendations)
}

// PreventiveActionsHTML renders the Markdown preventive actions.
func (a *Assessment) PreventiveActionsHTML() template.HTML {
	return markup.MustHTML(a.PreventiveActions)
}

// rescore recomputes score and level from the factors.
func (a *Assessment) rescore() error {
	score, level, err := Score(a.Factors)
	if err != nil {
		return err
	}
	a.RiskScore, a.RiskLevel = score, level
	return nil
}

// Input holds the editable fields of an assessment.
type Input struct {
	ClientName        string  `json:"client_name"`
	Sector            string  `json:"sector"`
	EmployeesCount    int     `json:"employees_count"`
	Factors           Factors `json:"factors"`
	Recommendations   string  `json:"recommendations"`
	PreventiveActions string  `json:"preventive_actions"`
}

// ValidationError maps field names to messages.
type ValidationError map[string]string

func (v ValidationError) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "invalid risk assessment: " + strings.Join(parts, "; ")
}

func (in *Input) normalize() {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.Sector = strings.TrimSpace(in.Sector)
	in.Recommendations = strings.TrimSpace(in.Recommendations)
	in.PreventiveActions = strings.TrimSpace(in.PreventiveActions)
}

// Validate reports field errors keyed by JSON name.
func (in *Input) Validate() ValidationError {
	errs := ValidationError{}
	if err := validation.ValidateName(in.ClientName); err != nil {
		errs["client_name"] = err.Error()
	}
	if len(in.Sector) > 255 {
		errs["sector"] = "sector must be at most 255 characters"
	}
	if in.EmployeesCount < 0 {
		errs["employees_count"] = "employees count must not be negative"
	}
	if len(in.Factors) == 0 {
		errs["factors"] = ErrNoFactors.Error()
	}
	for name, v := range in.Factors {
		if strings.TrimSpace(name) == "" {
			errs["factors"] = "factor names must not be empty"
			break
		}
		if v < 0 || v > MaxFactor {
			errs["factors"] = "factor " + name + " must be between 0 and 10"
			break
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Build validates in and scores a new completed assessment.
func Build(in Input, now time.Time) (*Assessment, error) {
	in.normalize()
	if errs := in.Validate(); errs != nil {
		return nil, errs
	}
	a := &Assessment{
		ID:                uuid.New(),
		ClientName:        in.ClientName,
		Sector:            in.Sector,
		EmployeesCount:    in.EmployeesCount,
		Factors:           in.Factors,
		Recommendations:   in.Recommendations,
		PreventiveActions: in.PreventiveActions,
		Status:            StatusCompleted,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := a.rescore(); err != nil {
		return nil, err
	}
	return a, nil
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	ClientName        *string `json:"client_name,omitempty"`
	Sector            *string `json:"sector,omitempty"`
	EmployeesCount    *int    `json:"employees_count,omitempty"`
	Factors           Factors `json:"factors,omitempty"`
	Recommendations   *string `json:"recommendations,omitempty"`
	PreventiveActions *string `json:"preventive_actions,omitempty"`
	Status            *string `json:"status,omitempty"`
}

// Apply updates a in place, rescoring when the factors change.
func (p Patch) Apply(a *Assessment, now time.Time) error {
	in := Input{
		ClientName:        a.ClientName,
		Sector:            a.Sector,
		EmployeesCount:    a.EmployeesCount,
		Factors:           a.Factors,
		Recommendations:   a.Recommendations,
		PreventiveActions: a.PreventiveActions,
	}
	if p.ClientName != nil {
		in.ClientName = *p.ClientName
	}
	if p.Sector != nil {
		in.Sector = *p.Sector
	}
	if p.EmployeesCount != nil {
		in.EmployeesCount = *p.EmployeesCount
	}
	if p.Factors != nil {
		in.Factors = p.Factors
	}
	if p.Recommendations != nil {
		in.Recommendations = *p.Recommendations
	}
	if p.PreventiveActions != nil {
		in.PreventiveActions = *p.PreventiveActions
	}
	in.normalize()
	if errs := in.Validate(); errs != nil {
		return errs
	}

	a.ClientName = in.ClientName
	a.Sector = in.Sector
	a.EmployeesCount = in.EmployeesCount
	a.Recommendations = in.Recommendations
	a.PreventiveActions = in.PreventiveActions
	if p.Status != nil {
		if s := strings.TrimSpace(*p.Status); s != "" {
			a.Status = s
		}
	}
	if p.Factors != nil {
		a.Factors = in.Factors
		if err := a.rescore(); err != nil {
			return err
		}
	}
	a.UpdatedAt = now
	return nil
}
