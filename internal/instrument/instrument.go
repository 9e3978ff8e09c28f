// Package instrument holds the COPSOQ-II questionnaire definition: its
// dimensions, the question ids that belong to each, the answer scale and the
// department choices offered on the respondent form.
package instrument

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed copsoq.yaml
var copsoqYAML []byte

// Kind separates dimensions where a high mean signals risk (demand) from
// those where a low mean does (resource).
type Kind string

const (
	KindDemand   Kind = "demand"
	KindResource Kind = "resource"
)

type Question struct {
	ID   string `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

type Dimension struct {
	Name        string     `yaml:"name" json:"name"`
	Kind        Kind       `yaml:"kind" json:"kind"`
	Description string     `yaml:"description" json:"description"`
	Questions   []Question `yaml:"questions" json:"questions"`
}

type ScaleLabel struct {
	Value int    `yaml:"value" json:"value"`
	Text  string `yaml:"text" json:"text"`
}

type Scale struct {
	Min    int          `yaml:"min" json:"min"`
	Max    int          `yaml:"max" json:"max"`
	Labels []ScaleLabel `yaml:"labels" json:"labels"`
}

// Instrument is a validated questionnaire definition.
type Instrument struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Scale       Scale       `yaml:"scale" json:"scale"`
	Departments []string    `yaml:"departments" json:"departments"`
	Dimensions  []Dimension `yaml:"dimensions" json:"dimensions"`

	byQuestion map[string]int
	questions  []string
}

var (
	ErrEmptyInstrument   = errors.New("instrument has no dimensions")
	ErrDuplicateQuestion = errors.New("question id appears more than once")
	ErrInvalidScale      = errors.New("invalid answer scale")
)

// Parse decodes and validates an instrument definition.
func Parse(data []byte) (*Instrument, error) {
	var inst Instrument
	if err := yaml.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("failed to decode instrument: %w", err)
	}
	if err := inst.index(); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (in *Instrument) index() error {
	if len(in.Dimensions) == 0 {
		return ErrEmptyInstrument
	}
	if in.Scale.Max <= in.Scale.Min {
		return ErrInvalidScale
	}

	in.byQuestion = make(map[string]int)
	in.questions = nil
	for i, dim := range in.Dimensions {
		if dim.Name == "" {
			return fmt.Errorf("dimension %d has no name", i)
		}
		if dim.Kind != KindDemand && dim.Kind != KindResource {
			return fmt.Errorf("dimension %q has unknown kind %q", dim.Name, dim.Kind)
		}
		if len(dim.Questions) == 0 {
			return fmt.Errorf("dimension %q has no questions", dim.Name)
		}
		for _, q := range dim.Questions {
			if _, dup := in.byQuestion[q.ID]; dup {
				return fmt.Errorf("%w: %s", ErrDuplicateQuestion, q.ID)
			}
			in.byQuestion[q.ID] = i
			in.questions = append(in.questions, q.ID)
		}
	}
	return nil
}

// QuestionIDs returns every question id in form order.
func (in *Instrument) QuestionIDs() []string {
	out := make([]string, len(in.questions))
	copy(out, in.questions)
	return out
}

// DimensionOf returns the dimension a question belongs to.
func (in *Instrument) DimensionOf(questionID string) (Dimension, bool) {
	i, ok := in.byQuestion[questionID]
	if !ok {
		return Dimension{}, false
	}
	return in.Dimensions[i], true
}

// Dimension looks a dimension up by name.
func (in *Instrument) Dimension(name string) (Dimension, bool) {
	for _, dim := range in.Dimensions {
		if dim.Name == name {
			return dim, true
		}
	}
	return Dimension{}, false
}

// DimensionNames returns dimension names in form order.
func (in *Instrument) DimensionNames() []string {
	names := make([]string, 0, len(in.Dimensions))
	for _, dim := range in.Dimensions {
		names = append(names, dim.Name)
	}
	return names
}

// InScale reports whether v is a valid answer.
func (in *Instrument) InScale(v int) bool {
	return v >= in.Scale.Min && v <= in.Scale.Max
}

// IsDepartment reports whether dept is one of the offered departments.
func (in *Instrument) IsDepartment(dept string) bool {
	for _, d := range in.Departments {
		if d == dept {
			return true
		}
	}
	return false
}

var (
	copsoqOnce sync.Once
	copsoq     *Instrument
)

// COPSOQ returns the embedded 56-question COPSOQ-II instrument. The embedded
// file is validated by tests, so a parse failure here is a build defect.
func COPSOQ() *Instrument {
	copsoqOnce.Do(func() {
		inst, err := Parse(copsoqYAML)
		if err != nil {
			panic("instrument: embedded copsoq.yaml is invalid: " + err.Error())
		}
		copsoq = inst
	})
	return copsoq
}
