// Package dashboard aggregates invites and responses into completion and
// scoring views for one assessment or department.
package dashboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/aliuyar1234/nr01desk/internal/instrument"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"golang.org/x/sync/errgroup"
)

// Alert thresholds. Demand dimensions flag high means, resource dimensions
// flag low ones.
const (
	LowResponseRate       = 50.0
	ExcellentResponseRate = 75.0

	DemandHigh       = 3.5
	DemandModerate   = 2.5
	ResourceHigh     = 1.5
	ResourceModerate = 2.0
)

// Severity orders alerts for display.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityWarning  Severity = "warning"
	SeverityPositive Severity = "positive"
)

// Source is the read side the dashboard needs.
type Source interface {
	ListInvites(ctx context.Context, filter survey.InviteFilter) ([]survey.Invite, error)
	ListResponses(ctx context.Context, filter survey.ResponseFilter) ([]survey.Response, error)
}

// Filter selects the invites and responses to aggregate.
type Filter struct {
	AssessmentID string `json:"assessment_id,omitempty"`
	Department   string `json:"department,omitempty"`
}

type Counts struct {
	Created   int `json:"created"`
	Sent      int `json:"sent"`
	Opened    int `json:"opened"`
	Completed int `json:"completed"`
	Responses int `json:"responses"`
}

type DimensionStat struct {
	Name      string          `json:"name"`
	Kind      instrument.Kind `json:"kind"`
	Mean      float64         `json:"mean"`
	Responses int             `json:"responses"`
	Severity  Severity        `json:"severity,omitempty"`
}

type DepartmentRow struct {
	Department   string  `json:"department"`
	Invites      int     `json:"invites"`
	Sent         int     `json:"sent"`
	Completed    int     `json:"completed"`
	ResponseRate float64 `json:"response_rate"`
	Responses    int     `json:"responses"`
	OverallMean  float64 `json:"overall_mean"`
}

type Alert struct {
	Severity  Severity `json:"severity"`
	Dimension string   `json:"dimension,omitempty"`
	Message   string   `json:"message"`
}

// Report is one rendered dashboard.
type Report struct {
	Filter       Filter          `json:"filter"`
	Counts       Counts          `json:"counts"`
	ResponseRate float64         `json:"response_rate"`
	OverallMean  float64         `json:"overall_mean"`
	Dimensions   []DimensionStat `json:"dimensions"`
	Departments  []DepartmentRow `json:"departments"`
	Alerts       []Alert         `json:"alerts"`
}

// Service builds reports.
type Service struct {
	src  Source
	inst *instrument.Instrument
}

func NewService(src Source, inst *instrument.Instrument) *Service {
	return &Service{src: src, inst: inst}
}

// Build loads invites and responses concurrently and aggregates them.
func (s *Service) Build(ctx context.Context, filter Filter) (*Report, error) {
	var (
		invites   []survey.Invite
		responses []survey.Response
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invites, err = s.src.ListInvites(gctx, survey.InviteFilter{
			AssessmentID: filter.AssessmentID,
			Department:   filter.Department,
		})
		if err != nil {
			return fmt.Errorf("failed to load invites: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		responses, err = s.src.ListResponses(gctx, survey.ResponseFilter{
			AssessmentID: filter.AssessmentID,
			Department:   filter.Department,
		})
		if err != nil {
			return fmt.Errorf("failed to load responses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Aggregate(s.inst, filter, invites, responses), nil
}

// Aggregate computes a report from already loaded records. It does no I/O.
func Aggregate(inst *instrument.Instrument, filter Filter, invites []survey.Invite, responses []survey.Response) *Report {
	r := &Report{Filter: filter}

	for _, inv := range invites {
		r.Counts.Created++
		if inv.Sent {
			r.Counts.Sent++
		}
		if inv.Opened {
			r.Counts.Opened++
		}
		if inv.Completed {
			r.Counts.Completed++
		}
	}
	r.Counts.Responses = len(responses)
	r.ResponseRate = Rate(r.Counts.Completed, r.Counts.Sent)

	overall := 0.0
	for _, resp := range responses {
		overall += resp.OverallScore
	}
	if len(responses) > 0 {
		r.OverallMean = overall / float64(len(responses))
	}

	r.Dimensions = dimensionStats(inst, responses)
	r.Departments = departmentRows(invites, responses)
	r.Alerts = alerts(r)
	return r
}

// Rate is completed/sent as a percentage, 0 when nothing was sent.
func Rate(completed, sent int) float64 {
	if sent == 0 {
		return 0
	}
	return float64(completed) / float64(sent) * 100
}

// dimensionStats averages each dimension over the responses that answered
// it. A response listing the dimension as missing does not pull the mean
// toward zero.
func dimensionStats(inst *instrument.Instrument, responses []survey.Response) []DimensionStat {
	stats := make([]DimensionStat, 0, len(inst.Dimensions))
	for _, dim := range inst.Dimensions {
		st := DimensionStat{Name: dim.Name, Kind: dim.Kind}
		sum := 0.0
		for _, resp := range responses {
			if contains(resp.MissingDimensions, dim.Name) {
				continue
			}
			v, ok := resp.DimensionScores[dim.Name]
			if !ok {
				continue
			}
			sum += v
			st.Responses++
		}
		if st.Responses > 0 {
			st.Mean = sum / float64(st.Responses)
			st.Severity = Classify(dim.Kind, st.Mean)
		}
		stats = append(stats, st)
	}
	return stats
}

// Classify maps a dimension mean to an alert severity, or "" when healthy.
func Classify(kind instrument.Kind, mean float64) Severity {
	if kind == instrument.KindDemand {
		switch {
		case mean >= DemandHigh:
			return SeverityHigh
		case mean >= DemandModerate:
			return SeverityModerate
		}
		return ""
	}
	switch {
	case mean < ResourceHigh:
		return SeverityHigh
	case mean < ResourceModerate:
		return SeverityModerate
	}
	return ""
}

func departmentRows(invites []survey.Invite, responses []survey.Response) []DepartmentRow {
	rows := map[string]*DepartmentRow{}
	row := func(dept string) *DepartmentRow {
		r, ok := rows[dept]
		if !ok {
			r = &DepartmentRow{Department: dept}
			rows[dept] = r
		}
		return r
	}

	for _, inv := range invites {
		r := row(inv.Department)
		r.Invites++
		if inv.Sent {
			r.Sent++
		}
		if inv.Completed {
			r.Completed++
		}
	}
	sums := map[string]float64{}
	for _, resp := range responses {
		r := row(resp.Department)
		r.Responses++
		sums[resp.Department] += resp.OverallScore
	}

	out := make([]DepartmentRow, 0, len(rows))
	for dept, r := range rows {
		r.ResponseRate = Rate(r.Completed, r.Sent)
		if r.Responses > 0 {
			r.OverallMean = sums[dept] / float64(r.Responses)
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}

func alerts(r *Report) []Alert {
	var out []Alert

	switch {
	case r.Counts.Sent > 0 && r.ResponseRate < LowResponseRate:
		out = append(out, Alert{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Taxa de resposta (%.1f%%) abaixo de 50%%. Considere enviar lembretes.", r.ResponseRate),
		})
	case r.ResponseRate >= ExcellentResponseRate:
		out = append(out, Alert{
			Severity: SeverityPositive,
			Message:  fmt.Sprintf("Excelente! Taxa de resposta (%.1f%%).", r.ResponseRate),
		})
	}

	for _, d := range r.Dimensions {
		if d.Severity == "" {
			continue
		}
		out = append(out, Alert{
			Severity:  d.Severity,
			Dimension: d.Name,
			Message:   dimensionMessage(d),
		})
	}
	return out
}

func dimensionMessage(d DimensionStat) string {
	var text string
	switch {
	case d.Kind == instrument.KindDemand && d.Severity == SeverityHigh:
		text = "Nível de demanda crítico"
	case d.Kind == instrument.KindDemand:
		text = "Demanda elevada"
	case d.Severity == SeverityHigh:
		text = "Nível crítico, requer ação"
	default:
		text = "Nível baixo, atenção necessária"
	}
	return fmt.Sprintf("%s: Score %.2f - %s", d.Name, d.Mean, text)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
