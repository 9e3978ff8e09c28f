package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/dashboard"
	"github.com/aliuyar1234/nr01desk/internal/instrument"
	"github.com/aliuyar1234/nr01desk/internal/pricing"
	"github.com/aliuyar1234/nr01desk/internal/proposals"
	"github.com/aliuyar1234/nr01desk/internal/risk"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, name string, data *TemplateData) *httptest.ResponseRecorder {
	t.Helper()
	require.NoError(t, InitTemplates())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	RenderTemplate(rec, req, name, data)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	return rec
}

func TestInitTemplates(t *testing.T) {
	require.NoError(t, InitTemplates())
	require.Len(t, templates, len(pages))
}

func TestRenderUnknownTemplate(t *testing.T) {
	require.NoError(t, InitTemplates())
	rec := httptest.NewRecorder()
	RenderTemplate(rec, httptest.NewRequest(http.MethodGet, "/", nil), "missing.html", &TemplateData{})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSurveyTemplateStates(t *testing.T) {
	inst := instrument.COPSOQ()

	t.Run("answering shows questions and errors", func(t *testing.T) {
		rec := render(t, "survey.html", &TemplateData{
			CSRFToken: "csrf-123",
			Data: SurveyPage{
				State:      survey.StateAnswering,
				Token:      "tok-ana",
				Instrument: inst,
				Draft:      survey.Draft{EmployeeName: "Ana <Silva>", Answers: survey.Answers{"q1": 3}},
				Errors:     survey.FieldErrors{"responses": "55 question(s) unanswered"},
			},
		})
		body := rec.Body.String()
		require.Contains(t, body, `name="token" value="tok-ana"`)
		require.Contains(t, body, `name="_csrf" value="csrf-123"`)
		require.Contains(t, body, "Ana &lt;Silva&gt;")
		require.Contains(t, body, "55 question(s) unanswered")
		require.Contains(t, body, `name="q56"`)
		require.Contains(t, body, `name="q1" value="3" checked`)
	})

	t.Run("invalid token hides the form", func(t *testing.T) {
		rec := render(t, "survey.html", &TemplateData{Data: SurveyPage{State: survey.StateInvalidToken, Instrument: inst}})
		require.Contains(t, rec.Body.String(), "Link inválido ou já utilizado")
		require.NotContains(t, rec.Body.String(), `name="q1"`)
	})

	t.Run("submitted", func(t *testing.T) {
		rec := render(t, "survey.html", &TemplateData{Data: SurveyPage{State: survey.StateSubmitted, Instrument: inst}})
		require.Contains(t, rec.Body.String(), "Obrigado!")
	})
}

func TestSurveyPageAnswer(t *testing.T) {
	p := SurveyPage{Draft: survey.Draft{Answers: survey.Answers{"q1": 0}}}
	require.Equal(t, 0, p.Answer("q1"))
	require.Equal(t, -1, p.Answer("q2"))
}

func TestDashboardTemplate(t *testing.T) {
	inst := instrument.COPSOQ()
	created := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	invites := []survey.Invite{
		{ID: uuid.New(), AssessmentID: "NR01-2025-A", Department: "TI", Sent: true, Completed: true, CreatedAt: created},
		{ID: uuid.New(), AssessmentID: "NR01-2025-A", Department: "TI", Sent: true, CreatedAt: created},
	}
	responses := []survey.Response{{
		AssessmentID:    "NR01-2025-A",
		Department:      "TI",
		DimensionScores: map[string]float64{"Demandas Quantitativas": 3.75},
		OverallScore:    3.75,
	}}
	filter := dashboard.Filter{AssessmentID: "NR01-2025-A"}
	report := dashboard.Aggregate(inst, filter, invites, responses)

	rec := render(t, "dashboard.html", &TemplateData{
		IsAuthenticated: true,
		Data: map[string]interface{}{
			"Filter":      filter,
			"Assessments": []survey.AssessmentSummary{{AssessmentID: "NR01-2025-A", Invites: 2, Completed: 1}},
			"Report":      report,
			"Departments": inst.Departments,
		},
	})
	body := rec.Body.String()
	require.Contains(t, body, "Demandas Quantitativas")
	require.Contains(t, body, "50,0%")
	require.Contains(t, body, `href="/admin/invites"`)
}

func TestProposalDetailTemplate(t *testing.T) {
	p := &proposals.Proposal{
		ID:         uuid.New(),
		ClientName: "Empresa X",
		Title:      "Programa NR-01",
		Items: []proposals.Item{{
			ServiceName: "Laudo", Hours: decimal.NewFromInt(8), Quantity: 2,
			UnitPrice: decimal.RequireFromString("1500.50"), Total: decimal.RequireFromString("3001"),
		}},
		TotalValue: decimal.RequireFromString("3001"),
		FinalTotal: decimal.RequireFromString("3001"),
		Status:     proposals.StatusDraft,
	}
	rec := render(t, "proposal_detail.html", &TemplateData{
		IsAuthenticated: true,
		Data:            map[string]interface{}{"Proposal": p, "Statuses": proposals.Statuses()},
	})
	body := rec.Body.String()
	require.Contains(t, body, "R$ 1.500,50")
	require.Contains(t, body, "R$ 3.001,00")
}

func TestRiskDetailTemplate(t *testing.T) {
	a := &risk.Assessment{
		ID:              uuid.New(),
		ClientName:      "Empresa X",
		Factors:         risk.Factors{"controle": 6, "carga_trabalho": 4, "ruido": 2},
		RiskScore:       40,
		RiskLevel:       risk.LevelMedium,
		Recommendations: "**Revisar** jornadas",
	}
	rec := render(t, "risk_detail.html", &TemplateData{
		IsAuthenticated: true,
		Data:            map[string]interface{}{"Assessment": a, "Factors": factorRows(a.Factors)},
	})
	body := rec.Body.String()
	require.Contains(t, body, "<strong>Revisar</strong>")
	require.Contains(t, body, "Controle sobre Trabalho")
}

func TestFactorRows(t *testing.T) {
	rows := factorRows(risk.Factors{"ruido": 2, "controle": 6, "carga_trabalho": 4, "iluminacao": 1})
	require.Equal(t, []FactorRow{
		{Label: "Carga de Trabalho", Value: 4},
		{Label: "Controle sobre Trabalho", Value: 6},
		{Label: "iluminacao", Value: 1},
		{Label: "ruido", Value: 2},
	}, rows)
}

func TestPricingTemplate(t *testing.T) {
	params := pricing.DefaultParameters()
	hour, err := params.TechnicalHour()
	require.NoError(t, err)

	rec := render(t, "pricing.html", &TemplateData{
		IsAuthenticated: true,
		Data:            map[string]interface{}{"Params": &params, "TechnicalHour": hour, "Regimes": pricing.Regimes()},
	})
	require.Contains(t, rec.Body.String(), "R$ 43,75")
}
