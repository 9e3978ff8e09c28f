package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 2, 3, 14, 0, 0, 0, time.UTC)

func fiveFactors(v int) Factors {
	f := Factors{}
	for _, factor := range DefaultFactors() {
		f[factor.Key] = v
	}
	return f
}

// Scenario B: five factors of 5 score 50.0, level Médio.
func TestScoreScenarioB(t *testing.T) {
	score, level, err := Score(fiveFactors(5))
	require.NoError(t, err)
	require.Equal(t, 50.0, score)
	require.Equal(t, LevelMedium, level)
}

func TestScoreRounding(t *testing.T) {
	score, level, err := Score(Factors{"a": 3, "b": 4, "c": 4})
	require.NoError(t, err)
	require.Equal(t, 36.67, score)
	require.Equal(t, LevelMedium, level)

	_, _, err = Score(Factors{})
	require.ErrorIs(t, err, ErrNoFactors)
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{0, LevelLow},
		{25, LevelLow},
		{25.01, LevelMedium},
		{50, LevelMedium},
		{75, LevelHigh},
		{75.01, LevelVeryHigh},
		{100, LevelVeryHigh},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, LevelFor(tt.score), "score %v", tt.score)
	}
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("muito alto")
	require.True(t, ok)
	require.Equal(t, LevelVeryHigh, l)

	l, ok = ParseLevel("MÉDIO")
	require.True(t, ok)
	require.Equal(t, LevelMedium, l)

	_, ok = ParseLevel("critico")
	require.False(t, ok)
}

func TestBuild(t *testing.T) {
	a, err := Build(Input{
		ClientName:      "  Construtora Beta ",
		Sector:          "Construção",
		EmployeesCount:  120,
		Factors:         fiveFactors(8),
		Recommendations: "- Rodízio de tarefas\n- Pausas programadas",
	}, testNow)
	require.NoError(t, err)
	require.Equal(t, "Construtora Beta", a.ClientName)
	require.Equal(t, 80.0, a.RiskScore)
	require.Equal(t, LevelVeryHigh, a.RiskLevel)
	require.Equal(t, StatusCompleted, a.Status)
	require.Equal(t, testNow, a.CreatedAt)

	html := string(a.RecommendationsHTML())
	require.Contains(t, html, "<li>Rodízio de tarefas</li>")
	require.Equal(t, "", string(a.PreventiveActionsHTML()))
}

func TestBuildValidation(t *testing.T) {
	_, err := Build(Input{EmployeesCount: -1, Factors: Factors{"carga_trabalho": 11}}, testNow)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr, "client_name")
	require.Contains(t, verr, "employees_count")
	require.Contains(t, verr["factors"], "between 0 and 10")

	_, err = Build(Input{ClientName: "X"}, testNow)
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr, "factors")
}

func TestPatchRescoresOnlyOnFactorChange(t *testing.T) {
	a, err := Build(Input{ClientName: "Loja Gama", Sector: "Comércio", Factors: fiveFactors(2)}, testNow)
	require.NoError(t, err)
	require.Equal(t, 20.0, a.RiskScore)

	later := testNow.Add(time.Hour)
	sector := "Varejo"
	require.NoError(t, Patch{Sector: &sector}.Apply(a, later))
	require.Equal(t, "Varejo", a.Sector)
	require.Equal(t, 20.0, a.RiskScore)
	require.Equal(t, later, a.UpdatedAt)

	require.NoError(t, Patch{Factors: fiveFactors(6)}.Apply(a, later))
	require.Equal(t, 60.0, a.RiskScore)
	require.Equal(t, LevelHigh, a.RiskLevel)

	empty := ""
	err = Patch{ClientName: &empty}.Apply(a, later)
	require.Error(t, err)
	require.Equal(t, "Loja Gama", a.ClientName)
}

func TestNormalizeImported(t *testing.T) {
	a := Assessment{ClientName: "Legado", Factors: Factors{"x": 9, "y": 10}, RiskScore: 1, RiskLevel: LevelLow}
	require.NoError(t, normalizeImported(&a, testNow))
	require.Equal(t, 95.0, a.RiskScore)
	require.Equal(t, LevelVeryHigh, a.RiskLevel)
	require.Equal(t, StatusCompleted, a.Status)

	noFactors := Assessment{ClientName: "Sem fatores", RiskScore: 40}
	require.NoError(t, normalizeImported(&noFactors, testNow))
	require.Equal(t, LevelMedium, noFactors.RiskLevel)
	require.NotNil(t, noFactors.Factors)
}

func TestRecommendationsDropRawHTML(t *testing.T) {
	a := Assessment{Recommendations: "Texto <script>alert(1)</script>"}
	require.False(t, strings.Contains(string(a.RecommendationsHTML()), "<script>"))
}
