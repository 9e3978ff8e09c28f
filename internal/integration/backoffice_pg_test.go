package integration

import (
	"context"
	"testing"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/catalog"
	"github.com/aliuyar1234/nr01desk/internal/export"
	"github.com/aliuyar1234/nr01desk/internal/legacy"
	"github.com/aliuyar1234/nr01desk/internal/pricing"
	"github.com/aliuyar1234/nr01desk/internal/proposals"
	"github.com/aliuyar1234/nr01desk/internal/risk"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestIntegration_CatalogProposalsRisk(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	cat := catalog.NewCatalog(pool)

	first, err := cat.Create(ctx, catalog.Input{
		Name:     "Diagnóstico NR-01",
		Price:    decimal.RequireFromString("1500.50"),
		Hours:    decimal.NewFromInt(8),
		Category: "Diagnóstico",
	})
	require.NoError(t, err)
	require.Equal(t, "srv-001", first.ID)

	second, err := cat.Create(ctx, catalog.Input{Name: "Palestra", Price: decimal.NewFromInt(800)})
	require.NoError(t, err)
	require.Equal(t, "srv-002", second.ID)

	categories, err := cat.Categories(ctx)
	require.NoError(t, err)
	require.Contains(t, categories, "Diagnóstico")

	props := proposals.NewService(pool)
	p, err := props.Create(ctx, proposals.CreateInput{
		ClientName: "Acme Ltda",
		Title:      "Programa NR-01",
		Items: []proposals.Item{
			proposals.ItemFromService(*first, 2),
			proposals.ItemFromService(*second, 1),
		},
	})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("3801").Equal(p.TotalValue), p.TotalValue.String())
	require.Equal(t, proposals.StatusDraft, p.Status)

	updated, err := props.UpdateStatus(ctx, p.ID, proposals.StatusSent)
	require.NoError(t, err)
	require.Equal(t, proposals.StatusSent, updated.Status)

	got, err := props.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	require.Equal(t, "Diagnóstico NR-01", got.Items[0].ServiceName)

	// Proposal lines keep their copy of the catalog entry.
	require.NoError(t, cat.Delete(ctx, first.ID))
	got, err = props.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.Items[0].ServiceID)

	assessments := risk.NewService(pool)
	a, err := assessments.Create(ctx, risk.Input{
		ClientName:     "Acme Ltda",
		Sector:         "Varejo",
		EmployeesCount: 40,
		Factors:        risk.Factors{"carga_trabalho": 8, "controle": 6},
	})
	require.NoError(t, err)
	require.InDelta(t, 70.0, a.RiskScore, 0.001)
	require.Equal(t, risk.LevelHigh, a.RiskLevel)

	high, err := assessments.ListByLevel(ctx, risk.LevelHigh)
	require.NoError(t, err)
	require.Len(t, high, 1)

	store := pricing.NewStore(pool)
	params, err := store.Get(ctx)
	require.NoError(t, err)
	require.True(t, pricing.DefaultParameters().FixedCosts.Equal(params.FixedCosts))

	params.ProductiveHours = decimal.NewFromInt(140)
	saved, err := store.Update(ctx, *params)
	require.NoError(t, err)
	rate, err := saved.TechnicalHour()
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(50).Equal(rate), rate.String())
}

func TestIntegration_ExportImportRoundTrip(t *testing.T) {
	source, cleanupSource := newTestDB(t)
	t.Cleanup(cleanupSource)
	target, cleanupTarget := newTestDB(t)
	t.Cleanup(cleanupTarget)

	ctx := context.Background()

	srcCatalog := catalog.NewCatalog(source)
	srcProposals := proposals.NewService(source)
	srcRisk := risk.NewService(source)
	srcSurvey := survey.NewService(survey.NewPGStore(source))

	svc, err := srcCatalog.Create(ctx, catalog.Input{Name: "Treinamento", Price: decimal.NewFromInt(1200), Hours: decimal.NewFromInt(6)})
	require.NoError(t, err)
	_, err = srcProposals.Create(ctx, proposals.CreateInput{
		ClientName: "Beta SA",
		Title:      "Treinamento de lideranças",
		Items:      []proposals.Item{proposals.ItemFromService(*svc, 3)},
	})
	require.NoError(t, err)
	_, err = srcRisk.Create(ctx, risk.Input{ClientName: "Beta SA", Factors: risk.Factors{"apoio_social": 3}})
	require.NoError(t, err)

	answered := newInvite(t, srcSurvey, "NR01-EXPORT", "a@example.com")
	_ = newInvite(t, srcSurvey, "NR01-EXPORT", "b@example.com")
	_, err = srcSurvey.AddResponse(ctx, answered.Token, fullDraft(srcSurvey.Instrument(), 3))
	require.NoError(t, err)

	dir := t.TempDir()
	exporter := export.NewExporter(srcCatalog, srcProposals, srcRisk, srcSurvey)
	files, err := exporter.WriteDir(ctx, dir, true)
	require.NoError(t, err)
	require.Len(t, files, len(export.Collections()))

	dstCatalog := catalog.NewCatalog(target)
	dstSurvey := survey.NewService(survey.NewPGStore(target))
	importer := legacy.NewImporter(dstCatalog, proposals.NewService(target), risk.NewService(target), dstSurvey, time.UTC)

	report, err := importer.ImportDir(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, legacy.Report{Services: 1, Proposals: 1, Assessments: 1, Invites: 2, Responses: 1}, report)

	// Importing twice leaves the data unchanged.
	_, err = importer.ImportDir(ctx, dir)
	require.NoError(t, err)

	invites, err := dstSurvey.ListInvites(ctx, survey.InviteFilter{AssessmentID: "NR01-EXPORT"})
	require.NoError(t, err)
	require.Len(t, invites, 2)

	imported, err := dstSurvey.GetByToken(ctx, answered.Token)
	require.NoError(t, err)
	require.True(t, imported.Completed)
	require.False(t, dstSurvey.Validate(ctx, answered.Token))

	responses, err := dstSurvey.ListResponses(ctx, survey.ResponseFilter{AssessmentID: "NR01-EXPORT"})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.InDelta(t, 3.0, responses[0].OverallScore, 0.001)

	// The sequence continues after imported catalog ids.
	next, err := dstCatalog.Create(ctx, catalog.Input{Name: "Consultoria"})
	require.NoError(t, err)
	require.Equal(t, "srv-002", next.ID)
}
