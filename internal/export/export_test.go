package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/catalog"
	"github.com/aliuyar1234/nr01desk/internal/dashboard"
	"github.com/aliuyar1234/nr01desk/internal/instrument"
	"github.com/aliuyar1234/nr01desk/internal/proposals"
	"github.com/aliuyar1234/nr01desk/internal/risk"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var created = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteInvitesCSV(t *testing.T) {
	sent := created.Add(time.Hour)
	invites := []survey.Invite{{
		ID:            uuid.MustParse("6f1c1a52-3f5e-4a0e-9d2b-4f3f1b5f0a01"),
		AssessmentID:  "NR01-2025-A",
		EmployeeName:  "Ana Silva",
		EmployeeEmail: "ana@x.com",
		Department:    "RH",
		Token:         "secret-token",
		Sent:          true,
		SentAt:        &sent,
		CreatedAt:     created,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteInvitesCSV(&buf, invites))
	require.NotContains(t, buf.String(), "secret-token")

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 2)
	require.Equal(t, InvitesHeader, rows[0])
	require.Equal(t, "sent", rows[1][5])
	require.Equal(t, "2025-03-10T10:00:00Z", rows[1][7])
	require.Equal(t, "", rows[1][9])
	require.Equal(t, "2025-03-10T09:00:00Z", rows[1][13])
}

func TestWriteResponsesCSV(t *testing.T) {
	inst := instrument.COPSOQ()
	names := inst.DimensionNames()
	responses := []survey.Response{{
		AssessmentID:    "NR01-2025-A",
		EmployeeName:    "Ana Silva",
		EmployeeEmail:   "ana@x.com",
		Department:      "RH",
		DimensionScores: map[string]float64{names[0]: 2.5},
		OverallScore:    2.5,
		CreatedAt:       created,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteResponsesCSV(&buf, inst, responses))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 2)
	require.Len(t, rows[0], 6+len(names))
	require.Equal(t, "dim_"+names[0], rows[0][6])
	require.Equal(t, "2.5", rows[1][4])
	require.Equal(t, "2.5", rows[1][6])
	require.Equal(t, "", rows[1][7])
}

func TestWriteDepartmentsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDepartmentsCSV(&buf, []dashboard.DepartmentRow{
		{Department: "TI", Invites: 4, Sent: 4, Completed: 3, ResponseRate: 75, Responses: 3, OverallMean: 2.125},
	}))

	rows := readCSV(t, buf.Bytes())
	require.Equal(t, DepartmentsHeader, rows[0])
	require.Equal(t, []string{"TI", "4", "4", "3", "75.0", "3", "2.13"}, rows[1])
}

func TestCollectionByKey(t *testing.T) {
	c, ok := CollectionByKey("risk_assessments")
	require.True(t, ok)
	require.Equal(t, Assessments, c)

	c, ok = CollectionByKey("services")
	require.True(t, ok)
	require.Equal(t, "services_db.json", c.File)

	_, ok = CollectionByKey("flakes")
	require.False(t, ok)
}

func TestReadDocument(t *testing.T) {
	t.Run("missing key leaves destination empty", func(t *testing.T) {
		var got []catalog.Service
		require.NoError(t, ReadDocument(strings.NewReader(`{"other": []}`), Services, &got))
		require.Nil(t, got)
	})

	t.Run("invalid json is corrupt", func(t *testing.T) {
		var got []catalog.Service
		err := ReadDocument(strings.NewReader(`{"services": [`), Services, &got)
		require.ErrorIs(t, err, ErrCorruptDocument)
	})

	t.Run("wrong shape is corrupt", func(t *testing.T) {
		var got []catalog.Service
		err := ReadDocument(strings.NewReader(`{"services": {"id": 1}}`), Services, &got)
		require.ErrorIs(t, err, ErrCorruptDocument)
	})
}

type fakeStores struct {
	services    []catalog.Service
	proposals   []proposals.Proposal
	assessments []risk.Assessment
	invites     []survey.Invite
	responses   []survey.Response
	sealed      bool
	failInvites bool
}

type serviceList struct{ f *fakeStores }

func (s serviceList) List(ctx context.Context) ([]catalog.Service, error) { return s.f.services, nil }

type proposalList struct{ f *fakeStores }

func (p proposalList) List(ctx context.Context, _ proposals.ListFilter) ([]proposals.Proposal, error) {
	return p.f.proposals, nil
}

type assessmentList struct{ f *fakeStores }

func (a assessmentList) List(ctx context.Context, _ risk.ListFilter) ([]risk.Assessment, error) {
	return a.f.assessments, nil
}

func (f *fakeStores) ListInvites(ctx context.Context, _ survey.InviteFilter) ([]survey.Invite, error) {
	if f.failInvites {
		return nil, errors.New("connection refused")
	}
	return f.invites, nil
}

func (f *fakeStores) ListResponses(ctx context.Context, filter survey.ResponseFilter) ([]survey.Response, error) {
	if filter.WithAnswers && f.sealed {
		return nil, survey.ErrAnswersSealed
	}
	return f.responses, nil
}

func newExporter(f *fakeStores) *Exporter {
	return NewExporter(serviceList{f}, proposalList{f}, assessmentList{f}, f)
}

func sampleStores() *fakeStores {
	invID := uuid.MustParse("6f1c1a52-3f5e-4a0e-9d2b-4f3f1b5f0a01")
	return &fakeStores{
		services: []catalog.Service{{
			ID:        "srv-001",
			Name:      "Laudo ergonômico",
			Price:     decimal.RequireFromString("1500.5"),
			Hours:     decimal.RequireFromString("8"),
			Category:  "Laudos",
			CreatedAt: created,
			UpdatedAt: created,
		}},
		proposals: []proposals.Proposal{{
			ID:         uuid.New(),
			ClientName: "Empresa X",
			Status:     proposals.StatusDraft,
			CreatedAt:  created,
		}},
		assessments: []risk.Assessment{{
			ID:         uuid.New(),
			ClientName: "Empresa X",
			Factors:    risk.Factors{"controle": 5},
			CreatedAt:  created,
		}},
		invites: []survey.Invite{{
			ID:           invID,
			AssessmentID: "NR01-2025-A",
			Token:        "tok",
			CreatedAt:    created,
		}},
		responses: []survey.Response{{
			ID:              uuid.MustParse("0b8e7c55-8a43-4b7d-8a1f-2d7f0d3c9e11"),
			InviteID:        &invID,
			AssessmentID:    "NR01-2025-A",
			DimensionScores: map[string]float64{"Demandas Quantitativas": 2},
			OverallScore:    2,
			CreatedAt:       created,
		}},
	}
}

func TestSnapshotFallsBackToScoresWhenSealed(t *testing.T) {
	f := sampleStores()
	f.sealed = true

	b, err := newExporter(f).Snapshot(context.Background())
	require.NoError(t, err)
	require.True(t, b.AnswersOmitted)
	require.Len(t, b.Responses, 1)
}

func TestSnapshotError(t *testing.T) {
	f := sampleStores()
	f.failInvites = true

	_, err := newExporter(f).Snapshot(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestWriteDirRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			f := sampleStores()
			dir := filepath.Join(t.TempDir(), "out")

			paths, err := newExporter(f).WriteDir(context.Background(), dir, compress)
			require.NoError(t, err)
			require.Len(t, paths, len(Collections()))

			for _, c := range Collections() {
				path, ok := Locate(dir, c)
				require.True(t, ok, c.File)
				require.Equal(t, compress, strings.HasSuffix(path, CompressedExt))
			}

			read := func(c Collection, dst any) {
				path, _ := Locate(dir, c)
				r, err := OpenFile(path)
				require.NoError(t, err)
				defer r.Close()
				require.NoError(t, ReadDocument(r, c, dst))
			}

			var services []catalog.Service
			read(Services, &services)
			require.Len(t, services, 1)
			require.True(t, f.services[0].Price.Equal(services[0].Price))
			require.Equal(t, "Laudo ergonômico", services[0].Name)

			var invites []survey.Invite
			read(Invites, &invites)
			if diff := cmp.Diff(f.invites, invites); diff != "" {
				t.Fatalf("invites mismatch (-want +got):\n%s", diff)
			}

			var responses []survey.Response
			read(Responses, &responses)
			if diff := cmp.Diff(f.responses, responses); diff != "" {
				t.Fatalf("responses mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteDocumentKeepsUnescapedText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDocument(&buf, Services, []catalog.Service{{ID: "srv-001", Name: "Treinamento <NR-01> & CIPA"}}))
	require.Contains(t, buf.String(), "Treinamento <NR-01> & CIPA")
	require.True(t, strings.HasPrefix(buf.String(), "{\n  \"services\": ["))
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope.json"))
	require.True(t, os.IsNotExist(err))
}
