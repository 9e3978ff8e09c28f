package survey

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aliuyar1234/nr01desk/internal/sealed"
	"github.com/stretchr/testify/require"
)

func TestScenarioA_InviteSubmitScores(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	inv := createAna(t, svc)
	require.Equal(t, "NR01-2025-A", inv.AssessmentID)
	require.False(t, inv.Sent)
	require.False(t, inv.Opened)
	require.False(t, inv.Completed)
	require.True(t, svc.Validate(ctx, inv.Token))

	resp, err := svc.AddResponse(ctx, inv.Token, anaDraft(allAnswers(2)))
	require.NoError(t, err)
	require.Len(t, resp.DimensionScores, 14)
	for name, score := range resp.DimensionScores {
		require.Equal(t, 2.0, score, name)
	}
	require.Equal(t, 2.0, resp.OverallScore)
	require.Equal(t, inv.AssessmentID, resp.AssessmentID)
	require.NotNil(t, resp.InviteID)
	require.Equal(t, inv.ID, *resp.InviteID)

	require.False(t, svc.Validate(ctx, inv.Token))
}

func TestValidate_FalseAfterMarkCompleted(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	inv := createAna(t, svc)

	require.True(t, svc.Validate(ctx, inv.Token))
	require.NoError(t, svc.MarkCompleted(ctx, inv.Token))
	require.False(t, svc.Validate(ctx, inv.Token))
}

func TestValidate_UnknownAndMalformedTokens(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.False(t, svc.Validate(ctx, ""))
	require.False(t, svc.Validate(ctx, "not a token"))
	require.False(t, svc.Validate(ctx, "0123456789abcdef0123456789abcdef"))
}

func TestValidate_StoreErrorReadsAsFalse(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	inv := createAna(t, svc)

	store.failNext = errors.New("connection reset")
	require.False(t, svc.Validate(ctx, inv.Token))
	require.True(t, svc.Validate(ctx, inv.Token))
}

func TestFlags_AreIndependentAndNotRetimestamped(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	inv := createAna(t, svc)

	require.NoError(t, svc.MarkOpened(ctx, inv.Token))
	got, err := svc.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, got.Opened)
	require.False(t, got.Completed)
	require.False(t, got.Sent)
	openedAt := *got.OpenedAt

	require.NoError(t, svc.MarkOpened(ctx, inv.Token))
	got, err = svc.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, openedAt, *got.OpenedAt)

	require.NoError(t, svc.MarkCompleted(ctx, inv.Token))
	got, err = svc.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, got.Completed)
	require.True(t, got.Opened)
	require.False(t, got.Sent)
	require.Nil(t, got.SentAt)
	require.Equal(t, openedAt, *got.OpenedAt)
	require.Equal(t, StatusCompleted, got.Status())
}

func TestMarkSent_UnknownInvite(t *testing.T) {
	svc, _ := newTestService(t)
	inv := createAna(t, svc)
	require.NoError(t, svc.MarkSent(context.Background(), inv.ID))

	err := svc.DeleteInvite(context.Background(), inv.ID)
	require.NoError(t, err)
	require.ErrorIs(t, svc.MarkSent(context.Background(), inv.ID), ErrInviteNotFound)
}

func TestCreateInvite_ValidatesFields(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.CreateInvite(context.Background(), CreateInviteParams{
		AssessmentID:  " ",
		EmployeeName:  "",
		EmployeeEmail: "not-an-email",
	})
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Contains(t, fe, "assessment_id")
	require.Contains(t, fe, "name")
	require.Contains(t, fe, "email")
	require.Empty(t, store.invites)
}

func TestCreateInvite_NormalizesEmail(t *testing.T) {
	svc, _ := newTestService(t)
	inv, err := svc.CreateInvite(context.Background(), CreateInviteParams{
		AssessmentID:  "NR01-2025-A",
		EmployeeName:  "  Bruno Costa ",
		EmployeeEmail: " Bruno@X.com ",
	})
	require.NoError(t, err)
	require.Equal(t, "Bruno Costa", inv.EmployeeName)
	require.Equal(t, "bruno@x.com", inv.EmployeeEmail)
}

func TestCreateInvite_RetriesOnTokenCollision(t *testing.T) {
	svc, store := newTestService(t)
	store.failNext = ErrDuplicateToken

	inv := createAna(t, svc)
	require.Len(t, store.invites, 1)
	require.NotEmpty(t, inv.Token)
}

func TestAddResponse_RejectsSecondSubmission(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	inv := createAna(t, svc)

	_, err := svc.AddResponse(ctx, inv.Token, anaDraft(allAnswers(1)))
	require.NoError(t, err)

	_, err = svc.AddResponse(ctx, inv.Token, anaDraft(allAnswers(3)))
	require.ErrorIs(t, err, ErrAlreadyCompleted)
	require.Len(t, store.responses, 1)
}

func TestAddResponse_ConcurrentSubmissionsStoreOne(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	inv := createAna(t, svc)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddResponse(ctx, inv.Token, anaDraft(allAnswers(i%5)))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyCompleted)
	}
	require.Equal(t, 1, ok)
	require.Len(t, store.responses, 1)
}

func TestAddResponse_IncompleteDraftStoresNothing(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	inv := createAna(t, svc)

	answers := allAnswers(2)
	delete(answers, "q17")
	answers["q3"] = 9

	_, err := svc.AddResponse(ctx, inv.Token, anaDraft(answers))
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Contains(t, fe["responses"], "q17")
	require.Contains(t, fe["responses"], "q3")
	require.Empty(t, store.responses)
	require.True(t, svc.Validate(ctx, inv.Token))
}

func TestAddResponse_UnknownToken(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AddResponse(context.Background(), "0123456789abcdef0123456789abcdef", anaDraft(allAnswers(2)))
	require.ErrorIs(t, err, ErrInviteNotFound)
}

func TestAddResponse_SealsAnswers(t *testing.T) {
	ctx := context.Background()
	identity, recipient, err := sealed.GenerateKeypair()
	require.NoError(t, err)

	sealOnly, err := sealed.NewBox(recipient, "")
	require.NoError(t, err)
	svc, store := newTestService(t, WithSealer(sealOnly))
	inv := createAna(t, svc)

	resp, err := svc.AddResponse(ctx, inv.Token, anaDraft(allAnswers(4)))
	require.NoError(t, err)
	require.Nil(t, resp.Responses)
	require.True(t, resp.Sealed())
	require.Equal(t, 4.0, resp.OverallScore)

	_, err = svc.ListResponses(ctx, ResponseFilter{WithAnswers: true})
	require.ErrorIs(t, err, ErrAnswersSealed)

	list, err := svc.ListResponses(ctx, ResponseFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Nil(t, list[0].Responses)

	full, err := sealed.NewBox(recipient, identity)
	require.NoError(t, err)
	reader := NewService(store, WithSealer(full))
	list, err = reader.ListResponses(ctx, ResponseFilter{WithAnswers: true})
	require.NoError(t, err)
	require.Equal(t, allAnswers(4), list[0].Responses)
}

func TestDeleteInvite_KeepsResponse(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	inv := createAna(t, svc)
	_, err := svc.AddResponse(ctx, inv.Token, anaDraft(allAnswers(2)))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvite(ctx, inv.ID))
	require.Len(t, store.responses, 1)
	require.Nil(t, store.responses[0].InviteID)
	require.ErrorIs(t, svc.DeleteInvite(ctx, inv.ID), ErrInviteNotFound)
}

func TestImportInvite_NormalizesFlags(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	inv := &Invite{
		AssessmentID:  "LEGACY",
		EmployeeName:  "Carla",
		EmployeeEmail: "carla@x.com",
		Token:         "6f1c2f0e-8d55-4b1a-9a3e-2c8f1d5e7a90",
		Completed:     true,
	}
	require.NoError(t, svc.ImportInvite(ctx, inv))

	got, err := svc.GetByToken(ctx, inv.Token)
	require.NoError(t, err)
	require.True(t, got.Completed)
	require.NotNil(t, got.CompletedAt)
	require.Equal(t, got.CreatedAt, *got.CompletedAt)
	require.False(t, svc.Validate(ctx, inv.Token))
}

func TestImportResponse_RecomputesScores(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	resp := &Response{
		AssessmentID:    "LEGACY",
		EmployeeName:    "Carla",
		EmployeeEmail:   "carla@x.com",
		Responses:       Answers{"q1": 4, "q2": 2, "q99": 1, "q3": 7},
		DimensionScores: map[string]float64{"bogus": 100},
	}
	require.NoError(t, svc.ImportResponse(ctx, resp))

	require.Len(t, store.responses, 1)
	stored := store.responses[0]
	require.Contains(t, stored.Token, "legacy-")
	require.NotContains(t, stored.DimensionScores, "bogus")
	require.Len(t, stored.MissingDimensions, 13)
	require.Equal(t, Answers{"q1": 4, "q2": 2}, stored.Responses)
}

func TestImportResponse_SealsImportedAnswers(t *testing.T) {
	ctx := context.Background()
	identity, recipient, err := sealed.GenerateKeypair()
	require.NoError(t, err)
	sealOnly, err := sealed.NewBox(recipient, "")
	require.NoError(t, err)
	svc, store := newTestService(t, WithSealer(sealOnly))

	resp := &Response{
		AssessmentID:  "LEGACY",
		EmployeeName:  "Carla",
		EmployeeEmail: "carla@x.com",
		Responses:     allAnswers(3),
	}
	require.NoError(t, svc.ImportResponse(ctx, resp))

	list, err := svc.ListResponses(ctx, ResponseFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].Sealed())
	require.Nil(t, list[0].Responses)
	require.Nil(t, store.responses[0].Responses)
	require.Equal(t, 3.0, list[0].OverallScore)

	full, err := sealed.NewBox(recipient, identity)
	require.NoError(t, err)
	list, err = NewService(store, WithSealer(full)).ListResponses(ctx, ResponseFilter{WithAnswers: true})
	require.NoError(t, err)
	require.Equal(t, allAnswers(3), list[0].Responses)
}

func TestImportResponse_KeepsScoresWithoutAnswers(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	resp := &Response{
		AssessmentID:    "LEGACY",
		EmployeeName:    "Carla",
		EmployeeEmail:   "carla@x.com",
		DimensionScores: map[string]float64{"Demandas Quantitativas": 2.5},
		OverallScore:    2.5,
	}
	require.NoError(t, svc.ImportResponse(ctx, resp))

	require.Len(t, store.responses, 1)
	stored := store.responses[0]
	require.Nil(t, stored.Responses)
	require.Empty(t, stored.AnswersSealed)
	require.Equal(t, 2.5, stored.OverallScore)
	require.Equal(t, 2.5, stored.DimensionScores["Demandas Quantitativas"])
}

func TestInviteLink(t *testing.T) {
	require.Equal(t,
		"https://survey.example.com/COPSOQ-II?token=abc123",
		InviteLink("https://survey.example.com/", "abc123"))
}
