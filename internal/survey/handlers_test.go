package survey

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newTestRouter(svc *Service, sender *recordingSender) http.Handler {
	d := NewDispatcher(svc, sender, "https://survey.example.com", "x")
	flow := NewFlow(svc)
	r := chi.NewRouter()
	r.Post("/invites", HandleCreateInvite(svc, d, nil, "https://survey.example.com"))
	r.Get("/invites", HandleListInvites(svc, "https://survey.example.com"))
	r.Post("/invites/bulk", HandleBulkUpload(svc, d, nil, DefaultUploadLimits()))
	r.Get("/survey/{token}", HandleOpenSurvey(flow))
	r.Post("/survey/{token}", HandleSubmitSurvey(flow, nil))
	return r
}

func TestHandleCreateInvite_SendsWhenAsked(t *testing.T) {
	svc, _ := newTestService(t)
	sender := &recordingSender{}
	router := newTestRouter(svc, sender)

	body := `{"assessment_id":"NR01-2025-A","employee_name":"Ana Silva","employee_email":"ana@x.com","send":true}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invites", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var data struct {
		Invite struct {
			Token  string `json:"token"`
			Sent   bool   `json:"sent"`
			Status string `json:"status"`
			Link   string `json:"link"`
		} `json:"invite"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	require.True(t, data.Invite.Sent)
	require.Equal(t, "sent", data.Invite.Status)
	require.Equal(t, "https://survey.example.com/COPSOQ-II?token="+data.Invite.Token, data.Invite.Link)
	require.Len(t, sender.sent, 1)
}

func TestHandleCreateInvite_ValidationError(t *testing.T) {
	svc, _ := newTestService(t)
	router := newTestRouter(svc, &recordingSender{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invites", bytes.NewBufferString(`{"assessment_id":"A"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	require.Equal(t, "validation_failed", env.Error.Code)
	require.Contains(t, env.Error.Fields, "email")
}

func TestHandleListInvites_BadStatus(t *testing.T) {
	svc, _ := newTestService(t)
	router := newTestRouter(svc, &recordingSender{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invites?status=lost", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSurvey_OpenSubmitReplay(t *testing.T) {
	svc, _ := newTestService(t)
	router := newTestRouter(svc, &recordingSender{})
	inv := createAna(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/survey/"+inv.Token, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	incomplete, err := json.Marshal(anaDraft(Answers{"q1": 1}))
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/survey/"+inv.Token, bytes.NewReader(incomplete)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeEnvelope(t, rec).Error.Fields, "responses")

	complete, err := json.Marshal(anaDraft(allAnswers(2)))
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/survey/"+inv.Token, bytes.NewReader(complete)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/survey/"+inv.Token, bytes.NewReader(complete)))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/survey/"+inv.Token, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleBulkUpload(t *testing.T) {
	svc, store := newTestService(t)
	router := newTestRouter(svc, &recordingSender{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("assessment_id", "NR01-2025-A"))
	fw, err := mw.CreateFormFile("file", "invites.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(scenarioDCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/invites/bulk", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Created int          `json:"created"`
		Failed  int          `json:"failed"`
		Results []BulkResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	require.Equal(t, 3, data.Created)
	require.Equal(t, 1, data.Failed)
	require.Len(t, store.invites, 3)
}
