package web

import (
	"net/http"

	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/aliuyar1234/nr01desk/internal/instrument"
	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// newPage issues a CSRF token for the page and returns the common template
// data. It writes the error response itself and returns nil on failure.
func newPage(w http.ResponseWriter, r *http.Request, title string, isProduction bool) *TemplateData {
	csrfToken, err := auth.GenerateCSRFToken()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	auth.SetCSRFCookie(w, csrfToken, isProduction)

	userID := auth.GetUserID(r.Context())
	return &TemplateData{
		Title:           title,
		UserID:          userID,
		IsAuthenticated: userID != uuid.Nil,
		CSRFToken:       csrfToken,
	}
}

// HandleLoginPage renders the login page
func HandleLoginPage(isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUserID(r.Context()) != uuid.Nil {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}

		data := newPage(w, r, "Entrar", isProduction)
		if data == nil {
			return
		}
		data.Next = auth.SafeNext(r.URL.Query().Get("next"))
		if r.URL.Query().Get("error") == "invalid" {
			data.Error = "Usuário ou senha inválidos"
		}
		RenderTemplate(w, r, "login.html", data)
	}
}

// SurveyPage is the respondent form view model.
type SurveyPage struct {
	State      survey.State
	Token      string
	Instrument *instrument.Instrument
	Draft      survey.Draft
	Errors     survey.FieldErrors
}

// Answer returns the posted answer for a question, or -1.
func (p SurveyPage) Answer(questionID string) int {
	if v, ok := p.Draft.Answers[questionID]; ok {
		return v
	}
	return -1
}

// HandleSurveyPage handles GET /COPSOQ-II?token=...
func HandleSurveyPage(flow *survey.Flow, inst *instrument.Instrument, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		step := flow.Open(r.Context(), token)

		data := newPage(w, r, "Questionário COPSOQ-II", isProduction)
		if data == nil {
			return
		}
		data.Data = SurveyPage{State: step.State, Token: token, Instrument: inst, Draft: step.Draft}

		status := http.StatusOK
		if step.State != survey.StateValidUnanswered {
			status = http.StatusNotFound
		}
		RenderTemplateStatus(w, r, status, "survey.html", data)
	}
}

// HandleSurveySubmit handles POST /COPSOQ-II
func HandleSurveySubmit(flow *survey.Flow, inst *instrument.Instrument, auditor *audit.Writer, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		token := r.PostFormValue("token")
		draft := survey.DraftFromForm(r.PostForm, inst)

		step, err := flow.Submit(ctx, token, draft)

		data := newPage(w, r, "Questionário COPSOQ-II", isProduction)
		if data == nil {
			return
		}
		page := SurveyPage{State: step.State, Token: token, Instrument: inst, Draft: step.Draft, Errors: step.Errors}

		if err != nil {
			log.Error().Err(err).Msg("Failed to submit response")
			data.Error = "Não foi possível registrar suas respostas. Tente novamente."
			data.Data = page
			RenderTemplateStatus(w, r, http.StatusInternalServerError, "survey.html", data)
			return
		}

		status := http.StatusOK
		switch step.State {
		case survey.StateSubmitted:
			if err := auditor.LogResponseSubmitted(ctx, step.Response.ID, step.Response.AssessmentID); err != nil {
				log.Error().Err(err).Msg("Failed to log audit event")
			}
			data.Success = "Respostas enviadas com sucesso. Obrigado pela participação!"
		case survey.StateAnswering:
			status = http.StatusUnprocessableEntity
			data.Error = "Preencha todos os campos obrigatórios."
		default:
			status = http.StatusNotFound
		}
		data.Data = page
		RenderTemplateStatus(w, r, status, "survey.html", data)
	}
}
