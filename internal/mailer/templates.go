package mailer

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/aliuyar1234/nr01desk/internal/markup"
)

const (
	InviteSubject   = "Convite - COPSOQ-II (NR-01)"
	ReminderSubject = "Lembrete - COPSOQ-II (NR-01)"
)

// Emails are written once as Markdown. The text part is the template with
// plain values; the HTML part escapes values and runs through goldmark.
const inviteBody = `Prezado(a) {{esc .EmployeeName}},

Você foi convidado(a) a responder o questionário **COPSOQ-II (NR-01)**{{if .AssessmentName}} da avaliação {{esc .AssessmentName}}{{end}}, uma avaliação de riscos psicossociais no trabalho.

{{link "Responder questionário" .Link}}

O questionário leva aproximadamente 15-20 minutos. Suas respostas são confidenciais e serão usadas apenas para melhorar as condições de trabalho.

Obrigado pela participação!

---

{{esc .SenderName}}
`

const reminderBody = `Prezado(a) {{esc .EmployeeName}},

Este é um lembrete para responder ao questionário **COPSOQ-II (NR-01)**{{if .AssessmentName}} da avaliação {{esc .AssessmentName}}{{end}}. Você ainda não respondeu ao formulário.

{{link "Responder questionário" .Link}}

Obrigado!

---

{{esc .SenderName}}
`

// EmailData fills an invite or reminder template.
type EmailData struct {
	EmployeeName   string
	AssessmentName string
	Link           string
	SenderName     string
}

var (
	textFuncs = template.FuncMap{
		"esc":  func(s string) string { return s },
		"link": func(label, url string) string { return label + ": " + url },
	}
	markdownFuncs = template.FuncMap{
		"esc":  markup.EscapeText,
		"link": func(label, url string) string { return "[" + label + "](" + url + ")" },
	}

	inviteText       = template.Must(template.New("invite").Funcs(textFuncs).Parse(inviteBody))
	inviteMarkdown   = template.Must(template.New("invite").Funcs(markdownFuncs).Parse(inviteBody))
	reminderText     = template.Must(template.New("reminder").Funcs(textFuncs).Parse(reminderBody))
	reminderMarkdown = template.Must(template.New("reminder").Funcs(markdownFuncs).Parse(reminderBody))
)

// RenderInviteEmail renders the invitation for one employee. It does no I/O.
func RenderInviteEmail(data EmailData) (Message, error) {
	return render(InviteSubject, inviteText, inviteMarkdown, data)
}

// RenderReminderEmail renders the follow-up for an unanswered invite.
func RenderReminderEmail(data EmailData) (Message, error) {
	return render(ReminderSubject, reminderText, reminderMarkdown, data)
}

func render(subject string, textTmpl, mdTmpl *template.Template, data EmailData) (Message, error) {
	if strings.ContainsAny(data.Link, " ()\n") {
		return Message{}, fmt.Errorf("invalid invite link %q", data.Link)
	}

	var text, md bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("failed to render email text: %w", err)
	}
	if err := mdTmpl.Execute(&md, data); err != nil {
		return Message{}, fmt.Errorf("failed to render email markdown: %w", err)
	}
	body, err := markup.ToHTML(md.String())
	if err != nil {
		return Message{}, fmt.Errorf("failed to render email html: %w", err)
	}

	html := `<html><body style="font-family: Arial, sans-serif; line-height: 1.5; color: #222;">` +
		string(body) + `</body></html>`

	return Message{
		Subject: subject,
		Text:    text.String(),
		HTML:    html,
	}, nil
}
