package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/dashboard"
	"github.com/aliuyar1234/nr01desk/internal/instrument"
	"github.com/aliuyar1234/nr01desk/internal/survey"
)

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// InvitesHeader is the column layout of the invites CSV. Tokens are left
// out: the file is meant for spreadsheets, not for re-import.
var InvitesHeader = []string{
	"id", "assessment_id", "employee_name", "employee_email", "department", "status",
	"sent", "sent_at", "opened", "opened_at", "completed", "completed_at", "reminder_count", "created_at",
}

// WriteInvitesCSV writes one row per invite.
func WriteInvitesCSV(w io.Writer, invites []survey.Invite) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(InvitesHeader); err != nil {
		return err
	}
	for i := range invites {
		inv := &invites[i]
		created := inv.CreatedAt
		rec := []string{
			inv.ID.String(),
			inv.AssessmentID,
			inv.EmployeeName,
			inv.EmployeeEmail,
			inv.Department,
			string(inv.Status()),
			strconv.FormatBool(inv.Sent),
			formatTime(inv.SentAt),
			strconv.FormatBool(inv.Opened),
			formatTime(inv.OpenedAt),
			strconv.FormatBool(inv.Completed),
			formatTime(inv.CompletedAt),
			strconv.Itoa(inv.ReminderCount),
			formatTime(&created),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ResponsesHeader returns the responses CSV columns: the fixed identity and
// score columns, then dim_<name> per dimension in instrument order.
func ResponsesHeader(inst *instrument.Instrument) []string {
	header := []string{"assessment_id", "employee_name", "employee_email", "department", "overall_score", "created_at"}
	for _, name := range inst.DimensionNames() {
		header = append(header, "dim_"+name)
	}
	return header
}

// WriteResponsesCSV writes one row per response with its dimension scores.
// A dimension the response has no score for is left blank.
func WriteResponsesCSV(w io.Writer, inst *instrument.Instrument, responses []survey.Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResponsesHeader(inst)); err != nil {
		return err
	}
	names := inst.DimensionNames()
	for i := range responses {
		r := &responses[i]
		created := r.CreatedAt
		rec := []string{
			r.AssessmentID,
			r.EmployeeName,
			r.EmployeeEmail,
			r.Department,
			formatFloat(r.OverallScore),
			formatTime(&created),
		}
		for _, name := range names {
			if v, ok := r.DimensionScores[name]; ok {
				rec = append(rec, formatFloat(v))
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DepartmentsHeader is the column layout of the department summary CSV.
var DepartmentsHeader = []string{"department", "invites", "sent", "completed", "response_rate", "responses", "overall_mean"}

// WriteDepartmentsCSV writes the per-department dashboard rows.
func WriteDepartmentsCSV(w io.Writer, rows []dashboard.DepartmentRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DepartmentsHeader); err != nil {
		return err
	}
	for _, row := range rows {
		rec := []string{
			row.Department,
			strconv.Itoa(row.Invites),
			strconv.Itoa(row.Sent),
			strconv.Itoa(row.Completed),
			strconv.FormatFloat(row.ResponseRate, 'f', 1, 64),
			strconv.Itoa(row.Responses),
			strconv.FormatFloat(row.OverallMean, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
