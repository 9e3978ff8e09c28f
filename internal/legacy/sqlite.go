package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/survey"
	"github.com/aliuyar1234/nr01desk/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// legacyNamespace derives stable invite ids from legacy ids that are not
// UUIDs, so re-running an import updates instead of duplicating.
var legacyNamespace = uuid.MustParse("0d4f3c62-8c1e-4f7a-9b55-6a1e2f0c9d31")

// SQLiteInvite is one row of the old invites table.
type SQLiteInvite struct {
	ID           string
	EmployeeName string
	Email        string
	Token        string
	CreatedDate  string
	AccessedDate sql.NullString
	Completed    bool
	ResponseID   sql.NullString
}

// ReadSQLiteInvites reads every row of the invites table at path. The file
// is opened read-only.
func ReadSQLiteInvites(ctx context.Context, path string) ([]SQLiteInvite, error) {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy database: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `
		SELECT id, employee_name, email, token, CAST(created_date AS TEXT),
		       CAST(accessed_date AS TEXT), COALESCE(completed, 0), response_id
		FROM invites
		ORDER BY created_date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy invites: %w", err)
	}
	defer rows.Close()

	var out []SQLiteInvite
	for rows.Next() {
		var (
			row       SQLiteInvite
			completed int64
		)
		if err := rows.Scan(&row.ID, &row.EmployeeName, &row.Email, &row.Token, &row.CreatedDate,
			&row.AccessedDate, &completed, &row.ResponseID); err != nil {
			return nil, fmt.Errorf("failed to scan legacy invite: %w", err)
		}
		row.Completed = completed != 0
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read legacy invites: %w", err)
	}
	return out, nil
}

// ToInvite converts a row for assessmentID. The old table tracked no send
// step, so an opened or completed invite counts as sent.
func (row SQLiteInvite) ToInvite(assessmentID string, loc *time.Location) (*survey.Invite, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		id = uuid.NewSHA1(legacyNamespace, []byte(row.ID))
	}

	created, err := ParseTime(row.CreatedDate, loc)
	if err != nil {
		return nil, fmt.Errorf("invite %s: created_date: %w", row.ID, err)
	}

	inv := &survey.Invite{
		ID:            id,
		AssessmentID:  assessmentID,
		EmployeeName:  strings.TrimSpace(row.EmployeeName),
		EmployeeEmail: validation.NormalizeEmail(row.Email),
		Token:         row.Token,
		CreatedAt:     created,
	}

	if row.AccessedDate.Valid && strings.TrimSpace(row.AccessedDate.String) != "" {
		opened, err := ParseTime(row.AccessedDate.String, loc)
		if err != nil {
			return nil, fmt.Errorf("invite %s: accessed_date: %w", row.ID, err)
		}
		inv.Opened = true
		inv.OpenedAt = &opened
	}
	inv.Completed = row.Completed
	inv.Sent = inv.Opened || inv.Completed
	return inv, nil
}

// ImportSQLite imports the invites table at path under assessmentID.
func (im *Importer) ImportSQLite(ctx context.Context, path, assessmentID string) (int, error) {
	assessmentID = validation.NormalizeAssessmentID(assessmentID)
	if err := validation.ValidateAssessmentID(assessmentID); err != nil {
		return 0, fmt.Errorf("legacy sqlite import needs an assessment id: %w", err)
	}

	rows, err := ReadSQLiteInvites(ctx, path)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, row := range rows {
		inv, err := row.ToInvite(assessmentID, im.loc)
		if err != nil {
			return imported, err
		}
		if err := im.survey.ImportInvite(ctx, inv); err != nil {
			return imported, fmt.Errorf("failed to import invite %s: %w", row.ID, err)
		}
		imported++
	}

	log.Info().Str("path", path).Str("assessment_id", assessmentID).Int("invites", imported).Msg("Legacy SQLite invites imported")
	return imported, nil
}
