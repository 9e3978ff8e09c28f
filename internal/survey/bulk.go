package survey

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUploadTooLarge is returned when a CSV upload exceeds the byte limit
	ErrUploadTooLarge = errors.New("upload too large")

	// ErrTooManyRows is returned when a CSV upload exceeds the row limit
	ErrTooManyRows = errors.New("too many rows")

	// ErrMissingColumns is returned when the header lacks name or email
	ErrMissingColumns = errors.New("csv must have name and email columns")
)

// UploadLimits bounds bulk CSV uploads.
type UploadLimits struct {
	MaxBytes int64 // Maximum upload size in bytes
	MaxRows  int   // Maximum data rows, header excluded
}

// DefaultUploadLimits returns the default upload limits
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxBytes: 1 * 1024 * 1024, // 1MB
		MaxRows:  500,
	}
}

// ValidateSize checks if an upload size is within limits
func (l UploadLimits) ValidateSize(size int64) error {
	if size > l.MaxBytes {
		return fmt.Errorf("%w: upload is %d bytes, limit is %d bytes", ErrUploadTooLarge, size, l.MaxBytes)
	}
	return nil
}

// ValidateRows checks if the row count is within limits
func (l UploadLimits) ValidateRows(count int) error {
	if count > l.MaxRows {
		return fmt.Errorf("%w: got %d rows, limit is %d", ErrTooManyRows, count, l.MaxRows)
	}
	return nil
}

// BulkRow is one data line of a bulk invite CSV.
type BulkRow struct {
	Line       int
	Name       string
	Email      string
	Department string
}

// ParseBulkCSV reads a bulk invite CSV. The header must name "name" and
// "email" columns, "department" is optional; order and case do not matter.
// Rows are returned as-is and validated by BulkInvite.
func ParseBulkCSV(r io.Reader, limits UploadLimits) ([]BulkRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingColumns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	nameCol, okName := cols["name"]
	emailCol, okEmail := cols["email"]
	if !okName || !okEmail {
		return nil, ErrMissingColumns
	}
	deptCol, okDept := cols["department"]

	field := func(rec []string, i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var rows []BulkRow
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		if isBlank(rec) {
			continue
		}
		row := BulkRow{Line: line, Name: field(rec, nameCol), Email: field(rec, emailCol)}
		if okDept {
			row.Department = field(rec, deptCol)
		}
		rows = append(rows, row)
		if err := limits.ValidateRows(len(rows)); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// BulkResult reports what happened to one CSV row.
type BulkResult struct {
	Line     int        `json:"line"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	InviteID *uuid.UUID `json:"invite_id,omitempty"`
	Sent     bool       `json:"sent"`
	Error    string     `json:"error,omitempty"`
}

// Notifier delivers a freshly created invite, typically by email.
type Notifier func(ctx context.Context, inv *Invite) error

// BulkInvite creates one invite per row and hands each to notify when it is
// not nil. A row that fails validation creates nothing. A failed send keeps
// the invite and is reported on its row; the loop always continues.
func (s *Service) BulkInvite(ctx context.Context, assessmentID string, rows []BulkRow, notify Notifier) []BulkResult {
	results := make([]BulkResult, 0, len(rows))

	for _, row := range rows {
		res := BulkResult{Line: row.Line, Name: row.Name, Email: row.Email}

		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		inv, err := s.CreateInvite(ctx, CreateInviteParams{
			AssessmentID:  assessmentID,
			EmployeeName:  row.Name,
			EmployeeEmail: row.Email,
			Department:    row.Department,
		})
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		id := inv.ID
		res.InviteID = &id

		if notify != nil {
			if err := notify(ctx, inv); err != nil {
				log.Warn().Err(err).
					Str("invite_id", inv.ID.String()).
					Int("line", row.Line).
					Msg("Failed to send bulk invite")
				res.Error = "invite created but not sent: " + err.Error()
			} else {
				res.Sent = true
			}
		}
		results = append(results, res)
	}

	return results
}

// BulkSummary counts results for display.
func BulkSummary(results []BulkResult) (created, sent, failed int) {
	for _, r := range results {
		if r.InviteID != nil {
			created++
		}
		if r.Sent {
			sent++
		}
		if r.Error != "" {
			failed++
		}
	}
	return created, sent, failed
}
