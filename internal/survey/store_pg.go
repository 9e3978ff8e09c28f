package survey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const inviteColumns = `id, assessment_id, employee_name, employee_email, department, token,
	sent, sent_at, opened, opened_at, completed, completed_at, reminded_at, reminder_count, created_at`

const responseColumns = `id, invite_id, assessment_id, employee_name, employee_email, department, token,
	responses, answers_sealed, comments, dimension_scores, missing_dimensions, overall_score, created_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func scanInvite(row pgx.Row) (*Invite, error) {
	var inv Invite
	err := row.Scan(
		&inv.ID, &inv.AssessmentID, &inv.EmployeeName, &inv.EmployeeEmail, &inv.Department, &inv.Token,
		&inv.Sent, &inv.SentAt, &inv.Opened, &inv.OpenedAt, &inv.Completed, &inv.CompletedAt,
		&inv.RemindedAt, &inv.ReminderCount, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func collectInvites(rows pgx.Rows) ([]Invite, error) {
	defer rows.Close()
	var out []Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (s *PGStore) InsertInvite(ctx context.Context, inv *Invite) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO copsoq_invites (id, assessment_id, employee_name, employee_email, department, token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inv.ID, inv.AssessmentID, inv.EmployeeName, inv.EmployeeEmail, inv.Department, inv.Token, inv.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("failed to insert invite: %w", err)
	}
	return nil
}

func (s *PGStore) ImportInvite(ctx context.Context, inv *Invite) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO copsoq_invites (`+inviteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
		  assessment_id = EXCLUDED.assessment_id,
		  employee_name = EXCLUDED.employee_name,
		  employee_email = EXCLUDED.employee_email,
		  department = EXCLUDED.department,
		  sent = copsoq_invites.sent OR EXCLUDED.sent,
		  sent_at = COALESCE(copsoq_invites.sent_at, EXCLUDED.sent_at),
		  opened = copsoq_invites.opened OR EXCLUDED.opened,
		  opened_at = COALESCE(copsoq_invites.opened_at, EXCLUDED.opened_at),
		  completed = copsoq_invites.completed OR EXCLUDED.completed,
		  completed_at = COALESCE(copsoq_invites.completed_at, EXCLUDED.completed_at)
	`, inv.ID, inv.AssessmentID, inv.EmployeeName, inv.EmployeeEmail, inv.Department, inv.Token,
		inv.Sent, inv.SentAt, inv.Opened, inv.OpenedAt, inv.Completed, inv.CompletedAt,
		inv.RemindedAt, inv.ReminderCount, inv.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return fmt.Errorf("failed to import invite: %w", err)
	}
	return nil
}

func (s *PGStore) GetInvite(ctx context.Context, id uuid.UUID) (*Invite, error) {
	return scanInvite(s.pool.QueryRow(ctx, `SELECT `+inviteColumns+` FROM copsoq_invites WHERE id = $1`, id))
}

func (s *PGStore) GetInviteByToken(ctx context.Context, token string) (*Invite, error) {
	return scanInvite(s.pool.QueryRow(ctx, `SELECT `+inviteColumns+` FROM copsoq_invites WHERE token = $1`, token))
}

func (s *PGStore) ListInvites(ctx context.Context, filter InviteFilter) ([]Invite, error) {
	var conds []string
	var args []any
	if filter.AssessmentID != "" {
		args = append(args, filter.AssessmentID)
		conds = append(conds, fmt.Sprintf("assessment_id = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conds = append(conds, fmt.Sprintf("department = $%d", len(args)))
	}
	switch filter.Status {
	case StatusPending:
		conds = append(conds, "NOT sent AND NOT opened AND NOT completed")
	case StatusSent:
		conds = append(conds, "sent AND NOT opened AND NOT completed")
	case StatusOpened:
		conds = append(conds, "opened AND NOT completed")
	case StatusCompleted:
		conds = append(conds, "completed")
	}

	query := `SELECT ` + inviteColumns + ` FROM copsoq_invites`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, employee_name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invites: %w", err)
	}
	return collectInvites(rows)
}

func (s *PGStore) ListAssessments(ctx context.Context) ([]AssessmentSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT assessment_id, COUNT(*), COUNT(*) FILTER (WHERE completed), MIN(created_at)
		FROM copsoq_invites
		GROUP BY assessment_id
		ORDER BY MIN(created_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var out []AssessmentSummary
	for rows.Next() {
		var a AssessmentSummary
		if err := rows.Scan(&a.AssessmentID, &a.Invites, &a.Completed, &a.FirstInvite); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM copsoq_invites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}

// markFlag flips one boolean flag and stamps its timestamp only when the flag
// is still false. The CTE tells "not found" apart from "already set". The
// guard reads the target row rather than the CTE snapshot, so concurrent
// callers stamp once.
func markFlag(ctx context.Context, q querier, flag, keyColumn string, key any, at time.Time) (bool, error) {
	query := fmt.Sprintf(`
		WITH target AS (
			SELECT id FROM copsoq_invites WHERE %[2]s = $1
		), updated AS (
			UPDATE copsoq_invites i
			SET %[1]s = TRUE, %[1]s_at = $2
			FROM target t
			WHERE i.id = t.id AND NOT i.%[1]s
			RETURNING i.id
		)
		SELECT EXISTS (SELECT 1 FROM target), EXISTS (SELECT 1 FROM updated)
	`, flag, keyColumn)

	var found, changed bool
	if err := q.QueryRow(ctx, query, key, at).Scan(&found, &changed); err != nil {
		return false, fmt.Errorf("failed to mark invite %s: %w", flag, err)
	}
	if !found {
		return false, ErrInviteNotFound
	}
	return changed, nil
}

func (s *PGStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return markFlag(ctx, s.pool, "sent", "id", id, at)
}

func (s *PGStore) MarkOpened(ctx context.Context, token string, at time.Time) (bool, error) {
	return markFlag(ctx, s.pool, "opened", "token", token, at)
}

func (s *PGStore) MarkCompleted(ctx context.Context, token string, at time.Time) (bool, error) {
	return markFlag(ctx, s.pool, "completed", "token", token, at)
}

func (s *PGStore) ListReminderCandidates(ctx context.Context, cutoff time.Time, assessmentID string) ([]Invite, error) {
	args := []any{cutoff}
	query := `SELECT ` + inviteColumns + ` FROM copsoq_invites
		WHERE sent AND NOT completed
		  AND COALESCE(reminded_at, sent_at) < $1`
	if assessmentID != "" {
		args = append(args, assessmentID)
		query += ` AND assessment_id = $2`
	}
	query += ` ORDER BY sent_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder candidates: %w", err)
	}
	return collectInvites(rows)
}

func (s *PGStore) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE copsoq_invites
		SET reminded_at = $2, reminder_count = reminder_count + 1
		WHERE id = $1 AND NOT completed
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark invite reminded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}

func (s *PGStore) SubmitResponse(ctx context.Context, token string, build func(inv *Invite) (*Response, error)) (*Response, error) {
	var out *Response
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		inv, err := scanInvite(tx.QueryRow(ctx, `SELECT `+inviteColumns+` FROM copsoq_invites WHERE token = $1 FOR UPDATE`, token))
		if err != nil {
			return err
		}
		if inv.Completed {
			return ErrAlreadyCompleted
		}

		resp, err := build(inv)
		if err != nil {
			return err
		}
		if err := insertResponse(ctx, tx, resp, false); err != nil {
			return err
		}
		if _, err := markFlag(ctx, tx, "completed", "id", inv.ID, resp.CreatedAt); err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) ImportResponse(ctx context.Context, resp *Response) error {
	return insertResponse(ctx, s.pool, resp, true)
}

func insertResponse(ctx context.Context, q querier, resp *Response, skipExisting bool) error {
	var answersJSON []byte
	if resp.Responses != nil {
		b, err := json.Marshal(resp.Responses)
		if err != nil {
			return fmt.Errorf("failed to encode answers: %w", err)
		}
		answersJSON = b
	}
	var sealed *string
	if resp.AnswersSealed != "" {
		sealed = &resp.AnswersSealed
	}
	scoresJSON, err := json.Marshal(resp.DimensionScores)
	if err != nil {
		return fmt.Errorf("failed to encode dimension scores: %w", err)
	}
	missing := resp.MissingDimensions
	if missing == nil {
		missing = []string{}
	}
	missingJSON, err := json.Marshal(missing)
	if err != nil {
		return fmt.Errorf("failed to encode missing dimensions: %w", err)
	}

	conflict := ""
	if skipExisting {
		conflict = " ON CONFLICT DO NOTHING"
	}

	var inserted int
	err = q.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO copsoq_responses (`+responseColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`+conflict+`
			RETURNING 1
		)
		SELECT COUNT(*) FROM ins
	`, resp.ID, resp.InviteID, resp.AssessmentID, resp.EmployeeName, resp.EmployeeEmail, resp.Department, resp.Token,
		answersJSON, sealed, resp.Comments, scoresJSON, missingJSON, resp.OverallScore, resp.CreatedAt).Scan(&inserted)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyCompleted
		}
		return fmt.Errorf("failed to insert response: %w", err)
	}
	return nil
}

func (s *PGStore) ListResponses(ctx context.Context, filter ResponseFilter) ([]Response, error) {
	var conds []string
	var args []any
	if filter.AssessmentID != "" {
		args = append(args, filter.AssessmentID)
		conds = append(conds, fmt.Sprintf("assessment_id = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conds = append(conds, fmt.Sprintf("department = $%d", len(args)))
	}

	query := `SELECT ` + responseColumns + ` FROM copsoq_responses`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var r Response
		var inviteID uuid.NullUUID
		var answersRaw, scoresRaw, missingRaw []byte
		var sealed *string
		if err := rows.Scan(&r.ID, &inviteID, &r.AssessmentID, &r.EmployeeName, &r.EmployeeEmail, &r.Department, &r.Token,
			&answersRaw, &sealed, &r.Comments, &scoresRaw, &missingRaw, &r.OverallScore, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		if inviteID.Valid {
			id := inviteID.UUID
			r.InviteID = &id
		}
		if sealed != nil {
			r.AnswersSealed = *sealed
		}
		if len(answersRaw) > 0 {
			if err := json.Unmarshal(answersRaw, &r.Responses); err != nil {
				return nil, fmt.Errorf("failed to decode answers for response %s: %w", r.ID, err)
			}
		}
		if err := json.Unmarshal(scoresRaw, &r.DimensionScores); err != nil {
			return nil, fmt.Errorf("failed to decode scores for response %s: %w", r.ID, err)
		}
		if err := json.Unmarshal(missingRaw, &r.MissingDimensions); err != nil {
			return nil, fmt.Errorf("failed to decode missing dimensions for response %s: %w", r.ID, err)
		}
		if len(r.MissingDimensions) == 0 {
			r.MissingDimensions = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
