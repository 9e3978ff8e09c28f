package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/db"
	"github.com/aliuyar1234/nr01desk/internal/validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("account is inactive")
	ErrAdminNotFound      = errors.New("admin user not found")
	ErrAdminExists        = errors.New("username or email already registered")
)

// AdminUser is a back-office account.
type AdminUser struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Service manages admin accounts.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

const adminColumns = `id, username, email, active, last_login_at, created_at`

// CreateAdmin validates and stores a new active admin.
func (s *Service) CreateAdmin(ctx context.Context, username, email, password string) (*AdminUser, error) {
	username = strings.TrimSpace(username)
	email = validation.NormalizeEmail(email)

	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var u AdminUser
	err = s.pool.QueryRow(ctx, `
		INSERT INTO admin_users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+adminColumns,
		username, email, hash,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Active, &u.LastLoginAt, &u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAdminExists
		}
		return nil, fmt.Errorf("failed to insert admin user: %w", err)
	}
	return &u, nil
}

// Authenticate checks a username-or-email and password pair and stamps
// last_login on success. Unknown logins and wrong passwords look the same.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*AdminUser, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var u AdminUser
	var hash string
	err := s.pool.QueryRow(ctx, `
		SELECT `+adminColumns+`, password_hash
		FROM admin_users
		WHERE username = $1 OR email = lower($1)
		LIMIT 1
	`, login).Scan(&u.ID, &u.Username, &u.Email, &u.Active, &u.LastLoginAt, &u.CreatedAt, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			burnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to query admin user: %w", err)
	}

	if err := VerifyPassword(hash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrInactive
	}
	if NeedsRehash(hash) {
		s.rehash(ctx, u.ID, password)
	}

	now := time.Now().UTC()
	if _, err := s.pool.Exec(ctx, `UPDATE admin_users SET last_login_at = $2 WHERE id = $1`, u.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	u.LastLoginAt = &now
	return &u, nil
}

// rehash stores password at the current cost. Failures only cost the upgrade.
func (s *Service) rehash(ctx context.Context, id uuid.UUID, password string) {
	hash, err := HashPassword(password)
	if err == nil {
		_, err = s.pool.Exec(ctx, `UPDATE admin_users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	}
	if err != nil {
		log.Warn().Err(err).Str("admin_id", id.String()).Msg("Failed to upgrade password hash")
	}
}

// GetByID returns an admin by id.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*AdminUser, error) {
	var u AdminUser
	err := s.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.Active, &u.LastLoginAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return &u, nil
}

// ResetPassword replaces the password of the admin matching login.
func (s *Service) ResetPassword(ctx context.Context, login, password string) (uuid.UUID, error) {
	if err := validation.ValidatePassword(password); err != nil {
		return uuid.Nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var id uuid.UUID
	err = s.pool.QueryRow(ctx, `
		UPDATE admin_users
		SET password_hash = $2, updated_at = NOW()
		WHERE username = $1 OR email = lower($1)
		RETURNING id
	`, strings.TrimSpace(login), hash).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrAdminNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to reset password: %w", err)
	}
	return id, nil
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, login string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE admin_users SET active = $2, updated_at = NOW()
		WHERE username = $1 OR email = lower($1)
	`, strings.TrimSpace(login), active)
	if err != nil {
		return fmt.Errorf("failed to update admin user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAdminNotFound
	}
	return nil
}
