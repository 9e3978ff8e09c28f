package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/app"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/auth"
	"github.com/aliuyar1234/nr01desk/internal/db"
	"github.com/aliuyar1234/nr01desk/internal/validation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	adminDSN      string
	adminUsername string
	adminEmail    string
	adminLogin    string
	adminPassword string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
	Long: `Manage the accounts that can sign in to the admin area.

Available subcommands:
  create         - Create an admin account
  reset-password - Replace an admin's password
  disable        - Block an admin from signing in
  enable         - Allow a disabled admin to sign in again

If --password is omitted, a random password is generated and printed.
--db-dsn defaults to DB_DSN.`,
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account",
	RunE:  runAdminCreate,
}

var adminResetCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Replace an admin's password",
	RunE:  runAdminReset,
}

var adminDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Block an admin from signing in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdminSetActive(cmd, false)
	},
}

var adminEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Allow a disabled admin to sign in again",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdminSetActive(cmd, true)
	},
}

func init() {
	adminCmd.PersistentFlags().StringVar(&adminDSN, "db-dsn", "", "Postgres DSN (defaults to DB_DSN)")

	adminCreateCmd.Flags().StringVar(&adminUsername, "username", "", "Username")
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "Email address")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "Password (if empty, generates one)")
	_ = adminCreateCmd.MarkFlagRequired("username")
	_ = adminCreateCmd.MarkFlagRequired("email")

	adminResetCmd.Flags().StringVar(&adminLogin, "login", "", "Username or email")
	adminResetCmd.Flags().StringVar(&adminPassword, "password", "", "New password (if empty, generates one)")
	_ = adminResetCmd.MarkFlagRequired("login")

	for _, c := range []*cobra.Command{adminDisableCmd, adminEnableCmd} {
		c.Flags().StringVar(&adminLogin, "login", "", "Username or email")
		_ = c.MarkFlagRequired("login")
	}

	adminCmd.AddCommand(adminCreateCmd, adminResetCmd, adminDisableCmd, adminEnableCmd)
}

// openAdminDB connects without the full application config, so accounts can
// be bootstrapped before the rest of the environment exists.
func openAdminDB(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := strings.TrimSpace(adminDSN)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DB_DSN"))
	}
	if dsn == "" {
		return nil, errors.New("--db-dsn is required (or set DB_DSN)")
	}
	app.SetupLogger("warn")
	return db.Connect(ctx, dsn)
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	password, generated, err := passwordOrGenerated(adminPassword)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	pool, err := openAdminDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	user, err := auth.NewService(pool).CreateAdmin(ctx, adminUsername, adminEmail, password)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	_ = audit.NewWriter(pool).LogAdminCreated(ctx, user.ID, user.Username)

	fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created.\n", user.Username)
	if generated {
		fmt.Fprintln(cmd.OutOrStdout(), password)
	}
	return nil
}

func runAdminReset(cmd *cobra.Command, args []string) error {
	password, generated, err := passwordOrGenerated(adminPassword)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	pool, err := openAdminDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	id, err := auth.NewService(pool).ResetPassword(ctx, adminLogin, password)
	if err != nil {
		if errors.Is(err, auth.ErrAdminNotFound) {
			return fmt.Errorf("no admin found for %q", adminLogin)
		}
		return err
	}
	_ = audit.NewWriter(pool).LogPasswordReset(ctx, id)

	fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
	if generated {
		fmt.Fprintln(cmd.OutOrStdout(), password)
	}
	return nil
}

func runAdminSetActive(cmd *cobra.Command, active bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	pool, err := openAdminDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := auth.NewService(pool).SetActive(ctx, adminLogin, active); err != nil {
		if errors.Is(err, auth.ErrAdminNotFound) {
			return fmt.Errorf("no admin found for %q", adminLogin)
		}
		return err
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Admin %s %s.\n", adminLogin, state)
	return nil
}

func passwordOrGenerated(password string) (string, bool, error) {
	if password != "" {
		return password, false, nil
	}
	for {
		pw, err := generatePassword(18)
		if err != nil {
			return "", false, fmt.Errorf("failed to generate password: %w", err)
		}
		if validation.ValidatePassword(pw) == nil {
			return pw, true, nil
		}
	}
}

func generatePassword(bytesLen int) (string, error) {
	if bytesLen < 8 {
		bytesLen = 8
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	// URL-safe, printable, without padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
