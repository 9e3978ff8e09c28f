package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/aliuyar1234/nr01desk/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var migrationsFS fs.FS = migrations.FS

// RunMigrations applies all pending database migrations in file-name order.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	pending, err := PendingMigrations(ctx, pool)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		log.Debug().Msg("Schema is up to date")
		return nil
	}

	for _, name := range pending {
		log.Info().Str("migration", name).Msg("Applying migration")
		if err := applyMigration(ctx, pool, name); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	log.Info().Int("applied", len(pending)).Msg("Migrations applied")
	return nil
}

// PendingMigrations lists embedded migrations not yet recorded in schema_migrations.
func PendingMigrations(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := migrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pending []string
	for _, name := range files {
		if !applied[name] {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

func migrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// applyMigration runs one file and records it. The simple query protocol is
// required for multi-statement files, so the file and its bookkeeping row are
// wrapped in an explicit BEGIN/COMMIT on a single connection.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, name string) error {
	content, err := fs.ReadFile(migrationsFS, name)
	if err != nil {
		return err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	pgConn := conn.Conn().PgConn()
	if _, err := pgConn.Exec(ctx, "BEGIN").ReadAll(); err != nil {
		return err
	}
	if _, err := pgConn.Exec(ctx, string(content)).ReadAll(); err != nil {
		_, _ = pgConn.Exec(ctx, "ROLLBACK").ReadAll()
		return err
	}
	if _, err := conn.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		_, _ = pgConn.Exec(ctx, "ROLLBACK").ReadAll()
		return err
	}
	_, err = pgConn.Exec(ctx, "COMMIT").ReadAll()
	return err
}
