package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/aliuyar1234/nr01desk/internal/app"
	"github.com/aliuyar1234/nr01desk/internal/audit"
	"github.com/aliuyar1234/nr01desk/internal/db"
	"github.com/aliuyar1234/nr01desk/internal/legacy"
	"github.com/aliuyar1234/nr01desk/internal/sealed"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	migrateStatus bool

	exportDir  string
	exportZstd bool

	importDir        string
	importSQLite     string
	importAssessment string
	importTZ         string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate an age keypair for sealing response answers",
	Long: `Generate an age keypair for sealing response answers at rest.

Set RESPONSES_AGE_RECIPIENT on every server. Keep RESPONSES_AGE_IDENTITY
only where answers must be read back, such as the export host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, recipient, err := sealed.GenerateKeypair()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "RESPONSES_AGE_RECIPIENT=%s\n", recipient)
		fmt.Fprintf(cmd.OutOrStdout(), "RESPONSES_AGE_IDENTITY=%s\n", identity)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every collection as JSON documents to a directory",
	RunE:  runExport,
}

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy",
	Short: "Import JSON documents or a SQLite invite database from the previous system",
	Long: `Import data from the previous system.

--dir reads the JSON documents (services_db.json, proposals_db.json,
risk_assessments_db.json, copsoq_invites_db.json, copsoq_responses_db.json),
plain or .zst compressed. --sqlite reads the invites table of the old SQLite database
and needs --assessment. Timestamps without a zone are read in --tz.`,
	RunE: runImportLegacy,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "List pending migrations without applying them")

	exportCmd.Flags().StringVar(&exportDir, "dir", "export", "Output directory")
	exportCmd.Flags().BoolVar(&exportZstd, "zstd", false, "Compress documents with zstd")

	importLegacyCmd.Flags().StringVar(&importDir, "dir", "", "Directory with legacy JSON documents")
	importLegacyCmd.Flags().StringVar(&importSQLite, "sqlite", "", "Path to the legacy SQLite database")
	importLegacyCmd.Flags().StringVar(&importAssessment, "assessment", "", "Assessment id for SQLite invites")
	importLegacyCmd.Flags().StringVar(&importTZ, "tz", "UTC", "Time zone of timestamps without an offset")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app.SetupLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if migrateStatus {
		pending, err := db.PendingMigrations(ctx, pool)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		}
		for _, name := range pending {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}
	return db.RunMigrations(ctx, pool)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app.SetupLogger(cfg.LogLevel)

	ctx := cmd.Context()
	pool, err := app.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	services, err := app.NewServices(pool, cfg)
	if err != nil {
		return err
	}

	files, err := services.Exporter.WriteDir(ctx, exportDir, exportZstd)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}

func runImportLegacy(cmd *cobra.Command, args []string) error {
	importDir = strings.TrimSpace(importDir)
	importSQLite = strings.TrimSpace(importSQLite)
	if importDir == "" && importSQLite == "" {
		return errors.New("one of --dir or --sqlite is required")
	}
	loc, err := time.LoadLocation(importTZ)
	if err != nil {
		return fmt.Errorf("invalid --tz: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app.SetupLogger(cfg.LogLevel)

	ctx := cmd.Context()
	pool, err := app.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	services, err := app.NewServices(pool, cfg)
	if err != nil {
		return err
	}
	importer := services.Importer(loc)

	var report legacy.Report
	source := importDir
	if importDir != "" {
		report, err = importer.ImportDir(ctx, importDir)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
	}
	if importSQLite != "" {
		source = strings.TrimPrefix(source+","+importSQLite, ",")
		report.SQLiteInvites, err = importer.ImportSQLite(ctx, importSQLite, importAssessment)
		if err != nil {
			return fmt.Errorf("sqlite import failed: %w", err)
		}
	}

	if err := services.Auditor.Log(ctx, audit.LogParams{
		Action:     audit.EventLegacyImported,
		EntityType: audit.EntityImport,
		EntityID:   source,
		Meta:       report.Meta(),
	}); err != nil {
		log.Error().Err(err).Msg("Failed to log audit event")
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Imported %d services, %d proposals, %d risk assessments, %d invites (%d from SQLite), %d responses.\n",
		report.Services, report.Proposals, report.Assessments, report.Invites+report.SQLiteInvites, report.SQLiteInvites, report.Responses)
	return nil
}
