package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/app"
	"github.com/aliuyar1234/nr01desk/internal/config"
	"github.com/aliuyar1234/nr01desk/internal/reminders"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// reminderTimeout bounds one scheduled reminder run.
const reminderTimeout = 10 * time.Minute

var rootCmd = &cobra.Command{
	Use:   "nr01desk",
	Short: "NR-01 psychosocial risk desk",
	Long: `nr01desk runs the COPSOQ-II questionnaire, the admin dashboard and the
services, proposals and risk assessment back office.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the reminder scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, adminCmd, keysCmd, exportCmd, importLegacyCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	if cfg.ReminderSchedule != "" {
		s := application.Services
		scheduler, err := reminders.NewScheduler(cfg.ReminderSchedule, s.Dispatcher, s.Auditor, cfg.ReminderAfterDays, reminderTimeout)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info().Str("schedule", cfg.ReminderSchedule).Int("after_days", cfg.ReminderAfterDays).Msg("Reminder scheduler started")
	} else {
		log.Info().Msg("Reminder scheduler disabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- application.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
			return err
		}
	}
	return nil
}
