// Command relayctl is the operational control-plane CLI spec §6 names:
// run-schedule (bypasses cron), reap-locks, and seed-templates, with the
// exit codes the spec fixes (0 success, 2 invalid input, 3 transient
// failure, 4 fatal failure). Grounded on the teacher's corpus-wide use of
// spf13/cobra for operational CLIs (jhjaggars-package-tracking's
// cmd/email-tracker/cmd), adapted to this repo's logrus/gorm stack instead
// of that example's slog.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"smart-mail-relay-go/internal/apperrors"
	"smart-mail-relay-go/internal/config"
	"smart-mail-relay-go/internal/database"
	"smart-mail-relay-go/internal/model"
	"smart-mail-relay-go/internal/repository"
)

const (
	exitInvalid   = 2
	exitTransient = 3
	exitFatal     = 4
)

func main() {
	root := &cobra.Command{
		Use:   "relayctl",
		Short: "operational control plane for the mail pipeline",
	}
	root.AddCommand(newRunScheduleCmd(), newReapLocksCmd(), newSeedTemplatesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(classifyExitCode(err))
	}
}

// classifyExitCode maps an error's apperrors.Kind to spec §6's exit codes.
// Errors never wrapped by apperrors (cobra usage errors, flag parsing) are
// treated as invalid input.
func classifyExitCode(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.Transient:
		return exitTransient
	case apperrors.Fatal, apperrors.Permanent:
		return exitFatal
	default:
		return exitInvalid
	}
}

func connect() (*config.Config, repository.Repository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, apperrors.New(apperrors.Fatal, "relayctl.connect", err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, nil, apperrors.New(apperrors.Fatal, "relayctl.connect", err)
	}
	repo := repository.New(db)
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return cfg, repo, cleanup, nil
}

func newRunScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-schedule <id>",
		Short: "run a schedule's execution immediately, bypassing its cron/date-range trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, repo, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()

			schedule, err := repo.GetSchedule(cmd.Context(), args[0])
			if err != nil {
				return apperrors.New(apperrors.Fatal, "run-schedule", err)
			}
			if schedule == nil {
				return apperrors.New(apperrors.Validation, "run-schedule", fmt.Errorf("schedule %q not found", args[0]))
			}

			orch, cleanupOrch, err := newDefaultOrchestrator(cmd.Context(), cfg, repo)
			if err != nil {
				return err
			}
			defer cleanupOrch()

			if err := orch.RunExecution(cmd.Context(), *schedule); err != nil {
				return apperrors.New(apperrors.Transient, "run-schedule", err)
			}
			logrus.WithField("scheduleId", schedule.ID).Info("relayctl: schedule execution finished")
			return nil
		},
	}
}

func newReapLocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap-locks",
		Short: "reclaim execution locks and RUNNING executions abandoned by a crashed process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, repo, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()

			locks, err := repo.ReapStaleLocks(cmd.Context(), cfg.Scheduler.StaleLockGrace)
			if err != nil {
				return apperrors.New(apperrors.Transient, "reap-locks", err)
			}
			execs, err := repo.ReapStaleExecutions(cmd.Context(), cfg.Scheduler.StaleLockGrace)
			if err != nil {
				return apperrors.New(apperrors.Transient, "reap-locks", err)
			}
			logrus.WithFields(logrus.Fields{"locksReaped": locks, "executionsReaped": execs}).Info("relayctl: janitor pass complete")
			return nil
		},
	}
}

func newSeedTemplatesCmd() *cobra.Command {
	var fixturePath string
	cmd := &cobra.Command{
		Use:   "seed-templates",
		Short: "load a YAML fixture of prompt templates and upsert them by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixturePath == "" {
				return apperrors.New(apperrors.Validation, "seed-templates", fmt.Errorf("--file is required"))
			}
			raw, err := os.ReadFile(fixturePath)
			if err != nil {
				return apperrors.New(apperrors.Validation, "seed-templates", err)
			}
			var fixture model.TemplateFixtureFile
			if err := yaml.Unmarshal(raw, &fixture); err != nil {
				return apperrors.New(apperrors.Validation, "seed-templates", err)
			}
			if len(fixture.Templates) == 0 {
				return apperrors.New(apperrors.Validation, "seed-templates", fmt.Errorf("fixture %s has no templates", fixturePath))
			}

			_, repo, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()

			for i := range fixture.Templates {
				t := fixture.Templates[i]
				if err := repo.UpsertPromptTemplate(cmd.Context(), &t); err != nil {
					return apperrors.New(apperrors.Fatal, "seed-templates", fmt.Errorf("upserting %q: %w", t.Name, err))
				}
				logrus.WithField("template", t.Name).Info("relayctl: seeded template")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "file", "", "path to a YAML template fixture file")
	return cmd
}
