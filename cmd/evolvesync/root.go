package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/evolvesync/internal/adapter/driven/csvstore"
	"github.com/ericfisherdev/evolvesync/internal/adapter/driven/evolve"
	"github.com/ericfisherdev/evolvesync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/evolvesync/internal/adapter/driven/vault"
	"github.com/ericfisherdev/evolvesync/internal/application"
	"github.com/ericfisherdev/evolvesync/internal/config"
	"github.com/ericfisherdev/evolvesync/internal/domain/port/driven"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "evolvesync",
		Short:         "Synchronize exam results and candidate reports from the Evolve portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newVaultCmd())
	root.AddCommand(newJournalCmd())
	return root
}

// masterSecret resolves the vault master secret from the flag or the
// EVOLVESYNC_MASTER_SECRET environment variable.
func masterSecret(cmd *cobra.Command) (string, error) {
	master, err := cmd.Flags().GetString("master")
	if err != nil {
		return "", err
	}
	if master == "" {
		master = os.Getenv("EVOLVESYNC_MASTER_SECRET")
	}
	if master == "" {
		return "", errors.New("master secret required: pass --master or set EVOLVESYNC_MASTER_SECRET")
	}
	return master, nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one synchronization cycle over all vault accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			master, err := masterSecret(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			slog.Info("config loaded",
				"vault_path", cfg.VaultPath,
				"store_path", cfg.StorePath,
				"reports_dir", cfg.ReportsDir,
				"base_url", cfg.BaseURL,
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := sqlite.NewDB(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					slog.Error("error closing journal database", "error", closeErr)
				}
			}()
			if err := sqlite.RunMigrations(db.Writer); err != nil {
				return err
			}

			svc := application.NewSyncService(
				vault.New(cfg.VaultPath),
				csvstore.New(cfg.StorePath),
				evolve.NewOpener(cfg.BaseURL, cfg.RemoteTimeout),
				sqlite.NewRunJournalRepo(db),
				cfg.ArtifactBaseURL,
				cfg.ReportsDir,
			)

			stats, err := svc.Run(ctx, master)
			if err != nil {
				if errors.Is(err, driven.ErrVaultNotFound) {
					return errors.New("no vault yet: add an account with 'evolvesync vault add' first")
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"accounts processed: %d\nnew records: %d\nreports downloaded: %d\nerrors: %d\n",
				stats.AccountsProcessed, stats.NewRecords, stats.ArtifactsDownloaded, stats.Errors,
			)
			return nil
		},
	}
	cmd.Flags().String("master", "", "vault master secret")
	return cmd
}

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent synchronization runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := sqlite.NewDB(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := sqlite.RunMigrations(db.Writer); err != nil {
				return err
			}

			runs, err := sqlite.NewRunJournalRepo(db).ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded yet")
				return nil
			}

			for _, run := range runs {
				fmt.Fprintf(cmd.OutOrStdout(),
					"%s  started=%s  duration=%s  accounts=%d  new=%d  downloaded=%d  errors=%d\n",
					run.ID,
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
					run.Stats.AccountsProcessed,
					run.Stats.NewRecords,
					run.Stats.ArtifactsDownloaded,
					run.Stats.Errors,
				)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of runs to list")
	return cmd
}
