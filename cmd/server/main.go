/*
main.go - Application entry point

PURPOSE:
  Command line for the breeding engine: serves the HTTP API with the
  reconciliation scheduler, migrates the schema, runs a job once, or seeds
  a demo herd.

COMMANDS:
  serve             HTTP API, cron jobs, /metrics
  migrate           Create or upgrade the schema and exit
  jobs run <name>   Run heat-expiry, weaning or notifications once
  seed <scenario>   Load a demo herd (see GET /api/scenarios)

CONFIGURATION:
  --config path/to/config.yaml (optional). Without a file the defaults
  apply: SQLite at ./breeding.db, in-process locks, jobs at 02:00, 03:00
  and every six hours in UTC.

  BREEDING_DB_DRIVER, BREEDING_DB_DSN and BREEDING_HTTP_ADDR override the
  file.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (http.shutdown_timeout)
  3. Stop the scheduler, letting a running job finish
  4. Close the store and the lock client

EXAMPLES:
  breeding-engine serve --config ./config.yaml
  BREEDING_DB_DRIVER=memory breeding-engine seed heat-watch
  breeding-engine jobs run weaning

SEE ALSO:
  - app.go: Dependency wiring
  - api/server.go: Router configuration
  - config/config.go: Configuration schema
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/api"
	"github.com/swinetrack/breeding-engine/config"
	"github.com/swinetrack/breeding-engine/jobs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "breeding-engine",
		Short:         "Swine reproductive cycle tracking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config.yaml")

	load := func() (*config.Config, error) { return config.Load(cfgPath) }

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newJobsCmd(load),
		newSeedCmd(load),
	)
	return root
}

type loader func() (*config.Config, error)

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.scheduler()
	if err != nil {
		return err
	}
	if cfg.Scheduler.IsEnabled() {
		sched.Start()
	}

	handler := api.NewHandler(a.coord, a.jobs, sched, a.logger.Named("api"))
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(handler, api.Options{CORSOrigins: cfg.HTTP.CORSOrigins, Gatherer: a.registry}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("lock", cfg.Lock.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler did not stop in time", zap.Error(err))
	}
	a.logger.Info("server stopped")
	return nil
}

// =============================================================================
// MIGRATE
// =============================================================================

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			// Opening a SQL store applies the schema.
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.logger.Info("schema up to date", zap.String("driver", cfg.Store.Driver))
			return nil
		},
	}
}

// =============================================================================
// JOBS
// =============================================================================

func newJobsCmd(load loader) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Reconciliation jobs",
	}
	jobsCmd.AddCommand(&cobra.Command{
		Use:       "run <name>",
		Short:     "Run a job once: " + strings.Join(jobNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.scheduler()
			if err != nil {
				return err
			}
			if err := sched.RunNow(cmd.Context(), args[0]); err != nil {
				return err
			}
			for _, e := range sched.Entries() {
				if e.Name == args[0] && e.LastRun != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s completed in %s\n", e.Name, e.LastRun.Took)
				}
			}
			return nil
		},
	})
	return jobsCmd
}

func jobNames() []string {
	return []string{jobs.HeatExpiry, jobs.Weaning, jobs.Notifications}
}

// =============================================================================
// SEED
// =============================================================================

func newSeedCmd(load loader) *cobra.Command {
	var ids []string
	for _, s := range api.Scenarios() {
		ids = append(ids, s.ID)
	}
	return &cobra.Command{
		Use:       "seed <scenario>",
		Short:     "Load a demo herd: " + strings.Join(ids, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: ids,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := api.Seed(cmd.Context(), a.coord, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario %s loaded\n", args[0])
			return nil
		},
	}
}
