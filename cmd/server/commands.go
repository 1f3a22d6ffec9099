package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vic-labs/collectivo/internal/database"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/router"
	"github.com/vic-labs/collectivo/internal/task"
)

func serveCmd(configPath *string) *cobra.Command {
	var skipSync bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}

			// 定时任务
			jobs := []task.Job{
				task.NewProposalExpiryJob(a.proposals, a.cfg.Task.ExpiryInterval),
				task.NewTentativeSweepJob(a.campaigns, a.cfg.Governance.TentativeTTL, a.cfg.Task.SweepInterval),
			}
			if !skipSync {
				syncJob, err := a.chainSyncJob(ctx)
				if err != nil {
					return err
				}
				jobs = append(jobs, syncJob)
			}
			manager, err := task.NewManager(jobs...)
			if err != nil {
				return err
			}
			if err := manager.RegisterJobs(); err != nil {
				return err
			}
			manager.Start()
			defer manager.Stop()

			// 设置Gin模式
			if a.cfg.Server.Mode == "release" {
				gin.SetMode(gin.ReleaseMode)
			}
			r := router.Setup(router.Services{
				Campaigns: a.campaigns,
				Proposals: a.proposals,
				Gatherer:  prometheus.DefaultGatherer,
			}, a.cfg)

			srv := &http.Server{Addr: ":" + a.cfg.Server.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("Server starting on port %s", a.cfg.Server.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			logger.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&skipSync, "no-sync", false, "do not ingest chain events")
	return cmd
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			logger.Info("Database migrated")
			return nil
		},
	}
}

func syncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Ingest pending chain events once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			job, err := a.chainSyncJob(ctx)
			if err != nil {
				return err
			}
			job.Execute(ctx)
			stats, err := a.events.Statistics(ctx)
			if err != nil {
				return err
			}
			logger.Info("Chain sync finished: %d events stored, %d pending, %d exhausted",
				stats["total_events"], stats["pending_events"], stats["exhausted_events"])
			return nil
		},
	}
}
