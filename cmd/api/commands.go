package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	adapterHTTP "github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the reminder sweeper and the streak repair worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to serve the API")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	startTime := time.Now()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	workerCtx, stopWorker := context.WithCancel(context.Background())
	a.repairWorker.Start(workerCtx)
	defer func() {
		stopWorker()
		a.repairWorker.Wait()
	}()

	if err := a.sweeper.Start(workerCtx); err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      adapterHTTP.NewRouter(a.routerDependencies(startTime)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("habitbot listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("stop signal received, shutting down")
	case err := <-serverErr:
		if err != nil {
			_ = a.sweeper.Stop(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	if err := a.sweeper.Stop(shutdownCtx); err != nil {
		logger.Error("sweeper did not stop in time", zap.Error(err))
	}

	logger.Info("server stopped gracefully")
	return nil
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.sweeper.Tick(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users=%d sent=%d failures=%d\n", report.Users, report.Sent, report.Failures)
			return nil
		},
	}
}

func newRepairCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "repair-streaks",
		Short: "Recompute the cached streaks of every habit of one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return errors.New("--user is required")
			}

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.habitSvc.RecomputeUserStreaks(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("repaired %d habits before failing: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "repaired %d habits for user %d\n", n, userID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "chat user id (required)")
	return cmd
}

func newHashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "hash-secret SECRET",
		Short:       "Print the bcrypt hash to use as CRON_SECRET_HASH",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"config": "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := services.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
