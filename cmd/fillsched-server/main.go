package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fillsched/fillsched/internal/config"
	"github.com/fillsched/fillsched/internal/domain/analysis"
	"github.com/fillsched/fillsched/internal/domain/canister"
	"github.com/fillsched/fillsched/internal/domain/mfd"
	"github.com/fillsched/fillsched/internal/domain/pack"
	"github.com/fillsched/fillsched/internal/domain/replenish"
	"github.com/fillsched/fillsched/internal/domain/tracker"
	"github.com/fillsched/fillsched/internal/platform/auth"
	"github.com/fillsched/fillsched/internal/platform/db"
	"github.com/fillsched/fillsched/internal/platform/middleware"
	"github.com/fillsched/fillsched/internal/platform/notify"
	"github.com/fillsched/fillsched/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fillsched-server",
		Short: "Pack fulfillment and canister replenishment scheduler",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(cfg.AuthSecret))
	}

	metrics := telemetry.New()
	e.GET("/metrics", metrics.Handler())

	e.GET("/health", func(c echo.Context) error {
		if err := db.Health(c.Request().Context(), pool); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	var notifier notify.ReplenishNotifier = notify.Noop{}
	if cfg.ReplenishCacheURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.ReplenishCacheURL, logger)
		logger.Info().Str("url", cfg.ReplenishCacheURL).Msg("replenish cache notifications enabled")
	}

	txRunner := db.NewTxRunner(pool)
	apiV1 := e.Group("/api/v1")

	// Pack domain
	packRepo := pack.NewRepoPG(pool)
	packSvc := pack.NewService(packRepo)
	pack.NewHandler(packSvc).RegisterRoutes(apiV1)

	// Canister domain
	canisterRepo := canister.NewRepoPG(pool)
	canisterSvc := canister.NewService(canisterRepo, logger)
	canister.NewHandler(canisterSvc).RegisterRoutes(apiV1)

	// Change tracker
	trackerRepo := tracker.NewRepoPG(pool)
	trackerSvc := tracker.NewService(trackerRepo)
	tracker.NewHandler(trackerSvc).RegisterRoutes(apiV1)

	// Analysis domain
	analysisRepo := analysis.NewRepoPG(pool)
	mfdRepo := mfd.NewRepoPG(pool)
	demandSvc := analysis.NewDemandService(analysisRepo, packRepo, metrics)
	builder := analysis.NewBuilder(analysisRepo, mfdRepo, txRunner, metrics, logger)
	substitution := analysis.NewSubstitution(analysisRepo, canisterSvc, trackerSvc, txRunner, notifier, metrics, logger)
	analysis.NewHandler(demandSvc, builder, substitution).RegisterRoutes(apiV1)

	// Replenishment planner
	replenishRepo := replenish.NewRepoPG(pool)
	replenishSvc := replenish.NewService(replenishRepo, packRepo, metrics, logger)
	replenish.NewHandler(replenishSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
