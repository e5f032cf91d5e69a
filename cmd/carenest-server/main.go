package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/carenest/carenest/internal/config"
	"github.com/carenest/carenest/internal/domain/appointment"
	"github.com/carenest/carenest/internal/domain/mother"
	"github.com/carenest/carenest/internal/platform/auth"
	"github.com/carenest/carenest/internal/platform/db"
	"github.com/carenest/carenest/internal/platform/middleware"
	"github.com/carenest/carenest/internal/platform/scheduling"
	"github.com/carenest/carenest/internal/platform/telemetry"
	"github.com/carenest/carenest/migrations"
	"github.com/carenest/carenest/pkg/pregnancy"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carenest-server",
		Short: "CareNest maternal health API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(datingCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CareNest API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run PostgreSQL migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StorageDriver != config.StoragePostgres {
		return nil, nil, fmt.Errorf("migrations apply to postgres only; the sqlite schema is applied on open")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrations.Postgres), pool.Close, nil
}

// datingCmd dates a pregnancy offline, without touching storage.
func datingCmd() *cobra.Command {
	var lmp, now string
	cmd := &cobra.Command{
		Use:   "dating",
		Short: "Print gestational age, due date and next visit for an LMP",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := datingReport(lmp, now)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
	cmd.Flags().StringVar(&lmp, "lmp", "", "last menstrual period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&now, "now", "", "reference date (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("lmp")
	return cmd
}

func datingReport(lmp, now string) (*mother.DatingView, error) {
	ref := time.Now()
	if now != "" {
		t, err := pregnancy.ParseDate(now)
		if err != nil {
			return nil, fmt.Errorf("--now: %w", err)
		}
		ref = t
	}
	start, err := pregnancy.ParseDate(lmp)
	if err != nil {
		return nil, fmt.Errorf("--lmp: %w", err)
	}
	if err := pregnancy.ValidateLMP(start, ref); err != nil {
		return nil, fmt.Errorf("--lmp: %w", err)
	}
	d, rec, err := pregnancy.RecommendFromLMP(start, ref)
	if err != nil {
		return nil, err
	}
	return mother.NewDatingView(d, ref).WithVisit(rec), nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg == nil || cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		l := newLogger(nil)
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)
	log.Logger = logger
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.close()

	srv, err := newServer(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer srv.close()

	srv.refresher.Start()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.refresher.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("snapshot refresh still running at shutdown")
	}
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// storage bundles the repositories of one backend with its health probes.
type storage struct {
	mothers      mother.Repository
	appointments appointment.Repository
	tx           db.TxManager
	pinger       db.Pinger
	stats        func() *db.PoolStats
	close        func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath, migrations.SQLiteSchema)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return &storage{
			mothers:      mother.NewRepoSQLite(conn),
			appointments: appointment.NewRepoSQLite(conn),
			tx:           db.NewSQLTxManager(conn),
			pinger:       db.SQLPinger(conn),
			stats:        func() *db.PoolStats { return db.SQLPoolStats(conn) },
			close:        func() { conn.Close() },
		}, nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		applied, err := db.NewMigrator(pool, migrations.Postgres).Up(ctx)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Int("applied_migrations", applied).Msg("connected to database")
		return &storage{
			mothers:      mother.NewRepoPG(pool),
			appointments: appointment.NewRepoPG(pool),
			tx:           db.NewPGTxManager(pool),
			pinger:       pool,
			stats:        func() *db.PoolStats { return db.PGPoolStats(pool) },
			close:        pool.Close,
		}, nil
	}
}

type server struct {
	echo      *echo.Echo
	refresher *scheduling.Refresher
	closers   []func()
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newServer(ctx context.Context, cfg *config.Config, store *storage, logger zerolog.Logger) (*server, error) {
	srv := &server{}
	metrics := telemetry.NewProvider()

	issuer, err := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	// Revocations live in memory unless REDIS_URL shares them across replicas.
	local := auth.NewMemoryRevocationStore(time.Minute)
	srv.closers = append(srv.closers, local.Close)
	var revocations auth.RevocationStore = local
	if cfg.RedisURL != "" {
		client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; token revocations stay local to this replica")
		} else {
			srv.closers = append(srv.closers, func() { client.Close() })
			revocations = auth.NewRedisRevocationStore(client, local)
		}
	}

	motherSvc := mother.NewService(store.mothers, store.tx, issuer, metrics)
	apptSvc := appointment.NewService(store.appointments, motherSvc, metrics)

	limiter, err := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		MaxClients:        middleware.DefaultRateLimitConfig().MaxClients,
	})
	if err != nil {
		srv.close()
		return nil, err
	}

	jwtCfg := issuer.Config()
	jwtCfg.Revocations = revocations
	jwtCfg.Skipper = auth.AuthSkipper

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{HSTS: cfg.IsProduction()}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(metrics.Middleware())
	e.Use(auth.JWTMiddleware(jwtCfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(store.pinger, store.stats))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1", limiter)
	mother.NewHandler(motherSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	apiV1.POST("/auth/logout", auth.LogoutHandler(revocations))

	refresher, err := scheduling.NewRefresher(cfg.SnapshotRefreshCron, motherSvc, logger)
	if err != nil {
		srv.close()
		return nil, err
	}

	srv.echo, srv.refresher = e, refresher
	return srv, nil
}
