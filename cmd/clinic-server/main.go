package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/saludsync/clinic/internal/config"
	"github.com/saludsync/clinic/internal/domain/audit"
	"github.com/saludsync/clinic/internal/domain/billing"
	"github.com/saludsync/clinic/internal/domain/catalog"
	"github.com/saludsync/clinic/internal/domain/dashboard"
	"github.com/saludsync/clinic/internal/domain/encounter"
	"github.com/saludsync/clinic/internal/domain/exams"
	"github.com/saludsync/clinic/internal/domain/identity"
	"github.com/saludsync/clinic/internal/domain/medication"
	"github.com/saludsync/clinic/internal/domain/scheduling"
	"github.com/saludsync/clinic/internal/platform/apperr"
	"github.com/saludsync/clinic/internal/platform/auditstream"
	"github.com/saludsync/clinic/internal/platform/auth"
	"github.com/saludsync/clinic/internal/platform/blobstore"
	"github.com/saludsync/clinic/internal/platform/cache"
	"github.com/saludsync/clinic/internal/platform/db"
	"github.com/saludsync/clinic/internal/platform/metrics"
	"github.com/saludsync/clinic/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "SaludSync clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(auditRelayCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
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
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, dir).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, dir).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func auditRelayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit-relay",
		Short: "Publish audit records to Kafka until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required for the audit relay")
			}
			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			relay := newRelay(cfg, pool, metrics.New(nil), logger)
			defer relay.Close()
			return relay.Run(ctx)
		},
	}
}

func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		logger = logger.Level(level)
	}
	return logger
}

func newRelay(cfg *config.Config, pool db.Pool, m *metrics.Metrics, logger zerolog.Logger) *auditstream.Relay {
	source := audit.NewStreamSource(audit.NewRepoPG(pool))
	writer := auditstream.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
	return auditstream.NewRelay(source, writer, m, logger, cfg.AuditRelayInterval, cfg.AuditRelayBatch)
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	maxSize := middleware.ParseSize(cfg.UploadLimit)
	if cfg.BlobBackend != "s3" {
		return blobstore.NewMemoryStore(maxSize), nil
	}
	client, err := blobstore.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
	if err != nil {
		return nil, err
	}
	return blobstore.NewS3Store(client, cfg.S3Bucket, maxSize), nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		if redisClient, err = cache.NewClient(ctx, cfg.RedisURL); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		logger.Info().Msg("dashboard cache enabled")
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open blob store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	e, err := newServer(cfg, serverDeps{
		pool:   pool,
		stats:  func() *db.PoolStats { return db.GetPoolStats(pool) },
		redis:  redisClient,
		blobs:  blobs,
		m:      m,
		logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	if len(cfg.KafkaBrokers) > 0 {
		relay := newRelay(cfg, pool, m, logger)
		relay.Start(ctx)
		defer relay.Close()
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

type serverDeps struct {
	pool interface {
		db.Pool
		db.Pinger
	}
	stats  func() *db.PoolStats
	redis  *redis.Client
	blobs  blobstore.Store
	m      *metrics.Metrics
	logger zerolog.Logger
}

// newServer wires every domain package onto a fresh echo instance.
func newServer(cfg *config.Config, d serverDeps) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	open, closing, err := cfg.ClinicHours()
	if err != nil {
		return nil, err
	}
	signingKey, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(d.logger)

	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(d.m.Middleware())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.StationHeader},
	}))

	jwtCfg := auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: signingKey, Skipper: auth.AuthSkipper}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(d.pool, d.stats))
	e.GET("/metrics", d.m.Handler())

	api := e.Group("/api/v1")
	tx := db.NewTxManager(d.pool)
	logger := d.logger

	// Audit
	auditRepo := audit.NewRepoPG(d.pool)
	recorder := audit.NewRecorder(auditRepo, d.m, loc)
	audit.NewHandler(audit.NewService(auditRepo)).RegisterRoutes(api)

	// Reference data
	catalogSvc := catalog.NewService(catalog.NewRepoPG(d.pool), tx, recorder)
	catalog.NewHandler(catalogSvc).RegisterRoutes(api)

	// People
	identitySvc := identity.NewService(
		identity.NewPatientRepoPG(d.pool),
		identity.NewDoctorRepoPG(d.pool),
		identity.NewEmployeeRepoPG(d.pool),
		catalogSvc, tx, recorder, d.blobs,
		logger.With().Str("domain", "identity").Logger(), loc,
	)
	identity.NewHandler(identitySvc).RegisterRoutes(api)

	// Pharmacy
	medRepo := medication.NewRepoPG(d.pool)
	medication.NewHandler(medication.NewService(medRepo, catalogSvc, tx, recorder)).RegisterRoutes(api)

	// Encounters
	encounterSvc := encounter.NewService(
		encounter.NewRepoPG(d.pool), medRepo, identitySvc, catalogSvc, tx, recorder, d.m,
		logger.With().Str("domain", "encounter").Logger(), loc,
	)
	encounter.NewHandler(encounterSvc).RegisterRoutes(api)

	// Appointments
	schedulingSvc := scheduling.NewService(
		scheduling.NewRepoPG(d.pool), identitySvc, tx, recorder, d.m,
		logger.With().Str("domain", "scheduling").Logger(), loc,
	).WithHours(scheduling.Hours{Open: open, Close: closing})
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)

	// Exams
	examsSvc := exams.NewService(
		exams.NewRepoPG(d.pool), identitySvc, tx, recorder, d.blobs,
		logger.With().Str("domain", "exams").Logger(), loc,
	)
	exams.NewHandler(examsSvc).RegisterRoutes(api)

	// Billing
	billingSvc := billing.NewService(
		billing.NewServiceRepoPG(d.pool), billing.NewCostRepoPG(d.pool),
		encounterSvc, medRepo, identitySvc, tx, recorder,
		logger.With().Str("domain", "billing").Logger(),
	)
	billing.NewHandler(billingSvc).RegisterRoutes(api)

	// Dashboard
	dashboardSvc := dashboard.NewService(
		identitySvc, schedulingSvc, encounterSvc,
		cache.NewJSON(d.redis, "clinic:"), cfg.DashboardCacheTTL,
		logger.With().Str("domain", "dashboard").Logger(), loc,
	)
	dashboardHandler := dashboard.NewHandler(dashboardSvc)
	dashboardHandler.RegisterRoutes(api)
	e.Use(dashboardHandler.InvalidateOnWrite("/api/v1/patients", "/api/v1/appointments", "/api/v1/encounters"))

	return e, nil
}
