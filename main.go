// Package main provides the entry point for the measurement reporting service
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/measurement-reporting/app/handlers"
	"github.com/amirphl/measurement-reporting/app/middleware"
	"github.com/amirphl/measurement-reporting/app/router"
	"github.com/amirphl/measurement-reporting/app/scheduler"
	"github.com/amirphl/measurement-reporting/app/services"
	businessflow "github.com/amirphl/measurement-reporting/business_flow"
	"github.com/amirphl/measurement-reporting/config"
	_ "github.com/amirphl/measurement-reporting/docs"
	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/repository"
	"github.com/amirphl/measurement-reporting/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// @title Measurement Reporting API
// @version 1.0
// @description Operator API for attribution report delivery
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	appVersion          = "1.0.0"
	cacheHealthInterval = 30 * time.Second
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	scheduler *scheduler.ReportingScheduler
	stopFuncs []func()
	closers   []io.Closer
}

// engine holds the reporting stack shared by serve and deliver
type engine struct {
	db           *gorm.DB
	cache        *redis.Client
	scheduler    *scheduler.ReportingScheduler
	eventRepo    repository.EventReportRepository
	aggRepo      repository.AggregateReportRepository
	debugRepo    repository.DebugReportRepository
	// debugReports is the entry point for attribution and registration code; serve and deliver never call it
	debugReports services.DebugReportAPI
	closers      []io.Closer
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("measurement-reporting: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "measurement-reporting",
		Short:         "Attribution report delivery service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newDeliverCommand(), newTokenCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the operator API and the reporting scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return serve(cfg)
		},
	}
}

type deliverOptions struct {
	kind  string
	start string
	end   string
}

func newDeliverCommand() *cobra.Command {
	opts := &deliverOptions{}
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Run one reporting job over a report-time window and exit",
		Long: `Run one reporting job kind once over [start, end].

Times are RFC3339. End defaults to now and start defaults to end minus the
maximum upload retry window.

Example:
  measurement-reporting deliver --kind event-reporting
  measurement-reporting deliver --kind aggregate-reporting --start 2026-01-01T00:00:00Z --end 2026-01-02T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := services.ParseJobKind(opts.kind)
			if !ok {
				return fmt.Errorf("%w: %q", scheduler.ErrUnknownJobKind, opts.kind)
			}
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			start, end, err := parseDeliverWindow(opts.start, opts.end, cfg.Reporting.MaxUploadRetryWindow, utils.UTCNow())
			if err != nil {
				return err
			}
			return deliver(cmd.Context(), cfg, kind, start, end, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.kind, "kind", "", "job kind: event-reporting, aggregate-reporting or debug-reporting")
	cmd.Flags().StringVar(&opts.start, "start", "", "window start (RFC3339)")
	cmd.Flags().StringVar(&opts.end, "end", "", "window end (RFC3339)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

type tokenOptions struct {
	adminID uint
}

func newTokenCommand() *cobra.Command {
	opts := &tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin access token for the operator API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.adminID == 0 {
				return errors.New("--admin-id must be positive")
			}
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			tokenService, err := newTokenService(cfg.JWT)
			if err != nil {
				return err
			}
			access, refresh, err := tokenService.GenerateAdminTokens(opts.adminID)
			if err != nil {
				return fmt.Errorf("failed to generate admin tokens: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]string{
				"access_token":  access,
				"refresh_token": refresh,
				"token_type":    "Bearer",
			})
		},
	}
	cmd.Flags().UintVar(&opts.adminID, "admin-id", 0, "admin id carried in the token")
	_ = cmd.MarkFlagRequired("admin-id")
	return cmd
}

// parseDeliverWindow resolves the deliver window; empty bounds take defaults relative to now
func parseDeliverWindow(rawStart, rawEnd string, retryWindow time.Duration, now time.Time) (time.Time, time.Time, error) {
	if retryWindow <= 0 {
		retryWindow = utils.MaxUploadRetryWindow
	}

	end := now
	if rawEnd != "" {
		t, err := time.Parse(time.RFC3339, rawEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
		}
		end = t.UTC()
	}

	start := end.Add(-retryWindow)
	if rawStart != "" {
		t, err := time.Parse(time.RFC3339, rawStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
		}
		start = t.UTC()
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

func serve(cfg *config.ProductionConfig) error {
	log.Println("Starting measurement reporting service...")

	app, err := initializeApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer closeAll(app.closers)

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
	case err := <-serverErr:
		log.Printf("Server stopped unexpectedly: %v", err)
	}

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
	return nil
}

func deliver(ctx context.Context, cfg *config.ProductionConfig, kind services.JobKind, start, end time.Time, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := initializeEngine(cfg)
	if err != nil {
		return err
	}
	defer closeAll(eng.closers)

	summaries, err := eng.scheduler.Run(ctx, kind, start, end)
	if err != nil {
		return fmt.Errorf("reporting run failed: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"kind":  kind,
		"start": start,
		"end":   end,
		"lanes": businessflow.ToLaneRunSummaries(summaries),
	})
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := migrate(db); err != nil {
			return nil, err
		}
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.MeasurementTables()...); err != nil {
		return fmt.Errorf("failed to migrate measurement tables: %w", err)
	}
	return nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis; the returned func stops it
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = cacheHealthInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

func newTokenService(cfg config.JWTConfig) (services.TokenService, error) {
	tokenService, err := services.NewTokenService(
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		cfg.Issuer,
		cfg.Audience,
		cfg.UseRSAKeys,
		cfg.PrivateKey,
		cfg.PublicKey,
		cfg.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	return tokenService, nil
}

// initializeEngine builds storage, delivery jobs and the scheduler
func initializeEngine(cfg *config.ProductionConfig) (*engine, error) {
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	schedLogger, schedCloser := scheduler.NewFileLogger("scheduler: ", cfg.Reporting.LogFilePath, cfg.Logging)
	measurementLogger, measurementCloser := scheduler.NewFileLogger("measurement: ", cfg.Reporting.LogFilePath, cfg.Logging)

	eventRepo := repository.NewEventReportRepository(db)
	aggRepo := repository.NewAggregateReportRepository(db)
	debugRepo := repository.NewDebugReportRepository(db)
	keyRepo := repository.NewAggregateEncryptionKeyRepository(db)
	adIDRepo := repository.NewDebugAdIDRepository(db)
	txRunner := repository.NewTransactionRunner(db)

	sender := services.NewReportSender(cfg.Reporting.HTTPTimeout)
	encrypter := services.NewAggregateEncrypter()
	keyManager := services.NewAggregateEncryptionKeyManager(
		keyRepo,
		cfg.Reporting.AggregationCoordinatorURL,
		cfg.Reporting.KeyFetchTimeout,
		cfg.Reporting.DefaultKeyTTL,
		schedLogger,
	)

	registry := scheduler.NewRegistry(
		scheduler.NewEventReportingJobHandler(eventRepo, txRunner, sender, schedLogger),
		scheduler.NewAggregateReportingJobHandler(aggRepo, txRunner, sender, keyManager, encrypter, schedLogger),
		scheduler.NewDebugEventReportingJobHandler(eventRepo, txRunner, sender, schedLogger),
		scheduler.NewDebugAggregateReportingJobHandler(aggRepo, txRunner, sender, keyManager, encrypter, schedLogger),
		scheduler.NewDebugReportingJobHandler(debugRepo, txRunner, sender, schedLogger),
	)
	sched := scheduler.NewReportingScheduler(registry, cfg.Reporting, rc, cfg.Cache.RedisPrefix, schedLogger)

	stats := services.NewMeasurementStatsLogger(measurementLogger)
	matcher := services.NewDebugKeyMatcher(cfg.Measurement, adIDRepo, stats)
	debugReports := services.NewDebugReportAPI(
		cfg.Measurement,
		debugRepo,
		matcher,
		services.NewEventReportWindowCalculator(cfg.Measurement),
		services.NewSourceNoiseHandler(cfg.Measurement),
		sched,
		measurementLogger,
	)

	closers := []io.Closer{schedCloser, measurementCloser}
	if rc != nil {
		closers = append(closers, rc)
	}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, sqlDB)
	}

	return &engine{
		db:           db,
		cache:        rc,
		scheduler:    sched,
		eventRepo:    eventRepo,
		aggRepo:      aggRepo,
		debugRepo:    debugRepo,
		debugReports: debugReports,
		closers:      closers,
	}, nil
}

// initializeApplication initializes all application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	eng, err := initializeEngine(cfg)
	if err != nil {
		return nil, err
	}

	var stopFuncs []func()

	sqlDB, err := eng.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	checks := map[string]handlers.Pinger{
		"database": handlers.PingerFunc(sqlDB.PingContext),
	}
	if eng.cache != nil {
		rc := eng.cache
		checks["redis"] = handlers.PingerFunc(func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		})
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cacheHealthInterval))
	}

	tokenService, err := newTokenService(cfg.JWT)
	if err != nil {
		return nil, err
	}

	adminFlow := businessflow.NewReportingAdminFlow(
		eng.scheduler,
		eng.eventRepo,
		eng.aggRepo,
		eng.debugRepo,
		cfg.Reporting.MaxUploadRetryWindow,
		log.Default(),
	)

	healthHandler := handlers.NewHealthHandler(appVersion, checks)
	reportingHandler := handlers.NewReportingAdminHandler(adminFlow)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(cfg, healthHandler, reportingHandler, authMiddleware)

	if cfg.Reporting.SchedulerEnabled {
		stopFuncs = append(stopFuncs, eng.scheduler.Start(context.Background()))
	}

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		scheduler: eng.scheduler,
		stopFuncs: stopFuncs,
		closers:   eng.closers,
	}, nil
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if closers[i] == nil {
			continue
		}
		if err := closers[i].Close(); err != nil {
			log.Printf("close failed: %v", err)
		}
	}
}
