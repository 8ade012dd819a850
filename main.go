// Package main provides the entry point of the Page Pilot scheduler and analytics service
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amirphl/page-pilot/app/handlers"
	"github.com/amirphl/page-pilot/app/middleware"
	"github.com/amirphl/page-pilot/app/router"
	"github.com/amirphl/page-pilot/app/scheduler"
	"github.com/amirphl/page-pilot/app/services"
	businessflow "github.com/amirphl/page-pilot/business_flow"
	"github.com/amirphl/page-pilot/config"
	"github.com/amirphl/page-pilot/models"
	"github.com/amirphl/page-pilot/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router   *router.FiberRouter
	config   *config.ProductionConfig
	server   *fiber.App
	startFns []func(context.Context) func()
	closeFns []func()
}

func main() {
	log.Println("Starting Page Pilot...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.close()

	app.router.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx); err != nil {
		log.Fatalf("Application stopped with error: %v", err)
	}
	log.Println("Server stopped")
}

// run serves HTTP and the background loops until ctx is cancelled or the server fails
func (a *Application) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	var stopFuncs []func()
	for _, start := range a.startFns {
		stopFuncs = append(stopFuncs, start(gctx))
	}

	g.Go(func() error {
		address := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
		log.Printf("Server starting on %s", address)
		if err := a.server.Listen(address, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down gracefully...")

		for _, fn := range stopFuncs {
			fn()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Application) close() {
	for _, fn := range a.closeFns {
		fn()
	}
}

// initializeDatabase opens postgres or sqlite, configures pooling and migrates the schema
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.New(log.New(os.Stdout, "gorm ", log.LstdFlags|log.LUTC), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLitePath + "?_busy_timeout=5000&_foreign_keys=on")
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established (driver=%s)", cfg.Driver)
	return db, nil
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

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// seedAdmin makes sure the configured operator can log in
func seedAdmin(repo repository.AdminRepository, cfg config.AdminConfig) error {
	if cfg.PasswordHash == "" {
		log.Println("ADMIN_PASSWORD_HASH is empty; admin login stays disabled until an admin exists")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	admin, err := repo.UpsertCredentials(ctx, cfg.Username, cfg.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	log.Printf("Admin %q ready (id=%d)", admin.Username, admin.ID)
	return nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	app := &Application{config: cfg}

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		app.closeFns = append(app.closeFns, func() { _ = sqlDB.Close() })
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		app.startFns = append(app.startFns, func(ctx context.Context) func() {
			return startCacheHealthMonitor(ctx, rc, cfg.Cache.HealthCheck)
		})
		app.closeFns = append(app.closeFns, func() { _ = rc.Close() })
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone: %w", err)
	}

	// Initialize repositories
	adminRepo := repository.NewAdminRepository(db)
	postRepo := repository.NewPostRepository(db)
	publicationRepo := repository.NewPublicationRepository(db)
	sampleRepo := repository.NewMetricSampleRepository(db, loc)
	recommendationRepo := repository.NewRecommendationRepository(db)

	if err := seedAdmin(adminRepo, cfg.Admin); err != nil {
		return nil, err
	}

	loopLogger := scheduler.NewLogger("[page-pilot] ", cfg.Logging)

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		rc,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	credentialStore, err := services.NewFileCredentialStore(cfg.Credentials.PagesFile, rc, cfg.Credentials.CacheTTL, loopLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to load destination credentials: %w", err)
	}
	log.Printf("Loaded %d destinations from %s", len(credentialStore.Destinations()), cfg.Credentials.PagesFile)

	graphClient := services.NewGraphPublishingClient(services.GraphOptions{
		BaseURL:         cfg.Graph.BaseURL,
		PublishTimeout:  cfg.Graph.PublishTimeout,
		UploadTimeout:   cfg.Graph.UploadTimeout,
		MetricsTimeout:  cfg.Graph.MetricsTimeout,
		InsightsTimeout: cfg.Graph.InsightsTimeout,
	}, loopLogger)

	analyzer := services.NewNarrativeAnalyzer(cfg.Narrative.APIKey, cfg.Narrative.Model, cfg.Narrative.MaxTokens, loopLogger)

	var lock scheduler.CycleLock = scheduler.NoopCycleLock{}
	if rc != nil && cfg.Scheduler.CycleLock {
		lock = scheduler.NewRedisCycleLock(rc, cfg.Cache.RedisPrefix)
	}

	// Background loops
	postScheduler := scheduler.NewPostScheduler(
		postRepo,
		publicationRepo,
		sampleRepo,
		graphClient,
		credentialStore,
		lock,
		loopLogger,
		cfg.Scheduler.PostInterval,
		cfg.Scheduler.SettleDelay,
	)
	postScheduler.UseTransactions(repository.NewTxRunner(db))
	collector := scheduler.NewAnalyticsCollector(
		publicationRepo,
		sampleRepo,
		graphClient,
		credentialStore,
		lock,
		loopLogger,
		cfg.Scheduler.AnalyticsInterval,
		cfg.Scheduler.CollectDelay,
		cfg.Scheduler.AnalyticsWindowDays,
		cfg.Scheduler.AnalyticsLimit,
	)

	generateDefaults := businessflow.GenerateRequest{
		PeriodDays: cfg.Recommendation.PeriodDays,
		Limit:      cfg.Recommendation.Limit,
		UseAI:      cfg.Recommendation.UseAI,
		Locale:     models.ParseLocale(cfg.Recommendation.Locale),
	}

	// Initialize flows
	adminAuthFlow := businessflow.NewAdminAuthFlow(adminRepo, tokenService, loopLogger)
	postFlow := businessflow.NewPostFlow(
		postRepo,
		publicationRepo,
		graphClient,
		credentialStore,
		credentialStore,
		postScheduler,
		loopLogger,
	)
	analyticsFlow := businessflow.NewAnalyticsFlow(postRepo, publicationRepo, sampleRepo, collector, loopLogger)
	recommendationFlow := businessflow.NewRecommendationFlow(sampleRepo, recommendationRepo, analyzer, generateDefaults, loopLogger)

	if cfg.Scheduler.Enabled {
		app.startFns = append(app.startFns, postScheduler.Start, collector.Start)
	}

	if cfg.Recommendation.Enabled {
		recScheduler, err := scheduler.NewRecommendationScheduler(
			recommendationFlow,
			recommendationRepo,
			lock,
			loopLogger,
			cfg.Recommendation.Cron,
			loc,
			cfg.Recommendation.FreshnessDays,
			generateDefaults,
		)
		if err != nil {
			return nil, err
		}
		log.Printf("Recommendations scheduled (%s, next run %s)", cfg.Recommendation.Cron, recScheduler.NextRun(time.Now()).Format(time.RFC3339))
		app.startFns = append(app.startFns, recScheduler.Start)
	}

	// Initialize handlers
	h := router.Handlers{
		AuthAdmin:      handlers.NewAuthAdminHandler(adminAuthFlow),
		Post:           handlers.NewPostHandler(postFlow),
		Analytics:      handlers.NewAnalyticsHandler(analyticsFlow),
		Recommendation: handlers.NewRecommendationHandler(recommendationFlow),
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	app.router = router.NewFiberRouter(cfg.Server, cfg.Metrics, h, authMiddleware)
	app.server = app.router.GetApp()

	return app, nil
}
