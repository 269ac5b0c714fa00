package app

import (
	"context"
	"dorm_match_backend/internal/config"
	"dorm_match_backend/internal/controller"
	"dorm_match_backend/internal/repository"
	"dorm_match_backend/internal/service"
	"dorm_match_backend/pkg/configwatcher"
	"dorm_match_backend/pkg/database"
	"dorm_match_backend/pkg/logger"
	"dorm_match_backend/pkg/monitoring"
	"dorm_match_backend/pkg/security"
	"dorm_match_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configDir = "configs"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	tracer          *sdktrace.TracerProvider
	stopWatch       context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user          *repository.UserRepository
	listing       *repository.ListingRepository
	tenantRequest *repository.TenantRequestRepository
	listingTenant *repository.ListingTenantRepository
}

type services struct {
	cache         *service.CacheService
	storage       *service.StorageService
	auth          *service.AuthService
	user          *service.UserService
	listing       *service.ListingService
	tenantRequest *service.TenantRequestService
	notification  *service.NotificationService
}

type controllers struct {
	auth          *controller.AuthController
	user          *controller.UserController
	listing       *controller.ListingController
	tenantRequest *controller.TenantRequestController
	notification  *controller.NotificationController
	health        *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:          repository.NewUserRepository(db),
		listing:       repository.NewListingRepository(db),
		tenantRequest: repository.NewTenantRequestRepository(db),
		listingTenant: repository.NewListingTenantRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.cache = service.NewCacheService(rdb, cfg.Cache.TTL())
	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user, s.storage, s.cache)
	s.listing = service.NewListingService(
		repos.listing,
		repos.tenantRequest,
		repos.listingTenant,
		s.storage,
		s.cache,
		cfg.Upload.MaxListingPics,
	)
	s.tenantRequest = service.NewTenantRequestService(
		db,
		repos.tenantRequest,
		repos.listingTenant,
		repos.listing,
		s.cache,
	)
	s.notification = service.NewNotificationService(repos.tenantRequest, s.cache)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:          controller.NewAuthController(s.auth, s.user),
		user:          controller.NewUserController(s.user),
		listing:       controller.NewListingController(s.listing),
		tenantRequest: controller.NewTenantRequestController(s.tenantRequest),
		notification:  controller.NewNotificationController(s.notification, s.tenantRequest),
		health:        controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 {
		window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
		if window <= 0 {
			window = time.Minute
		}
		router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))
	}

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New wires the HTTP application around an open database. rdb may be nil.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	svcs := app.initServices(repos, cfg, db, rdb)
	ctrls := app.initControllers(svcs, db, rdb)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode == "debug" {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetLevel(newCfg)
		logger.Log.Info("log level reloaded", zap.String("level", logger.Level().String()))
	})

	return app
}

// NewApp opens the database and Redis from cfg and builds the application.
// It returns nil when cfg.MigrateOnly is set, after migrating.
func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if cfg.MigrateOnly {
		return nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("dorm-match-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	if cfg.Server.WatchConfig {
		ctx, cancel := context.WithCancel(context.Background())
		app.stopWatch = cancel
		go func() {
			path := filepath.Join(configDir, "config.yaml")
			if err := configwatcher.Watch(ctx, path, app.applyConfig); err != nil {
				logger.Log.Error("config watcher stopped", zap.Error(err))
			}
		}()
	}

	return app
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.stopWatch != nil {
		a.stopWatch()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
