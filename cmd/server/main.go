package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tiendaropa/catalog-backend/config"
	"github.com/tiendaropa/catalog-backend/internal/app/controller"
	"github.com/tiendaropa/catalog-backend/internal/app/repository"
	"github.com/tiendaropa/catalog-backend/internal/app/service"
	"github.com/tiendaropa/catalog-backend/internal/db"
	"github.com/tiendaropa/catalog-backend/internal/middleware"
	"github.com/tiendaropa/catalog-backend/internal/router"
	"github.com/tiendaropa/catalog-backend/internal/scheduler"
	"github.com/tiendaropa/catalog-backend/internal/storage"
	"github.com/tiendaropa/catalog-backend/internal/websocket"
	"github.com/tiendaropa/catalog-backend/pkg/attempts"
	"github.com/tiendaropa/catalog-backend/pkg/logger"
	"github.com/tiendaropa/catalog-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting Catalog Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Seed database (optional)
	if err := db.Seed(); err != nil {
		logger.Warn("Failed to seed database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Initialize redis (optional)
	var attemptStore attempts.Store = attempts.NewMemoryStore()
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, falling back to in-memory stores", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			attemptStore = attempts.NewRedisStore(redis.GetClient())
			defer redis.Close()
		}
	}

	// Initialize storage
	var store storage.Storage
	var s3Store *storage.S3Storage
	if cfg.Storage.Driver == "s3" {
		s3Store = storage.NewS3Storage(cfg.Storage.S3)
		store = s3Store
	} else {
		localStore, err := storage.NewLocalStorage(cfg.Upload.Dir, cfg.Upload.PublicPath)
		if err != nil {
			logger.Fatal("Failed to initialize local storage", err)
		}
		store = localStore
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	categoryRepo := repository.NewCategoryRepository(db.GetDB())
	productRepo := repository.NewProductRepository(db.GetDB())
	linkRepo := repository.NewProductCategoryRepository(db.GetDB())

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		attemptStore,
		cfg.Admin.Codes,
		cfg.Admin.MaxAttempts,
		cfg.Admin.LockoutWindow,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	userService := service.NewUserService(userRepo)
	linkService := service.NewProductCategoryService(linkRepo, productRepo, categoryRepo, db.GetDB())
	categoryService := service.NewCategoryService(categoryRepo, linkService, db.GetDB())
	productService := service.NewProductService(productRepo, categoryRepo, linkService, db.GetDB())
	reportService := service.NewReportService(userRepo, productRepo, categoryRepo, linkRepo)

	// Start the catalog event hub
	hub := websocket.NewHub()
	go hub.Run()

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	userController := controller.NewUserController(userService)
	categoryController := controller.NewCategoryController(categoryService, linkService, hub)
	productController := controller.NewProductController(productService, linkService, hub)
	linkController := controller.NewProductCategoryController(linkService, hub)
	reportController := controller.NewReportController(reportService)
	uploadController := controller.NewUploadController(store, s3Store, cfg.Upload.MaxSizeMB)
	wsController := controller.NewWSController(hub, cfg.CORS.AllowedOrigins)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	if redis.GetClient() != nil {
		// Logout blacklists tokens in redis; reject them here.
		authMiddleware.WithRevocationCheck(redis.IsTokenBlacklisted)
	}

	// Setup router
	r := router.NewRouter(
		authController,
		userController,
		categoryController,
		productController,
		linkController,
		reportController,
		uploadController,
		wsController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	// Start nightly catalog maintenance
	catalogScheduler := scheduler.NewCatalogScheduler(categoryService, productService, linkService, 5)
	if err := catalogScheduler.Start(); err != nil {
		logger.Error("Failed to start catalog scheduler", err)
	}
	defer catalogScheduler.Stop()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
