package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/einsatzpix/gallery-api/api/swagger"
	"github.com/einsatzpix/gallery-api/internal/handler"
	"github.com/einsatzpix/gallery-api/internal/middleware"
	"github.com/einsatzpix/gallery-api/internal/repository"
	"github.com/einsatzpix/gallery-api/internal/service"
	"github.com/einsatzpix/gallery-api/pkg/config"
	"github.com/einsatzpix/gallery-api/pkg/logger"
	corsmiddleware "github.com/einsatzpix/gallery-api/pkg/middleware/cors"
	reqidmiddleware "github.com/einsatzpix/gallery-api/pkg/middleware/requestid"
	"github.com/einsatzpix/gallery-api/pkg/storage"
)

// @title Gallery API
// @version 0.1.0
// @description Photo upload gallery with per-client daily quota
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	originals, err := storage.NewLocalStorage(cfg.Storage.OriginalsDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare originals storage", "error", err)
	}
	public, err := storage.NewLocalStorage(cfg.Storage.PublicUploadDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare public storage", "error", err)
	}

	store := repository.NewPhotoStore(cfg.Storage.PhotosFile, logr)
	normalizer := service.NewNormalizer(cfg.Image)
	metricsSvc := service.NewMetricsService()

	photoSvc := service.NewPhotoService(store, originals, public, normalizer, metricsSvc, logr, service.PhotoServiceConfig{
		DailyLimit:     cfg.Uploads.DailyLimit,
		MaxUploadBytes: cfg.Uploads.MaxUploadBytes,
		MinDimension:   cfg.Uploads.MinDimension,
	})
	photoHandler := handler.NewPhotoHandler(photoSvc)

	if cfg.Janitor.Enabled {
		janitor := service.NewJanitorService(store, originals, public, cfg.Storage.PhotosFile, logr, cfg.Janitor.Interval, cfg.Janitor.MinAge, cfg.Janitor.Workers)
		janitor.Start(context.Background())
		defer janitor.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.POST("/upload", photoHandler.Upload)
	r.GET("/photos", photoHandler.List)
	r.GET("/download/:id", photoHandler.Download)

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	// In deployment the reverse proxy serves both; kept here for development.
	r.Static("/static/uploads", cfg.Storage.PublicUploadDir)
	r.StaticFile("/", "./web/index.html")

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
