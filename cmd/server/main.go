package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"indieforge/backend/internal/auth"
	"indieforge/backend/internal/config"
	"indieforge/backend/internal/database"
	"indieforge/backend/internal/export"
	"indieforge/backend/internal/handler"
	"indieforge/backend/internal/logging"
	"indieforge/backend/internal/metrics"
	"indieforge/backend/internal/middleware"
	"indieforge/backend/internal/service"
	"indieforge/backend/internal/storage"
	"indieforge/backend/pkg/jwt"

	// Swagger imports
	_ "indieforge/backend/docs"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           IndieForge API
// @version         1.0
// @description     Marketplace backend for independent game developers and players.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	store, err := newStore(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise storage")
	}

	m := metrics.New()
	exports := export.NewService(db, store, cfg.ExportDir, log, m)
	h := handler.New(handler.Deps{
		DB:             db,
		Users:          service.NewUserService(db, auth.NewBcryptHasher(), log),
		Games:          service.NewGameService(db, log, m),
		Wishlist:       service.NewWishlistService(db, log, m),
		Exports:        exports,
		Tokens:         jwt.NewManager(cfg.JWTSecret, cfg.TokenTTL),
		Store:          store,
		Log:            log,
		AvatarDir:      cfg.AvatarDir,
		MaxAvatarBytes: cfg.MaxAvatarBytes,
	})

	var scheduler *export.Scheduler
	if cfg.ExportSchedule != "" {
		scheduler, err = export.NewScheduler(exports, cfg.ExportSchedule, log)
		if err != nil {
			log.WithError(err).Fatal("invalid EXPORT_SCHEDULE")
		}
		scheduler.Start()
	}

	stop := make(chan struct{})
	limiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, log)
	limiter.StartCleanup(time.Minute, stop)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(log), m.Middleware())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	h.RegisterRoutes(router, limiter.Handler())

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ServerAddr).Info("server is running")
		log.Infof("Swagger UI is available at http://localhost%s/swagger/index.html", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	close(stop)
	if scheduler != nil {
		scheduler.Stop(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newStore builds the object store selected by STORAGE_DRIVER.
func newStore(ctx context.Context, cfg *config.Config) (storage.Service, error) {
	if cfg.StorageDriver != "s3" {
		return storage.NewLocalService(cfg.StorageRoot)
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return storage.NewS3Service(client, cfg.S3Bucket, cfg.S3KeyPrefix), nil
}
