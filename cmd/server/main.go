package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"playroomserver/internal/auth"
	"playroomserver/internal/billing"
	"playroomserver/internal/config"
	"playroomserver/internal/database"
	"playroomserver/internal/events"
	"playroomserver/internal/friends"
	"playroomserver/internal/handlers"
	"playroomserver/internal/profiles"
	"playroomserver/internal/rooms"
	"playroomserver/internal/sessions"
	"playroomserver/internal/stories"
	"playroomserver/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.json"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	logger, err := utils.InitLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Postgres and Redis come up in parallel.
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan struct{})
	go func() {
		defer func() { done <- struct{}{} }()
		var err error
		if db, err = database.InitPostgreSQL(cfg, logger); err != nil {
			logger.Fatal("Failed to initialize PostgreSQL", zap.Error(err))
		}
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		var err error
		if rdb, err = database.InitRedis(cfg, logger); err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
	}()
	<-done
	<-done
	defer rdb.Close()

	jwks, err := auth.NewJWKS(cfg.Auth0JWKSURL, logger)
	if err != nil {
		logger.Fatal("Failed to load JWKS", zap.String("url", cfg.Auth0JWKSURL), zap.Error(err))
	}
	defer jwks.EndBackground()
	verifier := auth.NewVerifier(cfg.Auth0Issuer, cfg.Audiences(), cfg.EmailClaim, jwks.Keyfunc)

	bus := events.NewRedisBus(rdb)
	roomService := rooms.NewService(db, logger, cfg.Personas, rooms.WithPublisher(bus))

	cleaner, err := utils.CronCleaner(roomService, cfg.StaleRoomAfter, cfg.StaleOfferAfter, logger)
	if err != nil {
		logger.Fatal("Failed to schedule cleanup jobs", zap.Error(err))
	}

	h := &handlers.Handler{
		Profiles: profiles.NewService(db, logger),
		Rooms:    roomService,
		Sessions: sessions.NewService(db, logger),
		Friends:  friends.NewService(db, logger),
		Stories:  stories.NewService(db, logger),
		Billing:  billing.NewService(db, logger),
		Events:   bus,
		Logger:   logger,
		Upgrader: handlers.NewUpgrader(cfg.AllowedOrigins),
	}
	router := handlers.NewRouter(h, verifier, cfg.AllowedOrigins, map[string]handlers.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	select {
	case <-cleaner.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Cleanup job still running at shutdown")
	}
}
