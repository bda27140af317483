package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"food-share-server/config"
	"food-share-server/database"
	"food-share-server/jobs"
	applog "food-share-server/logger"
	"food-share-server/middleware"
	"food-share-server/realtime"
	"food-share-server/routes"
	"food-share-server/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		applog.Log.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		applog.Log.WithError(err).Fatal("❌ Invalid configuration")
	}
	applog.Init(cfg.Log)

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		applog.Log.WithError(err).Fatal("❌ Failed to initialize database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	publisher, err := startRealtime(ctx, cfg, hub)
	if err != nil {
		applog.Log.WithError(err).Fatal("❌ Failed to start realtime backend")
	}

	tokens := services.NewTokenService(cfg.JWT)
	notifications := services.NewNotificationService(db, publisher)
	listings := services.NewListingService(db, notifications, cfg.Jobs.NearbyRadiusKm)
	upload, err := services.NewUploadService(cfg.Upload)
	if err != nil {
		applog.Log.WithError(err).Fatal("❌ Failed to configure uploads")
	}

	handler := routes.NewHandler(cfg, routes.Services{
		Users:         services.NewUserService(db, tokens),
		Tokens:        tokens,
		Listings:      listings,
		Claims:        services.NewClaimService(db, notifications),
		Notifications: notifications,
		Stats:         services.NewStatsService(db),
		Seed:          services.NewSeedService(db, notifications),
		Upload:        upload,
		Places:        services.NewPlacesService(cfg.Places),
		AI:            services.NewAIService(cfg.AI),
		Hub:           hub,
	})

	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middleware.NewRateLimiter()
	router := routes.SetupRouter(cfg, handler, limiter)

	scheduler := jobs.NewScheduler(cfg.Jobs, listings, limiter)
	if err := scheduler.Start(); err != nil {
		applog.Log.WithError(err).Fatal("❌ Failed to start jobs")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		applog.Log.Infof("🚀 Food Share Server listening on :%s (realtime: %s)", cfg.Server.Port, cfg.Realtime.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Log.WithError(err).Fatal("❌ Server failed")
		}
	}()

	<-ctx.Done()
	applog.Log.Info("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.Log.WithError(err).Error("❌ Forced shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// startRealtime picks the publisher for notification events. With postgres or
// redis, events from every instance are relayed into the local hub.
func startRealtime(ctx context.Context, cfg *config.Config, hub *realtime.Hub) (realtime.Publisher, error) {
	switch cfg.Realtime.Backend {
	case "postgres":
		sqlDB, err := database.DB.DB()
		if err != nil {
			return nil, err
		}
		listener := realtime.NewPGListener(cfg.Database.URL, cfg.Realtime.Channel, hub)
		go runBridge(ctx, "postgres", listener.Run)
		return realtime.NewPGPublisher(sqlDB, cfg.Realtime.Channel), nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Realtime.RedisAddr,
			Password: cfg.Realtime.RedisPassword,
			DB:       cfg.Realtime.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		bridge := realtime.NewRedisBridge(rdb, cfg.Realtime.Channel, hub)
		go runBridge(ctx, "redis", bridge.Run)
		return bridge, nil

	default:
		return hub, nil
	}
}

// runBridge restarts a failed subscription after a short pause until ctx ends
func runBridge(ctx context.Context, name string, run func(context.Context) error) {
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		applog.Log.WithError(err).Warnf("⚠️ %s realtime bridge stopped, restarting", name)
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}
