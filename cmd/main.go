package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/itstarun264/eventsnap-stream/internal/cache"
	"github.com/itstarun264/eventsnap-stream/internal/config"
	"github.com/itstarun264/eventsnap-stream/internal/domain"
	"github.com/itstarun264/eventsnap-stream/internal/handler"
	"github.com/itstarun264/eventsnap-stream/internal/hub"
	"github.com/itstarun264/eventsnap-stream/internal/kafka"
	"github.com/itstarun264/eventsnap-stream/internal/repository"
	"github.com/itstarun264/eventsnap-stream/internal/service"
	"github.com/itstarun264/eventsnap-stream/internal/stream"
	"github.com/itstarun264/eventsnap-stream/pkg/database"
	"github.com/itstarun264/eventsnap-stream/pkg/jwt"
	"github.com/itstarun264/eventsnap-stream/pkg/log"
	"github.com/itstarun264/eventsnap-stream/pkg/middleware"
	"github.com/itstarun264/eventsnap-stream/pkg/pubsub"
)

const serviceName = "stream-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{
		Level:       cfg.Log.Level,
		ServiceName: serviceName,
	})
	logger := log.L()

	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, &domain.EventModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	eventRepo := repository.NewGormEventRepository(db)

	liveCache, err := cache.NewRedisLiveCache(cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("live cache unavailable, continuing without it")
		liveCache = nil
	}

	ps, err := pubsub.NewRedisPublisher(pubsub.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: 10,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("pubsub unavailable, continuing without lifecycle announcements")
	}

	producer, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
	if err != nil {
		logger.Warn().Err(err).Msg("kafka unavailable, continuing without engagement pipeline")
	}

	roomHub := hub.NewHub()
	stateStore := stream.NewStateStore()

	var publisher pubsub.Publisher
	if ps != nil {
		publisher = ps
	}
	var engagementProducer kafka.EngagementProducer
	if producer != nil {
		engagementProducer = producer
	}
	var live cache.LiveCache
	if liveCache != nil {
		live = liveCache
	}

	svc := service.NewStreamService(roomHub, stateStore, eventRepo, live, publisher, engagementProducer)

	jwtManager := jwt.NewManager(cfg.Auth.Secret, cfg.Auth.AccessTTL, cfg.Auth.Issuer)
	authMW := middleware.NewAuthMiddleware(jwtManager)

	wsHandler := handler.NewWSHandler(roomHub, svc, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(svc)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger))

	router.GET("/health", httpHandler.Health)
	router.GET("/ws", wsHandler.Handle)
	router.GET("/api/v1/streams/live", httpHandler.ListLiveEvents)

	debug := router.Group("/debug")
	debug.Use(authMW.RequireAuth())
	debug.GET("/rooms/:event_id", httpHandler.GetRoomDiagnostics)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("stream service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	if engagementProducer != nil {
		engagementProducer.Close()
	}
	if ps != nil {
		ps.Close()
	}
	if live != nil {
		live.Close()
	}

	logger.Info().Msg("stream service stopped")
}
