package main

import (
	"context"
	"log"

	"chat-relay/config"
	"chat-relay/internal/audit"
	"chat-relay/internal/auth"
	"chat-relay/internal/handler"
	"chat-relay/internal/presence"
	"chat-relay/internal/redis"
	"chat-relay/internal/repository"
	"chat-relay/internal/repository/memory"
	"chat-relay/internal/server"
	"chat-relay/internal/services"
	"chat-relay/internal/storage"
	"chat-relay/internal/telemetry"
	"chat-relay/internal/websocket"
	"chat-relay/pkg/database"
	"chat-relay/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.AppMode,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Fatalf("Tracing setup failed: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			l.Logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	var (
		repos  *repository.Repositories
		health func(context.Context) error
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		repos, _ = memory.Repositories()
		l.Logger.Warn("using in-memory store; state is lost on restart")
	default:
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			log.Fatalf("Database connection failed: %v", err)
		}
		defer pool.Close()
		if err := database.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
		repos = repository.NewPostgres(pool)
		health = func(ctx context.Context) error { return database.HealthCheck(ctx, pool) }
	}

	var (
		mirror  presence.Mirror
		history services.PresenceHistory
		limiter *redis.RateLimiter
	)
	if cfg.RedisEnabled {
		client := redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		if err := redis.Ping(ctx, client); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		store := redis.NewPresenceStore(client, redis.NewPublisher(client), cfg.PresenceTTL)
		// Nobody is connected to a fresh process.
		if err := store.Reset(ctx); err != nil {
			l.Logger.Warn("presence mirror reset failed", zap.Error(err))
		}
		mirror, history = store, store

		limits := redis.DefaultRateLimitConfig()
		limits.HandshakeLimit = cfg.RateLimitHandshakes
		limits.APILimit = cfg.RateLimitAPI
		limiter = redis.NewRateLimiter(client, limits)
	}

	var signer services.AttachmentSigner
	if cfg.S3Enabled() {
		client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			log.Fatalf("S3 client init failed: %v", err)
		}
		signer = client
	}

	publisher := audit.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, l)
	defer publisher.Close()
	emitter := audit.NewEmitter(publisher, cfg.ServiceName, cfg.AppMode, l)

	registry := presence.NewRegistry(repos.Users, mirror, l)
	rooms := presence.NewRooms()

	router := websocket.NewRouter(registry, rooms, websocket.Services{
		Friends:       services.NewFriendService(repos.Users, repos.Friends, emitter, l),
		Conversations: services.NewConversationService(repos.Users, repos.Conversations, signer, emitter, l),
		Rooms:         services.NewRoomService(repos.Users, repos.Rooms, signer, emitter, l),
		Calls:         services.NewCallService(repos.Users, repos.Calls, emitter, l),
	}, l)

	wsLogger := websocket.NewWebSocketLogger(l)
	hub := websocket.NewHub(wsLogger)
	go hub.Run(ctx)

	tokens := auth.NewTokenParser(cfg.JWTSecret)
	wsHandler := websocket.NewHandler(tokens, hub, router, websocket.HandlerConfig{
		AllowQueryIdentity: cfg.WSAllowQueryIdentity,
		AllowedOrigins:     cfg.WSAllowedOrigins,
		SendBuffer:         cfg.WSSendBuffer,
	}, wsLogger)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Users: handler.NewUserHandler(services.NewUserService(repos.Users, registry, history, l)),
		WS:    wsHandler,
	}, server.Deps{
		Tokens:      tokens,
		Limiter:     limiter,
		Health:      health,
		Connections: hub.GetClientCount,
	})

	if err := srv.Start(); err != nil {
		l.Logger.Error("server stopped with error", zap.Error(err))
	}
}
