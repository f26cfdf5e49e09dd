package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"artisanchat/internal/app/delivery"
	authsvc "artisanchat/internal/app/services/auth"
	domainauth "artisanchat/internal/domain/auth"
	"artisanchat/internal/domain/chat"
	"artisanchat/internal/domain/group"
	"artisanchat/internal/domain/portfolio"
	"artisanchat/internal/domain/task"
	domainuser "artisanchat/internal/domain/user"
	"artisanchat/internal/infra/broker/kafka"
	"artisanchat/internal/infra/config"
	mongostore "artisanchat/internal/infra/db/mongo"
	ginserver "artisanchat/internal/infra/http/gin"
	"artisanchat/internal/infra/obs"
	"artisanchat/internal/infra/security"
	"artisanchat/internal/infra/storage/memory"
	"artisanchat/internal/infra/storage/s3"
	"artisanchat/internal/realtime/gateway"
	"artisanchat/internal/realtime/hub"
	"artisanchat/internal/realtime/presence"
	"artisanchat/internal/realtime/typing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration load failed", "error", err)
		os.Exit(1)
	}

	stores, ready, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err, "mode", cfg.StorageMode)
		os.Exit(1)
	}

	attachments := buildAttachments(cfg, logger)
	events := buildEvents(cfg, logger)

	tokenGen := security.RandomTokenGenerator{}
	authService := &authsvc.Service{
		Users:      stores.users,
		Sessions:   stores.sessions,
		Tokens:     tokenGen,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	rooms := hub.New()
	registry := presence.NewRegistry(stores.users, logger)
	tracker := typing.NewTracker(stores.conversations, logger)
	coordinator := &delivery.Coordinator{
		Store:       stores.conversations,
		Users:       stores.users,
		Rooms:       rooms,
		Events:      events,
		Attachments: attachments,
		Logger:      logger,
	}
	rt := gateway.New(authService, rooms, registry, tracker, coordinator,
		stores.conversations, stores.users, stores.groups, logger)

	authMW := ginserver.AuthMiddleware{Service: authService, Logger: logger}
	handlers := ginserver.Handlers{
		Auth: ginserver.AuthHandler{Service: authService, Users: stores.users, Logger: logger},
		User: ginserver.UserHandler{Users: stores.users, Registry: registry, Logger: logger},
		Chat: ginserver.ChatHandler{
			Coordinator: coordinator,
			Store:       stores.conversations,
			Attachments: attachments,
			Logger:      logger,
		},
		Portfolio: ginserver.PortfolioHandler{
			Items:       stores.portfolio,
			Users:       stores.users,
			Attachments: attachments,
			Hub:         rooms,
			Logger:      logger,
		},
		Group: ginserver.GroupHandler{
			Groups:      stores.groups,
			Coordinator: coordinator,
			Store:       stores.conversations,
			Hub:         rooms,
			Users:       stores.users,
			Logger:      logger,
		},
		Task: ginserver.TaskHandler{
			Tasks:  stores.tasks,
			Groups: stores.groups,
			Hub:    rooms,
			Users:  stores.users,
			Logger: logger,
		},
		Realtime:       rt.Handle,
		AuthMiddleware: authMW.Handle,
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: ready}, handlers)

	go func() {
		if err := tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("typing sweeper stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type storeSet struct {
	users         domainuser.Repository
	sessions      domainauth.SessionStore
	conversations chat.Store
	portfolio     portfolio.Repository
	groups        group.Repository
	tasks         task.Repository
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (storeSet, func() error, error) {
	switch cfg.StorageMode {
	case "mongo":
		client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return storeSet{}, nil, err
		}
		users := mongostore.NewUserRepository(client.DB)
		sessions := mongostore.NewSessionStore(client.DB)
		conversations := mongostore.NewConversationStore(client.DB)
		items := mongostore.NewPortfolioRepository(client.DB)
		groups := mongostore.NewGroupRepository(client.DB)
		tasks := mongostore.NewTaskRepository(client.DB)

		indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		for _, ensure := range []func(context.Context) error{
			users.EnsureIndexes,
			sessions.EnsureIndexes,
			conversations.EnsureIndexes,
			items.EnsureIndexes,
			groups.EnsureIndexes,
			tasks.EnsureIndexes,
		} {
			if err := ensure(indexCtx); err != nil {
				return storeSet{}, nil, err
			}
		}
		logger.Info("mongo storage ready", "database", cfg.MongoDB)
		ready := func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		return storeSet{
			users:         users,
			sessions:      sessions,
			conversations: conversations,
			portfolio:     items,
			groups:        groups,
			tasks:         tasks,
		}, ready, nil
	default:
		logger.Info("in-memory storage ready")
		return storeSet{
			users:         memory.NewUserRepository(),
			sessions:      memory.NewSessionStore(),
			conversations: memory.NewConversationStore(),
			portfolio:     memory.NewPortfolioRepository(),
			groups:        memory.NewGroupRepository(),
			tasks:         memory.NewTaskRepository(),
		}, func() error { return nil }, nil
	}
}

func buildAttachments(cfg config.Config, logger *slog.Logger) delivery.AttachmentResolver {
	if cfg.S3Endpoint == "" {
		return s3.NoopResolver{}
	}
	client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3PublicEndpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.AttachmentTTL)
	if err != nil {
		logger.Warn("attachment resolver unavailable", "error", err)
		return s3.NoopResolver{}
	}
	logger.Info("attachment resolver ready", "bucket", cfg.S3Bucket)
	return client
}

func buildEvents(cfg config.Config, logger *slog.Logger) delivery.EventPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Warn("kafka producer unavailable", "error", err)
		return nil
	}
	logger.Info("kafka producer ready", "brokers", cfg.KafkaBrokers)
	return &kafka.EventPublisher{
		Producer:    producer,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Logger:      logger,
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
