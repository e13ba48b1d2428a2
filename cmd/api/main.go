package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/futureecho/futureecho/internal/activity"
	"github.com/futureecho/futureecho/internal/api"
	"github.com/futureecho/futureecho/internal/auth"
	"github.com/futureecho/futureecho/internal/chat"
	"github.com/futureecho/futureecho/internal/config"
	"github.com/futureecho/futureecho/internal/database"
	"github.com/futureecho/futureecho/internal/embedding"
	"github.com/futureecho/futureecho/internal/gemini"
	"github.com/futureecho/futureecho/internal/generation"
	"github.com/futureecho/futureecho/internal/goals"
	"github.com/futureecho/futureecho/internal/journal"
	"github.com/futureecho/futureecho/internal/memory"
	"github.com/futureecho/futureecho/internal/middleware"
	inats "github.com/futureecho/futureecho/internal/nats"
	"github.com/futureecho/futureecho/internal/prompt"
	"github.com/futureecho/futureecho/internal/ratelimit"
	iredis "github.com/futureecho/futureecho/internal/redis"
	"github.com/futureecho/futureecho/internal/server"
	"github.com/futureecho/futureecho/internal/summary"
)

const historyTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional)
	var (
		natsClient  *inats.Client
		publisher   *inats.Publisher
		consumerMgr *inats.ConsumerManager
	)
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		publisher = inats.NewPublisher(natsClient.JetStream())
		consumerMgr = inats.NewConsumerManager(natsClient.JetStream())
	} else {
		slog.Info("nats not configured, indexing and activity run in-process")
	}

	// Activity
	activityRepo := activity.NewRepository(pool)
	var recorder *activity.StreamRecorder
	if publisher != nil {
		recorder = activity.NewStreamRecorder(publisher, activityRepo)
		activityConsumer := activity.NewConsumer(activityRepo, consumerMgr)
		go func() {
			if err := activityConsumer.Start(ctx); err != nil {
				slog.Error("activity consumer stopped", "error", err)
			}
		}()
	} else {
		recorder = activity.NewStreamRecorder(nil, activityRepo)
	}
	activityHandler := activity.NewHandler(activityRepo)

	// Gemini
	genaiClient, err := gemini.NewClient(ctx, cfg.Gemini)
	if err != nil {
		slog.Error("creating gemini client", "error", err)
		os.Exit(1)
	}
	embedder, err := embedding.New(cfg.Gemini, genaiClient)
	if err != nil {
		slog.Error("creating embedder", "error", err)
		os.Exit(1)
	}

	// Memory
	memoryStore := memory.NewStore(memory.NewPostgresRepository(pool), embedder)
	retriever := memory.NewRetriever(memoryStore, embedder, cfg.Memory.TopK, cfg.Memory.MinSimilarity)
	localIndexer := memory.NewLocalIndexer(memoryStore, recorder, cfg.Memory.IndexWorkers, cfg.Memory.IndexTimeout)
	var indexer memory.Indexer = localIndexer
	if publisher != nil {
		indexer = memory.NewQueueIndexer(publisher, localIndexer)
		indexConsumer := memory.NewIndexConsumer(memoryStore, recorder, consumerMgr, cfg.Memory.IndexTimeout)
		go func() {
			if err := indexConsumer.Start(ctx); err != nil {
				slog.Error("memory index consumer stopped", "error", err)
			}
		}()
	}

	// Journal & goals
	journalRepo := journal.NewRepository(pool)
	journalHandler := journal.NewHandler(journalRepo, indexer)
	goalRepo := goals.NewRepository(pool)
	goalHandler := goals.NewHandler(goalRepo)
	memoryHandler := memory.NewHandler(retriever, indexer, journal.NewMemorySource(journalRepo))

	// Chat
	chatRepo := chat.NewRepository(pool)
	history := chat.NewRedisHistory(redisClient, chatRepo, cfg.Chat.HistoryLimit, historyTTL)
	composer := prompt.NewComposer(retriever, summary.NewService(journalRepo, goalRepo), cfg.Memory.ExcerptLength)
	generator := generation.NewGemini(genaiClient.Models, cfg.Gemini.ChatModel)
	orchestrator := chat.NewOrchestrator(chatRepo, history, composer, generator, recorder, cfg.Chat.HistoryLimit, cfg.Chat.TurnTimeout)
	chatHandler := chat.NewHandler(orchestrator, chatRepo, history)

	// Auth & rate limits
	jwtManager := auth.NewJWTManager(cfg.JWT.AccessSecret, cfg.JWT.Issuer)
	limiter := ratelimit.NewRedisLimiter(redisClient, map[string]ratelimit.Rule{
		ratelimit.ScopeAI:    {Limit: cfg.RateLimit.AIPerMinute, Window: time.Minute},
		ratelimit.ScopeWrite: {Limit: cfg.RateLimit.WritePerMinute, Window: time.Minute},
	})
	identify := auth.Identity(middleware.ClientIP)

	// Router
	router := api.NewRouter(pool, redisClient, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AIRateLimiter:      middleware.RateLimit(limiter, ratelimit.ScopeAI, identify),
		WriteRateLimiter:   middleware.RateLimit(limiter, ratelimit.ScopeWrite, identify),
	}, api.HandlerSet{
		Chat:          chatHandler.Chat,
		ListSessions:  chatHandler.ListSessions,
		GetSession:    chatHandler.GetSession,
		DeleteSession: chatHandler.DeleteSession,

		ListEntries: journalHandler.List,
		CreateEntry: journalHandler.Create,
		GetEntry:    journalHandler.Get,
		UpdateEntry: journalHandler.Update,
		DeleteEntry: journalHandler.Delete,

		ListGoals:  goalHandler.List,
		CreateGoal: goalHandler.Create,
		UpdateGoal: goalHandler.Update,
		DeleteGoal: goalHandler.Delete,

		SearchMemories:  memoryHandler.Search,
		ReindexMemories: memoryHandler.Reindex,

		ListActivity: activityHandler.List,

		AuthMiddleware: auth.Middleware(jwtManager),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	srv.OnShutdown(func(context.Context) {
		cancel()
		localIndexer.Wait()
		if cached, ok := embedder.(*embedding.Cached); ok {
			cached.Close()
		}
		if natsClient != nil {
			natsClient.Close()
		}
	})
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
