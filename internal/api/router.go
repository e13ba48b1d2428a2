package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/futureecho/futureecho/internal/database"
	mw "github.com/futureecho/futureecho/internal/middleware"
	inats "github.com/futureecho/futureecho/internal/nats"
	iredis "github.com/futureecho/futureecho/internal/redis"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Chat
	Chat          http.HandlerFunc
	ListSessions  http.HandlerFunc
	GetSession    http.HandlerFunc
	DeleteSession http.HandlerFunc

	// Journal
	ListEntries http.HandlerFunc
	CreateEntry http.HandlerFunc
	GetEntry    http.HandlerFunc
	UpdateEntry http.HandlerFunc
	DeleteEntry http.HandlerFunc

	// Goals
	ListGoals  http.HandlerFunc
	CreateGoal http.HandlerFunc
	UpdateGoal http.HandlerFunc
	DeleteGoal http.HandlerFunc

	// Memories
	SearchMemories  http.HandlerFunc
	ReindexMemories http.HandlerFunc

	ListActivity http.HandlerFunc

	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	// AIRateLimiter guards endpoints that call the model; WriteRateLimiter guards other writes.
	AIRateLimiter    func(http.Handler) http.Handler
	WriteRateLimiter func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, redisClient goredis.UniversalClient, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}
		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if err := iredis.HealthCheck(r.Context(), redisClient); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		// Without NATS, indexing falls back to in-process workers.
		if natsClient == nil {
			health["nats"] = "not configured"
		} else if !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		ai := passthrough(cfg.AIRateLimiter)
		write := passthrough(cfg.WriteRateLimiter)

		r.Route("/chat", func(r chi.Router) {
			r.With(ai).Post("/", h.Chat)
			r.Get("/sessions", h.ListSessions)
			r.Get("/sessions/{sessionID}", h.GetSession)
			r.With(write).Delete("/sessions/{sessionID}", h.DeleteSession)
		})

		r.Route("/journal", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.With(write).Post("/", h.CreateEntry)
			r.Get("/{entryID}", h.GetEntry)
			r.With(write).Put("/{entryID}", h.UpdateEntry)
			r.With(write).Delete("/{entryID}", h.DeleteEntry)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.ListGoals)
			r.With(write).Post("/", h.CreateGoal)
			r.With(write).Put("/{goalID}", h.UpdateGoal)
			r.With(write).Delete("/{goalID}", h.DeleteGoal)
		})

		r.Route("/memories", func(r chi.Router) {
			r.With(ai).Post("/search", h.SearchMemories)
			r.With(ai).Post("/reindex", h.ReindexMemories)
		})

		r.Get("/activity", h.ListActivity)
	})

	return r
}

func passthrough(limiter func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if limiter != nil {
		return limiter
	}
	return func(next http.Handler) http.Handler { return next }
}
