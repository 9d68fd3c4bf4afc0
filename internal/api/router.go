package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/careops/smart-scheduling/internal/logger"
	"github.com/careops/smart-scheduling/internal/queue"
	"github.com/careops/smart-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Scheduler *scheduling.Service
	Queue     *queue.Manager
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Log       *logger.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Scheduling pipeline
	r.Post("/scheduling/optimal-slot", findOptimalSlotHandler(cfg.Scheduler))
	r.Post("/appointments", createAppointmentHandler(cfg.Scheduler))

	// Queue management
	r.Post("/queue/check-in", checkInHandler(cfg.Queue))
	r.Get("/queue/{providerID}", queueStatusHandler(cfg.Queue))
	r.Post("/queue/{providerID}/call-next", callNextHandler(cfg.Queue))
	r.Post("/queue/{providerID}/entries/{entryID}/complete", completeHandler(cfg.Queue))
	r.Post("/queue/{providerID}/entries/{entryID}/no-show", noShowHandler(cfg.Queue))
	r.Get("/patients/{patientID}/wait", patientWaitHandler(cfg.Queue))

	return r
}
