package httpapi

import (
	"context"
	"log/slog"

	"timed-quiz/internal/quiz"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type API struct {
	service *quiz.Service
	checks  map[string]HealthCheck
	log     *slog.Logger
}

func NewAPI(service *quiz.Service, checks map[string]HealthCheck, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{
		service: service,
		checks:  checks,
		log:     log,
	}
}
