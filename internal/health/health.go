// Package health exposes the service's readiness checks.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/alexliesenfeld/health"
	"go.uber.org/zap"
)

// Pinger is anything that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewChecker returns a checker that runs one "storage" check against store.
func NewChecker(store Pinger, log *zap.Logger) health.Checker {
	return health.NewChecker(
		health.WithCacheDuration(time.Second),
		health.WithTimeout(10*time.Second),
		health.WithCheck(health.Check{
			Name:    "storage",
			Timeout: 5 * time.Second,
			Check:   store.Ping,
		}),
		health.WithStatusListener(func(_ context.Context, state health.CheckerState) {
			log.Info("health status changed", zap.String("status", string(state.Status)))
		}),
	)
}

// Handler serves the checker result as JSON; 200 when up, 503 otherwise.
func Handler(checker health.Checker) http.Handler {
	return health.NewHandler(checker)
}
