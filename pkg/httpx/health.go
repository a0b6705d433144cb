package httpx

import (
	"context"
	"net/http"
	"time"
)

const (
	healthOK          = "ok"
	healthUnreachable = "unreachable"
	healthDisabled    = "disabled"
)

// HealthChecker is satisfied by any infrastructure dependency that exposes
// a Ping method (database.Database, RedisClient, EventBus all qualify).
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthChecks holds the set of dependencies to probe in the health endpoint.
// A nil checker is reported as "disabled" and does not degrade the status;
// the api process, for example, runs without an event bus.
type HealthChecks struct {
	Database HealthChecker
	Redis    HealthChecker
	EventBus HealthChecker
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
	EventBus string `json:"event_bus"`
}

// HealthHandler returns an http.HandlerFunc that probes all registered
// HealthCheckers and reports degraded status if any of them fail.
func HealthHandler(checks HealthChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:   healthOK,
			Database: probe(ctx, checks.Database),
			Redis:    probe(ctx, checks.Redis),
			EventBus: probe(ctx, checks.EventBus),
		}
		for _, s := range []string{resp.Database, resp.Redis, resp.EventBus} {
			if s == healthUnreachable {
				resp.Status = "degraded"
			}
		}

		status := http.StatusOK
		if resp.Status != healthOK {
			status = http.StatusServiceUnavailable
		}
		JSON(w, status, resp)
	}
}

func probe(ctx context.Context, c HealthChecker) string {
	if c == nil {
		return healthDisabled
	}
	if err := c.Ping(ctx); err != nil {
		return healthUnreachable
	}
	return healthOK
}
