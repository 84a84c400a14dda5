package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/copyloop/internal/pkg/httputil"
	"github.com/redis/go-redis/v9"
)

const healthVersion = "1.0.0"

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker reports on the server's backing stores. Either dependency
// may be nil; in stub mode both are.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redisClient: redisClient, startTime: time.Now()}
}

// HandleLiveness returns 200 while the process is running.
//
//	GET /healthz
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status":  "alive",
		"version": healthVersion,
		"uptime":  time.Since(hc.startTime).Truncate(time.Second).String(),
	})
}

// HandleReadiness returns 503 when a configured dependency is down.
//
//	GET /readyz
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]ComponentCheck{
		"database": hc.check(r.Context(), hc.db != nil, 3*time.Second, func(ctx context.Context) error {
			return hc.db.PingContext(ctx)
		}),
		"redis": hc.check(r.Context(), hc.redisClient != nil, 2*time.Second, func(ctx context.Context) error {
			return hc.redisClient.Ping(ctx).Err()
		}),
	}

	ready := true
	for _, c := range checks {
		if c.Status == "down" {
			ready = false
		}
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"checks": checks,
	})
}

func (hc *HealthChecker) check(ctx context.Context, configured bool, timeout time.Duration, ping func(context.Context) error) ComponentCheck {
	if !configured {
		return ComponentCheck{Status: "not_configured"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := ping(pingCtx)
	latency := time.Since(start)
	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}
