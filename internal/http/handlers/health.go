package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the service needs to be ready, e.g. Postgres or Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	log     *slog.Logger
	checks  map[string]Pinger
	timeout time.Duration
}

func NewHealthHandler(log *slog.Logger, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		log:     log,
		checks:  checks,
		timeout: time.Second,
	}
}

// Health is liveness only: it never touches a dependency.
func (h *HealthHandler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	failed := gin.H{}

	for name, p := range h.checks {
		if err := p.Ping(cctx); err != nil {
			h.log.WarnContext(ctx.Request.Context(), "readiness check failed", "dependency", name, "err", err)
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": failed})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
