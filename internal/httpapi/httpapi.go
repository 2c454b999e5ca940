// Package httpapi exposes the orchestrator's minimal HTTP surface: a
// gin router serving liveness and readiness probes, per spec.md's process
// model expansion.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/karnotxyz/madara-orchestrator/internal/logger"
	"github.com/karnotxyz/madara-orchestrator/internal/queue"
	"github.com/karnotxyz/madara-orchestrator/internal/store"
)

// Dependencies are the collaborators readiness pings to confirm.
type Dependencies struct {
	Store store.Store
	Queue queue.Queue
}

func NewRouter(deps Dependencies, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, err := deps.Store.JobsByStatuses(ctx, nil, 1); err != nil {
			log.Warn("readiness check: store unavailable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
			return
		}
		if pinger, ok := deps.Queue.(Pinger); ok {
			if err := pinger.Ping(ctx); err != nil {
				log.Warn("readiness check: queue unavailable", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "queue unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return router
}

// Pinger is implemented by Queue backends that can confirm connectivity
// without perturbing queue state (the Redis backend pings its client); the
// in-memory fake has no connection to check and is skipped.
type Pinger interface {
	Ping(ctx context.Context) error
}
