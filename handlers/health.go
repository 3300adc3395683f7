package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Dependency is one backend /ready reports on. A failing optional
// dependency is listed but does not make the service unready.
type Dependency struct {
	Name     string
	Required bool
	Check    func(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

// RegisterHealth mounts /health (liveness) and /ready (readiness).
func RegisterHealth(r gin.IRouter, started time.Time, deps []Dependency) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		ready := true
		status := map[string]bool{}
		for _, d := range deps {
			ok := d.Check == nil || d.Check(ctx) == nil
			status[d.Name] = ok
			if !ok && d.Required {
				ready = false
			}
		}

		body := gin.H{"deps": status, "uptime": time.Since(started).String()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})
}
