package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/storage"
)

// Pinger is an optional dependency checked by /readyz.
type Pinger interface {
	Ping() error
}

type SystemHandler struct {
	store  storage.Store
	images storage.ImageStore
	nats   Pinger
}

// NewSystemHandler builds the health handler. nats may be nil.
func NewSystemHandler(store storage.Store, images storage.ImageStore, nats Pinger) *SystemHandler {
	return &SystemHandler{store: store, images: images, nats: nats}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	check := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	check("database", h.store.Ping(ctx))
	check("images", h.images.Ping(ctx))
	if h.nats != nil {
		check("nats", h.nats.Ping())
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
