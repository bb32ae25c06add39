package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"price-cache-api/internal/dto"
)

// Pinger checks reachability of a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	store Pinger
	chain Pinger
}

func NewHealthController(store, chain Pinger) *HealthController {
	return &HealthController{
		store: store,
		chain: chain,
	}
}

func (hc *HealthController) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", hc.Health)
}

func (hc *HealthController) Health(c *gin.Context) {
	ctx := c.Request.Context()
	services := make(map[string]string)
	healthy := true

	if err := hc.store.Ping(ctx); err != nil {
		services["redis"] = "disconnected"
		healthy = false
	} else {
		services["redis"] = "connected"
	}

	if err := hc.chain.Ping(ctx); err != nil {
		services["horizon"] = "disconnected"
		healthy = false
	} else {
		services["horizon"] = "connected"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, dto.BuildHealthResponse(healthy, services))
}
