package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/reliability-forge/pkg/api"
)

type HealthHandler struct {
	version  string
	gateway  Gateway
	hasStore bool
}

func NewHealthHandler(version string, gw Gateway, hasStore bool) *HealthHandler {
	return &HealthHandler{version: version, gateway: gw, hasStore: hasStore}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.Health{
		Status:  "ok",
		Version: h.version,
		Models:  len(h.gateway.Models()),
		Store:   h.hasStore,
	})
}
