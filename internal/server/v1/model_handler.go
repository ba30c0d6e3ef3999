package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/reliability-forge/pkg/api"
)

type ModelHandler struct {
	gateway  Gateway
	patterns PatternCatalog
}

func NewModelHandler(gw Gateway, patterns PatternCatalog) *ModelHandler {
	return &ModelHandler{gateway: gw, patterns: patterns}
}

// ListModels returns the configured models. ?provider= filters by provider.
//
// GET /v1/models
func (h *ModelHandler) ListModels(c *gin.Context) {
	provider := c.Query("provider")
	def := h.gateway.DefaultModel()

	var out []api.Model
	for _, m := range h.gateway.Models() {
		if provider != "" && string(m.Provider) != provider {
			continue
		}
		out = append(out, api.Model{
			ID:       m.Name,
			Object:   "model",
			Provider: string(m.Provider),
			Endpoint: m.Endpoint,
			Default:  m.Name == def,
		})
	}

	c.JSON(http.StatusOK, api.NewList(out))
}

// ListPatterns returns every pattern shipped with a manifest, including the
// manifest values.
//
// GET /v1/patterns
func (h *ModelHandler) ListPatterns(c *gin.Context) {
	names, err := h.patterns.Patterns()
	if err != nil {
		_ = c.Error(api.InternalError("Failed to list patterns", err))
		return
	}

	out := make([]api.Pattern, 0, len(names))
	for _, name := range names {
		vars, _, err := h.patterns.Manifest(name)
		if err != nil {
			_ = c.Error(api.InternalError("Failed to read pattern manifest "+name, err))
			return
		}
		out = append(out, api.Pattern{ID: name, Object: "pattern", Vars: vars})
	}

	c.JSON(http.StatusOK, api.NewList(out))
}
