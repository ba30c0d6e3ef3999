package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/reliability-forge/internal/config"
)

type ConfigHandler struct {
	config *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{config: cfg}
}

// Get returns the effective configuration. Credentials and the redis
// password are never included.
//
// GET /v1/config
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg := h.config
	c.JSON(http.StatusOK, gin.H{
		"server": gin.H{
			"env":        cfg.Server.Env,
			"rate_limit": gin.H{"requests_per_second": cfg.Server.RateLimit.RequestsPerSecond, "burst": cfg.Server.RateLimit.Burst},
		},
		"llm": gin.H{
			"read_timeout": cfg.LLM.ReadTimeout.String(),
			"max_retries":  cfg.LLM.MaxRetries,
			"max_tokens":   cfg.LLM.MaxTokens,
		},
		"pipeline": gin.H{
			"model":             cfg.Pipeline.Model,
			"generation_models": cfg.Pipeline.GenerationModels,
		},
		"cache":         gin.H{"enabled": cfg.Cache.Enabled, "backend": cfg.Cache.Backend, "ttl": cfg.Cache.TTL.String()},
		"store":         gin.H{"enabled": cfg.Store.Enabled},
		"default_model": cfg.Credentials.DefaultModel,
		"api_key_set":   cfg.Credentials.APIKey != "",
	})
}
