package v1

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/reliability-forge/internal/analytics"
	"github.com/nulzo/reliability-forge/internal/store/model"
	"github.com/nulzo/reliability-forge/pkg/api"
)

// AnalyticsHandler serves recorded pipeline runs. service is nil when run
// history is disabled.
type AnalyticsHandler struct {
	service analytics.Service
}

func NewAnalyticsHandler(service analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

func (h *AnalyticsHandler) available(c *gin.Context) bool {
	if h.service == nil {
		_ = c.Error(api.ServiceUnavailableError("Run history is disabled (store.enabled=false)."))
		return false
	}
	return true
}

// GET /v1/runs?limit=
func (h *AnalyticsHandler) ListRuns(c *gin.Context) {
	if !h.available(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		_ = c.Error(api.BadRequestError("Invalid 'limit' parameter"))
		return
	}

	runs, err := h.service.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to fetch runs", err))
		return
	}

	out := make([]api.Run, 0, len(runs))
	for i := range runs {
		out = append(out, toRun(&runs[i]))
	}
	c.JSON(http.StatusOK, api.NewList(out))
}

// GET /v1/runs/:id
func (h *AnalyticsHandler) GetRun(c *gin.Context) {
	if !h.available(c) {
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toRun(run))
}

// GET /v1/usage?days=
func (h *AnalyticsHandler) GetUsage(c *gin.Context) {
	if !h.available(c) {
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil {
		_ = c.Error(api.BadRequestError("Invalid 'days' parameter"))
		return
	}

	stats, err := h.service.GetUsageOverview(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to fetch analytics", err))
		return
	}

	c.JSON(http.StatusOK, api.NewList(stats))
}

func toRun(r *model.Run) api.Run {
	out := api.Run{
		ID:               r.ID,
		Source:           string(r.Source),
		Input:            r.Input,
		RequestedPattern: r.RequestedPattern,
		Pattern:          r.Pattern,
		Code:             r.Code,
		Status:           string(r.Status),
		Error:            r.Error,
		LatencyMS:        r.LatencyMS,
		CreatedAt:        r.CreatedAt,
	}
	if r.Models != "" {
		out.Models = strings.Split(r.Models, ",")
	}
	if r.CodeByModelJSON != "" {
		// a corrupt row still returns the rest of the record
		_ = json.Unmarshal([]byte(r.CodeByModelJSON), &out.CodeByModel)
	}
	return out
}
