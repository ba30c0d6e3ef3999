package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/reliability-forge/internal/agent"
	"github.com/nulzo/reliability-forge/internal/server/validator"
	"github.com/nulzo/reliability-forge/pkg/api"
)

type RunHandler struct {
	agent     Agent
	validator *validator.Validator
}

func NewRunHandler(a Agent, v *validator.Validator) *RunHandler {
	return &RunHandler{agent: a, validator: v}
}

// CreateRun runs the pattern pipeline on the last user message.
//
// POST /v1/run
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req api.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	msgs := make([]agent.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = agent.Message{Role: m.Role, Content: m.Content, Name: m.Name}
	}

	resp, err := h.agent.Run(c.Request.Context(), msgs)
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := api.RunResponse{Object: "pipeline.run", Messages: make([]api.Message, len(resp.Messages))}
	for i, m := range resp.Messages {
		out.Messages[i] = api.Message{Role: m.Role, Content: m.Content, Name: m.Name}
	}
	if r := resp.Result; r != nil {
		out.ID = r.RunID
		out.Pattern = r.Pattern
		out.Found = r.Found
	}

	c.JSON(http.StatusOK, out)
}
