package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/reliability-forge/internal/llm"
	"github.com/nulzo/reliability-forge/internal/server/validator"
	"github.com/nulzo/reliability-forge/pkg/api"
)

type ChatHandler struct {
	gateway   Gateway
	validator *validator.Validator
}

func NewChatHandler(gw Gateway, v *validator.Validator) *ChatHandler {
	return &ChatHandler{
		gateway:   gw,
		validator: v,
	}
}

// CreateChat sends a raw prompt to one model, or to every model listed in
// "models".
//
// POST /v1/chat
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}
	if req.Model != "" && len(req.Models) > 0 {
		_ = c.Error(api.BadRequestError(`"model" and "models" are mutually exclusive`))
		return
	}

	opts := llm.ChatOptions{MaxTokens: req.MaxTokens}

	if len(req.Models) > 0 {
		res, err := h.gateway.Dispatch(c.Request.Context(), req.Prompt, req.Models, opts)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, api.ChatResponse{Object: "chat.result", Contents: res.ByModel})
		return
	}

	model := req.Model
	if model == "" {
		model = h.gateway.DefaultModel()
	}
	text, err := h.gateway.Chat(c.Request.Context(), req.Prompt, model, opts)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.ChatResponse{Object: "chat.result", Model: model, Content: text})
}
