package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/reliability-forge/internal/agent"
	"github.com/nulzo/reliability-forge/internal/gateway"
	"github.com/nulzo/reliability-forge/internal/llm"
	"github.com/nulzo/reliability-forge/internal/pipeline"
	"github.com/nulzo/reliability-forge/internal/store"
	"github.com/nulzo/reliability-forge/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached by a handler as an RFC 9457
// problem.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		problem := ToProblem(c.Errors.Last().Err)
		if problem.Instance == "" {
			problem.Instance = c.Request.URL.Path
		}

		if problem.Status >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.Int("status", problem.Status),
				zap.String("path", c.Request.URL.Path),
				zap.NamedError("cause", problem.Log),
			)
		} else if problem.Log != nil {
			logger.Debug("Request rejected", zap.Int("status", problem.Status), zap.Error(problem.Log))
		}

		c.AbortWithStatusJSON(problem.Status, problem)
	}
}

// ToProblem maps domain errors onto HTTP problems.
func ToProblem(err error) *api.Problem {
	var problem *api.Problem
	if errors.As(err, &problem) {
		return problem
	}

	switch {
	case errors.Is(err, gateway.ErrUnknownModel):
		return api.BadRequestError(err.Error(), api.WithType("/problems/unknown-model"), api.WithLog(err))
	case errors.Is(err, agent.ErrNoInput):
		return api.BadRequestError(err.Error(), api.WithLog(err))
	case errors.Is(err, store.ErrNotFound):
		return api.NotFoundError(err.Error())
	case pipeline.IsMalformed(err):
		return api.UpstreamError("The model returned output that could not be parsed.", err,
			api.WithType("/problems/malformed-output"))
	case llm.KindOf(err) == llm.Timeout:
		return api.UpstreamTimeoutError("The model did not answer in time.", err,
			api.WithType("/problems/llm"))
	case errors.Is(err, llm.ErrChat):
		return api.UpstreamError("The model request failed.", err,
			api.WithType("/problems/llm"),
			api.WithExtension("kind", llm.KindOf(err).String()))
	}

	return api.InternalError("An unexpected error occurred.", err)
}
