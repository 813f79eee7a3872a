package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelgate/gateway/internal/httpclient"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/logger"
	"github.com/modelgate/gateway/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler translates errors attached by handlers into RFC 9457
// responses. Resolution and upstream errors get dedicated mappings; anything
// unrecognized collapses to a 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		problem := ProblemFor(err)
		if problem.Log != nil {
			logger.Error("Request failed", zap.Error(problem.Log))
		}

		// RFC 9457 dictates the json is at the root
		c.JSON(problem.Status, problem)
		c.Abort()
	}
}

// ProblemFor maps a domain error to its RFC 9457 representation.
func ProblemFor(err error) *api.Problem {
	var problem *api.Problem
	if errors.As(err, &problem) {
		return problem
	}

	var resolution *api.ResolutionError
	if errors.As(err, &resolution) {
		switch resolution.Code {
		case api.CodeModelNotFound, api.CodeProviderNotFound:
			return api.NewError(http.StatusNotFound, "Model Not Found", resolution.Detail,
				api.WithExtension("code", string(resolution.Code)))
		case api.CodeNoAdapter:
			return api.NewError(http.StatusNotFound, "Provider Not Available", resolution.Detail,
				api.WithExtension("code", string(resolution.Code)))
		case api.CodeNoCredentials:
			return api.NewError(http.StatusForbidden, "No Provider Credentials", resolution.Detail,
				api.WithExtension("code", string(resolution.Code)))
		}
	}

	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		return api.ProviderError("The upstream provider rejected the request", err)
	}

	if errors.Is(err, llm.ErrStreamingNotSupported) {
		return api.NewError(http.StatusBadRequest, "Streaming Not Supported", err.Error())
	}

	var cfgErr *llm.ConfigError
	if errors.As(err, &cfgErr) {
		return api.NewError(http.StatusForbidden, "Provider Misconfigured", cfgErr.Error())
	}

	return api.NewError(
		http.StatusInternalServerError,
		"Internal Server Error",
		"An unexpected error occurred.",
		api.WithLog(err),
	)
}
