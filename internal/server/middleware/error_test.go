package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/gateway/internal/httpclient"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/pkg/api"
)

func TestProblemFor_ResolutionCodes(t *testing.T) {
	tests := []struct {
		code       api.ResolutionCode
		wantStatus int
		wantTitle  string
	}{
		{api.CodeModelNotFound, http.StatusNotFound, "Model Not Found"},
		{api.CodeProviderNotFound, http.StatusNotFound, "Model Not Found"},
		{api.CodeNoAdapter, http.StatusNotFound, "Provider Not Available"},
		{api.CodeNoCredentials, http.StatusForbidden, "No Provider Credentials"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			problem := ProblemFor(api.NewResolutionError(tt.code, "detail"))

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantTitle, problem.Title)
			assert.Equal(t, string(tt.code), problem.Extensions["code"])
		})
	}
}

func TestProblemFor_WrappedResolutionError(t *testing.T) {
	err := fmt.Errorf("resolve failed: %w", api.NewResolutionError(api.CodeNoCredentials, "no creds"))

	problem := ProblemFor(err)
	assert.Equal(t, http.StatusForbidden, problem.Status)
}

func TestProblemFor_UpstreamError(t *testing.T) {
	err := &httpclient.UpstreamError{StatusCode: 429, Body: []byte("slow down"), URL: "https://api.openai.com/v1/chat/completions"}

	problem := ProblemFor(err)
	assert.Equal(t, http.StatusBadGateway, problem.Status)
	assert.Equal(t, "Upstream Provider Error", problem.Title)
	assert.Equal(t, err, problem.Log)
}

func TestProblemFor_StreamingNotSupported(t *testing.T) {
	problem := ProblemFor(llm.StreamingNotSupportedError("bedrock"))

	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, "Streaming Not Supported", problem.Title)
	assert.Contains(t, problem.Detail, "bedrock")
}

func TestProblemFor_ConfigError(t *testing.T) {
	problem := ProblemFor(llm.MissingField("azure", "resource_name"))

	assert.Equal(t, http.StatusForbidden, problem.Status)
	assert.Equal(t, "Provider Misconfigured", problem.Title)
}

func TestProblemFor_ProblemPassthrough(t *testing.T) {
	original := api.BadRequestError("bad input")
	assert.Same(t, original, ProblemFor(original))
}

func TestProblemFor_UnknownError(t *testing.T) {
	problem := ProblemFor(errors.New("something odd"))

	assert.Equal(t, http.StatusInternalServerError, problem.Status)
	require.NotNil(t, problem.Log)
	// internals never leak into the response detail
	assert.NotContains(t, problem.Detail, "something odd")
}

func TestErrorHandler_WritesProblemJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(api.NewResolutionError(api.CodeModelNotFound, "model \"x\" matches nothing"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Model Not Found", body["title"])
	assert.Equal(t, "model_not_found", body["code"])
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
}
