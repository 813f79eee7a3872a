package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelgate/gateway/internal/gateway"
	"github.com/modelgate/gateway/pkg/api"
)

type ModelHandler struct {
	service gateway.Service
}

func NewModelHandler(service gateway.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

func (h *ModelHandler) ListModels(c *gin.Context) {
	models, err := h.service.ListModels(c.Request.Context())
	if err != nil {
		_ = c.Error(api.InternalError("Failed to list models", err))
		return
	}

	c.JSON(http.StatusOK, api.ModelList{
		Object: "list",
		Data:   models,
	})
}
