package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/modelgate/gateway/internal/gateway"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/llm/custom"
	"github.com/modelgate/gateway/internal/server/validator"
	"github.com/modelgate/gateway/internal/store"
	storemodel "github.com/modelgate/gateway/internal/store/model"
	"github.com/modelgate/gateway/pkg/api"
)

// AdminHandler manages custom providers and team credentials.
type AdminHandler struct {
	repo      store.Repository
	registry  *llm.Registry
	service   gateway.Service
	validator *validator.Validator
}

func NewAdminHandler(repo store.Repository, registry *llm.Registry, service gateway.Service, v *validator.Validator) *AdminHandler {
	return &AdminHandler{
		repo:      repo,
		registry:  registry,
		service:   service,
		validator: v,
	}
}

type customProviderRequest struct {
	Name                string `json:"name" binding:"required"`
	BaseURL             string `json:"base_url" binding:"required,url"`
	AuthHeaderName      string `json:"auth_header_name"`
	AuthValueTemplate   string `json:"auth_value_template"`
	APIVersion          string `json:"api_version"`
	ModelsPath          string `json:"models_path"`
	ChatCompletionsPath string `json:"chat_completions_path"`
}

func (r *customProviderRequest) toRecord(id string) *storemodel.CustomProvider {
	return &storemodel.CustomProvider{
		ID:                  id,
		Name:                r.Name,
		BaseURL:             r.BaseURL,
		AuthHeaderName:      r.AuthHeaderName,
		AuthValueTemplate:   r.AuthValueTemplate,
		APIVersion:          r.APIVersion,
		ModelsPath:          r.ModelsPath,
		ChatCompletionsPath: r.ChatCompletionsPath,
		IsEnabled:           true,
	}
}

func (h *AdminHandler) ListProviders(c *gin.Context) {
	providers, err := h.repo.CustomProviders().List(c.Request.Context())
	if err != nil {
		_ = c.Error(api.InternalError("Failed to list custom providers", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": providers})
}

func (h *AdminHandler) GetProvider(c *gin.Context) {
	p, err := h.repo.CustomProviders().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NewError(http.StatusNotFound, "Provider Not Found",
				"no custom provider with id "+c.Param("id")))
			return
		}
		_ = c.Error(api.InternalError("Failed to load custom provider", err))
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateProvider stores a custom provider and installs its adapter. The
// registry and the store change together: a provider that cannot construct
// an adapter is rejected, not half-registered.
func (h *AdminHandler) CreateProvider(c *gin.Context) {
	var req customProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	record := req.toRecord("custom-" + uuid.NewString())
	if err := h.installAndStore(c, record, true); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (h *AdminHandler) UpdateProvider(c *gin.Context) {
	var req customProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	id := c.Param("id")
	if _, err := h.repo.CustomProviders().Get(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = c.Error(api.NewError(http.StatusNotFound, "Provider Not Found",
				"no custom provider with id "+id))
			return
		}
		_ = c.Error(api.InternalError("Failed to load custom provider", err))
		return
	}

	record := req.toRecord(id)
	if err := h.installAndStore(c, record, false); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *AdminHandler) installAndStore(c *gin.Context, record *storemodel.CustomProvider, create bool) error {
	instance, err := custom.NewAdapter(gateway.ProviderConfigFromRecord(record))
	if err != nil {
		return api.BadRequestError("Invalid provider configuration: " + err.Error())
	}

	if create {
		err = h.repo.CustomProviders().Create(c.Request.Context(), record)
	} else {
		err = h.repo.CustomProviders().Update(c.Request.Context(), record)
	}
	if err != nil {
		return api.InternalError("Failed to persist custom provider", err)
	}

	h.registry.RegisterCustom(record.ID, instance)
	return nil
}

func (h *AdminHandler) DeleteProvider(c *gin.Context) {
	id := c.Param("id")
	if err := h.repo.CustomProviders().Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(api.InternalError("Failed to delete custom provider", err))
		return
	}
	h.registry.RemoveCustom(id)
	c.Status(http.StatusNoContent)
}

type credentialsRequest struct {
	Credentials map[string]string `json:"credentials" binding:"required"`
}

func (h *AdminHandler) StoreCredentials(c *gin.Context) {
	teamID, _ := c.Request.Context().Value(store.ContextKeyTeamID).(string)
	providerID := c.Param("provider")

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	if err := h.repo.Credentials().Store(c.Request.Context(), teamID, providerID, req.Credentials); err != nil {
		_ = c.Error(api.InternalError("Failed to store credentials", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"provider": providerID, "stored": true})
}

func (h *AdminHandler) DeleteCredentials(c *gin.Context) {
	teamID, _ := c.Request.Context().Value(store.ContextKeyTeamID).(string)
	providerID := c.Param("provider")

	if err := h.repo.Credentials().Delete(c.Request.Context(), teamID, providerID); err != nil {
		_ = c.Error(api.InternalError("Failed to delete credentials", err))
		return
	}

	c.Status(http.StatusNoContent)
}

// ValidateCredentials probes the provider with the stored credentials.
func (h *AdminHandler) ValidateCredentials(c *gin.Context) {
	teamID, _ := c.Request.Context().Value(store.ContextKeyTeamID).(string)
	providerID := c.Param("provider")

	valid, err := h.service.ValidateProvider(c.Request.Context(), teamID, providerID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"provider": providerID, "valid": valid})
}
