// Package vertex implements the adapter for Google Vertex AI. Requests and
// responses share the Gemini schema, so the transforms are delegated to the
// gemini adapter; only the endpoint layout and auth differ. Auth uses an
// OAuth2 access token minted from a service account JSON key.
package vertex

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelgate/gateway/internal/httpclient"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/llm/gemini"
	"github.com/modelgate/gateway/internal/logger"
	"github.com/modelgate/gateway/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

func init() {
	llm.Register("vertex", NewAdapter)
}

// defaultModels is returned when the Vertex model listing endpoint is
// unreachable; the publisher catalog is stable enough to hardcode.
var defaultModels = []string{
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-1.0-pro",
}

type Adapter struct {
	compat llm.Provider
	client *http.Client
}

func NewAdapter(cfg llm.ProviderConfig) (llm.Provider, error) {
	compat, err := gemini.NewAdapter(llm.ProviderConfig{})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		compat: compat,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return "vertex" }

func (a *Adapter) TransformRequest(req *api.ChatRequest) (llm.Payload, error) {
	return a.compat.TransformRequest(req)
}

func (a *Adapter) TransformResponse(raw llm.Payload, unifiedModel string) (*api.ChatResponse, error) {
	return a.compat.TransformResponse(raw, unifiedModel)
}

func requireCredentials(creds llm.Credentials) error {
	if creds.ServiceAccountJSON() == "" {
		return llm.MissingField("vertex", "service_account_json")
	}
	if creds.ProjectID() == "" {
		return llm.MissingField("vertex", "project_id")
	}
	if creds.Location() == "" {
		return llm.MissingField("vertex", "location")
	}
	return nil
}

func accessToken(ctx context.Context, creds llm.Credentials) (string, error) {
	conf, err := google.JWTConfigFromJSON([]byte(creds.ServiceAccountJSON()), cloudPlatformScope)
	if err != nil {
		return "", fmt.Errorf("failed to parse vertex service account key: %w", err)
	}
	token, err := conf.TokenSource(ctx).Token()
	if err != nil {
		return "", fmt.Errorf("failed to mint vertex access token: %w", err)
	}
	return token.AccessToken, nil
}

func (a *Adapter) endpoint(creds llm.Credentials, model, verb string) string {
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		creds.Location(), creds.ProjectID(), creds.Location(), model, verb)
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (*api.ChatResponse, error) {
	if err := requireCredentials(creds); err != nil {
		return nil, err
	}

	token, err := accessToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	payload, err := a.TransformRequest(req)
	if err != nil {
		return nil, err
	}

	url := a.endpoint(creds, llm.StripModelPrefix(req.Model), "generateContent")
	headers := map[string]string{"Authorization": "Bearer " + token}

	var raw llm.Payload
	if err := httpclient.SendRequest(ctx, a.client, "POST", url, headers, payload, &raw); err != nil {
		return nil, err
	}

	return a.TransformResponse(raw, req.Model)
}

// Stream is not available for Vertex in this version.
func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (<-chan api.StreamResult, error) {
	return nil, llm.StreamingNotSupportedError("vertex")
}

func staticModels() []api.Model {
	models := make([]api.Model, 0, len(defaultModels))
	for _, id := range defaultModels {
		models = append(models, api.Model{
			ID:       "vertex:" + id,
			Object:   "model",
			Created:  time.Now().Unix(),
			OwnedBy:  "google",
			Provider: "vertex",
			Name:     id,
		})
	}
	return models
}

// publisherModelList mirrors the Vertex publisher models response.
type publisherModelList struct {
	PublisherModels []struct {
		Name        string `json:"name"`
		VersionID   string `json:"versionId"`
		DisplayName string `json:"displayName"`
	} `json:"publisherModels"`
}

// Models lists the google publisher catalog, falling back to a static list
// when the listing call fails. Validation goes through the token mint, so a
// degraded listing endpoint does not take model discovery down with it.
func (a *Adapter) Models(ctx context.Context, creds llm.Credentials) ([]api.Model, error) {
	if err := requireCredentials(creds); err != nil {
		return nil, err
	}

	token, err := accessToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1beta1/publishers/google/models",
		creds.Location())
	headers := map[string]string{"Authorization": "Bearer " + token}

	var list publisherModelList
	if err := httpclient.SendRequest(ctx, a.client, "GET", url, headers, nil, &list); err != nil {
		logger.Debug("vertex model listing failed, using static catalog", zap.Error(err))
		return staticModels(), nil
	}
	if len(list.PublisherModels) == 0 {
		return staticModels(), nil
	}

	models := make([]api.Model, 0, len(list.PublisherModels))
	for _, m := range list.PublisherModels {
		id := m.VersionID
		if id == "" {
			id = m.Name
		}
		models = append(models, api.Model{
			ID:       "vertex:" + id,
			Object:   "model",
			Created:  time.Now().Unix(),
			OwnedBy:  "google",
			Provider: "vertex",
			Name:     m.DisplayName,
		})
	}
	return models, nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context, creds llm.Credentials) bool {
	if err := requireCredentials(creds); err != nil {
		logger.Debug("credential validation failed", zap.String("provider", "vertex"), zap.Error(err))
		return false
	}
	if _, err := accessToken(ctx, creds); err != nil {
		logger.Debug("credential validation failed", zap.String("provider", "vertex"), zap.Error(err))
		return false
	}
	return true
}
