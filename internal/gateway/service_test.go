package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/router"
	"github.com/modelgate/gateway/internal/store"
	"github.com/modelgate/gateway/internal/store/cache"
	"github.com/modelgate/gateway/internal/store/model"
	"github.com/modelgate/gateway/pkg/api"
)

// fakeRepo implements store.Repository over in-memory maps; only the
// credential repository is live, alias lookups always miss.
type fakeRepo struct {
	creds *fakeCredRepo
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{creds: &fakeCredRepo{bags: map[string]map[string]string{}}}
}

func (f *fakeRepo) APIKeys() store.APIKeyRepository                 { return nil }
func (f *fakeRepo) Requests() store.RequestRepository               { return nil }
func (f *fakeRepo) Models() store.ModelRepository                   { return &fakeModelRepo{} }
func (f *fakeRepo) Credentials() store.CredentialRepository         { return f.creds }
func (f *fakeRepo) CustomProviders() store.CustomProviderRepository { return nil }
func (f *fakeRepo) Teams() store.TeamRepository                     { return nil }
func (f *fakeRepo) WithTx(ctx context.Context, fn func(store.Repository) error) error {
	return fn(f)
}
func (f *fakeRepo) Close() error { return nil }

type fakeModelRepo struct{}

func (f *fakeModelRepo) GetByAlias(ctx context.Context, alias, teamID string) (*model.ModelRoute, error) {
	return nil, store.ErrNotFound
}
func (f *fakeModelRepo) List(ctx context.Context, teamID string) ([]model.ModelRoute, error) {
	return nil, nil
}
func (f *fakeModelRepo) Sync(ctx context.Context, routes []model.ModelRoute) error { return nil }

type fakeCredRepo struct {
	bags map[string]map[string]string
}

func (f *fakeCredRepo) GetDecrypted(ctx context.Context, teamID, providerID string) (map[string]string, error) {
	bag, ok := f.bags[teamID+":"+providerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return bag, nil
}

func (f *fakeCredRepo) Store(ctx context.Context, teamID, providerID string, creds map[string]string) error {
	f.bags[teamID+":"+providerID] = creds
	return nil
}

func (f *fakeCredRepo) Delete(ctx context.Context, teamID, providerID string) error {
	delete(f.bags, teamID+":"+providerID)
	return nil
}

// captureIngestor records logs synchronously so tests can assert on them.
type captureIngestor struct {
	mu   sync.Mutex
	logs []*model.RequestLog
}

func (c *captureIngestor) Log(log *model.RequestLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, log)
}

func (c *captureIngestor) Start(ctx context.Context) {}
func (c *captureIngestor) Stop()                     {}

func (c *captureIngestor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.logs)
}

func (c *captureIngestor) last() *model.RequestLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logs[len(c.logs)-1]
}

// streamingProvider feeds a scripted sequence of chunks; an empty script
// means stream forever until the context is canceled.
type streamingProvider struct {
	name string
	feed []api.StreamResult
}

func (p *streamingProvider) Name() string { return p.name }
func (p *streamingProvider) TransformRequest(*api.ChatRequest) (llm.Payload, error) {
	return llm.Payload{}, nil
}
func (p *streamingProvider) TransformResponse(llm.Payload, string) (*api.ChatResponse, error) {
	return &api.ChatResponse{}, nil
}
func (p *streamingProvider) Chat(context.Context, *api.ChatRequest, llm.Credentials) (*api.ChatResponse, error) {
	return &api.ChatResponse{}, nil
}

func (p *streamingProvider) Stream(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (<-chan api.StreamResult, error) {
	ch := make(chan api.StreamResult)
	go func() {
		defer close(ch)
		if len(p.feed) == 0 {
			for {
				chunk := &api.ChatResponse{
					ID:      "chatcmpl-s1",
					Object:  api.ObjectChatChunk,
					Choices: []api.Choice{{Delta: &api.Delta{Content: "x"}}},
				}
				select {
				case ch <- api.StreamResult{Response: chunk}:
				case <-ctx.Done():
					return
				}
			}
		}
		for _, r := range p.feed {
			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (p *streamingProvider) Models(context.Context, llm.Credentials) ([]api.Model, error) {
	return nil, nil
}
func (p *streamingProvider) ValidateCredentials(context.Context, llm.Credentials) bool { return true }

func newStreamService(t *testing.T, provider llm.Provider) (Service, *captureIngestor) {
	t.Helper()
	repo := newFakeRepo()
	repo.creds.bags["system:openai"] = map[string]string{"api_key": "sk-1"}

	registry := llm.NewRegistry()
	registry.RegisterCustom("openai", provider)
	resolver := router.NewResolver(repo, registry, cache.NewMemoryCache())

	ing := &captureIngestor{}
	return NewService(zap.NewNop(), repo, resolver, registry, ing), ing
}

func chatReq(stream bool) *api.ChatRequest {
	return &api.ChatRequest{
		Model:    "openai:gpt-4o",
		Stream:   stream,
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	}
}

func TestStreamChat_ForwardsAndAccounts(t *testing.T) {
	provider := &streamingProvider{name: "openai", feed: []api.StreamResult{
		{Response: &api.ChatResponse{
			ID:      "chatcmpl-1",
			Object:  api.ObjectChatChunk,
			Choices: []api.Choice{{Delta: &api.Delta{Content: "Hello"}}},
		}},
		{Response: &api.ChatResponse{
			ID:      "chatcmpl-1",
			Object:  api.ObjectChatChunk,
			Choices: []api.Choice{{Delta: &api.Delta{}, FinishReason: api.FinishPtr(api.FinishStop)}},
			Usage:   &api.ResponseUsage{PromptTokens: 3, CompletionTokens: 5},
		}},
	}}

	svc, ing := newStreamService(t, provider)

	out, err := svc.StreamChat(context.Background(), chatReq(true))
	require.NoError(t, err)

	var chunks int
	for range out {
		chunks++
	}
	assert.Equal(t, 2, chunks)

	require.Eventually(t, func() bool { return ing.count() == 1 }, time.Second, 10*time.Millisecond)
	log := ing.last()
	assert.Equal(t, "chatcmpl-1", log.UpstreamID)
	assert.Equal(t, "stop", log.FinishReason)
	assert.Equal(t, 3, log.InputTokens)
	assert.Equal(t, 5, log.OutputTokens)
	assert.True(t, log.IsStreamed)
	assert.Equal(t, 200, log.StatusCode)
}

// A client that hangs up mid-stream must not wedge the interceptor: the
// goroutine still drains the provider and the request is still accounted.
func TestStreamChat_ClientDisconnectStillAccounts(t *testing.T) {
	svc, ing := newStreamService(t, &streamingProvider{name: "openai"})

	ctx, cancel := context.WithCancel(context.Background())
	out, err := svc.StreamChat(ctx, chatReq(true))
	require.NoError(t, err)

	// take one chunk, then hang up without draining the rest
	first := <-out
	require.NotNil(t, first.Response)

	// let the interceptor park on its forwarding send before hanging up
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.Eventually(t, func() bool { return ing.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	log := ing.last()
	assert.True(t, log.IsStreamed)
	assert.Equal(t, 499, log.StatusCode)
	assert.Equal(t, "chatcmpl-s1", log.UpstreamID)
}
