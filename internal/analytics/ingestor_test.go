package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelgate/gateway/internal/store"
	"github.com/modelgate/gateway/internal/store/model"
)

type recordingRepo struct {
	mu      sync.Mutex
	logged  []*model.RequestLog
	txCount int
}

func (r *recordingRepo) APIKeys() store.APIKeyRepository                 { return nil }
func (r *recordingRepo) Requests() store.RequestRepository               { return &recordingRequests{repo: r} }
func (r *recordingRepo) Models() store.ModelRepository                   { return nil }
func (r *recordingRepo) Credentials() store.CredentialRepository         { return nil }
func (r *recordingRepo) CustomProviders() store.CustomProviderRepository { return nil }
func (r *recordingRepo) Teams() store.TeamRepository                     { return nil }

func (r *recordingRepo) WithTx(ctx context.Context, fn func(store.Repository) error) error {
	r.mu.Lock()
	r.txCount++
	r.mu.Unlock()
	return fn(r)
}

func (r *recordingRepo) Close() error { return nil }

func (r *recordingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logged)
}

type recordingRequests struct {
	repo *recordingRepo
}

func (q *recordingRequests) Log(ctx context.Context, log *model.RequestLog) error {
	q.repo.mu.Lock()
	defer q.repo.mu.Unlock()
	q.repo.logged = append(q.repo.logged, log)
	return nil
}

func (q *recordingRequests) GetRecent(ctx context.Context, teamID string, limit int) ([]model.RequestLog, error) {
	return nil, nil
}

func (q *recordingRequests) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	return nil, nil
}

func TestIngestor_FlushOnStop(t *testing.T) {
	repo := &recordingRepo{}
	ing := NewIngestor(zap.NewNop(), repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx)

	for i := 0; i < 10; i++ {
		ing.Log(&model.RequestLog{ID: "req", TeamID: "team-1", StatusCode: 200, CreatedAt: time.Now()})
	}
	ing.Stop()

	require.Eventually(t, func() bool { return repo.count() == 10 }, time.Second, 10*time.Millisecond)
}

func TestIngestor_BatchesInOneTransaction(t *testing.T) {
	repo := &recordingRepo{}
	ing := NewIngestor(zap.NewNop(), repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx)

	// one more than the batch size forces an early flush plus a final one
	for i := 0; i < 51; i++ {
		ing.Log(&model.RequestLog{ID: "req", TeamID: "team-1"})
	}
	ing.Stop()

	require.Eventually(t, func() bool { return repo.count() == 51 }, time.Second, 10*time.Millisecond)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 2, repo.txCount)
}

func TestIngestor_DropsWhenBufferFull(t *testing.T) {
	repo := &recordingRepo{}
	ing := NewIngestor(zap.NewNop(), repo).(*ingestor)

	// shrink the buffer; the worker is never started so nothing drains
	ing.logChan = make(chan *model.RequestLog, 2)

	for i := 0; i < 5; i++ {
		ing.Log(&model.RequestLog{ID: "req"})
	}

	// the extra logs were dropped, not blocked on
	assert.Len(t, ing.logChan, 2)
}
