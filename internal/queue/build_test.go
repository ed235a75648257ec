package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/kgraph/pkg/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeLocker) WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return fn(ctx)
}

type staticAI struct{}

func (staticAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (staticAI) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return ai.UnmarshalFlexible(`{"summary": "A team and its database."}`, out)
}

func (staticAI) ResetMetrics()               {}
func (staticAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func newHandler(t *testing.T) (*BuildHandler, *memory.GraphMemStorage, *fakeLocker) {
	t.Helper()
	mem := memory.New()
	client, err := graph.NewGraphClient(graph.NewGraphClientParams{Storage: mem})
	require.NoError(t, err)

	summary, err := json.Marshal(common.StructuredSummary{
		Entities: common.SummaryEntities{People: []string{"Alice"}, Systems: []string{"Postgres"}},
	})
	require.NoError(t, err)
	mem.AddDocument(common.Document{ID: "d1", TenantID: "t1", StructuredSummary: string(summary)})

	locks := &fakeLocker{}
	return &BuildHandler{Graph: client, Locks: locks}, mem, locks
}

func TestProcessBuildMessage(t *testing.T) {
	ctx := context.Background()
	h, mem, locks := newHandler(t)

	var snapshots []*common.Snapshot
	h.Summarize = &graph.SummarizeParams{Client: staticAI{}}
	h.Snapshot = func(ctx context.Context, s *common.Snapshot) error {
		snapshots = append(snapshots, s)
		return nil
	}

	require.NoError(t, h.ProcessBuildMessage(ctx, `{"tenant_id":"t1","force":true}`))
	assert.Equal(t, []string{"graph-build:t1"}, locks.keys)

	n, err := mem.CountEntities(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	communities, err := mem.ListCommunities(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, communities, 1)
	require.NotNil(t, communities[0].Summary)
	assert.Equal(t, "A team and its database.", *communities[0].Summary)

	require.Len(t, snapshots, 1)
	assert.Equal(t, "t1", snapshots[0].TenantID)
	assert.Len(t, snapshots[0].Entities, 2)
}

func TestProcessBuildMessageIgnoresSnapshotFailure(t *testing.T) {
	h, _, _ := newHandler(t)
	h.Snapshot = func(ctx context.Context, s *common.Snapshot) error {
		return errors.New("bucket unavailable")
	}
	assert.NoError(t, h.ProcessBuildMessage(context.Background(), `{"tenant_id":"t1"}`))
}

func TestProcessBuildMessageRejectsBadPayload(t *testing.T) {
	h, _, locks := newHandler(t)

	assert.Error(t, h.ProcessBuildMessage(context.Background(), `not json`))
	assert.ErrorIs(t, h.ProcessBuildMessage(context.Background(), `{"force":true}`), graph.ErrTenantRequired)
	assert.Empty(t, locks.keys)
}

func TestProcessBuildMessagePropagatesLockError(t *testing.T) {
	h, mem, locks := newHandler(t)
	locks.err = leaselock.ErrBusy

	err := h.ProcessBuildMessage(context.Background(), `{"tenant_id":"t1"}`)
	assert.ErrorIs(t, err, leaselock.ErrBusy)

	n, cerr := mem.CountEntities(context.Background(), "t1")
	require.NoError(t, cerr)
	assert.Zero(t, n)
}
