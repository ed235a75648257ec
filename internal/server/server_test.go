package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgraph/internal/queue"
	mid "github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/store/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	masterKey = "master-secret"
	tenant    = "t1"
)

var signingKey = []byte("test-signing-key")

type fakeSnapshots struct {
	exists  bool
	deleted []string
}

func (f *fakeSnapshots) Exists(ctx context.Context, tenantID string) (bool, error) {
	return f.exists, nil
}

func (f *fakeSnapshots) DownloadLink(ctx context.Context, tenantID string) (string, error) {
	return "https://files.example.com/graph/" + tenantID + "/snapshot.json?sig=x", nil
}

func (f *fakeSnapshots) Delete(ctx context.Context, tenantID string) error {
	f.deleted = append(f.deleted, tenantID)
	return nil
}

type testServer struct {
	app      *mid.App
	mem      *memory.GraphMemStorage
	enqueued []queue.BuildMessage
	snaps    *fakeSnapshots
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{mem: memory.New(), snaps: &fakeSnapshots{}}

	client, err := graph.NewGraphClient(graph.NewGraphClientParams{Storage: ts.mem})
	require.NoError(t, err)

	ts.app = &mid.App{
		Graph:        client,
		Snapshots:    ts.snaps,
		MasterAPIKey: masterKey,
		Keyfunc: func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return signingKey, nil
		},
		Enqueue: func(msg queue.BuildMessage) error {
			ts.enqueued = append(ts.enqueued, msg)
			return nil
		},
	}
	return ts
}

// seed builds a small graph: Alice and Postgres share a document, Bob is
// alone.
func (ts *testServer) seed(t *testing.T) {
	t.Helper()
	for id, s := range map[string]common.StructuredSummary{
		"d1": {Entities: common.SummaryEntities{People: []string{"Alice"}, Systems: []string{"Postgres"}}},
		"d2": {Entities: common.SummaryEntities{People: []string{"Bob"}}},
	} {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		ts.mem.AddDocument(common.Document{ID: id, TenantID: tenant, StructuredSummary: string(b)})
	}
	_, err := ts.app.Graph.Build(context.Background(), tenant, false)
	require.NoError(t, err)
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	NewEcho(ts.app).ServeHTTP(rec, req)
	return rec
}

func userToken(t *testing.T, tenants []string, permissions []string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         "user-1",
		"tenants":     tenants,
		"permissions": permissions,
		"exp":         time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(signingKey)
	require.NoError(t, err)
	return signed
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/tenants/t1/graph/stats"

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, path, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, path, "garbage", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, path, masterKey, "").Code)

	viewer := userToken(t, []string{"t1"}, []string{"graph.view"})
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, path, viewer, "").Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/tenants/t2/graph/stats", viewer, "").Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/tenants/t1/graph/build", viewer, `{}`).Code)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     "user-1",
		"tenants": []string{"t1"},
	}).SignedString([]byte("wrong-key"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, path, other, "").Code)
}

func TestBuildEnqueues(t *testing.T) {
	ts := newTestServer(t)
	token := userToken(t, []string{"t1"}, []string{"graph.build"})

	rec := ts.do(t, http.MethodPost, "/api/tenants/t1/graph/build", token, `{"force":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []queue.BuildMessage{{TenantID: "t1", Force: true}}, ts.enqueued)

	ts.app.Enqueue = func(queue.BuildMessage) error { return errors.New("broker down") }
	rec = ts.do(t, http.MethodPost, "/api/tenants/t1/graph/build", token, `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatsAndContext(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodGet, "/api/tenants/t1/graph/stats", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[common.Stats](t, rec)
	assert.Equal(t, 3, stats.Entities)
	assert.Equal(t, 1, stats.Relations)
	assert.Equal(t, 1, stats.Communities)
	assert.Equal(t, 2, stats.EntitiesByType[common.EntityTypePerson])

	rec = ts.do(t, http.MethodPost, "/api/tenants/t1/graph/context", masterKey, `{"query":"what does alice use?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	gc := decode[common.GraphContext](t, rec)
	require.Len(t, gc.Entities, 1)
	assert.Equal(t, "Alice", gc.Entities[0].Name)
	assert.Contains(t, gc.ContextText, "Alice")
	assert.Contains(t, gc.ContextText, "Postgres")

	rec = ts.do(t, http.MethodPost, "/api/tenants/t1/graph/context", masterKey, `{"query":"alice","max_depth":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/tenants/t1/graph/context", masterKey, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEntityRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodGet, "/api/tenants/t1/graph/entities?type=person", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Entities []common.Entity `json:"entities"`
	}](t, rec)
	require.Len(t, list.Entities, 2)

	rec = ts.do(t, http.MethodGet, "/api/tenants/t1/graph/entities?type=planet", masterKey, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var alice common.Entity
	for _, e := range list.Entities {
		if e.Name == "Alice" {
			alice = e
		}
	}
	require.NotEmpty(t, alice.ID)

	rec = ts.do(t, http.MethodGet, "/api/tenants/t1/graph/entities/"+alice.ID, masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[graph.EntityDetail](t, rec)
	assert.Equal(t, "Alice", detail.Entity.Name)
	assert.Len(t, detail.Relations, 1)

	rec = ts.do(t, http.MethodGet, "/api/tenants/t1/graph/entities/"+alice.ID+"/neighborhood?depth=2", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	n := decode[common.Neighborhood](t, rec)
	require.Len(t, n.Entities, 1)
	assert.Equal(t, "Postgres", n.Entities[0].Name)

	rec = ts.do(t, http.MethodGet, "/api/tenants/t1/graph/entities/"+alice.ID+"/neighborhood?depth=-1", masterKey, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/tenants/t1/graph/entities/missing", masterKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// entities of another tenant stay hidden
	rec = ts.do(t, http.MethodGet, "/api/tenants/t2/graph/entities/"+alice.ID, masterKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommunitiesAndVisualization(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodGet, "/api/tenants/t1/graph/communities", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cs := decode[struct {
		Communities []common.Community `json:"communities"`
	}](t, rec)
	require.Len(t, cs.Communities, 1)
	assert.Equal(t, 2, cs.Communities[0].EntityCount)

	rec = ts.do(t, http.MethodGet, "/api/tenants/t1/graph/visualization", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[graph.Visualization](t, rec)
	assert.Len(t, v.Nodes, 3)
	assert.Len(t, v.Edges, 1)
}

func TestExportAndDelete(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	rec := ts.do(t, http.MethodGet, "/api/tenants/t1/graph/export", masterKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.snaps.exists = true
	rec = ts.do(t, http.MethodGet, "/api/tenants/t1/graph/export", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["url"], "graph/t1/snapshot.json")

	ts.app.Snapshots = nil
	rec = ts.do(t, http.MethodGet, "/api/tenants/t1/graph/export", masterKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	ts.app.Snapshots = ts.snaps

	viewer := userToken(t, []string{"t1"}, []string{"graph.view"})
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, "/api/tenants/t1/graph", viewer, "").Code)

	rec = ts.do(t, http.MethodDelete, "/api/tenants/t1/graph", masterKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"t1"}, ts.snaps.deleted)

	stats := decode[common.Stats](t, ts.do(t, http.MethodGet, "/api/tenants/t1/graph/stats", masterKey, ""))
	assert.Zero(t, stats.Entities)
	assert.Zero(t, stats.Relations)
}
