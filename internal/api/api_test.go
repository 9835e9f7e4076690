package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/repository"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/service"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standardScenario = `{
	"name": "two-period",
	"mode": "standard",
	"steps": [2, 2],
	"replenishments": [3],
	"initial_inventory": 4,
	"arrivals": {"pi_0": 0.2, "pi_p": 0.4, "pi_b": 0.4},
	"premium": {"pairs": [[0, 0.5], [2, 0.5]]},
	"base": {"pairs": [[0, 0.5], [2, 0.5]]},
	"costs": {"h": 1, "c_p": 8, "c_b": 1.5, "s_p": 4, "salvage": 0.5}
}`

func newTestRouter(opts service.Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewSolverService(cache.NewNoopResultCache(), opts)
	return NewRouter(&Services{SolverService: svc}, []string{"*"})
}

func do(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newTestRouter(service.Options{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSolveEndpoint(t *testing.T) {
	router := newTestRouter(service.Options{})

	rec := do(router, http.MethodPost, "/api/v1/solve", standardScenario)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result domain.SolveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "two-period", result.ScenarioName)
	assert.Equal(t, "standard", result.Mode)
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.ScenarioHash)
	assert.Equal(t, 2, result.Bounds.Periods)
}

func TestSolveEndpoint_BadRequests(t *testing.T) {
	router := newTestRouter(service.Options{MaxCells: 5})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"unknown mode", `{"mode": "greedy", "steps": [1], "replenishments": [], "premium": {"pairs": [[0, 1]]}, "base": {"pairs": [[0, 1]]}}`},
		{"horizon mismatch", `{"mode": "standard", "steps": [1, 1], "replenishments": [], "premium": {"pairs": [[0, 1]]}, "base": {"pairs": [[0, 1]]}}`},
		{"bad pair", `{"mode": "standard", "steps": [1], "premium": {"pairs": [[0]]}, "base": {"pairs": [[0, 1]]}}`},
		{"file source", `{"mode": "standard", "steps": [1], "premium": {"file": "/etc/passwd"}, "base": {"pairs": [[0, 1]]}}`},
		{"too large", standardScenario},
		{"overflowing state space", `{"mode": "standard", "steps": [2147483648], "premium": {"pairs": [[2147483647, 1]]}, "base": {"pairs": [[2147483647, 1]]}}`},
		{"outcome out of range", `{"mode": "standard", "steps": [1], "premium": {"pairs": [[1e300, 1]]}, "base": {"pairs": [[0, 1]]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/api/v1/solve", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestSolveBatchEndpoint(t *testing.T) {
	router := newTestRouter(service.Options{BatchWorkers: 2})

	body := `{"scenarios": [` + standardScenario + `,` + standardScenario + `]}`
	rec := do(router, http.MethodPost, "/api/v1/solve/batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Results []domain.SolveResult `json:"results"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, resp.Results[0].Value, resp.Results[1].Value)

	rec = do(router, http.MethodPost, "/api/v1/solve/batch", `{"scenarios": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsEndpoints_WithoutPersistence(t *testing.T) {
	router := newTestRouter(service.Options{})

	rec := do(router, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/runs/abc", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, allowAll := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.False(t, allowAll)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)

	_, allowAll = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, allowAll)
}

type singleRunStore struct {
	result *domain.SolveResult
}

func (r *singleRunStore) SaveRun(_ context.Context, result *domain.SolveResult) error {
	r.result = result
	return nil
}

func (r *singleRunStore) GetRun(_ context.Context, id string) (*domain.RunSummary, error) {
	if r.result == nil || r.result.RunID != id {
		return nil, repository.ErrRunNotFound
	}
	return &domain.RunSummary{ID: id, ExportKey: r.result.ExportKey}, nil
}

func (r *singleRunStore) ListRuns(context.Context, domain.RunFilter) ([]domain.RunSummary, error) {
	return nil, nil
}

type mapStorage map[string][]byte

func (m mapStorage) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for k, v := range m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m mapStorage) UploadObject(_ context.Context, key string, data []byte, _ string) error {
	m[key] = data
	return nil
}

func (m mapStorage) DownloadObject(_ context.Context, key string) ([]byte, error) {
	return m[key], nil
}

func TestRunPolicyEndpoints(t *testing.T) {
	store := mapStorage{}
	router := newTestRouter(service.Options{Runs: &singleRunStore{}, Storage: store, ExportPrefix: "exports"})

	rec := do(router, http.MethodPost, "/api/v1/solve", standardScenario)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result domain.SolveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	rec = do(router, http.MethodGet, "/api/v1/runs/"+result.RunID+"/policy", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, string(store[result.ExportKey]), rec.Body.String())

	rec = do(router, http.MethodGet, "/api/v1/runs/"+result.RunID+"/exports", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Contains(t, rec.Body.String(), result.RunID+"/values.csv")

	rec = do(router, http.MethodGet, "/api/v1/runs/unknown/policy", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/runs/unknown/exports", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunPolicyEndpoints_WithoutStorage(t *testing.T) {
	router := newTestRouter(service.Options{})

	rec := do(router, http.MethodGet, "/api/v1/runs/abc/policy", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/runs/abc/exports", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFlushCacheEndpoint(t *testing.T) {
	router := newTestRouter(service.Options{})

	rec := do(router, http.MethodDelete, "/api/v1/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"flushed":"all"}`, rec.Body.String())

	rec = do(router, http.MethodDelete, "/api/v1/cache?hash=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"flushed":"abc"}`, rec.Body.String())
}
