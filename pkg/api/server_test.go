package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdrop/cartel/pkg/executor"
	"github.com/xdrop/cartel/pkg/monitor"
	"github.com/xdrop/cartel/pkg/planner"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ex := executor.New(t.TempDir())
	mon := monitor.NewRuntime()
	p := planner.New(ex, mon)
	return NewServer(p)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDeployAndStatus(t *testing.T) {
	srv := newTestServer(t)

	deployCmd := DeploymentCommand{
		ModuleDefinition: ModuleDefinition{
			Kind:    "service",
			Name:    "web",
			Command: []string{"sh", "-c", "sleep 30"},
		},
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/deploy", deployCmd)
	require.Equal(t, http.StatusOK, rec.Code)

	var deployResp DeploymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deployResp))
	assert.True(t, deployResp.Success)
	assert.True(t, deployResp.Deployed)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var statusResp ModuleStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statusResp))
	require.Len(t, statusResp.Status, 1)
	assert.Equal(t, "web", statusResp.Status[0].Name)
	assert.Equal(t, "RUNNING", statusResp.Status[0].Status)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/stop_all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDeployTaskFailureReturnsError(t *testing.T) {
	srv := newTestServer(t)

	cmd := TaskDeploymentCommand{
		TaskDefinition: ModuleDefinition{
			Kind:    "task",
			Name:    "migrate",
			Command: []string{"sh", "-c", "exit 1"},
		},
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/tasks/deploy", cmd)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlanBeforeDeploy(t *testing.T) {
	srv := newTestServer(t)

	req := GetPlanRequest{Modules: []ModuleDefinition{
		{Kind: "service", Name: "web", Command: []string{"sh", "-c", "sleep 30"}},
	}}
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/get_plan", req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GetPlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "will_deploy", resp.Plan["web"])
}

func TestLogEndpointNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/log/nonexistent", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "error", errResp.Status)
	assert.Equal(t, 100, errResp.Code)
}

func TestHealthUnknownKeyReturnsEmptyStatus(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/health/nope", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.ProbeStatus)
}
