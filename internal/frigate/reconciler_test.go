package frigate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sua-org/titan-nvr/internal/core"
)

func newTestReconciler(t *testing.T, frigateURL string) (*Reconciler, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frigate.yml")
	return NewReconciler(path, frigateURL, rtspBase, "UTC"), path
}

func TestApply_WritesConfigAndRestarts(t *testing.T) {
	var restarts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/restart", r.URL.Path)
		restarts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec, path := newTestReconciler(t, srv.URL)
	result, err := rec.Apply(context.Background(), []core.CameraRecord{
		camFixture("Front Door", core.ModeMotion),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.CamerasConfigured)
	assert.Equal(t, RestartOK, result.Restart)
	assert.NoError(t, result.RestartErr)
	assert.Equal(t, int32(1), restarts.Load(), "um Apply = um restart")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "front_door")
}

func TestApply_RestartFailureDegradesButKeepsWrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec, path := newTestReconciler(t, srv.URL)
	result, err := rec.Apply(context.Background(), []core.CameraRecord{
		camFixture("Garagem", core.ModeContinuous),
	})
	require.NoError(t, err, "restart degradado não é erro fatal")

	assert.Equal(t, RestartDegraded, result.Restart)
	assert.Error(t, result.RestartErr)

	// A escrita durável permanece: o Frigate lê a config nova quando
	// voltar.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "garagem")
}

func TestApply_FrigateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	rec, path := newTestReconciler(t, srv.URL)
	result, err := rec.Apply(context.Background(), []core.CameraRecord{
		camFixture("Portaria", core.ModeEvents),
	})
	require.NoError(t, err)

	assert.Equal(t, RestartUnavailable, result.Restart)
	assert.Error(t, result.RestartErr)

	_, err = os.Stat(path)
	assert.NoError(t, err, "config escrita mesmo com Frigate fora do ar")
}

func TestApply_ReplacesPreviousDocumentWhole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec, path := newTestReconciler(t, srv.URL)
	ctx := context.Background()

	_, err := rec.Apply(ctx, []core.CameraRecord{camFixture("Antiga", core.ModeMotion)})
	require.NoError(t, err)

	_, err = rec.Apply(ctx, []core.CameraRecord{camFixture("Nova", core.ModeMotion)})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nova")
	assert.NotContains(t, string(data), "antiga", "replace é total, não merge")
}
