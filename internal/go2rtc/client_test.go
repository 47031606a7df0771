package go2rtc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddStream_SendsSrcAndURL(t *testing.T) {
	var gotSrc, gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/streams", r.URL.Path)
		gotSrc = r.URL.Query().Get("src")
		gotURL = r.URL.Query().Get("url")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.AddStream(context.Background(), "front_door_main", "rtsp://cam/main"))

	assert.Equal(t, "front_door_main", gotSrc)
	assert.Equal(t, "rtsp://cam/main", gotURL)
}

func TestRemoveStream_NotFoundIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	assert.NoError(t, c.RemoveStream(context.Background(), "fantasma_main"),
		"remover id ausente é no-op")
}

func TestRemoveStream_ServerErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.RemoveStream(context.Background(), "front_door_main")
	require.Error(t, err)
	assert.False(t, IsUnreachable(err), "erro de status não é falha de rede")
}

func TestNetworkFailureWrapsErrUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, 500*time.Millisecond)
	ctx := context.Background()

	err := c.AddStream(ctx, "x", "rtsp://cam/x")
	assert.True(t, IsUnreachable(err))

	_, err = c.Streams(ctx)
	assert.True(t, IsUnreachable(err))

	_, err = c.GetConfig(ctx)
	assert.True(t, IsUnreachable(err))

	assert.False(t, c.Ping(ctx))
}

func TestGetConfig_EmptyDocumentGetsUsableStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "api:\n  listen: :1984\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	cfg, err := c.GetConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg.Streams, "seção ausente vira mapa vazio, não nil")
	assert.Empty(t, cfg.Streams)
}

func TestPatchStreams_SendsYAMLBody(t *testing.T) {
	var body []byte
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/config", r.URL.Path)
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.PatchStreams(context.Background(), map[string]string{
		"front_door_main": "rtsp://cam/main",
	})
	require.NoError(t, err)

	assert.Equal(t, "text/yaml", contentType)
	assert.Contains(t, string(body), "front_door_main: rtsp://cam/main")
}

func TestStream_HasData(t *testing.T) {
	assert.False(t, Stream{}.HasData())
	assert.False(t, Stream{Producers: []Producer{{Recv: 0}}}.HasData())
	assert.True(t, Stream{Producers: []Producer{{Recv: 0}, {Recv: 512}}}.HasData())
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://go2rtc:1984/", time.Second)
	assert.Equal(t, "http://go2rtc:1984", c.BaseURL())
}
