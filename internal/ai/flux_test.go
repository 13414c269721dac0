package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fluxServer struct {
	*httptest.Server
	polls     atomic.Int32
	submitted atomic.Value
	statusFn  func(poll int32) string
}

func newFluxServer(t *testing.T, statusFn func(poll int32) string) *fluxServer {
	t.Helper()
	fs := &fluxServer{statusFn: statusFn}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /flux-pro-1.1", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fs.submitted.Store(body)
		if r.Header.Get("X-Key") != "bfl-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "task-1"})
	})
	mux.HandleFunc("GET /get_result", func(w http.ResponseWriter, r *http.Request) {
		n := fs.polls.Add(1)
		status := fs.statusFn(n)
		resp := map[string]any{"id": r.URL.Query().Get("id"), "status": status}
		switch status {
		case "Ready":
			resp["result"] = map[string]string{"sample": fs.URL + "/sample.png"}
		case "Error":
			resp["result"] = map[string]string{"error": "nsfw"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /sample.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("PNGDATA"))
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func TestFlux_ReadyAfterPending(t *testing.T) {
	srv := newFluxServer(t, func(n int32) string {
		if n < 3 {
			return "Pending"
		}
		return "Ready"
	})
	p := NewFluxProvider(srv.URL, "bfl-key", "flux-pro-1.1", srv.Client(), time.Millisecond, 10)

	resp := p.GenerateImage(context.Background(), ImageRequest{Prompt: "a cat"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("PNGDATA")), resp.ImageData)
	assert.Equal(t, "flux-pro-1.1", resp.ModelUsed)
	assert.Equal(t, "task-1", resp.Raw["task_id"])
	assert.EqualValues(t, 3, srv.polls.Load())

	body := srv.submitted.Load().(map[string]any)
	assert.EqualValues(t, 1024, body["width"])
	assert.EqualValues(t, 28, body["steps"])
	assert.EqualValues(t, 2, body["safety_tolerance"])
}

func TestFlux_StopsAfterMaxAttempts(t *testing.T) {
	srv := newFluxServer(t, func(int32) string { return "Pending" })
	p := NewFluxProvider(srv.URL, "bfl-key", "flux-pro-1.1", srv.Client(), time.Millisecond, 4)

	resp := p.GenerateImage(context.Background(), ImageRequest{Prompt: "slow"})
	assert.False(t, resp.Success)
	assert.Equal(t, FailureProvider, resp.Failure)
	assert.Contains(t, resp.Error, "timed out")
	assert.EqualValues(t, 4, srv.polls.Load(), "must poll exactly MaxAttempts times")
}

func TestFlux_ErrorStatus(t *testing.T) {
	srv := newFluxServer(t, func(int32) string { return "Error" })
	p := NewFluxProvider(srv.URL, "bfl-key", "flux-pro-1.1", srv.Client(), time.Millisecond, 4)

	resp := p.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	assert.False(t, resp.Success)
	assert.Equal(t, "BFL generation error: nsfw", resp.Error)
	assert.EqualValues(t, 1, srv.polls.Load())
}

func TestFlux_CancelStopsPolling(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := newFluxServer(t, func(int32) string { return "Processing" })
	client := &http.Client{Transport: &http.Transport{}}
	defer client.CloseIdleConnections()

	p := NewFluxProvider(srv.URL, "bfl-key", "flux-pro-1.1", client, 20*time.Millisecond, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan ImageResponse, 1)
	go func() { done <- p.GenerateImage(ctx, ImageRequest{Prompt: "x"}) }()

	require.Eventually(t, func() bool { return srv.polls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case resp := <-done:
		assert.False(t, resp.Success)
		assert.True(t, strings.Contains(resp.Error, "cancel"), resp.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not stop after cancel")
	}
	polls := srv.polls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, polls, srv.polls.Load(), "no polls after cancel")
	srv.Close()
}

func TestFlux_MissingKey(t *testing.T) {
	p := NewFluxProvider("http://127.0.0.1:0", "", "flux-dev", http.DefaultClient, 0, 0)
	resp := p.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	assert.False(t, resp.Success)
	assert.Equal(t, FailureProvider, resp.Failure)
	assert.Equal(t, DefaultFluxMaxAttempt, p.MaxAttempts)
}

func TestFlux_PayloadPerModel(t *testing.T) {
	w := 512
	dev := (&FluxProvider{Model: "flux-dev"}).payload(ImageRequest{Prompt: "p", Width: &w})
	assert.Equal(t, 512, dev["width"])
	assert.Contains(t, dev, "steps")
	assert.NotContains(t, dev, "safety_tolerance")

	other := (&FluxProvider{Model: "flux-schnell"}).payload(ImageRequest{Prompt: "p"})
	assert.NotContains(t, other, "steps")
	assert.NotContains(t, other, "guidance")
}

func TestFlux_ValidateCredentialsAcceptsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Key") == "good" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	good := NewFluxProvider(srv.URL, "good", "flux-dev", srv.Client(), 0, 0)
	assert.NoError(t, good.ValidateCredentials(context.Background()))

	bad := NewFluxProvider(srv.URL, "bad", "flux-dev", srv.Client(), 0, 0)
	assert.Error(t, bad.ValidateCredentials(context.Background()))
}
