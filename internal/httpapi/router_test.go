package httpapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/postcraft/internal/ai"
	"github.com/suPer8Hu/postcraft/internal/config"
	"github.com/suPer8Hu/postcraft/internal/db"
	"github.com/suPer8Hu/postcraft/internal/httpapi/handlers"
	"github.com/suPer8Hu/postcraft/internal/media"
	"github.com/suPer8Hu/postcraft/internal/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubText struct{ model string }

func (s stubText) Name() string                              { return "stub" }
func (s stubText) ValidateCredentials(context.Context) error { return nil }
func (s stubText) Generate(_ context.Context, req ai.TextRequest) ai.TextResponse {
	return ai.TextResponse{Content: "echo: " + req.Prompt, ModelUsed: s.model, Provider: "stub", Success: true}
}

type memRevoker struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (m *memRevoker) Revoke(_ context.Context, jti string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[jti] = true
	return nil
}

func (m *memRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[jti], nil
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *fakePublisher) PublishJob(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	pub    *fakePublisher
	store  *media.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	reg := ai.NewRegistry()
	reg.Register(ai.Descriptor{
		Capability: ai.CapabilityText,
		Name:       "stub",
		Models:     []string{"stub-1"},
		New:        func(_, model string) ai.Provider { return stubText{model: model} },
	})

	promReg := prometheus.NewRegistry()
	rec, err := metrics.New(promReg)
	require.NoError(t, err)

	cfg := config.Config{
		JWTSecret:          "test-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		EncryptionKey:      "test-encryption-key",
		MaxUploadMB:        1,
		ImportSuccessRatio: 0.5,
	}
	pub := &fakePublisher{}
	store := media.NewMemoryStore("http://media.test")
	h, err := handlers.NewHandler(gdb, cfg, reg, handlers.Infra{
		Revoker:   &memRevoker{ids: map[string]bool{}},
		Publisher: pub,
		Media:     store,
		Metrics:   rec,
	})
	require.NoError(t, err)

	return &testServer{
		t:      t,
		engine: NewRouter(h, Options{Gatherer: promReg}),
		pub:    pub,
		store:  store,
	}
}

func (s *testServer) do(method, path, token string, body io.Reader, contentType string, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(method, path, token string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	w := s.do(method, path, token, r, "application/json", headers...)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

// login registers a fresh user and returns its access and refresh tokens.
func (s *testServer) login(name string) (string, string) {
	s.t.Helper()
	w, _ := s.json(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "pw-" + name,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w, env := s.json(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": name, "password": "pw-" + name,
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	pair := decode[struct {
		Access  string `json:"access_token"`
		Refresh string `json:"refresh_token"`
	}](s.t, env.Data)
	return pair.Access, pair.Refresh
}

type idOnly struct {
	ID uint64 `json:"id"`
}

func TestRouter_AuthFlow(t *testing.T) {
	s := newTestServer(t)

	w, env := s.json(http.MethodGet, "/api/v1/prompts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 40101, env.Code)

	access, refresh := s.login("alice")

	w, env = s.json(http.MethodGet, "/api/v1/auth/me", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[struct {
		Username string `json:"username"`
	}](t, env.Data)
	assert.Equal(t, "alice", me.Username)

	w, _ = s.json(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.json(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, w.Code)
	fresh := decode[struct {
		Access string `json:"access_token"`
	}](t, env.Data).Access

	w, _ = s.json(http.MethodPost, "/api/v1/auth/logout", fresh, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.json(http.MethodGet, "/api/v1/auth/me", fresh, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token revoked", env.Message)

	// the refresh token was rotated, so the old one no longer works
	w, _ = s.json(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	s := newTestServer(t)

	w, env := s.json(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, env.Code)

	w, env = s.json(http.MethodDelete, "/ping", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, 40500, env.Code)

	w = s.do(http.MethodGet, "/ping", "", nil, "", "X-Request-ID", "req-123")
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestRouter_GenerateTextAndMetrics(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("bob")

	w, env := s.json(http.MethodPost, "/api/v1/prompts", token, map[string]any{
		"name": "weekly", "details": "Write about {persona}",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	promptID := decode[idOnly](t, env.Data).ID

	w, env = s.json(http.MethodPost, "/api/v1/models", token, map[string]any{
		"provider": "stub", "model_id": "stub-1", "model_type": "text",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	modelID := decode[idOnly](t, env.Data).ID

	w, env = s.json(http.MethodPost, "/api/v1/generate/text", token, map[string]any{
		"prompt_id": promptID, "model_config_id": modelID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[struct {
		Content   string `json:"content"`
		PromptID  uint64 `json:"prompt_id"`
		RequestID string `json:"request_id"`
		Success   bool   `json:"success"`
	}](t, env.Data)
	assert.True(t, out.Success)
	assert.Equal(t, "echo: Write about {persona}", out.Content)
	assert.Equal(t, promptID, out.PromptID)
	assert.NotEmpty(t, out.RequestID)

	w, env = s.json(http.MethodPost, "/api/v1/generate/text", token, map[string]any{
		"prompt_id": promptID, "model_config_id": 999,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40010, env.Code)
	assert.Equal(t, "Model configuration with ID 999 not found", env.Message)

	// someone else cannot use bob's prompt
	other, _ := s.login("carol")
	w, env = s.json(http.MethodPost, "/api/v1/generate/text", other, map[string]any{
		"prompt_id": promptID, "model_config_id": modelID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "not found")

	w = s.do(http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `postcraft_provider_requests_total{capability="text",outcome="success",provider="stub"} 1`)
}

func TestRouter_AsyncJobs(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("dave")

	_, env := s.json(http.MethodPost, "/api/v1/prompts", token, map[string]any{"name": "p", "details": "d"})
	promptID := decode[idOnly](t, env.Data).ID

	body := map[string]any{"prompt_id": promptID, "model_config_id": 1}
	w, env := s.json(http.MethodPost, "/api/v1/generate/text/async", token, body, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	first := decode[struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}](t, env.Data)
	assert.Equal(t, "queued", first.Status)
	assert.Len(t, first.JobID, 26)

	w, env = s.json(http.MethodPost, "/api/v1/generate/text/async", token, body, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, w.Code)
	again := decode[struct {
		JobID string `json:"job_id"`
	}](t, env.Data)
	assert.Equal(t, first.JobID, again.JobID)
	assert.Equal(t, []string{first.JobID}, s.pub.ids)

	w, _ = s.json(http.MethodPost, "/api/v1/generate/text/async", token, body, "Idempotency-Key", strings.Repeat("k", 129))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.json(http.MethodGet, "/api/v1/generate/jobs/"+first.JobID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	other, _ := s.login("erin")
	w, _ = s.json(http.MethodGet, "/api/v1/generate/jobs/"+first.JobID, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_PostsLifecycleAndExport(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("frank")

	w, env := s.json(http.MethodPost, "/api/v1/posts", token, map[string]any{"content": "launch, day"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[idOnly](t, env.Data).ID
	base := fmt.Sprintf("/api/v1/posts/%d", id)

	w, _ = s.json(http.MethodPost, base+"/publish", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.json(http.MethodPost, base+"/archive", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, env = s.json(http.MethodPost, base+"/archive", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "post is already archived", env.Message)

	w, env = s.json(http.MethodPost, "/api/v1/posts/bulk/restore", token, map[string]any{"post_ids": []uint64{id}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[struct {
		N int `json:"restored_count"`
	}](t, env.Data).N)

	// media upload
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "cover.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())
	w = s.do(http.MethodPost, base+"/media", token, &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.json(http.MethodGet, "/api/v1/posts?status=published&is_archived=false", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Total int64 `json:"total"`
	}](t, env.Data)
	assert.EqualValues(t, 1, list.Total)

	w, _ = s.json(http.MethodGet, "/api/v1/posts?status=live", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/posts/export/csv", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "posts_export_")
	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "launch, day", rows[1][1])
	assert.Equal(t, "published", rows[1][2])
	assert.True(t, strings.HasPrefix(rows[1][7], "http://media.test/posts/"))

	other, _ := s.login("gina")
	w, _ = s.json(http.MethodGet, base, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ImportAndPersona(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("hank")

	w, env := s.json(http.MethodPost, "/api/v1/import", token, map[string]any{
		"tags":          []map[string]string{{"name": "Holiday"}},
		"customer_info": []map[string]string{{"name": "Pain", "details": `[{"prompt":"Q1","response":"A1"}]`}},
		"prompts":       []map[string]any{{"name": "promo", "details": "x", "tag": "Holiday"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		Success bool     `json:"success"`
		Prompts int      `json:"prompts_imported"`
		Errors  []string `json:"errors"`
	}](t, env.Data)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Prompts)
	assert.Empty(t, res.Errors)

	w, env = s.json(http.MethodGet, "/api/v1/customer-info/Pain", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "A1")

	w, _ = s.json(http.MethodGet, "/api/v1/customer-info/Horoscope", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// files variant
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("tags_file", "tags.json")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(`[{"name":"Spring"}]`))
	require.NoError(t, mw.Close())
	w = s.do(http.MethodPost, "/api/v1/import/files", token, &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"tags_imported":1`)

	w, env = s.json(http.MethodGet, "/api/v1/tags", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Spring")
}

func TestRouter_OCRProvidersAndCatalogue(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.login("ivy")

	w, env := s.json(http.MethodGet, "/api/v1/models/providers/list", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"stub"`)

	w, env = s.json(http.MethodGet, "/api/v1/ocr/providers", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"providers":[]}`, string(env.Data))
}
