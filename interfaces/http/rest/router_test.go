package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/services"
	"github.com/anmolarora1/em/application/syncengine"
	"github.com/anmolarora1/em/domain/config"
	"github.com/anmolarora1/em/infrastructure/notification"
	"github.com/anmolarora1/em/infrastructure/persistence/memory"
	"github.com/anmolarora1/em/infrastructure/persistence/schema"
	"github.com/anmolarora1/em/interfaces/http/rest/handlers"
	"github.com/anmolarora1/em/pkg/auth"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
	"github.com/anmolarora1/em/pkg/utils"
)

type apiFixture struct {
	server  *httptest.Server
	service *services.ThoughtService
	token   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	clock := utils.NewManualClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	local := memory.NewLocalStore()
	mirror := memory.NewSettingsMirror()
	notifier := notification.NewNotifier(10, logger)

	engineCfg := syncengine.DefaultConfig("client-test")
	engineCfg.RetryInterval = time.Hour
	engine := syncengine.NewEngine(engineCfg, local, memory.NewRemoteStore(), mirror, nil, notifier, clock, nil, logger)
	engine.Start(ctx)
	t.Cleanup(engine.Stop)

	service := services.NewThoughtService(config.DevelopmentDomainConfig(), engine, local, mirror,
		schema.NewDefaultSchemaEvolution(), clock, logger)
	require.NoError(t, service.Load(ctx))

	jwtCfg := auth.JWTConfig{SigningMethod: "HS256", SecretKey: "secret", Issuer: "em", ExpiryTime: time.Hour}
	generator, err := auth.NewJWTGenerator(jwtCfg)
	require.NoError(t, err)
	validator, err := auth.NewJWTValidator(jwtCfg)
	require.NoError(t, err)
	token, err := generator.GenerateToken("user-1", "", "client-test")
	require.NoError(t, err)

	errorHandler := pkgerrors.NewErrorHandler(logger, false)
	router := NewRouter(
		handlers.NewThoughtHandler(service, errorHandler, logger),
		handlers.NewSessionHandler(service, generator, notifier, "client-test", errorHandler, logger),
		service,
		Options{Validator: validator},
		logger,
	)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return &apiFixture{server: server, service: service, token: token}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func childValues(t *testing.T, body map[string]interface{}) []string {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "missing data in %v", body)
	children, _ := data["children"].([]interface{})
	values := make([]string, 0, len(children))
	for _, child := range children {
		values = append(values, child.(map[string]interface{})["value"].(string))
	}
	return values
}

func TestRouter_HealthAndReady(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["data"].(map[string]interface{})["status"])
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)
	f.token = ""

	resp, _ := f.do(t, http.MethodGet, "/api/v1/thoughts", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_ThoughtLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	// Create two root thoughts and one child
	resp, _ := f.do(t, http.MethodPost, "/api/v1/thoughts", handlers.CreateThoughtRequest{Value: "a"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/v1/thoughts", handlers.CreateThoughtRequest{Value: "b"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/v1/thoughts", handlers.CreateThoughtRequest{At: []string{"a"}, Value: "x", InsertNewSubthought: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/v1/thoughts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"a", "b"}, childValues(t, body))

	// Edit
	resp, _ = f.do(t, http.MethodPut, "/api/v1/thoughts", handlers.EditThoughtRequest{Thought: []string{"a", "x"}, NewValue: "y"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = f.do(t, http.MethodGet, "/api/v1/thoughts?context=a", nil)
	assert.Equal(t, []string{"y"}, childValues(t, body))

	resp, body = f.do(t, http.MethodGet, "/api/v1/lexemes/y", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "y", body["data"].(map[string]interface{})["value"])

	// Move down swaps siblings
	resp, _ = f.do(t, http.MethodPost, "/api/v1/thoughts/move-down", handlers.ThoughtRequest{Thought: []string{"a"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = f.do(t, http.MethodGet, "/api/v1/thoughts", nil)
	assert.Equal(t, []string{"b", "a"}, childValues(t, body))

	// Delete removes the subtree
	resp, _ = f.do(t, http.MethodDelete, "/api/v1/thoughts", handlers.ThoughtRequest{Thought: []string{"a"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = f.do(t, http.MethodGet, "/api/v1/thoughts", nil)
	assert.Equal(t, []string{"b"}, childValues(t, body))

	resp, _ = f.do(t, http.MethodGet, "/api/v1/lexemes/y", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_ImportAndTree(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/import", handlers.ImportRequest{Text: "- a\n  - b\n  - c\n- d\n"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/v1/tree?depth=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	nodes := body["data"].([]interface{})
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].(map[string]interface{})["value"])
	assert.Nil(t, nodes[0].(map[string]interface{})["children"])

	_, body = f.do(t, http.MethodGet, "/api/v1/thoughts?context=a", nil)
	assert.Equal(t, []string{"b", "c"}, childValues(t, body))

	resp, _ = f.do(t, http.MethodGet, "/api/v1/tree?depth=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Errors(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPut, "/api/v1/thoughts", handlers.EditThoughtRequest{Thought: []string{"missing"}, NewValue: "z"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/thoughts", handlers.ThoughtRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/thoughts", map[string]interface{}{"value": "a", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_SettingsAndSession(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/settings/Theme", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dark", body["data"].(map[string]interface{})["value"])

	resp, _ = f.do(t, http.MethodPost, "/api/v1/session/login", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user-1", f.service.UserID())

	resp, _ = f.do(t, http.MethodPost, "/api/v1/session/login", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["data"].(map[string]interface{})["authenticated"])

	resp, _ = f.do(t, http.MethodPost, "/api/v1/session/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", f.service.UserID())
}

func TestRouter_IssueToken(t *testing.T) {
	f := newAPIFixture(t)
	f.token = ""

	resp, body := f.do(t, http.MethodPost, "/api/v1/session/token", handlers.TokenRequest{UserID: "user-2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token, _ := body["data"].(map[string]interface{})["token"].(string)
	require.NotEmpty(t, token)

	f.token = token
	resp, _ = f.do(t, http.MethodGet, "/api/v1/thoughts", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ListChildrenPaged(t *testing.T) {
	f := newAPIFixture(t)
	for _, value := range []string{"a", "b", "c"} {
		resp, _ := f.do(t, http.MethodPost, "/api/v1/thoughts", handlers.CreateThoughtRequest{Value: value})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodGet, "/api/v1/thoughts?page=2&page_size=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"c"}, childValues(t, body))
	pagination := body["meta"].(map[string]interface{})["pagination"].(map[string]interface{})
	assert.Equal(t, float64(3), pagination["total"])
	assert.Equal(t, false, pagination["has_next"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/thoughts?page=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
