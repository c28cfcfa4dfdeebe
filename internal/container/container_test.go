package container_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/page-votes/internal/container"
	"github.com/serroba/page-votes/internal/health"
	"github.com/serroba/page-votes/internal/messaging"
	"github.com/serroba/page-votes/internal/pow"
	"github.com/serroba/page-votes/internal/ratelimit"
	"github.com/serroba/page-votes/internal/votes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPage = "https://example.com/article"

func testOptions() *container.Options {
	return &container.Options{
		Port:         8888,
		Difficulty:   1,
		Secret:       "test-secret",
		ChallengeTTL: 20,
		Backend:      "memory",
		RedisAddr:    "localhost:6379",
		Partitions:   8,
		ReplayGuard:  "memory",
		Events:       "memory",
		RateLimit:    "memory",
		LogFormat:    "console",
	}
}

func newInjector(t *testing.T, opts *container.Options) *do.Injector {
	t.Helper()

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.ServerPackages(injector)

	t.Cleanup(func() { _ = injector.Shutdown() })

	return injector
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *container.Options)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(_ *container.Options) {}},
		{name: "missing secret", mutate: func(o *container.Options) { o.Secret = "" }, wantErr: "secret is required"},
		{name: "negative difficulty", mutate: func(o *container.Options) { o.Difficulty = -1 }, wantErr: "difficulty"},
		{name: "difficulty above digest length", mutate: func(o *container.Options) { o.Difficulty = 65 }, wantErr: "difficulty"},
		{name: "zero ttl", mutate: func(o *container.Options) { o.ChallengeTTL = 0 }, wantErr: "challenge-ttl"},
		{name: "unknown backend", mutate: func(o *container.Options) { o.Backend = "mysql" }, wantErr: "backend"},
		{name: "unknown replay guard", mutate: func(o *container.Options) { o.ReplayGuard = "disk" }, wantErr: "replay-guard"},
		{name: "unknown events", mutate: func(o *container.Options) { o.Events = "kafka" }, wantErr: "events"},
		{name: "unknown rate limit", mutate: func(o *container.Options) { o.RateLimit = "on" }, wantErr: "rate-limit"},
		{name: "unknown log format", mutate: func(o *container.Options) { o.LogFormat = "xml" }, wantErr: "log-format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(opts)

			err := opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOptionsDefaultRateLimitIsOff(t *testing.T) {
	field, ok := reflect.TypeOf(container.Options{}).FieldByName("RateLimit")
	require.True(t, ok)

	assert.Equal(t, "off", field.Tag.Get("default"))
}

func TestPowConfigRejectsInvalidOptions(t *testing.T) {
	opts := testOptions()
	opts.Secret = ""

	injector := newInjector(t, opts)

	_, err := do.Invoke[pow.Config](injector)
	assert.Error(t, err)
}

func TestMemoryWiring(t *testing.T) {
	injector := newInjector(t, testOptions())

	store, err := do.Invoke[votes.Store](injector)
	require.NoError(t, err)
	assert.NotNil(t, store)

	checker, err := do.Invoke[health.Checker](injector)
	require.NoError(t, err)
	require.NoError(t, checker.Ping(context.Background()))

	guard, err := do.Invoke[pow.ReplayGuard](injector)
	require.NoError(t, err)
	assert.NotEqual(t, pow.NoReplayGuard{}, guard)

	_, err = do.Invoke[*ratelimit.PolicyLimiter](injector)
	assert.NoError(t, err)
}

func TestRateLimitOff(t *testing.T) {
	opts := testOptions()
	opts.RateLimit = "off"
	opts.ReplayGuard = "off"

	injector := newInjector(t, opts)

	_, err := do.Invoke[*ratelimit.PolicyLimiter](injector)
	assert.Error(t, err)

	guard, err := do.Invoke[pow.ReplayGuard](injector)
	require.NoError(t, err)
	assert.Equal(t, pow.NoReplayGuard{}, guard)

	_, err = do.Invoke[huma.API](injector)
	assert.NoError(t, err)
}

func TestServerVoteFlow(t *testing.T) {
	injector := newInjector(t, testOptions())

	_ = do.MustInvoke[huma.API](injector)
	router := do.MustInvoke[*chi.Mux](injector)

	group := do.MustInvoke[*messaging.ConsumerGroup](injector)
	require.NoError(t, group.Start(context.Background()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/challenge?url="+url.QueryEscape(testPage), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var challenge struct {
		URL        string `json:"url"`
		Token      string `json:"token"`
		Difficulty int    `json:"difficulty"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &challenge))
	assert.Equal(t, 1, challenge.Difficulty)

	nonce, err := pow.Solve(context.Background(), challenge.Token, challenge.Difficulty)
	require.NoError(t, err)

	vote := func() *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]any{
			"url":   testPage,
			"like":  true,
			"token": challenge.Token,
			"nonce": nonce,
		})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/vote", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)

		return rec
	}

	rec = vote()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"likes":1`)

	rec = vote()
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), pow.ErrTokenReused.Error())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/votes?url="+url.QueryEscape(testPage), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"likes":1`)
	assert.Contains(t, rec.Body.String(), `"dislikes":0`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJSONLogger(t *testing.T) {
	opts := testOptions()
	opts.LogFormat = "json"

	injector := newInjector(t, opts)

	logger, err := do.Invoke[*zap.Logger](injector)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
