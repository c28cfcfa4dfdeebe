package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime/multipart"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/page-votes/internal/handlers"
	"github.com/serroba/page-votes/internal/middleware"
	"github.com/serroba/page-votes/internal/ratelimit"
	"github.com/serroba/page-votes/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testRemoteAddr = "192.168.1.1:12345"
	testUserAgent  = "TestAgent/1.0"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), handlers.NewAPIConfig())
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	headers    map[string]string
	remoteAddr string
	written    []byte
	statusCode int
	method     string
	operation  *huma.Operation
}

func newMockHumaContext() *mockHumaContext {
	return &mockHumaContext{
		headers:    map[string]string{"User-Agent": testUserAgent},
		remoteAddr: testRemoteAddr,
		method:     "GET",
	}
}

func (m *mockHumaContext) Operation() *huma.Operation {
	return m.operation
}
func (m *mockHumaContext) Context() context.Context              { return context.Background() }
func (m *mockHumaContext) TLS() *tls.ConnectionState             { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion            { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                        { return m.method }
func (m *mockHumaContext) Host() string                          { return "votes.example" }
func (m *mockHumaContext) RemoteAddr() string                    { return m.remoteAddr }
func (m *mockHumaContext) URL() url.URL                          { return url.URL{Path: "/votes"} }
func (m *mockHumaContext) Param(_ string) string                 { return "" }
func (m *mockHumaContext) Query(_ string) string                 { return "" }
func (m *mockHumaContext) Header(name string) string             { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string)) {}
func (m *mockHumaContext) BodyReader() io.Reader                 { return nil }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) {
	return nil, errMultipartNotSupported
}
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error { return nil }
func (m *mockHumaContext) SetStatus(code int)                { m.statusCode = code }
func (m *mockHumaContext) Status() int                       { return m.statusCode }
func (m *mockHumaContext) AppendHeader(_, _ string)          {}
func (m *mockHumaContext) SetHeader(_, _ string)             {}
func (m *mockHumaContext) BodyWriter() io.Writer             { return &mockBodyWriter{ctx: m} }

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (n int, err error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

type failingStore struct{}

func (failingStore) Record(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store error")
}

// recordingStore remembers the keys it was asked to record.
type recordingStore struct {
	ratelimit.Store

	keys []string
}

func (s *recordingStore) Record(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.keys = append(s.keys, key)

	return s.Store.Record(ctx, key, window)
}

type fixedResolver []ratelimit.Scope

func (r fixedResolver) Resolve(_ huma.Context) []ratelimit.Scope {
	return r
}

func newLimiterMiddleware(
	s ratelimit.Store,
	policy *ratelimit.Policy,
	scopes ...ratelimit.Scope,
) func(huma.Context, func(huma.Context)) {
	limiter := ratelimit.NewPolicyLimiter(s, policy)

	return middleware.PolicyRateLimiter(newTestAPI(), limiter, fixedResolver(scopes), zap.NewNop())
}

// serve runs ctx through mw and reports whether the request reached the handler.
func serve(mw func(huma.Context, func(huma.Context)), ctx *mockHumaContext) bool {
	called := false

	mw(ctx, func(_ huma.Context) { called = true })

	return called
}

func TestPolicyRateLimiter(t *testing.T) {
	t.Run("allows request when under limit", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 10, time.Minute).Build()
		mw := newLimiterMiddleware(store.NewRateLimitMemoryStore(), policy, ratelimit.ScopeGlobal)

		assert.True(t, serve(mw, newMockHumaContext()))
	})

	t.Run("returns 429 with the error envelope when limited", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeWrite, 1, time.Minute).Build()
		mw := newLimiterMiddleware(store.NewRateLimitMemoryStore(), policy, ratelimit.ScopeWrite)

		serve(mw, newMockHumaContext())

		ctx := newMockHumaContext()

		assert.False(t, serve(mw, ctx))
		assert.Equal(t, 429, ctx.statusCode)
		assert.JSONEq(t,
			`{"error":"rate limit exceeded: write scope, 2/1 requests in 1m0s"}`,
			string(ctx.written))
	})

	t.Run("applies different limits per scope", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()
		policy := ratelimit.NewPolicyBuilder().
			AddLimit(ratelimit.ScopeRead, 5, time.Minute).
			AddLimit(ratelimit.ScopeChallenge, 2, time.Minute).
			Build()
		readMW := newLimiterMiddleware(s, policy, ratelimit.ScopeRead)
		challengeMW := newLimiterMiddleware(s, policy, ratelimit.ScopeChallenge)

		for i := range 5 {
			assert.True(t, serve(readMW, newMockHumaContext()), "read request %d", i+1)
		}

		for i := range 2 {
			assert.True(t, serve(challengeMW, newMockHumaContext()), "challenge request %d", i+1)
		}

		assert.False(t, serve(challengeMW, newMockHumaContext()))
	})

	t.Run("keys clients by IP and user agent", func(t *testing.T) {
		rec := &recordingStore{Store: store.NewRateLimitMemoryStore()}
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 10, time.Minute).Build()
		mw := newLimiterMiddleware(rec, policy, ratelimit.ScopeGlobal)

		same := newMockHumaContext()
		same.remoteAddr = "192.168.1.1:54321"

		otherAgent := newMockHumaContext()
		otherAgent.headers["User-Agent"] = "OtherAgent/2.0"

		forwarded := newMockHumaContext()
		forwarded.headers["X-Forwarded-For"] = "203.0.113.195, 70.41.3.18"

		forwardedAgain := newMockHumaContext()
		forwardedAgain.remoteAddr = "10.0.0.2:1"
		forwardedAgain.headers["X-Forwarded-For"] = "203.0.113.195"

		for _, ctx := range []*mockHumaContext{newMockHumaContext(), same, otherAgent, forwarded, forwardedAgain} {
			serve(mw, ctx)
		}

		require.Len(t, rec.keys, 5)
		assert.Equal(t, rec.keys[0], rec.keys[1], "port must not matter")
		assert.NotEqual(t, rec.keys[0], rec.keys[2], "user agent must matter")
		assert.NotEqual(t, rec.keys[0], rec.keys[3])
		assert.Equal(t, rec.keys[3], rec.keys[4], "first forwarded address wins")
	})

	t.Run("returns 500 on store error", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 10, time.Minute).Build()
		mw := newLimiterMiddleware(failingStore{}, policy, ratelimit.ScopeGlobal)
		ctx := newMockHumaContext()

		assert.False(t, serve(mw, ctx))
		assert.Equal(t, 500, ctx.statusCode)
		assert.JSONEq(t, `{"error":"internal server error"}`, string(ctx.written))
	})

	t.Run("skips limiting when disabled via metadata", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newLimiterMiddleware(failingStore{}, policy, ratelimit.ScopeGlobal)
		op := &huma.Operation{
			Path:     "/health",
			Metadata: map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true}},
		}

		for range 3 {
			ctx := newMockHumaContext()
			ctx.operation = op

			assert.True(t, serve(mw, ctx))
		}
	})

	t.Run("applies route limits from metadata instead of the policy", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 100, time.Minute).Build()
		mw := newLimiterMiddleware(store.NewRateLimitMemoryStore(), policy, ratelimit.ScopeGlobal)
		op := &huma.Operation{
			Path: "/vote",
			Metadata: map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 2}},
			}},
		}

		results := make([]bool, 0, 3)

		for range 3 {
			ctx := newMockHumaContext()
			ctx.operation = op
			results = append(results, serve(mw, ctx))
		}

		assert.Equal(t, []bool{true, true, false}, results)
	})
}
