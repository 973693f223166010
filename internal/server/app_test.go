package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/taskboard/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:" + t.Name() + "?mode=memory&cache=shared"
	c.SigningKey = "0123456789abcdef0123456789abcdef"
	c.Issuer = "taskboard"
	c.Audience = "taskboard-web"
	c.LogLevel = "error"
	c.ShutdownTimeout = 2 * time.Second
	return c
}

func TestNewApp_SQLiteServesHTTP(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { app.closeResources(context.Background()) })

	h := app.http.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"ann@example.com","password":"pw-123456","displayName":"Ann"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "refreshToken")
}

func TestNewApp_RedisStoreAndRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)

	c := testConfig(t)
	c.TokenStore = config.TokenStoreRedis
	c.RedisAddr = mr.Addr()
	c.RateLimitPerMinute = 1

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { app.closeResources(context.Background()) })

	require.NotNil(t, app.rdb)
	require.NoError(t, app.health(context.Background()))

	h := app.http.Handler()
	login := func() int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"nobody@example.com","password":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c := testConfig(t)
	c.TokenStore = config.TokenStoreRedis
	c.RedisAddr = addr

	_, err := NewApp(context.Background(), c)
	require.ErrorContains(t, err, "redis ping")
}

func TestNewApp_BadDriver(t *testing.T) {
	c := testConfig(t)
	c.DatabaseDriver = "oracle"

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ReportsListenError(t *testing.T) {
	c := testConfig(t)
	c.EndpointAddrGRPC = "bad::addr"

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorContains(t, err, "grpc server")
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after listen error")
	}
}
