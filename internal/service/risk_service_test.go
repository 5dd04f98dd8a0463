package service

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"wisefido-risk/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewRiskService_InMemory(t *testing.T) {
	cfg := memoryConfig(t)
	svc, err := NewRiskService(cfg, zap.NewNop())
	require.NoError(t, err)
	defer svc.Stop()

	require.NotNil(t, svc.Engine())

	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/risk/api/v1/elders/ghost/emergency-assessment", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/risk/api/v1/subjects/elder-1/display-name", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cached":false`)

	w = httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRiskService_StartStopsOnCancel(t *testing.T) {
	svc, err := NewRiskService(memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer svc.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRiskService_StartReturnsAfterInFlightRequests(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.HTTP.Addr = freeAddr(t)
	svc, err := NewRiskService(cfg, zap.NewNop())
	require.NoError(t, err)
	defer svc.Stop()

	entered := make(chan struct{})
	var finished atomic.Bool
	svc.server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		time.Sleep(200 * time.Millisecond)
		finished.Store(true)
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	go func() {
		for i := 0; i < 100; i++ {
			resp, err := http.Get("http://" + cfg.HTTP.Addr + "/slow")
			if err == nil {
				resp.Body.Close()
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the server")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.True(t, finished.Load(), "Start returned before the request drained")
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestSettings(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Risk.Timezone = "America/New_York"
	cfg.Risk.SweepWorkers = 3

	s := Settings(cfg)
	assert.Equal(t, 7*24*time.Hour, s.AlertCoolDown)
	assert.Equal(t, 14, s.DefaultPeriodDays)
	assert.Equal(t, 90, s.MaxPeriodDays)
	assert.Equal(t, 3, s.SweepWorkers)
	assert.Equal(t, "America/New_York", s.Location.String())
}
