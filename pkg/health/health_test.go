package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func runTimes(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func probe(t *testing.T, h *Health, path string) (int, string) {
	t.Helper()
	r := chi.NewRouter()
	h.Routes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w.Code, w.Body.String()
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		fails    int
		wantCode int
		wantBody string
	}{
		{"healthy by default", 0, http.StatusOK, `{"status":"ok"}`},
		{"below threshold", 2, http.StatusOK, `{"status":"ok"}`},
		{
			"past threshold", 3, http.StatusServiceUnavailable,
			`{"status":"unhealthy","checks":{"postgres":"connection refused"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("postgres", time.Second, failingCheck("connection refused"))
			runTimes(h.liveness[0], tt.fails)

			code, body := probe(t, h, "/livez")
			assert.Equal(t, tt.wantCode, code)
			assert.JSONEq(t, tt.wantBody, body)
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.AddReadinessCheck("redis", time.Second, failingCheck("i/o timeout"))

	code, body := probe(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, body)

	h.SetReady(true)
	code, _ = probe(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	runTimes(h.readiness[1], 3)
	code, body = probe(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"redis":"i/o timeout"}}`, body)
	assert.False(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCheckThresholds(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}, FailureThreshold(2), SuccessThreshold(2))
	c := h.liveness[0]

	assert.Nil(t, c.lastError())
	runTimes(c, 2)
	assert.False(t, c.healthy.Load())
	assert.EqualError(t, c.lastError(), "down")

	failing = false
	runTimes(c, 1)
	assert.False(t, c.healthy.Load(), "one success is not enough")
	runTimes(c, 1)
	assert.True(t, c.healthy.Load())
	assert.NoError(t, c.lastError())
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck("redis", pinger{})(context.Background()))

	err := PingCheck("redis", pinger{err: errors.New("refused")})(context.Background())
	assert.EqualError(t, err, "ping redis: refused")
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())
	h.AddReadinessCheck("postgres", time.Second, failingCheck("err"), FailureThreshold(1))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				probe(t, h, "/livez")
				probe(t, h, "/readyz")
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
