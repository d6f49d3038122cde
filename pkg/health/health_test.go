package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func probe(t *testing.T, h *Health, path string) (int, statusResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLive(t *testing.T) {
	t.Run("NoChecks", func(t *testing.T) {
		code, body := probe(t, New(), "/livez")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
	})

	t.Run("BelowThreshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("flaky", time.Second, failing("temporary"))
		runN(h.liveness[0], failureThreshold-1)

		code, _ := probe(t, h, "/livez")
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("Failing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("goroutines", time.Second, failing("too many"))
		runN(h.liveness[0], failureThreshold)

		code, body := probe(t, h, "/livez")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "too many", body.Checks["goroutines"])
	})
}

func TestReady(t *testing.T) {
	t.Run("NotReadyUntilSet", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("sqlite", time.Second, passing())

		code, body := probe(t, h, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body.Checks, "_readiness")

		h.SetReady(true)
		code, _ = probe(t, h, "/readyz")
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("OneStoreDown", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, PingCheck(pinger{}))
		h.AddReadinessCheck("redis", time.Second, PingCheck(pinger{err: errors.New("connection refused")}))
		h.SetReady(true)
		runN(h.readiness[0], failureThreshold)
		runN(h.readiness[1], failureThreshold)

		code, body := probe(t, h, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body.Checks["redis"], "connection refused")
		assert.NotContains(t, body.Checks, "postgres")
		assert.False(t, h.IsReady())
	})
}

func TestCheckRecovers(t *testing.T) {
	down := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	c := h.liveness[0]

	assert.Nil(t, c.err())
	runN(c, failureThreshold)
	assert.False(t, c.healthy.Load())
	assert.EqualError(t, c.err(), "down")

	down = false
	runN(c, successThreshold)
	assert.True(t, c.healthy.Load())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failing("err"))
	h.AddReadinessCheck("ready", time.Second, passing())
	h.SetReady(true)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)
	h.Start(context.Background(), 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
			}
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
