package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Installed after auth, the limiter must key authenticated requests by user
// ID: one user draining their bucket must not throttle another user on the
// same remote address.
func TestRateLimiter_PerUserBuckets(t *testing.T) {
	auth := NewAuth("secret", time.Hour, nil)
	rl := NewRateLimiter(0, 1, nil)
	chain := auth.Handler(rl.Handler(okHandler()))

	tokenA, err := auth.IssueToken("user-a", "")
	require.NoError(t, err)
	tokenB, err := auth.IssueToken("user-b", "")
	require.NoError(t, err)

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/quests", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.RemoteAddr = "127.0.0.1:48496"
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send(tokenA))
	assert.Equal(t, http.StatusTooManyRequests, send(tokenA))
	assert.Equal(t, http.StatusOK, send(tokenB))
}

// Anonymous requests share a bucket per remote host, not per TCP connection:
// the ephemeral port must not split the key.
func TestRateLimiter_AnonymousKeyedByHost(t *testing.T) {
	rl := NewRateLimiter(0, 1, nil)
	handler := rl.Handler(okHandler())

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/challenge", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1111"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:2222"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:3333"))
}

func TestRateLimiter_CleanupStops(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	rl.StartCleanup(time.Millisecond)

	fill := func() {
		for i := 0; i < 10001; i++ {
			rl.getLimiter(fmt.Sprintf("key-%d", i))
		}
	}
	size := func() int {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		return len(rl.limiters)
	}

	fill()
	deadline := time.Now().Add(2 * time.Second)
	for size() > 10000 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.LessOrEqual(t, size(), 10000, "cleanup never reset the limiter map")

	rl.Stop()
	time.Sleep(5 * time.Millisecond)

	// After Stop the goroutine is gone, so the map is no longer reaped.
	fill()
	time.Sleep(20 * time.Millisecond)
	assert.Greater(t, size(), 10000)
}
