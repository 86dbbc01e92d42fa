package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/bouncer/sim/game"
)

func testConfig(url string) Config {
	cfg := DefaultConfig(url)
	cfg.BackoffFactor = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.Retries = 3
	return cfg
}

func TestClient_Start(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/new-game", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("scenario"))
		assert.Equal(t, "p-1", r.URL.Query().Get("playerId"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"gameId":"g-1","constraints":[{"attribute":"young","minCount":600}],
			"attributeStatistics":{"relativeFrequencies":{"young":0.3},"correlations":{}}}`)
	}))
	defer server.Close()

	resp, err := NewClient(testConfig(server.URL + "/")).Start(context.Background(), 2, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "g-1", resp.GameID)
	assert.Equal(t, []game.Constraint{{Attribute: "young", MinCount: 600}}, resp.Constraints)
}

func TestClient_DecideAndNext_AcceptParam(t *testing.T) {
	accept, reject := true, false
	tests := []struct {
		name   string
		accept *bool
		want   string
		has    bool
	}{
		{"first person has no decision", nil, "", false},
		{"accept", &accept, "true", true},
		{"reject", &reject, "false", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				assert.Equal(t, "g-1", q.Get("gameId"))
				assert.Equal(t, "4", q.Get("personIndex"))
				_, has := q["accept"]
				assert.Equal(t, tt.has, has)
				assert.Equal(t, tt.want, q.Get("accept"))
				_, _ = fmt.Fprint(w, `{"status":"running","admittedCount":1,"rejectedCount":3,
					"nextPerson":{"personIndex":5,"attributes":{"young":true}}}`)
			}))
			defer server.Close()

			resp, err := NewClient(testConfig(server.URL)).DecideAndNext(context.Background(), "g-1", 4, tt.accept)
			require.NoError(t, err)
			assert.True(t, resp.Running())
			assert.Equal(t, 5, resp.NextPerson.PersonIndex)
			assert.True(t, resp.NextPerson.Attributes["young"])
		})
	}
}

func TestClient_RetriesTransientStatuses(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			// GIVEN a server that fails twice before answering
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= 2 {
					w.WriteHeader(code)
					return
				}
				_, _ = fmt.Fprint(w, `{"status":"completed","admittedCount":1000,"rejectedCount":812}`)
			}))
			defer server.Close()

			// WHEN the client asks once
			resp, err := NewClient(testConfig(server.URL)).DecideAndNext(context.Background(), "g", 0, nil)

			// THEN it retried through the failures
			require.NoError(t, err)
			assert.Equal(t, game.StatusCompleted, resp.Status)
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestClient_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, `{"status":"failed","reason":"too many rejections"}`)
	}))
	defer server.Close()

	resp, err := NewClient(testConfig(server.URL)).DecideAndNext(context.Background(), "g", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "too many rejections", resp.Reason)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL)).Start(context.Background(), 1, "p")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Contains(t, se.Body, "maintenance")
	// first attempt plus 3 retries
	assert.Equal(t, int32(4), calls.Load())
}

func TestClient_PermanentFailuresAreNotRetried(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { _, _ = fmt.Fprint(w, `{"status":`) }},
		{"invalid payload", func(w http.ResponseWriter, r *http.Request) { _, _ = fmt.Fprint(w, `{"status":"paused"}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			_, err := NewClient(testConfig(server.URL)).DecideAndNext(context.Background(), "g", 0, nil)
			assert.Error(t, err)
			assert.False(t, IsRetryable(err))
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestClient_ContextCancelStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.BackoffFactor = time.Hour
	cfg.MaxBackoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewClient(cfg).Start(ctx, 1, "p")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   int
		ok     bool
	}{
		{"", 0, false},
		{"3", 3, true},
		{"-2", 0, true},
		{"soon", 0, false},
		{time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := retryAfter(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
