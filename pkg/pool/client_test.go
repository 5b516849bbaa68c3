package pool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Workers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client/bc1qtest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"workersCount": 2,
			"workers": [
				{"name": "worker", "sessionId": "s1", "hashRate": 55000,
				 "startTime": "2026-08-28T10:00:00.000Z",
				 "bestDifficulty": 1200.5, "lastSeen": "2026-08-29T09:59:00.000Z"},
				{"name": "nerdaxe", "sessionId": "s2", "hashRate": 480000,
				 "startTime": "2026-08-27T08:00:00.000Z",
				 "bestDifficulty": 90000, "lastSeen": "2026-08-29T09:58:30.000Z"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bc1qtest")
	stats, err := c.Workers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.WorkersCount)
	require.Len(t, stats.Workers, 2)
	assert.Equal(t, "worker", stats.Workers[0].Name)
	assert.Equal(t, 55000.0, stats.Workers[0].HashRate)
	assert.Equal(t, "s2", stats.Workers[1].SessionID)
}

func TestClient_PoolAndNetworkStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/pool":
			w.Write([]byte(`{"totalHashRate": 9.5e12, "totalMiners": 4321,
				"blocksFound": [{"height": 860001, "minerAddress": "bc1qother", "worker": "axe"}]}`))
		case "/network":
			w.Write([]byte(`{"blocks": 860010, "difficulty": 9.1e13, "networkhashps": 6.8e20}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bc1qtest")

	ps, err := c.PoolStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4321, ps.TotalMiners)
	require.Len(t, ps.BlocksFound, 1)
	assert.Equal(t, int64(860001), ps.BlocksFound[0].Height)

	ns, err := c.NetworkStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(860010), ns.Blocks)
}

func TestClient_ErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pool":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bc1qtest")

	_, err := c.PoolStats(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = c.Workers(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "upstream down")
}
