package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeRoutes(t *testing.T) {
	m := newTestMetrics()
	m.ModulesRegistered.Set(2)
	h := NewServer(0, m).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		code   int
		body   string
	}{
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "modules_registered 2"},
		{"healthz", http.MethodGet, "/healthz", http.StatusOK, "ok"},
		{"index", http.MethodGet, "/", http.StatusOK, "/metrics"},
		{"unknown path", http.MethodGet, "/debug", http.StatusNotFound, ""},
		{"wrong method", http.MethodPost, "/metrics", http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	s := NewServer(0, newTestMetrics())
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Start())

	url := "http://127.0.0.1:" + strconv.Itoa(boundPort(t, s)) + "/healthz"
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	http.DefaultClient.CloseIdleConnections()
	_, err = http.Get(url)
	assert.Error(t, err)
}

func TestServerStartReportsBindFailure(t *testing.T) {
	first := NewServer(0, newTestMetrics())
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	second := NewServer(boundPort(t, first), newTestMetrics())
	assert.Error(t, second.Start())
}

func boundPort(t *testing.T, s *Server) int {
	t.Helper()
	_, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	n, err := strconv.Atoi(port)
	require.NoError(t, err)
	return n
}
