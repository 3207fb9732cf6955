package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.APIRequests.WithLabelValues("list_peers", "ok").Inc()
	m.DuplicatesSuppressed.Inc()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `nchat_api_requests_total{op="list_peers",result="ok"} 1`))
	assert.True(t, strings.Contains(string(body), "nchat_thread_duplicates_suppressed_total 1"))
}

func TestOrNop(t *testing.T) {
	m := OrNop(nil)
	require.NotNil(t, m)
	m.ThreadAppends.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ThreadAppends))

	same := New(nil)
	assert.Same(t, same, OrNop(same))
}
