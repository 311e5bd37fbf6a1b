package instrument

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Request("auth", "CGROUP", "OK")
	m.Request("auth", "CGROUP", "OK")
	m.Request("msg", "SENDMESSAGE", "FAIL-NOCHANNEL")
	m.Handshake("auth", "ok")
	m.Challenge("FAIL-BADHASH")
	m.RateLimited("msg")
	m.Snapshot("directory", nil)
	m.Snapshot("directory", errors.New("disk"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("auth", "CGROUP", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("msg", "SENDMESSAGE", "FAIL-NOCHANNEL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handshakes.WithLabelValues("auth", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.challenges.WithLabelValues("FAIL-BADHASH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("msg")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshots.WithLabelValues("directory", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshots.WithLabelValues("directory", "error")))
}

func TestMetrics_Connections(t *testing.T) {
	m := New()
	m.ConnOpened("auth")
	m.ConnOpened("auth")
	m.ConnClosed("auth")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections.WithLabelValues("auth")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Request("auth", "CUSER", "OK")
		m.Handshake("auth", "ok")
		m.Challenge("ok")
		m.ConnOpened("auth")
		m.ConnClosed("auth")
		m.RateLimited("auth")
		m.Snapshot("channels", nil)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Request("auth", "GETTOKEN", "OK")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `gophgroups_requests_total{operation="GETTOKEN",result="OK",service="auth"} 1`), body)
}
