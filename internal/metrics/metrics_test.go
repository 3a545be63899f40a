package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Attempt("completed")
		m.Step("verify", "committed")
		m.Provision(true)
		m.Fetch("wait", false)
		m.OTPWait(true, time.Second)
		m.FieldCommit("js")
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.Attempt("completed")
	m.Attempt("completed")
	m.Attempt("abandoned")
	m.Provision(false)
	m.Fetch("list", true)
	m.FieldCommit("calendar")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("abandoned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.provisions.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.otpFetches.WithLabelValues("list", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fieldCommits.WithLabelValues("calendar")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.OTPWait(true, 4*time.Second)
	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `enroll_otp_wait_seconds_count{result="found"} 1`))
}
