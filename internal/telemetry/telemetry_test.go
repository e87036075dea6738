package telemetry

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/report"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLink struct {
	malformed, dropped uint64
}

func (l *fakeLink) Malformed() uint64 { return l.malformed }
func (l *fakeLink) Dropped() uint64   { return l.dropped }

func TestObserve(t *testing.T) {
	s, err := NewService(DefaultConfig(), nil)
	require.NoError(t, err)

	s.Observe(report.Reading{Temperature: 41, Permyriad: 6000})
	s.Observe(report.Reading{Temperature: 42, Permyriad: 6400})

	assert.InDelta(t, 42.0, testutil.ToFloat64(s.temperature), 1e-9)
	assert.InDelta(t, 0.64, testutil.ToFloat64(s.duty), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(s.readings), 1e-9)
	assert.Greater(t, testutil.ToFloat64(s.lastReading), 0.0)
}

func TestSetConnected(t *testing.T) {
	s, err := NewService(DefaultConfig(), nil)
	require.NoError(t, err)

	s.SetConnected(true)
	assert.InDelta(t, 1.0, testutil.ToFloat64(s.connected), 1e-9)
	s.SetConnected(false)
	assert.InDelta(t, 0.0, testutil.ToFloat64(s.connected), 1e-9)
}

func TestHandlerExposesLinkCounters(t *testing.T) {
	link := &fakeLink{malformed: 3, dropped: 1}
	s, err := NewService(DefaultConfig(), link)
	require.NoError(t, err)
	s.Observe(report.Reading{Temperature: 30, Permyriad: 2000})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "fanctl_temperature_celsius 30")
	assert.Contains(t, body, "fanctl_fan_duty_ratio 0.2")
	assert.Contains(t, body, "fanctl_malformed_lines_total 3")
	assert.Contains(t, body, "fanctl_dropped_readings_total 1")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Namespace = ""

	_, err := NewService(cfg, nil)
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))
}

func TestServeDisabled(t *testing.T) {
	s, err := NewService(DefaultConfig(), nil)
	require.NoError(t, err)

	assert.NoError(t, s.Serve(context.Background()))
}

func TestServeListener(t *testing.T) {
	s, err := NewService(DefaultConfig(), nil)
	require.NoError(t, err)
	s.Observe(report.Reading{Temperature: 45, Permyriad: 8000})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, l) }()

	url := "http://" + l.Addr().String() + "/metrics"
	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		body = string(b)
		return err == nil && resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)
	assert.True(t, strings.Contains(body, "fanctl_temperature_celsius 45"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeReportsBadAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen = "256.0.0.1:bad"
	s, err := NewService(cfg, nil)
	require.NoError(t, err)

	assert.True(t, errors.HasCode(s.Serve(context.Background()), ErrInit))
}
