package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/rtmirror/internal/config"
	"grimm.is/rtmirror/internal/events"
	"grimm.is/rtmirror/internal/rtconf"
	"grimm.is/rtmirror/internal/testutil"
)

type recordingServer struct {
	mu    sync.Mutex
	calls *[]string
	name  string
	err   error
	block bool
}

func (s *recordingServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	*s.calls = append(*s.calls, s.name)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func TestMetricsServer_ServesPrometheus(t *testing.T) {
	srv := newMetricsServer()
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# TYPE")

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestShutdown_StopsServersThenDestroysMirror(t *testing.T) {
	fake := rtconf.NewFakeTransport()
	mirror, err := rtconf.Create(fake.Opener(), rtconf.WithLogger(testutil.QuietLogger()))
	require.NoError(t, err)

	var calls []string
	servers := []shutdowner{
		&recordingServer{calls: &calls, name: "api"},
		&recordingServer{calls: &calls, name: "metrics", err: errors.New("boom")},
	}

	err = shutdown(time.Second, mirror, servers)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, []string{"api", "metrics"}, calls)
	assert.True(t, fake.Closed())
	assert.Equal(t, rtconf.StateDestroyed, mirror.State())
}

func TestShutdown_GivesUpAfterGrace(t *testing.T) {
	fake := rtconf.NewFakeTransport()
	mirror, err := rtconf.Create(fake.Opener(), rtconf.WithLogger(testutil.QuietLogger()))
	require.NoError(t, err)
	defer mirror.Destroy()

	var calls []string
	servers := []shutdowner{&recordingServer{calls: &calls, name: "api", block: true}}

	start := time.Now()
	err = shutdown(50*time.Millisecond, mirror, servers)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStartHistory_RecordsChurn(t *testing.T) {
	cfg := config.Default()
	cfg.History.Enabled = true
	cfg.History.FlushInterval = "10ms"

	hub := events.NewHub()
	agg, stop, err := startHistory(cfg, hub)
	require.NoError(t, err)
	defer stop()

	hub.EmitTableChange(events.EventRouteAdd, "notification", "ipv4", nil)

	assert.Eventually(t, func() bool {
		points, err := agg.RecentChurn(time.Hour)
		if err != nil {
			return false
		}
		for _, p := range points {
			if p.Event == events.EventRouteAdd && p.Count > 0 {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStartHistory_BadInterval(t *testing.T) {
	cfg := config.Default()
	cfg.History.Enabled = true
	cfg.History.FlushInterval = "soon"

	_, _, err := startHistory(cfg, events.NewHub())
	assert.Error(t, err)
}
