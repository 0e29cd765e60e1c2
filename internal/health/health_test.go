package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/rtmirror/internal/clock"
	"grimm.is/rtmirror/internal/rtconf"
)

type stubStats rtconf.Stats

func (s stubStats) Stats() rtconf.Stats { return rtconf.Stats(s) }

type stubEvents struct{ published, dropped uint64 }

func (s stubEvents) Stats() (uint64, uint64) { return s.published, s.dropped }

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func fixed(s Status) CheckFunc {
	return func(context.Context) Check { return Check{Status: s} }
}

func TestChecker_WorstStatusWins(t *testing.T) {
	c := NewChecker(0, nil)
	c.Register("a", fixed(StatusHealthy))
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	c.Register("b", fixed(StatusDegraded))
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c.Register("c", fixed(StatusUnhealthy))
	report := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	require.Len(t, report.Checks, 3)
	assert.Equal(t, "b", report.Checks["b"].Name)
}

func TestChecker_CachesWithinTTL(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewChecker(5*time.Second, clk)

	var calls atomic.Int32
	c.Register("counted", func(context.Context) Check {
		calls.Add(1)
		return Check{Status: StatusHealthy}
	})

	c.Check(context.Background())
	c.Check(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	clk.Advance(6 * time.Second)
	c.Check(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestHandler_StatusCodes(t *testing.T) {
	c := NewChecker(0, nil)
	c.Register("slow", fixed(StatusDegraded))

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("down", fixed(StatusUnhealthy))
	rec = httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMirrorCheck(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		stats rtconf.Stats
		want  Status
	}{
		{"destroyed", rtconf.Stats{State: rtconf.StateDestroyed, Synced: true}, StatusUnhealthy},
		{"syncing", rtconf.Stats{State: rtconf.StateRunning, PendingDumps: 3}, StatusDegraded},
		{"dump failed", rtconf.Stats{State: rtconf.StateRunning, Synced: true, DumpErrors: 1}, StatusDegraded},
		{"synced", rtconf.Stats{State: rtconf.StateRunning, Synced: true, Routes: 4}, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MirrorCheck(stubStats(tt.stats))(ctx)
			assert.Equal(t, tt.want, got.Status)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestEventsCheck(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusHealthy, EventsCheck(stubEvents{published: 10})(ctx).Status)

	got := EventsCheck(stubEvents{published: 10, dropped: 2})(ctx)
	assert.Equal(t, StatusDegraded, got.Status)
	assert.Contains(t, got.Message, "2 of 10")
}

func TestHistoryCheck(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusHealthy, HistoryCheck(stubPinger{})(ctx).Status)
	assert.Equal(t, StatusDegraded, HistoryCheck(stubPinger{err: errors.New("closed")})(ctx).Status)
}

func TestSystemChecks(t *testing.T) {
	// Real on Linux, stubbed elsewhere; both must produce a status.
	assert.NotEmpty(t, MemoryCheck(context.Background()).Status)
	assert.NotEmpty(t, InterfacesCheck("")(context.Background()).Status)
}
