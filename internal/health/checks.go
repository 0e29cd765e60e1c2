package health

import (
	"context"
	"fmt"

	"grimm.is/rtmirror/internal/rtconf"
)

// StatsSource reports mirror state.
type StatsSource interface {
	Stats() rtconf.Stats
}

// EventCounter reports hub throughput.
type EventCounter interface {
	Stats() (published, dropped uint64)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// MirrorCheck is unhealthy unless the mirror is running. It is degraded
// until the startup dumps finish, and after any of them failed.
func MirrorCheck(src StatsSource) CheckFunc {
	return func(ctx context.Context) Check {
		st := src.Stats()
		switch {
		case st.State != rtconf.StateRunning:
			return Check{Status: StatusUnhealthy, Message: fmt.Sprintf("mirror is %s", st.State)}
		case !st.Synced:
			return Check{Status: StatusDegraded, Message: fmt.Sprintf("%d dump(s) pending", st.PendingDumps)}
		case st.DumpErrors > 0:
			return Check{Status: StatusDegraded, Message: fmt.Sprintf("%d dump(s) failed, tables may be incomplete", st.DumpErrors)}
		}
		return Check{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d routes, %d addresses", st.Routes, st.Addresses),
		}
	}
}

// EventsCheck is degraded once the hub has dropped an event for a slow
// subscriber.
func EventsCheck(src EventCounter) CheckFunc {
	return func(ctx context.Context) Check {
		published, dropped := src.Stats()
		if dropped > 0 {
			return Check{Status: StatusDegraded, Message: fmt.Sprintf("%d of %d events dropped", dropped, published)}
		}
		return Check{Status: StatusHealthy, Message: fmt.Sprintf("%d events published", published)}
	}
}

// HistoryCheck is degraded if the churn database stops answering.
// Losing history never makes the mirror itself unhealthy.
func HistoryCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) Check {
		if err := db.PingContext(ctx); err != nil {
			return Check{Status: StatusDegraded, Message: fmt.Sprintf("history db: %v", err)}
		}
		return Check{Status: StatusHealthy, Message: "history db reachable"}
	}
}
