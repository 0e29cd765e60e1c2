package api

import (
	"net/http"
	"time"

	"grimm.is/rtmirror/internal/events"
)

// handleChurn serves table churn history. With window it returns the raw
// samples written at each flush; with days it returns hourly rollups.
//
//	GET /api/churn?window=1h
//	GET /api/churn?days=7
func (s *Server) handleChurn(w http.ResponseWriter, r *http.Request) {
	if s.churn == nil {
		WriteError(w, http.StatusServiceUnavailable, "history disabled", "enable the history block in the configuration")
		return
	}

	var (
		points []events.ChurnPoint
		err    error
	)
	if r.URL.Query().Has("days") {
		days, ok := queryInt(r, "days", 1)
		if !ok || days <= 0 {
			WriteError(w, http.StatusBadRequest, "invalid days")
			return
		}
		points, err = s.churn.HourlyChurn(days)
	} else {
		window := time.Hour
		if v := r.URL.Query().Get("window"); v != "" {
			d, perr := time.ParseDuration(v)
			if perr != nil || d <= 0 {
				WriteError(w, http.StatusBadRequest, "invalid window")
				return
			}
			window = d
		}
		points, err = s.churn.RecentChurn(window)
	}
	if err != nil {
		s.logger.Warn("churn query failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "churn query failed", err.Error())
		return
	}
	if points == nil {
		points = []events.ChurnPoint{}
	}
	WriteJSON(w, http.StatusOK, points)
}
