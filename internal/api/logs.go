package api

import (
	"net/http"

	"grimm.is/rtmirror/internal/logging"
)

// handleLogs serves recent log lines, oldest first.
//
//	GET /api/logs?source=rtconf&level=info&limit=100
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 100)
	if !ok || limit < 0 {
		WriteError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	source := r.URL.Query().Get("source")
	minLevel := -1
	if lvl := r.URL.Query().Get("level"); lvl != "" {
		l, err := logging.ParseLevel(lvl)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid level", err.Error())
			return
		}
		minLevel = levelRank(logging.LevelFromSlog(l))
	}

	var entries []logging.AppLogEntry
	if source != "" {
		entries = s.logs.GetBySource(source, 0)
	} else {
		entries = s.logs.GetLast(0)
	}

	out := make([]logging.AppLogEntry, 0, len(entries))
	for _, e := range entries {
		if levelRank(e.Level) < minLevel {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	WriteJSON(w, http.StatusOK, out)
}

func levelRank(level string) int {
	switch level {
	case "debug":
		return 0
	case "info":
		return 1
	case "warn":
		return 2
	default:
		return 3
	}
}
