// Package api serves the mirrored tables over HTTP.
//
// All endpoints are read-only:
//
//	GET /api/routes      route table, filterable by family, table and index
//	GET /api/addresses   address table, filterable by family and index
//	GET /api/status      mirror lifecycle and counters
//	GET /api/events      websocket stream of table changes
//	GET /api/logs        recent log lines
//	GET /api/churn       change history (requires the history block)
//	GET /healthz         liveness
//	GET /readyz          200 once the initial dumps have completed
package api
