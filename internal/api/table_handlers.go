package api

import (
	"net/http"

	"grimm.is/rtmirror/internal/brand"
	"grimm.is/rtmirror/internal/rtconf"
)

// handleRoutes serves the route table.
//
//	GET /api/routes?family=ipv4&table=254&index=2
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	family, ok := parseFamily(r.URL.Query().Get("family"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid family", "expected ipv4 or ipv6")
		return
	}
	table, ok := queryInt(r, "table", -1)
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid table")
		return
	}
	index, ok := queryInt(r, "index", -1)
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid index")
		return
	}

	routes := s.mirror.Routes()
	out := make([]RouteView, 0, len(routes))
	for _, rt := range routes {
		if family != 0 && rt.Family != family {
			continue
		}
		if table >= 0 && rt.Table != uint32(table) {
			continue
		}
		if index >= 0 && rt.Index != index {
			continue
		}
		out = append(out, NewRouteView(rt, s.names))
	}
	WriteJSON(w, http.StatusOK, out)
}

// handleAddresses serves the address table.
//
//	GET /api/addresses?family=ipv6&index=2
func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	family, ok := parseFamily(r.URL.Query().Get("family"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid family", "expected ipv4 or ipv6")
		return
	}
	index, ok := queryInt(r, "index", -1)
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid index")
		return
	}

	addrs := s.mirror.Addresses()
	out := make([]AddressView, 0, len(addrs))
	for _, a := range addrs {
		if family != 0 && a.Family != family {
			continue
		}
		if index >= 0 && a.Index != index {
			continue
		}
		out = append(out, NewAddressView(a, s.names))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version: brand.Version,
		Mirror:  s.mirror.Stats(),
		History: s.churn != nil,
	}
	if s.hub != nil {
		resp.Events.Published, resp.Events.Dropped = s.hub.Stats()
	}
	if s.wsManager != nil {
		resp.WSClient = s.wsManager.ClientCount()
	}
	WriteJSON(w, http.StatusOK, resp)
}

var _ Mirror = (*rtconf.Mirror)(nil)
