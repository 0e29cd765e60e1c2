package rtconf

import (
	"sync"

	"grimm.is/rtmirror/internal/events"
	"grimm.is/rtmirror/internal/logging"
	"grimm.is/rtmirror/internal/metrics"
)

// Reconciler applies decoded rtnetlink messages to the route and address
// tables. Dump replies and live notifications take the same path.
//
// A Reconciler is not safe for concurrent use.
type Reconciler struct {
	routes  *RouteTable
	addrs   *AddressTable
	log     *logging.Logger
	hub     *events.Hub
	metrics *metrics.Registry
	tables  sync.Locker
}

// NewReconciler returns a reconciler mutating routes and addrs. hub may be
// nil.
func NewReconciler(routes *RouteTable, addrs *AddressTable, log *logging.Logger, hub *events.Hub) *Reconciler {
	if log == nil {
		log = logging.WithComponent("rtconf")
	}
	return &Reconciler{
		routes:  routes,
		addrs:   addrs,
		log:     log,
		hub:     hub,
		metrics: metrics.Get(),
	}
}

// LockTables makes the reconciler hold l while it mutates the tables. Logs,
// metrics and events are emitted after l is released.
func (r *Reconciler) LockTables(l sync.Locker) {
	r.tables = l
}

func (r *Reconciler) mutate(fn func()) {
	if r.tables != nil {
		r.tables.Lock()
		defer r.tables.Unlock()
	}
	fn()
}

// Handle decodes one message and applies it. Unknown message types are
// ignored; undecodable payloads are dropped.
func (r *Reconciler) Handle(src Source, msgType uint16, payload []byte) {
	kind := KindOf(msgType)
	switch kind.Object() {
	case ObjectRoute:
		r.metrics.RecordMessage(kind.String(), src.String())
		route, err := DecodeRoute(kind, payload)
		if err != nil {
			r.dropped(kind, payload, err)
			return
		}
		if kind == KindNewRoute {
			r.addRoute(src, route)
		} else {
			r.removeRoute(src, route)
		}
	case ObjectAddress:
		r.metrics.RecordMessage(kind.String(), src.String())
		addr, err := DecodeAddress(kind, payload)
		if err != nil {
			r.dropped(kind, payload, err)
			return
		}
		if kind == KindNewAddress {
			r.addAddress(src, addr)
		} else {
			r.removeAddress(src, addr)
		}
	default:
		r.log.Debug("ignoring message", "type", msgType, "source", src)
	}
}

func (r *Reconciler) dropped(kind Kind, payload []byte, err error) {
	family := "unknown"
	if f, ferr := payloadFamily(payload); ferr == nil {
		family = f.String()
	}
	r.metrics.DecodeErrors.WithLabelValues(kind.String(), family).Inc()
	r.log.Debug("dropping undecodable message", "kind", kind, "family", family, "error", err)
}

func (r *Reconciler) addRoute(src Source, route RouteEntry) {
	var dup bool
	r.mutate(func() {
		dup = r.routes.Contains(route)
		r.routes.Add(route)
	})
	if dup {
		r.metrics.DuplicateAdds.WithLabelValues("route").Inc()
		r.log.Debug("route already present, keeping duplicate", "route", route.String(), "source", src)
	}
	r.metrics.TableSize("route", route.Family.String()).Inc()
	r.log.Info("route added", routeAttrs(src, route)...)
	r.publish(events.EventRouteAdd, src, route.Family, route)
}

func (r *Reconciler) removeRoute(src Source, query RouteEntry) {
	var (
		removed RouteEntry
		ok      bool
	)
	r.mutate(func() { removed, ok = r.routes.RemoveMatching(query) })
	if !ok {
		r.metrics.UnmatchedRemovals.WithLabelValues("route").Inc()
		r.log.Debug("no route matches removal", routeAttrs(src, query)...)
		return
	}
	r.metrics.TableSize("route", removed.Family.String()).Dec()
	r.log.Info("route removed", routeAttrs(src, removed)...)
	r.publish(events.EventRouteDel, src, removed.Family, removed)
}

func (r *Reconciler) addAddress(src Source, addr AddressEntry) {
	var dup bool
	r.mutate(func() {
		dup = r.addrs.Contains(addr)
		r.addrs.Add(addr)
	})
	if dup {
		r.metrics.DuplicateAdds.WithLabelValues("address").Inc()
		r.log.Debug("address already present, keeping duplicate", "address", addr.String(), "source", src)
	}
	r.metrics.TableSize("address", addr.Family.String()).Inc()
	r.log.Info("address added", addressAttrs(src, addr)...)
	r.publish(events.EventAddressAdd, src, addr.Family, addr)
}

func (r *Reconciler) removeAddress(src Source, query AddressEntry) {
	var (
		removed AddressEntry
		ok      bool
	)
	r.mutate(func() { removed, ok = r.addrs.RemoveMatching(query) })
	if !ok {
		r.metrics.UnmatchedRemovals.WithLabelValues("address").Inc()
		r.log.Debug("no address matches removal", addressAttrs(src, query)...)
		return
	}
	r.metrics.TableSize("address", removed.Family.String()).Dec()
	r.log.Info("address removed", addressAttrs(src, removed)...)
	r.publish(events.EventAddressDel, src, removed.Family, removed)
}

func (r *Reconciler) publish(t events.EventType, src Source, family Family, entry any) {
	if r.hub == nil {
		return
	}
	r.hub.EmitTableChange(t, src.String(), family.String(), entry)
}

func routeAttrs(src Source, route RouteEntry) []any {
	return []any{
		"family", route.Family,
		"index", route.Index,
		"table", route.Table,
		"dst", optional(route.Destination.IsValid(), route.Destination.String()),
		"gateway", optional(route.Gateway.IsValid(), route.Gateway.String()),
		"src", optional(route.Source.IsValid(), route.Source.String()),
		"source", src,
	}
}

func addressAttrs(src Source, addr AddressEntry) []any {
	return []any{
		"family", addr.Family,
		"index", addr.Index,
		"ip", addr.Prefix().String(),
		"broadcast", optional(addr.Broadcast.IsValid(), addr.Broadcast.String()),
		"source", src,
	}
}

func optional(ok bool, s string) string {
	if !ok {
		return "none"
	}
	return s
}
