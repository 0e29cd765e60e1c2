package api

import (
	"time"

	"grimm.is/rtmirror/internal/events"
	"grimm.is/rtmirror/internal/rtconf"
)

// NameResolver maps interface indexes to names.
type NameResolver interface {
	Name(index int) string
}

// RouteView is the display form of a mirrored route.
type RouteView struct {
	Family      string `json:"family" yaml:"family"`
	Table       uint32 `json:"table" yaml:"table"`
	Index       int    `json:"index" yaml:"index"`
	Interface   string `json:"interface,omitempty" yaml:"interface,omitempty"`
	Destination string `json:"destination" yaml:"destination"`
	Gateway     string `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
}

// AddressView is the display form of a mirrored address.
type AddressView struct {
	Family    string `json:"family" yaml:"family"`
	Index     int    `json:"index" yaml:"index"`
	Interface string `json:"interface,omitempty" yaml:"interface,omitempty"`
	Address   string `json:"address" yaml:"address"`
	Broadcast string `json:"broadcast,omitempty" yaml:"broadcast,omitempty"`
}

// NewRouteView converts r. names may be nil. A route without a destination
// renders as "default".
func NewRouteView(r rtconf.RouteEntry, names NameResolver) RouteView {
	v := RouteView{
		Family:      r.Family.String(),
		Table:       r.Table,
		Index:       r.Index,
		Destination: "default",
	}
	if names != nil {
		v.Interface = names.Name(r.Index)
	}
	if r.Destination.IsValid() {
		v.Destination = r.Destination.String()
	}
	if r.Gateway.IsValid() {
		v.Gateway = r.Gateway.String()
	}
	if r.Source.IsValid() {
		v.Source = r.Source.String()
	}
	return v
}

// NewAddressView converts a. names may be nil.
func NewAddressView(a rtconf.AddressEntry, names NameResolver) AddressView {
	v := AddressView{
		Family:  a.Family.String(),
		Index:   a.Index,
		Address: a.Prefix().String(),
	}
	if names != nil {
		v.Interface = names.Name(a.Index)
	}
	if a.Broadcast.IsValid() {
		v.Broadcast = a.Broadcast.String()
	}
	return v
}

// RouteViews converts a table snapshot.
func RouteViews(routes []rtconf.RouteEntry, names NameResolver) []RouteView {
	out := make([]RouteView, 0, len(routes))
	for _, r := range routes {
		out = append(out, NewRouteView(r, names))
	}
	return out
}

// AddressViews converts a table snapshot.
func AddressViews(addrs []rtconf.AddressEntry, names NameResolver) []AddressView {
	out := make([]AddressView, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, NewAddressView(a, names))
	}
	return out
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Version  string       `json:"version"`
	Mirror   rtconf.Stats `json:"mirror"`
	Events   EventStats   `json:"events"`
	History  bool         `json:"history"`
	WSClient int          `json:"websocket_clients"`
}

// EventStats reports hub throughput.
type EventStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// WSMessage is one event pushed to websocket clients. Table entries are
// converted to their display form.
type WSMessage struct {
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      any              `json:"data"`
}

type tableChangeView struct {
	Origin string `json:"origin"`
	Family string `json:"family"`
	Entry  any    `json:"entry"`
}

func newWSMessage(e events.Event, names NameResolver) WSMessage {
	msg := WSMessage{
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Data:      e.Data,
	}
	if d, ok := e.Data.(events.TableChangeData); ok {
		view := tableChangeView{Origin: d.Origin, Family: d.Family, Entry: d.Entry}
		switch entry := d.Entry.(type) {
		case rtconf.RouteEntry:
			view.Entry = NewRouteView(entry, names)
		case rtconf.AddressEntry:
			view.Entry = NewAddressView(entry, names)
		}
		msg.Data = view
	}
	return msg
}

func parseFamily(s string) (rtconf.Family, bool) {
	switch s {
	case "":
		return 0, true
	case "ipv4", "inet", "4":
		return rtconf.FamilyIPv4, true
	case "ipv6", "inet6", "6":
		return rtconf.FamilyIPv6, true
	default:
		return 0, false
	}
}
