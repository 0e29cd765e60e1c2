package rtconf

import (
	"fmt"
	"net/netip"
	"strings"
)

// Family is the address family carried in rtm_family / ifa_family.
type Family uint8

// Values from linux/socket.h. They are spelled out so the core builds on
// every platform; only the transport is Linux specific.
const (
	FamilyIPv4 Family = 2  // AF_INET
	FamilyIPv6 Family = 10 // AF_INET6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// MarshalText renders the family as "ipv4" / "ipv6".
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText accepts the names MarshalText produces.
func (f *Family) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "ipv4":
		*f = FamilyIPv4
	case "ipv6":
		*f = FamilyIPv6
	default:
		var n uint8
		if _, err := fmt.Sscanf(s, "family(%d)", &n); err != nil {
			return fmt.Errorf("unknown family %q", s)
		}
		*f = Family(n)
	}
	return nil
}

// Group is an rtnetlink multicast group number (RTNLGRP_*).
type Group uint

const (
	GroupIPv4Address Group = 5  // RTNLGRP_IPV4_IFADDR
	GroupIPv4Route   Group = 7  // RTNLGRP_IPV4_ROUTE
	GroupIPv6Address Group = 9  // RTNLGRP_IPV6_IFADDR
	GroupIPv6Route   Group = 11 // RTNLGRP_IPV6_ROUTE
)

func (g Group) String() string {
	switch g {
	case GroupIPv4Address:
		return "ipv4-ifaddr"
	case GroupIPv4Route:
		return "ipv4-route"
	case GroupIPv6Address:
		return "ipv6-ifaddr"
	case GroupIPv6Route:
		return "ipv6-route"
	default:
		return fmt.Sprintf("group(%d)", uint(g))
	}
}

// Object is the kind of kernel object a dump enumerates.
type Object uint8

const (
	ObjectRoute Object = iota + 1
	ObjectAddress
)

func (o Object) String() string {
	switch o {
	case ObjectRoute:
		return "route"
	case ObjectAddress:
		return "address"
	default:
		return "unknown"
	}
}

// rtnetlink message types (linux/rtnetlink.h).
const (
	TypeNewAddress uint16 = 20 // RTM_NEWADDR
	TypeDelAddress uint16 = 21 // RTM_DELADDR
	TypeNewRoute   uint16 = 24 // RTM_NEWROUTE
	TypeDelRoute   uint16 = 25 // RTM_DELROUTE
)

// Kind is the normalized message kind the reconciler acts on.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNewRoute
	KindDelRoute
	KindNewAddress
	KindDelAddress
)

// KindOf maps an rtnetlink message type to a Kind.
func KindOf(msgType uint16) Kind {
	switch msgType {
	case TypeNewRoute:
		return KindNewRoute
	case TypeDelRoute:
		return KindDelRoute
	case TypeNewAddress:
		return KindNewAddress
	case TypeDelAddress:
		return KindDelAddress
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindNewRoute:
		return "newroute"
	case KindDelRoute:
		return "delroute"
	case KindNewAddress:
		return "newaddr"
	case KindDelAddress:
		return "deladdr"
	default:
		return "unknown"
	}
}

// Object returns the object a kind operates on.
func (k Kind) Object() Object {
	switch k {
	case KindNewRoute, KindDelRoute:
		return ObjectRoute
	case KindNewAddress, KindDelAddress:
		return ObjectAddress
	default:
		return 0
	}
}

// Source says whether a message came from a dump or a live notification.
// Tables never see it; it only labels logs, metrics and events.
type Source uint8

const (
	SourceNotify Source = iota
	SourceDump
)

func (s Source) String() string {
	if s == SourceDump {
		return "dump"
	}
	return "notify"
}

// MarshalText renders the source as "dump" / "notify".
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	switch string(text) {
	case "dump":
		*s = SourceDump
	case "notify":
		*s = SourceNotify
	default:
		return fmt.Errorf("unknown source %q", text)
	}
	return nil
}

// RouteEntry is one mirrored route. Zero-valued Destination, Gateway and
// Source mean the attribute was absent in the kernel message.
type RouteEntry struct {
	Family      Family       `json:"family"`
	Table       uint32       `json:"table"`
	Index       int          `json:"index"`
	Destination netip.Prefix `json:"destination,omitzero"`
	Gateway     netip.Addr   `json:"gateway,omitzero"`
	Source      netip.Addr   `json:"source,omitzero"`
}

// String renders the route roughly the way `ip route` does.
func (r RouteEntry) String() string {
	var b strings.Builder
	if r.Destination.IsValid() {
		b.WriteString(r.Destination.String())
	} else {
		b.WriteString("default")
	}
	if r.Gateway.IsValid() {
		b.WriteString(" via ")
		b.WriteString(r.Gateway.String())
	}
	fmt.Fprintf(&b, " dev %d table %d", r.Index, r.Table)
	if r.Source.IsValid() {
		b.WriteString(" src ")
		b.WriteString(r.Source.String())
	}
	return b.String()
}

// AddressEntry is one mirrored interface address. Broadcast is only ever
// set for IPv4.
type AddressEntry struct {
	Family       Family     `json:"family"`
	PrefixLength uint8      `json:"prefix_length"`
	Index        int        `json:"index"`
	Address      netip.Addr `json:"address"`
	Broadcast    netip.Addr `json:"broadcast,omitzero"`
}

// Prefix returns the address with its prefix length attached.
func (a AddressEntry) Prefix() netip.Prefix {
	return netip.PrefixFrom(a.Address, int(a.PrefixLength))
}

func (a AddressEntry) String() string {
	s := fmt.Sprintf("%s dev %d", a.Prefix(), a.Index)
	if a.Broadcast.IsValid() {
		s += " brd " + a.Broadcast.String()
	}
	return s
}

// matchRoute reports whether entry satisfies query. Family, table and index
// must always agree; destination, gateway and source only constrain the
// match when both sides carry them, because delete notifications may omit
// attributes that were present on the add.
func matchRoute(entry, query RouteEntry) bool {
	if entry.Family != query.Family || entry.Table != query.Table || entry.Index != query.Index {
		return false
	}
	if entry.Destination.IsValid() && query.Destination.IsValid() && entry.Destination != query.Destination {
		return false
	}
	if !wildcardAddr(entry.Gateway, query.Gateway) {
		return false
	}
	return wildcardAddr(entry.Source, query.Source)
}

// matchAddress is matchRoute for addresses. The address itself is the
// identity of the entry and is never wildcarded; only broadcast is.
func matchAddress(entry, query AddressEntry) bool {
	if entry.Family != query.Family || entry.PrefixLength != query.PrefixLength || entry.Index != query.Index {
		return false
	}
	if entry.Address != query.Address {
		return false
	}
	return wildcardAddr(entry.Broadcast, query.Broadcast)
}

func wildcardAddr(a, b netip.Addr) bool {
	return !a.IsValid() || !b.IsValid() || a == b
}
