//go:build linux
// +build linux

package rtconf

import (
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

var routeDecoders = map[decoderKey]routeDecoder{
	{KindNewRoute, FamilyIPv4}: decodeRoute4,
	{KindDelRoute, FamilyIPv4}: decodeRoute4,
	{KindNewRoute, FamilyIPv6}: decodeRoute6,
	{KindDelRoute, FamilyIPv6}: decodeRoute6,
}

var addressDecoders = map[decoderKey]addressDecoder{
	{KindNewAddress, FamilyIPv4}: decodeAddress4,
	{KindDelAddress, FamilyIPv4}: decodeAddress4,
	{KindNewAddress, FamilyIPv6}: decodeAddress6,
	{KindDelAddress, FamilyIPv6}: decodeAddress6,
}

func decodeRoute4(payload []byte) (RouteEntry, error) { return decodeRouteMsg(payload, 4) }
func decodeRoute6(payload []byte) (RouteEntry, error) { return decodeRouteMsg(payload, 16) }

// decodeRouteMsg extracts table, output index, destination, gateway and
// preferred source. RTA_TABLE overrides rtm_table when present, since
// rtm_table cannot hold ids above 255.
func decodeRouteMsg(payload []byte, addrLen int) (RouteEntry, error) {
	if len(payload) < unix.SizeofRtMsg {
		return RouteEntry{}, fmt.Errorf("%w: rtmsg is %d bytes", ErrMalformed, len(payload))
	}
	msg := nl.DeserializeRtMsg(payload)
	attrs, err := nl.ParseRouteAttr(payload[unix.SizeofRtMsg:])
	if err != nil {
		return RouteEntry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	route := RouteEntry{
		Family: Family(msg.Family),
		Table:  uint32(msg.Table),
	}
	for _, attr := range attrs {
		switch attr.Attr.Type {
		case unix.RTA_TABLE:
			if route.Table, err = attrUint32(attr.Value); err != nil {
				return RouteEntry{}, err
			}
		case unix.RTA_OIF:
			idx, err := attrUint32(attr.Value)
			if err != nil {
				return RouteEntry{}, err
			}
			route.Index = int(idx)
		case unix.RTA_DST:
			ip, err := attrAddr(attr.Value, addrLen)
			if err != nil {
				return RouteEntry{}, err
			}
			route.Destination = netip.PrefixFrom(ip, int(msg.Dst_len))
			if !route.Destination.IsValid() {
				return RouteEntry{}, fmt.Errorf("%w: dst_len %d", ErrMalformed, msg.Dst_len)
			}
		case unix.RTA_GATEWAY:
			if route.Gateway, err = attrAddr(attr.Value, addrLen); err != nil {
				return RouteEntry{}, err
			}
		case unix.RTA_PREFSRC:
			if route.Source, err = attrAddr(attr.Value, addrLen); err != nil {
				return RouteEntry{}, err
			}
		}
	}
	return route, nil
}

// decodeAddress4 reads IFA_LOCAL and IFA_BROADCAST.
func decodeAddress4(payload []byte) (AddressEntry, error) {
	return decodeAddressMsg(payload, 4, unix.IFA_LOCAL, true)
}

// decodeAddress6 reads IFA_ADDRESS only; IPv6 has no broadcast.
func decodeAddress6(payload []byte) (AddressEntry, error) {
	return decodeAddressMsg(payload, 16, unix.IFA_ADDRESS, false)
}

func decodeAddressMsg(payload []byte, addrLen int, addrAttr uint16, withBroadcast bool) (AddressEntry, error) {
	if len(payload) < unix.SizeofIfAddrmsg {
		return AddressEntry{}, fmt.Errorf("%w: ifaddrmsg is %d bytes", ErrMalformed, len(payload))
	}
	msg := nl.DeserializeIfAddrmsg(payload)
	attrs, err := nl.ParseRouteAttr(payload[unix.SizeofIfAddrmsg:])
	if err != nil {
		return AddressEntry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	addr := AddressEntry{
		Family:       Family(msg.Family),
		PrefixLength: msg.Prefixlen,
		Index:        int(msg.Index),
	}
	for _, attr := range attrs {
		switch {
		case attr.Attr.Type == addrAttr:
			if addr.Address, err = attrAddr(attr.Value, addrLen); err != nil {
				return AddressEntry{}, err
			}
		case withBroadcast && attr.Attr.Type == unix.IFA_BROADCAST:
			if addr.Broadcast, err = attrAddr(attr.Value, addrLen); err != nil {
				return AddressEntry{}, err
			}
		}
	}
	if !addr.Address.IsValid() {
		return AddressEntry{}, fmt.Errorf("%w: no address attribute", ErrMalformed)
	}
	return addr, nil
}

func attrUint32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("%w: u32 attribute is %d bytes", ErrMalformed, len(b))
	}
	return nl.NativeEndian().Uint32(b[:4]), nil
}

func attrAddr(b []byte, n int) (netip.Addr, error) {
	if len(b) != n {
		return netip.Addr{}, fmt.Errorf("%w: address attribute is %d bytes, want %d", ErrMalformed, len(b), n)
	}
	ip, _ := netip.AddrFromSlice(b)
	return ip, nil
}
