//go:build linux

package rtconf

import (
	"net/netip"

	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// routeMsg builds an rtmsg payload the way the kernel lays it out.
type routeMsg struct {
	family Family
	table  uint32
	oif    int
	dst    string // prefix, "" for none
	gw     string
	src    string
}

func (r routeMsg) payload() []byte {
	msg := &nl.RtMsg{RtMsg: unix.RtMsg{
		Family:   uint8(r.family),
		Protocol: unix.RTPROT_BOOT,
		Type:     unix.RTN_UNICAST,
	}}
	if r.table < 256 {
		msg.Table = uint8(r.table)
	} else {
		msg.Table = unix.RT_TABLE_COMPAT
	}

	var attrs []*nl.RtAttr
	attrs = append(attrs, nl.NewRtAttr(unix.RTA_TABLE, nl.Uint32Attr(r.table)))
	if r.dst != "" {
		p := netip.MustParsePrefix(r.dst)
		msg.Dst_len = uint8(p.Bits())
		attrs = append(attrs, nl.NewRtAttr(unix.RTA_DST, p.Addr().AsSlice()))
	}
	if r.gw != "" {
		attrs = append(attrs, nl.NewRtAttr(unix.RTA_GATEWAY, netip.MustParseAddr(r.gw).AsSlice()))
	}
	if r.src != "" {
		attrs = append(attrs, nl.NewRtAttr(unix.RTA_PREFSRC, netip.MustParseAddr(r.src).AsSlice()))
	}
	if r.oif != 0 {
		attrs = append(attrs, nl.NewRtAttr(unix.RTA_OIF, nl.Uint32Attr(uint32(r.oif))))
	}

	b := msg.Serialize()
	for _, a := range attrs {
		b = append(b, a.Serialize()...)
	}
	return b
}

// addrMsg builds an ifaddrmsg payload.
type addrMsg struct {
	family    Family
	prefixLen uint8
	index     int
	local     string
	address   string
	broadcast string
}

func (a addrMsg) payload() []byte {
	msg := nl.NewIfAddrmsg(int(a.family))
	msg.Prefixlen = a.prefixLen
	msg.Index = uint32(a.index)

	b := msg.Serialize()
	if a.address != "" {
		b = append(b, nl.NewRtAttr(unix.IFA_ADDRESS, netip.MustParseAddr(a.address).AsSlice()).Serialize()...)
	}
	if a.local != "" {
		b = append(b, nl.NewRtAttr(unix.IFA_LOCAL, netip.MustParseAddr(a.local).AsSlice()).Serialize()...)
	}
	if a.broadcast != "" {
		b = append(b, nl.NewRtAttr(unix.IFA_BROADCAST, netip.MustParseAddr(a.broadcast).AsSlice()).Serialize()...)
	}
	return b
}
