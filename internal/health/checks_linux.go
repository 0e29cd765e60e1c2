//go:build linux

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// InterfacesCheck lists links in the named namespace ("" for the current
// one) to confirm rtnetlink is reachable.
func InterfacesCheck(nsName string) CheckFunc {
	return func(ctx context.Context) Check {
		h, err := openHandle(nsName)
		if err != nil {
			return Check{Status: StatusUnhealthy, Message: fmt.Sprintf("netlink failed: %v", err)}
		}
		defer h.Close()

		links, err := h.LinkList()
		if err != nil {
			return Check{Status: StatusUnhealthy, Message: fmt.Sprintf("netlink failed: %v", err)}
		}
		up := 0
		for _, link := range links {
			if link.Attrs().Flags&net.FlagUp != 0 {
				up++
			}
		}
		return Check{Status: StatusHealthy, Message: fmt.Sprintf("%d of %d interfaces up", up, len(links))}
	}
}

func openHandle(nsName string) (*netlink.Handle, error) {
	if nsName == "" {
		return netlink.NewHandle()
	}
	ns, err := netns.GetFromName(nsName)
	if err != nil {
		return nil, fmt.Errorf("netns %q: %w", nsName, err)
	}
	defer ns.Close()
	return netlink.NewHandleAt(ns)
}

// MemoryCheck reports MemAvailable from /proc/meminfo.
func MemoryCheck(ctx context.Context) Check {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return Check{Status: StatusDegraded, Message: fmt.Sprintf("cannot read meminfo: %v", err)}
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemAvailable:") {
			return Check{Status: StatusHealthy, Message: strings.Join(strings.Fields(line), " ")}
		}
	}
	return Check{Status: StatusHealthy, Message: "memory info available"}
}
