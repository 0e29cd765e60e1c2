//go:build linux

package testutil

import (
	"testing"

	"github.com/vishvananda/netlink/nl"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// RequireNetlink skips the test if an rtnetlink socket cannot be opened,
// as in some sandboxes.
func RequireNetlink(t *testing.T) {
	t.Helper()
	s, err := nl.GetNetlinkSocketAt(netns.None(), netns.None(), unix.NETLINK_ROUTE)
	if err != nil {
		t.Skipf("Skipping test: rtnetlink unavailable: %v", err)
	}
	s.Close()
}
