//go:build linux
// +build linux

package network

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// NewLinkResolver resolves names in the named namespace, or in the current
// one when nsName is empty.
func NewLinkResolver(nsName string) (*LinkResolver, error) {
	if nsName == "" {
		return NewLinkResolverWith(defaultLinker{}), nil
	}

	ns, err := netns.GetFromName(nsName)
	if err != nil {
		return nil, fmt.Errorf("failed to open netns %s: %w", nsName, err)
	}
	defer ns.Close()

	h, err := netlink.NewHandleAt(ns)
	if err != nil {
		return nil, fmt.Errorf("failed to create netlink handle in %s: %w", nsName, err)
	}

	r := NewLinkResolverWith(h)
	r.closer = h.Close
	return r, nil
}
