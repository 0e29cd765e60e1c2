// Package network carries rtnetlink traffic for the route mirror.
//
// [Transport] implements rtconf.Transport on Linux: one rtnetlink socket
// joined to every subscribed group, dumps sent on it one at a time, and a
// single delivery goroutine that runs every callback in the order the
// kernel queued the messages. [Open] can bind the socket to a named
// network namespace.
//
// [LinkResolver] turns interface indexes into names for display.
//
// Uses github.com/vishvananda/netlink/nl for socket handling and
// github.com/vishvananda/netns for namespace switching.
package network
