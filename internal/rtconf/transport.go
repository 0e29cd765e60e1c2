package rtconf

import "errors"

// ErrTransportClosed is returned by transport operations after Close.
var ErrTransportClosed = errors.New("transport closed")

// SubscriptionID identifies a registered multicast handler.
type SubscriptionID uint32

// NotifyFunc receives one live notification: the rtnetlink message type and
// the payload that follows the netlink header (family header + attributes).
type NotifyFunc func(msgType uint16, payload []byte)

// DumpFunc receives one dump reply.
type DumpFunc func(msgType uint16, payload []byte)

// DoneFunc is called exactly once when a dump finishes. A non-nil err means
// the dump itself failed.
type DoneFunc func(err error)

// DumpRequest asks for every object of one kind and family.
type DumpRequest struct {
	Object Object
	Family Family
}

// Transport is the netlink-route channel the mirror is built on.
//
// Implementations must run every callback (notifications, dump replies and
// dump completions) on a single delivery goroutine, in arrival order, and
// must not run any callback after Close returns.
type Transport interface {
	Subscribe(group Group, fn NotifyFunc) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID) error
	// Dump issues the request and returns immediately; replies arrive later
	// through reply and done. When Dump returns an error, done is never
	// called.
	Dump(req DumpRequest, reply DumpFunc, done DoneFunc) error
	Close() error
}

// TransportOpener opens the transport for a new Mirror.
type TransportOpener func() (Transport, error)
