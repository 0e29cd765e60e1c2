package network

import (
	"fmt"
	"sync"

	"github.com/vishvananda/netlink"
)

// Linker is the subset of netlink used to resolve interface indexes.
type Linker interface {
	LinkByIndex(index int) (netlink.Link, error)
}

type defaultLinker struct{}

func (defaultLinker) LinkByIndex(index int) (netlink.Link, error) {
	return netlink.LinkByIndex(index)
}

// LinkResolver maps interface indexes to names for display. Successful
// lookups are cached; indexes the kernel does not know render as "if<N>".
type LinkResolver struct {
	linker Linker
	closer func()

	mu    sync.Mutex
	names map[int]string
}

// NewLinkResolverWith resolves through linker.
func NewLinkResolverWith(linker Linker) *LinkResolver {
	return &LinkResolver{
		linker: linker,
		names:  make(map[int]string),
	}
}

// Name returns the interface name for index.
func (r *LinkResolver) Name(index int) string {
	if index <= 0 {
		return "-"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.names[index]; ok {
		return name
	}
	link, err := r.linker.LinkByIndex(index)
	if err != nil || link == nil || link.Attrs() == nil {
		return fmt.Sprintf("if%d", index)
	}
	name := link.Attrs().Name
	r.names[index] = name
	return name
}

// Forget drops a cached name, e.g. after the interface was renamed.
func (r *LinkResolver) Forget(index int) {
	r.mu.Lock()
	delete(r.names, index)
	r.mu.Unlock()
}

// Close releases the namespace handle, if any.
func (r *LinkResolver) Close() {
	if r.closer != nil {
		r.closer()
	}
}
