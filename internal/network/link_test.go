package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vishvananda/netlink"
)

func dummy(name string, index int) netlink.Link {
	return &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name, Index: index}}
}

func TestLinkResolver_CachesNames(t *testing.T) {
	m := new(MockLinker)
	m.On("LinkByIndex", 2).Return(dummy("eth0", 2), nil).Once()

	r := NewLinkResolverWith(m)
	assert.Equal(t, "eth0", r.Name(2))
	assert.Equal(t, "eth0", r.Name(2))

	m.AssertExpectations(t)
}

func TestLinkResolver_UnknownIndex(t *testing.T) {
	m := new(MockLinker)
	m.On("LinkByIndex", 9).Return(nil, errors.New("Link not found")).Twice()

	r := NewLinkResolverWith(m)
	assert.Equal(t, "if9", r.Name(9))
	// failures are not cached
	assert.Equal(t, "if9", r.Name(9))

	m.AssertExpectations(t)
}

func TestLinkResolver_NoIndex(t *testing.T) {
	m := new(MockLinker)
	r := NewLinkResolverWith(m)

	assert.Equal(t, "-", r.Name(0))
	m.AssertNotCalled(t, "LinkByIndex", 0)
}

func TestLinkResolver_Forget(t *testing.T) {
	m := new(MockLinker)
	m.On("LinkByIndex", 3).Return(dummy("wan0", 3), nil).Once()
	m.On("LinkByIndex", 3).Return(dummy("uplink", 3), nil).Once()

	r := NewLinkResolverWith(m)
	assert.Equal(t, "wan0", r.Name(3))
	r.Forget(3)
	assert.Equal(t, "uplink", r.Name(3))

	m.AssertExpectations(t)
}
