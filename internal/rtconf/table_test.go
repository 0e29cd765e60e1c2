package rtconf

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pfx(s string) netip.Prefix { return netip.MustParsePrefix(s) }
func ip(s string) netip.Addr    { return netip.MustParseAddr(s) }

func TestRouteTable_WildcardMatch(t *testing.T) {
	stored := RouteEntry{
		Family:      FamilyIPv4,
		Table:       254,
		Index:       2,
		Destination: pfx("10.0.0.0/24"),
		Gateway:     ip("10.0.0.1"),
		Source:      ip("10.0.0.5"),
	}

	tests := []struct {
		name  string
		query RouteEntry
		want  bool
	}{
		{"exact", stored, true},
		{"mandatory only", RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2}, true},
		{"destination only", RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Destination: pfx("10.0.0.0/24")}, true},
		{"gateway only", RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Gateway: ip("10.0.0.1")}, true},
		{"source only", RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Source: ip("10.0.0.5")}, true},
		{"other destination", RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Destination: pfx("10.0.1.0/24")}, false},
		{"other prefix length", RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Destination: pfx("10.0.0.0/25")}, false},
		{"other gateway", RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Gateway: ip("10.0.0.254")}, false},
		{"other source", RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Source: ip("10.0.0.6")}, false},
		{"other table", RouteEntry{Family: FamilyIPv4, Table: 100, Index: 2}, false},
		{"other index", RouteEntry{Family: FamilyIPv4, Table: 254, Index: 3}, false},
		{"other family", RouteEntry{Family: FamilyIPv6, Table: 254, Index: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchRoute(stored, tt.query))

			rt := NewRouteTable()
			rt.Add(stored)
			removed, ok := rt.RemoveMatching(tt.query)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, stored, removed)
				assert.Zero(t, rt.Len())
			} else {
				assert.Equal(t, 1, rt.Len())
			}
		})
	}
}

func TestRouteTable_WildcardOnStoredSide(t *testing.T) {
	rt := NewRouteTable()
	rt.Add(RouteEntry{Family: FamilyIPv6, Table: 254, Index: 4})

	_, ok := rt.RemoveMatching(RouteEntry{
		Family:      FamilyIPv6,
		Table:       254,
		Index:       4,
		Destination: pfx("2001:db8::/64"),
		Gateway:     ip("fe80::1"),
	})
	assert.True(t, ok, "attributes absent on the stored entry do not constrain")
}

func TestRouteTable_FIFOTieBreak(t *testing.T) {
	rt := NewRouteTable()
	first := RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Destination: pfx("10.0.0.0/24")}
	second := RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Destination: pfx("10.0.0.0/24"), Gateway: ip("10.0.0.1")}
	rt.Add(first)
	rt.Add(second)

	removed, ok := rt.RemoveMatching(RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2})
	require.True(t, ok)
	assert.Equal(t, first, removed)
	assert.Equal(t, []RouteEntry{second}, rt.Entries())
}

func TestRouteTable_FIFOPreservesOrderOfRest(t *testing.T) {
	rt := NewRouteTable()
	a := RouteEntry{Family: FamilyIPv4, Table: 254, Index: 1}
	b := RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Gateway: ip("192.0.2.1")}
	c := RouteEntry{Family: FamilyIPv4, Table: 254, Index: 3}
	d := RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Gateway: ip("192.0.2.2")}
	for _, e := range []RouteEntry{a, b, c, d} {
		rt.Add(e)
	}

	removed, ok := rt.RemoveMatching(RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2})
	require.True(t, ok)
	assert.Equal(t, b, removed)
	assert.Equal(t, []RouteEntry{a, c, d}, rt.Entries())
}

func TestRouteTable_NoOpRemoval(t *testing.T) {
	rt := NewRouteTable()

	_, ok := rt.RemoveMatching(RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2})
	assert.False(t, ok)
	assert.Zero(t, rt.Len())

	e := RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Destination: pfx("10.0.0.0/24")}
	rt.Add(e)
	_, ok = rt.RemoveMatching(RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Destination: pfx("192.168.0.0/16")})
	assert.False(t, ok)
	assert.Equal(t, []RouteEntry{e}, rt.Entries())
}

func TestRouteTable_DuplicatesKept(t *testing.T) {
	rt := NewRouteTable()
	x := RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Destination: pfx("10.0.0.0/24"), Gateway: ip("10.0.0.1")}

	assert.False(t, rt.Contains(x))
	rt.Add(x)
	assert.True(t, rt.Contains(x))
	rt.Add(x)

	entries := rt.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0], entries[1])

	// One delete removes one copy.
	_, ok := rt.RemoveMatching(x)
	require.True(t, ok)
	assert.Equal(t, 1, rt.Len())
}

func TestRouteTable_ContainsIsStrict(t *testing.T) {
	rt := NewRouteTable()
	rt.Add(RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Gateway: ip("10.0.0.1")})

	assert.False(t, rt.Contains(RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2}))
}

func TestRouteTable_EntriesIsACopy(t *testing.T) {
	rt := NewRouteTable()
	rt.Add(RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2})

	entries := rt.Entries()
	entries[0].Index = 99
	assert.Equal(t, 2, rt.Entries()[0].Index)
}

func TestRouteTable_Clear(t *testing.T) {
	rt := NewRouteTable()
	for i := 0; i < 5; i++ {
		rt.Add(RouteEntry{Family: FamilyIPv4, Table: 254, Index: i})
	}

	assert.Equal(t, 5, rt.Clear())
	assert.Zero(t, rt.Len())
	assert.Empty(t, rt.Entries())
	assert.Zero(t, rt.Clear())
}

func TestAddressTable_Match(t *testing.T) {
	stored := AddressEntry{
		Family:       FamilyIPv4,
		PrefixLength: 24,
		Index:        2,
		Address:      ip("192.0.2.10"),
		Broadcast:    ip("192.0.2.255"),
	}

	tests := []struct {
		name  string
		query AddressEntry
		want  bool
	}{
		{"exact", stored, true},
		{"broadcast absent", AddressEntry{Family: FamilyIPv4, PrefixLength: 24, Index: 2, Address: ip("192.0.2.10")}, true},
		{"other broadcast", AddressEntry{Family: FamilyIPv4, PrefixLength: 24, Index: 2, Address: ip("192.0.2.10"), Broadcast: ip("192.0.2.127")}, false},
		{"address absent", AddressEntry{Family: FamilyIPv4, PrefixLength: 24, Index: 2}, false},
		{"other address", AddressEntry{Family: FamilyIPv4, PrefixLength: 24, Index: 2, Address: ip("192.0.2.11")}, false},
		{"other prefix length", AddressEntry{Family: FamilyIPv4, PrefixLength: 25, Index: 2, Address: ip("192.0.2.10")}, false},
		{"other index", AddressEntry{Family: FamilyIPv4, PrefixLength: 24, Index: 3, Address: ip("192.0.2.10")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := NewAddressTable()
			at.Add(stored)
			_, ok := at.RemoveMatching(tt.query)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAddressTable_FIFOTieBreak(t *testing.T) {
	at := NewAddressTable()
	first := AddressEntry{Family: FamilyIPv4, PrefixLength: 24, Index: 2, Address: ip("192.0.2.10")}
	second := AddressEntry{Family: FamilyIPv4, PrefixLength: 24, Index: 2, Address: ip("192.0.2.10"), Broadcast: ip("192.0.2.255")}
	at.Add(first)
	at.Add(second)

	removed, ok := at.RemoveMatching(AddressEntry{Family: FamilyIPv4, PrefixLength: 24, Index: 2, Address: ip("192.0.2.10"), Broadcast: ip("192.0.2.255")})
	require.True(t, ok)
	assert.Equal(t, first, removed)
	assert.Equal(t, []AddressEntry{second}, at.Entries())
}

func TestEntryStrings(t *testing.T) {
	r := RouteEntry{Family: FamilyIPv4, Table: 254, Index: 2, Destination: pfx("10.0.0.0/24"), Gateway: ip("10.0.0.1"), Source: ip("10.0.0.5")}
	assert.Equal(t, "10.0.0.0/24 via 10.0.0.1 dev 2 table 254 src 10.0.0.5", r.String())
	assert.Equal(t, "default dev 3 table 100", RouteEntry{Family: FamilyIPv6, Table: 100, Index: 3}.String())

	a := AddressEntry{Family: FamilyIPv4, PrefixLength: 24, Index: 2, Address: ip("192.0.2.10"), Broadcast: ip("192.0.2.255")}
	assert.Equal(t, "192.0.2.10/24 dev 2 brd 192.0.2.255", a.String())
}
