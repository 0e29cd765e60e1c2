package cmd

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"grimm.is/rtmirror/internal/api"
	"grimm.is/rtmirror/internal/rtconf"
)

func testSnapshot() snapshot {
	return snapshot{
		Routes: []api.RouteView{
			{Family: "ipv4", Table: 254, Index: 2, Interface: "eth0", Destination: "default", Gateway: "192.0.2.1"},
			{Family: "ipv6", Table: 254, Index: 2, Interface: "eth0", Destination: "2001:db8::/64"},
		},
		Addresses: []api.AddressView{
			{Family: "ipv4", Index: 2, Interface: "eth0", Address: "192.0.2.10/24", Broadcast: "192.0.2.255"},
		},
	}
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "table", "all", testSnapshot()))

	out := buf.String()
	assert.Contains(t, out, "Routes (2)")
	assert.Contains(t, out, "Addresses (1)")
	assert.Contains(t, out, "DESTINATION")
	assert.Contains(t, out, "192.0.2.1")
	assert.Contains(t, out, "2001:db8::/64")
	assert.Contains(t, out, "192.0.2.10/24")
	assert.Contains(t, out, "eth0")
}

func TestRender_TableRoutesOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "table", "routes", testSnapshot()))

	assert.Contains(t, buf.String(), "Routes (2)")
	assert.NotContains(t, buf.String(), "Addresses")
}

func TestRender_TableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "table", "addresses", snapshot{}))
	assert.Contains(t, buf.String(), "Addresses (0)")
	assert.Contains(t, buf.String(), "ADDRESS")
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	snap := testSnapshot()
	require.NoError(t, render(&buf, "json", "all", snap))

	var got snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, snap, got)
}

func TestRender_YAMLAddresses(t *testing.T) {
	var buf bytes.Buffer
	snap := testSnapshot()
	require.NoError(t, render(&buf, "yaml", "addresses", snap))

	var got []api.AddressView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, snap.Addresses, got)
	assert.NotContains(t, buf.String(), "destination")
}

func TestFilterByFamily(t *testing.T) {
	routes := []rtconf.RouteEntry{
		{Family: rtconf.FamilyIPv4, Table: 254, Destination: netip.MustParsePrefix("10.0.0.0/8")},
		{Family: rtconf.FamilyIPv6, Table: 254, Destination: netip.MustParsePrefix("2001:db8::/32")},
	}
	addrs := []rtconf.AddressEntry{
		{Family: rtconf.FamilyIPv4, PrefixLength: 8, Index: 1, Address: netip.MustParseAddr("10.0.0.1")},
	}

	assert.Len(t, filterRoutes(routes, 0), 2)
	v6 := filterRoutes(routes, rtconf.FamilyIPv6)
	require.Len(t, v6, 1)
	assert.Equal(t, rtconf.FamilyIPv6, v6[0].Family)
	assert.Len(t, routes, 2, "filtering must not disturb the input")

	assert.Empty(t, filterAddresses(addrs, rtconf.FamilyIPv6))
	assert.Len(t, filterAddresses(addrs, rtconf.FamilyIPv4), 1)
}

func TestCheckShowArgs(t *testing.T) {
	assert.NoError(t, checkShowArgs("all", "table"))
	assert.NoError(t, checkShowArgs("routes", "json"))
	assert.NoError(t, checkShowArgs("addresses", "yaml"))
	assert.Error(t, checkShowArgs("neighbors", "table"))
	assert.Error(t, checkShowArgs("routes", "xml"))
}

func TestParseFamilyFlag(t *testing.T) {
	f, err := parseFamilyFlag("")
	require.NoError(t, err)
	assert.Zero(t, f)

	f, err = parseFamilyFlag("ipv4")
	require.NoError(t, err)
	assert.Equal(t, rtconf.FamilyIPv4, f)

	f, err = parseFamilyFlag("6")
	require.NoError(t, err)
	assert.Equal(t, rtconf.FamilyIPv6, f)

	_, err = parseFamilyFlag("ipx")
	assert.Error(t, err)
}

func TestRunShow_RejectsBadArgsBeforeOpening(t *testing.T) {
	captureOutput(t)
	assert.ErrorContains(t, RunShow([]string{"neighbors"}), "unknown table")
	assert.ErrorContains(t, RunShow([]string{"-format", "xml"}), "unknown format")
	assert.ErrorContains(t, RunShow([]string{"-family", "ipx"}), "unknown family")
}

func TestDevName(t *testing.T) {
	assert.Equal(t, "eth0", devName("eth0", 2))
	assert.Equal(t, "2", devName("", 2))
	assert.Equal(t, "-", devName("", 0))
	assert.Equal(t, "-", dash(""))
}
