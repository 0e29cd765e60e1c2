package rtconf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_JSONRoundTrip(t *testing.T) {
	in := Stats{
		InstanceID: "abc",
		State:      StateRunning,
		Routes:     3,
		Synced:     true,
		SyncedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"running"`)

	var out Stats
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestRouteEntry_JSONRoundTrip(t *testing.T) {
	in := RouteEntry{
		Family:      FamilyIPv6,
		Table:       254,
		Index:       2,
		Destination: pfx("2001:db8::/64"),
		Gateway:     ip("fe80::1"),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"family":"ipv6"`)

	var out RouteEntry
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalText(t *testing.T) {
	var f Family
	require.NoError(t, f.UnmarshalText([]byte("ipv4")))
	assert.Equal(t, FamilyIPv4, f)
	require.NoError(t, f.UnmarshalText([]byte("family(7)")))
	assert.Equal(t, Family(7), f)
	assert.Error(t, f.UnmarshalText([]byte("ipx")))

	var s Source
	require.NoError(t, s.UnmarshalText([]byte("dump")))
	assert.Equal(t, SourceDump, s)
	assert.Error(t, s.UnmarshalText([]byte("kernel")))

	var st State
	for _, want := range []State{StateUninitialized, StateInitializing, StateRunning, StateDestroyed} {
		text, err := want.MarshalText()
		require.NoError(t, err)
		require.NoError(t, st.UnmarshalText(text))
		assert.Equal(t, want, st)
	}
	assert.Error(t, st.UnmarshalText([]byte("unknown")))
}
