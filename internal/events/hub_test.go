package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(10, EventRouteAdd)

	hub.EmitTableChange(EventRouteAdd, "dump", "ipv4", "10.0.0.0/24 dev 2 table 254")

	select {
	case e := <-ch:
		assert.Equal(t, EventRouteAdd, e.Type)
		assert.Equal(t, "rtconf", e.Source)
		assert.False(t, e.Timestamp.IsZero())
		data, ok := e.Data.(TableChangeData)
		require.True(t, ok, "expected TableChangeData")
		assert.Equal(t, "dump", data.Origin)
		assert.Equal(t, "ipv4", data.Family)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestHub_GlobalSubscription(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(10)

	hub.Publish(Event{Type: EventRouteAdd, Source: "test"})
	hub.Publish(Event{Type: EventAddressDel, Source: "test"})
	hub.EmitDumpDone("route", "ipv6", nil)

	assert.Len(t, ch, 3)
}

func TestHub_TypeFiltering(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(10, EventAddressAdd, EventAddressDel)

	hub.Publish(Event{Type: EventRouteAdd, Source: "test"})
	hub.Publish(Event{Type: EventAddressAdd, Source: "test"})
	hub.Publish(Event{Type: EventDumpDone, Source: "test"})
	hub.Publish(Event{Type: EventAddressDel, Source: "test"})

	require.Len(t, ch, 2)
	assert.Equal(t, EventAddressAdd, (<-ch).Type)
	assert.Equal(t, EventAddressDel, (<-ch).Type)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(10, EventRouteDel)
	all := hub.Subscribe(10)

	hub.Unsubscribe(ch)
	hub.Unsubscribe(all)
	hub.Publish(Event{Type: EventRouteDel})

	assert.Empty(t, ch)
	assert.Empty(t, all)
}

func TestHub_DumpDoneCarriesError(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(1, EventDumpDone)

	hub.EmitDumpDone("address", "ipv4", errors.New("dump interrupted"))

	e := <-ch
	data := e.Data.(DumpDoneData)
	assert.Equal(t, "address", data.Object)
	assert.Equal(t, "ipv4", data.Family)
	assert.Equal(t, "dump interrupted", data.Error)
}

func TestHub_NonBlocking(t *testing.T) {
	hub := NewHub()
	_ = hub.Subscribe(1, EventRouteAdd)

	for i := 0; i < 10; i++ {
		hub.Publish(Event{Type: EventRouteAdd, Source: "test"})
	}

	published, dropped := hub.Stats()
	assert.Equal(t, uint64(10), published)
	assert.Equal(t, uint64(9), dropped)
}

func TestHub_Concurrent(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(1000, EventRouteAdd)

	var wg sync.WaitGroup
	const numPublishers = 10
	const eventsPerPublisher = 100

	for i := 0; i < numPublishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerPublisher; j++ {
				hub.Publish(Event{Type: EventRouteAdd, Source: "test"})
			}
		}()
	}
	wg.Wait()

	published, dropped := hub.Stats()
	assert.Equal(t, uint64(numPublishers*eventsPerPublisher), published)
	assert.Equal(t, int(published-dropped), len(ch))
}
