// Package events provides the pub/sub event bus for mirror changes.
// Table mutations and dump completions flow through the hub to the API
// websocket and the churn history.
package events

import "time"

// EventType identifies the category of event.
type EventType string

const (
	EventRouteAdd   EventType = "route.add"
	EventRouteDel   EventType = "route.del"
	EventAddressAdd EventType = "address.add"
	EventAddressDel EventType = "address.del"
	EventDumpDone   EventType = "dump.done"
)

// TableEvents are the event types that mutate a table.
var TableEvents = []EventType{EventRouteAdd, EventRouteDel, EventAddressAdd, EventAddressDel}

// Event is the core message passed through the event bus.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // Component that emitted, e.g. "rtconf"
	Data      any       `json:"data"`   // Type-specific payload
}

// TableChangeData is the payload for route/address add and delete events.
type TableChangeData struct {
	Origin string `json:"origin"` // "dump" or "notify"
	Family string `json:"family"`
	Entry  any    `json:"entry"`
}

// DumpDoneData is the payload for EventDumpDone.
type DumpDoneData struct {
	Object string `json:"object"`
	Family string `json:"family"`
	Error  string `json:"error,omitempty"`
}
