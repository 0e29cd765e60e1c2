package rtconf

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockTransport is a mock implementation of the Transport interface.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Subscribe(group Group, fn NotifyFunc) (SubscriptionID, error) {
	args := m.Called(group, fn)
	return args.Get(0).(SubscriptionID), args.Error(1)
}
func (m *MockTransport) Unsubscribe(id SubscriptionID) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockTransport) Dump(req DumpRequest, reply DumpFunc, done DoneFunc) error {
	args := m.Called(req, reply, done)
	return args.Error(0)
}
func (m *MockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}

// FakeTransport is an in-memory Transport that delivers inline on the
// caller's goroutine. Tests drive it with Notify, Reply and Finish.
type FakeTransport struct {
	mu     sync.Mutex
	nextID SubscriptionID
	subs   map[SubscriptionID]fakeSub
	dumps  map[DumpRequest]fakeDump
	closed bool
}

type fakeSub struct {
	group Group
	fn    NotifyFunc
}

type fakeDump struct {
	reply DumpFunc
	done  DoneFunc
}

// NewFakeTransport returns an open FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		subs:  make(map[SubscriptionID]fakeSub),
		dumps: make(map[DumpRequest]fakeDump),
	}
}

// Opener returns a TransportOpener yielding f.
func (f *FakeTransport) Opener() TransportOpener {
	return func() (Transport, error) { return f, nil }
}

func (f *FakeTransport) Subscribe(group Group, fn NotifyFunc) (SubscriptionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrTransportClosed
	}
	f.nextID++
	f.subs[f.nextID] = fakeSub{group: group, fn: fn}
	return f.nextID, nil
}

func (f *FakeTransport) Unsubscribe(id SubscriptionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
	return nil
}

func (f *FakeTransport) Dump(req DumpRequest, reply DumpFunc, done DoneFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrTransportClosed
	}
	f.dumps[req] = fakeDump{reply: reply, done: done}
	return nil
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	clear(f.subs)
	clear(f.dumps)
	return nil
}

// Subscriptions returns the number of live subscriptions.
func (f *FakeTransport) Subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Closed reports whether Close was called.
func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Notify delivers a live notification to every subscriber of group.
func (f *FakeTransport) Notify(group Group, msgType uint16, payload []byte) {
	f.mu.Lock()
	var fns []NotifyFunc
	for _, s := range f.subs {
		if s.group == group {
			fns = append(fns, s.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(msgType, payload)
	}
}

// Reply delivers one reply for an outstanding dump. It reports false when
// no such dump is outstanding.
func (f *FakeTransport) Reply(req DumpRequest, msgType uint16, payload []byte) bool {
	f.mu.Lock()
	d, ok := f.dumps[req]
	f.mu.Unlock()
	if ok {
		d.reply(msgType, payload)
	}
	return ok
}

// Finish completes an outstanding dump with err.
func (f *FakeTransport) Finish(req DumpRequest, err error) bool {
	f.mu.Lock()
	d, ok := f.dumps[req]
	delete(f.dumps, req)
	f.mu.Unlock()
	if ok {
		d.done(err)
	}
	return ok
}

// FinishAll completes every outstanding dump successfully.
func (f *FakeTransport) FinishAll() {
	f.mu.Lock()
	reqs := make([]DumpRequest, 0, len(f.dumps))
	for req := range f.dumps {
		reqs = append(reqs, req)
	}
	f.mu.Unlock()
	for _, req := range reqs {
		f.Finish(req, nil)
	}
}
