package rtconf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimm.is/rtmirror/internal/clock"
	"grimm.is/rtmirror/internal/events"
	"grimm.is/rtmirror/internal/logging"
	"grimm.is/rtmirror/internal/metrics"
)

var (
	// ErrSubscribe wraps the failure of a multicast subscription during
	// Create.
	ErrSubscribe = errors.New("failed to subscribe")
	// ErrDestroyed is returned by WaitSynced once the mirror is destroyed.
	ErrDestroyed = errors.New("mirror destroyed")
)

// State is the lifecycle state of a Mirror.
type State uint8

const (
	StateUninitialized State = iota
	StateInitializing
	StateRunning
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateUninitialized; st <= StateDestroyed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// setupStep pairs a multicast group with the dump that seeds it.
type setupStep struct {
	group Group
	dump  DumpRequest
}

// setupSteps is the fixed subscription order used by Create.
var setupSteps = [...]setupStep{
	{GroupIPv4Route, DumpRequest{ObjectRoute, FamilyIPv4}},
	{GroupIPv6Route, DumpRequest{ObjectRoute, FamilyIPv6}},
	{GroupIPv4Address, DumpRequest{ObjectAddress, FamilyIPv4}},
	{GroupIPv6Address, DumpRequest{ObjectAddress, FamilyIPv6}},
}

// Option configures a Mirror.
type Option func(*options)

type options struct {
	log   *logging.Logger
	hub   *events.Hub
	clock clock.Clock
}

// WithLogger sets the logger; the default is the "rtconf" component logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithEvents publishes table changes and dump completions to hub.
func WithEvents(hub *events.Hub) Option {
	return func(o *options) { o.hub = hub }
}

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Stats is a point-in-time summary of a Mirror.
type Stats struct {
	InstanceID   string        `json:"instance_id"`
	State        State         `json:"state"`
	Routes       int           `json:"routes"`
	Addresses    int           `json:"addresses"`
	PendingDumps int           `json:"pending_dumps"`
	DumpErrors   int           `json:"dump_errors"`
	Synced       bool          `json:"synced"`
	SyncedAt     time.Time     `json:"synced_at,omitzero"`
	StartedAt    time.Time     `json:"started_at,omitzero"`
	Uptime       time.Duration `json:"uptime"`
}

// Mirror keeps an in-process copy of the kernel's IPv4/IPv6 routes and
// interface addresses, seeded by dumps and kept current by notifications.
//
// Table mutation happens only on the transport's delivery goroutine.
// Routes, Addresses and Stats may be called from any goroutine.
type Mirror struct {
	id      string
	log     *logging.Logger
	hub     *events.Hub
	clock   clock.Clock
	metrics *metrics.Registry

	transport Transport
	subs      []SubscriptionID

	mu         sync.RWMutex
	state      State
	routes     *RouteTable
	addrs      *AddressTable
	rec        *Reconciler
	pending    int
	dumpErrors int
	startedAt  time.Time
	syncedAt   time.Time

	synced chan struct{}
	closed chan struct{}
}

// Create opens a transport with open, subscribes the four rtnetlink groups
// in a fixed order and issues the matching dump after each subscription.
// Startup is all-or-nothing: if opening the transport or any subscription
// fails, everything acquired so far is released in reverse order and the
// error is returned.
func Create(open TransportOpener, opts ...Option) (*Mirror, error) {
	o := options{
		log:   logging.WithComponent("rtconf"),
		clock: clock.Real,
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Mirror{
		id:      uuid.NewString(),
		hub:     o.hub,
		clock:   o.clock,
		metrics: metrics.Get(),
		state:   StateUninitialized,
		synced:  make(chan struct{}),
		closed:  make(chan struct{}),
	}
	m.log = o.log.WithFields(map[string]any{"instance": m.id})

	if err := m.setup(open); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mirror) setup(open TransportOpener) (err error) {
	m.setState(StateInitializing)

	var undo []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		m.setState(StateDestroyed)
		close(m.closed)
	}()

	m.mu.Lock()
	m.routes = NewRouteTable()
	m.addrs = NewAddressTable()
	m.rec = NewReconciler(m.routes, m.addrs, m.log, m.hub)
	m.rec.LockTables(&m.mu)
	m.pending = len(setupSteps)
	m.mu.Unlock()
	m.metrics.PendingDumps.Add(float64(len(setupSteps)))
	undo = append(undo, m.releaseTables)

	t, err := open()
	if err != nil {
		m.log.Error("failed to open transport", "error", err)
		return fmt.Errorf("failed to open transport: %w", err)
	}
	m.transport = t
	undo = append(undo, func() {
		if err := t.Close(); err != nil {
			m.log.Warn("failed to close transport during rollback", "error", err)
		}
	})

	// Callbacks may run before Subscribe or Dump return, so m.mu is not
	// held across transport calls.
	for _, step := range setupSteps {
		id, err := t.Subscribe(step.group, m.notify)
		if err != nil {
			m.metrics.SubscribeFailures.WithLabelValues(step.group.String()).Inc()
			m.log.Error("failed to register to rtnetlink group", "group", step.group, "error", err)
			return fmt.Errorf("%w to %s: %w", ErrSubscribe, step.group, err)
		}
		m.subs = append(m.subs, id)
		undo = append(undo, func() {
			if err := t.Unsubscribe(id); err != nil {
				m.log.Warn("failed to unsubscribe during rollback", "group", step.group, "error", err)
			}
		})
		m.dump(step.dump)
	}

	m.mu.Lock()
	m.state = StateRunning
	m.startedAt = m.clock.Now()
	m.mu.Unlock()
	m.log.Info("mirror running", "groups", len(m.subs))
	return nil
}

// dump issues req. Failing to issue it is transient: the dump counts as
// finished and is not retried.
func (m *Mirror) dump(req DumpRequest) {
	err := m.transport.Dump(req,
		func(msgType uint16, payload []byte) { m.apply(SourceDump, msgType, payload) },
		func(err error) { m.dumpDone(req, err) },
	)
	if err != nil {
		m.metrics.RecordDumpError(req.Object.String(), req.Family.String())
		m.log.Warn("failed to issue dump", "object", req.Object, "family", req.Family, "error", err)
		m.finishDump(err)
	}
}

func (m *Mirror) dumpDone(req DumpRequest, err error) {
	if err != nil {
		m.metrics.RecordDumpError(req.Object.String(), req.Family.String())
		m.log.Warn("dump failed", "object", req.Object, "family", req.Family, "error", err)
	} else {
		m.log.Info("dump complete", "object", req.Object, "family", req.Family)
	}
	if m.hub != nil {
		m.hub.EmitDumpDone(req.Object.String(), req.Family.String(), err)
	}
	m.finishDump(err)
}

func (m *Mirror) finishDump(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.dumpErrors++
	}
	if m.pending == 0 {
		return
	}
	m.pending--
	m.metrics.PendingDumps.Dec()
	if m.pending == 0 {
		m.syncedAt = m.clock.Now()
		close(m.synced)
	}
}

func (m *Mirror) notify(msgType uint16, payload []byte) {
	m.apply(SourceNotify, msgType, payload)
}

// apply runs on the delivery goroutine. The reconciler takes m.mu only
// around each table mutation, so readers are not blocked for a whole dump.
func (m *Mirror) apply(src Source, msgType uint16, payload []byte) {
	m.mu.RLock()
	rec := m.rec
	m.mu.RUnlock()
	if rec == nil {
		return
	}
	rec.Handle(src, msgType, payload)
}

// Destroy unsubscribes every group and closes the transport, so that no
// callback can run afterwards, then releases both tables. Calling Destroy
// on a destroyed mirror is a no-op.
func (m *Mirror) Destroy() error {
	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		return nil
	}
	m.state = StateDestroyed
	t, subs := m.transport, m.subs
	m.transport, m.subs = nil, nil
	m.mu.Unlock()

	var errs []error
	for _, id := range subs {
		if err := t.Unsubscribe(id); err != nil {
			errs = append(errs, fmt.Errorf("failed to unsubscribe %d: %w", id, err))
		}
	}
	if err := t.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
	}

	m.releaseTables()
	close(m.closed)
	m.log.Info("mirror destroyed")
	return errors.Join(errs...)
}

// releaseTables clears and drops both tables.
func (m *Mirror) releaseTables() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.routes != nil {
		for _, r := range m.routes.entries {
			m.metrics.TableSize("route", r.Family.String()).Dec()
		}
		n := m.routes.Clear()
		m.log.Debug("released routes", "count", n)
	}
	if m.addrs != nil {
		for _, a := range m.addrs.entries {
			m.metrics.TableSize("address", a.Family.String()).Dec()
		}
		n := m.addrs.Clear()
		m.log.Debug("released addresses", "count", n)
	}
	m.metrics.PendingDumps.Sub(float64(m.pending))
	m.pending = 0
	m.routes, m.addrs, m.rec = nil, nil, nil
}

func (m *Mirror) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// ID returns the instance id attached to this mirror's logs.
func (m *Mirror) ID() string {
	return m.id
}

// State returns the lifecycle state.
func (m *Mirror) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Routes returns a copy of the route table in insertion order. Entries
// delivered by both a dump and a notification appear twice.
func (m *Mirror) Routes() []RouteEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.routes == nil {
		return nil
	}
	return m.routes.Entries()
}

// Addresses returns a copy of the address table in insertion order.
func (m *Mirror) Addresses() []AddressEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.addrs == nil {
		return nil
	}
	return m.addrs.Entries()
}

// Stats returns table sizes and sync progress.
func (m *Mirror) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		InstanceID:   m.id,
		State:        m.state,
		PendingDumps: m.pending,
		DumpErrors:   m.dumpErrors,
		SyncedAt:     m.syncedAt,
		StartedAt:    m.startedAt,
		Synced:       !m.syncedAt.IsZero(),
	}
	if m.routes != nil {
		s.Routes = m.routes.Len()
	}
	if m.addrs != nil {
		s.Addresses = m.addrs.Len()
	}
	if m.state == StateRunning && !m.startedAt.IsZero() {
		s.Uptime = m.clock.Since(m.startedAt)
		m.metrics.Uptime.Set(s.Uptime.Seconds())
	}
	return s
}

// WaitSynced blocks until every startup dump has completed, successfully
// or not. It returns ErrDestroyed if the mirror is destroyed first.
func (m *Mirror) WaitSynced(ctx context.Context) error {
	select {
	case <-m.synced:
		return nil
	default:
	}
	select {
	case <-m.synced:
		return nil
	case <-m.closed:
		return ErrDestroyed
	case <-ctx.Done():
		return ctx.Err()
	}
}
