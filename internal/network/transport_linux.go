//go:build linux
// +build linux

package network

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/vishvananda/netlink/nl"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"grimm.is/rtmirror/internal/logging"
	"grimm.is/rtmirror/internal/rtconf"
)

// Transport is the rtnetlink implementation of rtconf.Transport.
//
// All multicast groups and all dumps share one NETLINK_ROUTE socket read by
// a single goroutine, so notifications and dump replies reach the mirror in
// the order the kernel queued them. Dumps run one at a time; a dump issued
// while another is in flight waits for it to finish. The reader never calls
// back directly: it queues work for a single delivery goroutine.
//
// Close must not be called from a callback.
type Transport struct {
	opts  Options
	log   *logging.Logger
	newNs netns.NsHandle
	curNs netns.NsHandle

	mu      sync.Mutex
	closed  bool
	sock    *nl.NetlinkSocket
	nextID  rtconf.SubscriptionID
	subs    map[rtconf.SubscriptionID]*subscription
	members map[rtconf.Group]int
	current *dump
	waiting []*dump

	queue       chan delivery
	quit        chan struct{}
	reader      sync.WaitGroup
	deliverDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

type subscription struct {
	id    rtconf.SubscriptionID
	group rtconf.Group
	fn    rtconf.NotifyFunc
}

type dump struct {
	req         rtconf.DumpRequest
	reply       rtconf.DumpFunc
	done        rtconf.DoneFunc
	seq         uint32
	interrupted bool
}

type delivery struct {
	sub rtconf.SubscriptionID // zero for dump callbacks
	run func()
}

// Open creates a transport bound to the configured network namespace.
// The socket is opened by the first Subscribe or Dump.
func Open(opts Options) (*Transport, error) {
	opts.setDefaults()

	t := &Transport{
		opts:        opts,
		log:         opts.Logger,
		newNs:       netns.None(),
		curNs:       netns.None(),
		subs:        make(map[rtconf.SubscriptionID]*subscription),
		members:     make(map[rtconf.Group]int),
		queue:       make(chan delivery, opts.QueueSize),
		quit:        make(chan struct{}),
		deliverDone: make(chan struct{}),
	}

	if opts.Netns != "" {
		ns, err := netns.GetFromName(opts.Netns)
		if err != nil {
			return nil, fmt.Errorf("failed to open netns %s: %w", opts.Netns, err)
		}
		cur, err := netns.Get()
		if err != nil {
			ns.Close()
			return nil, fmt.Errorf("failed to get current netns: %w", err)
		}
		t.newNs, t.curNs = ns, cur
	}

	go t.deliver()
	return t, nil
}

// Opener returns an rtconf.TransportOpener that calls Open with opts.
func Opener(opts Options) rtconf.TransportOpener {
	return func() (rtconf.Transport, error) {
		t, err := Open(opts)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// Subscribe joins one rtnetlink multicast group on the shared socket.
func (t *Transport) Subscribe(group rtconf.Group, fn rtconf.NotifyFunc) (rtconf.SubscriptionID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, rtconf.ErrTransportClosed
	}
	sock, err := t.socket()
	if err != nil {
		return 0, err
	}
	if t.members[group] == 0 {
		if err := unix.SetsockoptInt(sock.GetFd(), unix.SOL_NETLINK, unix.NETLINK_ADD_MEMBERSHIP, int(group)); err != nil {
			return 0, fmt.Errorf("failed to join %s: %w", group, err)
		}
	}
	t.members[group]++

	t.nextID++
	sub := &subscription{id: t.nextID, group: group, fn: fn}
	t.subs[sub.id] = sub

	t.log.Debug("subscribed", "group", group, "id", sub.id)
	return sub.id, nil
}

// Unsubscribe drops the handler and leaves the group once no handler is
// left on it. Notifications already queued for the subscription are
// dropped.
func (t *Transport) Unsubscribe(id rtconf.SubscriptionID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, ok := t.subs[id]
	if !ok {
		return fmt.Errorf("unknown subscription %d", id)
	}
	delete(t.subs, id)
	t.log.Debug("unsubscribed", "group", sub.group, "id", id)
	t.members[sub.group]--
	if t.members[sub.group] > 0 {
		return nil
	}
	delete(t.members, sub.group)
	if t.closed || t.sock == nil {
		return nil
	}
	if err := unix.SetsockoptInt(t.sock.GetFd(), unix.SOL_NETLINK, unix.NETLINK_DROP_MEMBERSHIP, int(sub.group)); err != nil {
		return fmt.Errorf("failed to leave %s: %w", sub.group, err)
	}
	return nil
}

// Dump queues a dump request on the shared socket. It is sent at once when
// no other dump is in flight. Replies and the final done call are queued
// for the delivery goroutine.
func (t *Transport) Dump(req rtconf.DumpRequest, reply rtconf.DumpFunc, done rtconf.DoneFunc) error {
	if _, _, err := dumpMessage(req); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return rtconf.ErrTransportClosed
	}
	if _, err := t.socket(); err != nil {
		return err
	}

	d := &dump{req: req, reply: reply, done: done}
	if t.current != nil {
		t.waiting = append(t.waiting, d)
		return nil
	}
	return t.send(d)
}

// Close closes the socket, waits for the reader and the delivery goroutine,
// and releases the namespace handles. No callback runs after Close returns.
// Dumps still waiting to be sent never complete. Later calls return the
// first result.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		sock := t.sock
		t.subs = make(map[rtconf.SubscriptionID]*subscription)
		t.members = make(map[rtconf.Group]int)
		t.current, t.waiting = nil, nil
		t.mu.Unlock()

		close(t.quit)
		if sock != nil {
			sock.Close()
		}
		t.reader.Wait()
		<-t.deliverDone

		var errs []error
		if t.newNs.IsOpen() {
			errs = append(errs, t.newNs.Close())
		}
		if t.curNs.IsOpen() {
			errs = append(errs, t.curNs.Close())
		}
		t.closeErr = errors.Join(errs...)
		t.log.Debug("transport closed")
	})
	return t.closeErr
}

// socket opens the shared socket and starts its reader. t.mu must be held.
func (t *Transport) socket() (*nl.NetlinkSocket, error) {
	if t.sock != nil {
		return t.sock, nil
	}
	sock, err := nl.GetNetlinkSocketAt(t.newNs, t.curNs, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("failed to open rtnetlink socket: %w", err)
	}
	tv := unix.NsecToTimeval(t.opts.PollInterval.Nanoseconds())
	if err := sock.SetReceiveTimeout(&tv); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	t.sock = sock
	t.reader.Add(1)
	go t.read(sock)
	return sock, nil
}

// send writes d's request and makes it the dump in flight. t.mu must be
// held.
func (t *Transport) send(d *dump) error {
	msgType, hdr, err := dumpMessage(d.req)
	if err != nil {
		return err
	}
	req := nl.NewNetlinkRequest(int(msgType), unix.NLM_F_DUMP)
	req.AddData(hdr)
	if err := t.sock.Send(req); err != nil {
		return fmt.Errorf("failed to send %s %s dump: %w", d.req.Family, d.req.Object, err)
	}
	d.seq = req.Seq
	t.current = d
	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) active(id rtconf.SubscriptionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.subs[id]
	return ok
}

func (t *Transport) enqueue(d delivery) bool {
	select {
	case t.queue <- d:
		return true
	case <-t.quit:
		return false
	}
}

func (t *Transport) deliver() {
	defer close(t.deliverDone)
	for {
		select {
		case <-t.quit:
			return
		case d := <-t.queue:
			select {
			case <-t.quit:
				return
			default:
			}
			if d.sub != 0 && !t.active(d.sub) {
				continue
			}
			d.run()
		}
	}
}

func (t *Transport) read(sock *nl.NetlinkSocket) {
	defer t.reader.Done()

	for {
		msgs, from, err := sock.Receive()
		if err != nil {
			if t.isClosed() {
				return
			}
			switch {
			case temporary(err):
				continue
			case errors.Is(err, unix.ENOBUFS):
				t.log.Warn("receive queue overrun, mirror may be stale")
				if !t.finishDump(fmt.Errorf("dump lost messages: %w", err)) {
					return
				}
				continue
			}
			t.log.Error("rtnetlink socket failed", "error", err)
			t.abortDumps(err)
			return
		}

		// Multicast datagrams carry their group in the source address;
		// dump replies are unicast.
		if !t.dispatch(msgs, from.Groups != 0) {
			return
		}
	}
}

// dispatch queues one datagram's messages. It returns false once the
// transport is closing.
func (t *Transport) dispatch(msgs []syscall.NetlinkMessage, multicast bool) bool {
	if multicast {
		return t.dispatchNotifications(msgs)
	}
	return t.dispatchDump(msgs)
}

func (t *Transport) dispatchNotifications(msgs []syscall.NetlinkMessage) bool {
	for _, m := range msgs {
		switch m.Header.Type {
		case unix.NLMSG_NOOP, unix.NLMSG_DONE, unix.NLMSG_ERROR:
			continue
		}
		group, ok := groupOf(m.Header.Type, m.Data)
		if !ok {
			continue
		}
		msgType := m.Header.Type
		payload := append([]byte(nil), m.Data...)
		for _, sub := range t.subscribers(group) {
			fn := sub.fn
			if !t.enqueue(delivery{sub: sub.id, run: func() { fn(msgType, payload) }}) {
				return false
			}
		}
	}
	return true
}

func (t *Transport) dispatchDump(msgs []syscall.NetlinkMessage) bool {
	t.mu.Lock()
	d := t.current
	t.mu.Unlock()
	if d == nil {
		return true
	}

	for _, m := range msgs {
		if m.Header.Seq != d.seq {
			continue
		}
		if m.Header.Flags&unix.NLM_F_DUMP_INTR != 0 && !d.interrupted {
			d.interrupted = true
			t.log.Warn("dump interrupted by concurrent change", "object", d.req.Object, "family", d.req.Family)
		}

		switch m.Header.Type {
		case unix.NLMSG_DONE:
			return t.finishDump(doneError(m.Data))
		case unix.NLMSG_ERROR:
			return t.finishDump(errorMessage(m.Data))
		case unix.NLMSG_NOOP:
			continue
		}

		msgType := m.Header.Type
		payload := append([]byte(nil), m.Data...)
		reply := d.reply
		if !t.enqueue(delivery{run: func() { reply(msgType, payload) }}) {
			return false
		}
	}
	return true
}

func (t *Transport) subscribers(group rtconf.Group) []*subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*subscription
	for _, sub := range t.subs {
		if sub.group == group {
			out = append(out, sub)
		}
	}
	return out
}

// finishDump completes the dump in flight with err and sends the next
// waiting dump. A waiting dump that cannot be sent completes with the send
// error.
func (t *Transport) finishDump(err error) bool {
	var (
		finished []*dump
		errs     []error
	)
	t.mu.Lock()
	if t.current != nil {
		finished = append(finished, t.current)
		errs = append(errs, err)
		t.current = nil
	}
	for t.current == nil && len(t.waiting) > 0 && !t.closed {
		next := t.waiting[0]
		t.waiting = t.waiting[1:]
		if sendErr := t.send(next); sendErr != nil {
			finished = append(finished, next)
			errs = append(errs, sendErr)
		}
	}
	t.mu.Unlock()

	for i, d := range finished {
		done, err := d.done, errs[i]
		if !t.enqueue(delivery{run: func() { done(err) }}) {
			return false
		}
	}
	return true
}

// abortDumps fails the dump in flight and every waiting dump with err.
func (t *Transport) abortDumps(err error) {
	t.mu.Lock()
	var all []*dump
	if t.current != nil {
		all = append(all, t.current)
	}
	all = append(all, t.waiting...)
	t.current, t.waiting = nil, nil
	t.mu.Unlock()

	for _, d := range all {
		done := d.done
		if !t.enqueue(delivery{run: func() { done(err) }}) {
			return
		}
	}
}

// groupOf returns the multicast group a notification belongs to. rtmsg and
// ifaddrmsg both start with the address family.
func groupOf(msgType uint16, payload []byte) (rtconf.Group, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	family := rtconf.Family(payload[0])
	switch msgType {
	case unix.RTM_NEWROUTE, unix.RTM_DELROUTE:
		switch family {
		case rtconf.FamilyIPv4:
			return rtconf.GroupIPv4Route, true
		case rtconf.FamilyIPv6:
			return rtconf.GroupIPv6Route, true
		}
	case unix.RTM_NEWADDR, unix.RTM_DELADDR:
		switch family {
		case rtconf.FamilyIPv4:
			return rtconf.GroupIPv4Address, true
		case rtconf.FamilyIPv6:
			return rtconf.GroupIPv6Address, true
		}
	}
	return 0, false
}

// dumpMessage returns the request type and family header for a dump.
func dumpMessage(req rtconf.DumpRequest) (uint16, nl.NetlinkRequestData, error) {
	switch req.Object {
	case rtconf.ObjectRoute:
		msg := &nl.RtMsg{}
		msg.Family = uint8(req.Family)
		return unix.RTM_GETROUTE, msg, nil
	case rtconf.ObjectAddress:
		return unix.RTM_GETADDR, nl.NewIfAddrmsg(int(req.Family)), nil
	default:
		return 0, nil, fmt.Errorf("unsupported dump object %s", req.Object)
	}
}

// doneError reads the status the kernel may append to NLMSG_DONE. A
// negative value is an errno that aborted the dump.
func doneError(data []byte) error {
	if len(data) < 4 {
		return nil
	}
	if status := int32(nl.NativeEndian().Uint32(data[:4])); status < 0 {
		return fmt.Errorf("dump aborted: %w", unix.Errno(-status))
	}
	return nil
}

// errorMessage reads an NLMSG_ERROR payload. Error code zero is an ack.
func errorMessage(data []byte) error {
	if len(data) < 4 {
		return errors.New("truncated netlink error message")
	}
	if status := int32(nl.NativeEndian().Uint32(data[:4])); status < 0 {
		return fmt.Errorf("dump failed: %w", unix.Errno(-status))
	}
	return nil
}

func temporary(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}

var _ rtconf.Transport = (*Transport)(nil)
