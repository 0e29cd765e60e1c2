package rtconf

// table is an insertion-ordered list of entries. It is not safe for
// concurrent use; the Mirror serializes access to it.
type table[T comparable] struct {
	entries []T
	match   func(entry, query T) bool
}

// Add appends e at the tail. Duplicates are kept.
func (t *table[T]) Add(e T) {
	t.entries = append(t.entries, e)
}

// RemoveMatching removes the oldest entry satisfying query and returns it.
// It is a no-op when nothing matches.
func (t *table[T]) RemoveMatching(query T) (T, bool) {
	for i, e := range t.entries {
		if !t.match(e, query) {
			continue
		}
		copy(t.entries[i:], t.entries[i+1:])
		var zero T
		t.entries[len(t.entries)-1] = zero
		t.entries = t.entries[:len(t.entries)-1]
		return e, true
	}
	var zero T
	return zero, false
}

// Contains reports whether an entry equal to e in every field is present.
func (t *table[T]) Contains(e T) bool {
	for _, x := range t.entries {
		if x == e {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (t *table[T]) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the entries in insertion order.
func (t *table[T]) Entries() []T {
	out := make([]T, len(t.entries))
	copy(out, t.entries)
	return out
}

// Clear releases every entry and returns how many there were.
func (t *table[T]) Clear() int {
	n := len(t.entries)
	clear(t.entries)
	t.entries = nil
	return n
}

// RouteTable holds mirrored routes in the order the kernel announced them.
type RouteTable struct {
	table[RouteEntry]
}

// NewRouteTable returns an empty route table using wildcard-if-absent
// matching for removals.
func NewRouteTable() *RouteTable {
	return &RouteTable{table[RouteEntry]{match: matchRoute}}
}

// AddressTable holds mirrored interface addresses in announcement order.
type AddressTable struct {
	table[AddressEntry]
}

// NewAddressTable returns an empty address table.
func NewAddressTable() *AddressTable {
	return &AddressTable{table[AddressEntry]{match: matchAddress}}
}
