// Package rtconf mirrors the kernel's IPv4 and IPv6 routing table and
// interface addresses in memory.
//
// A Mirror subscribes to the four rtnetlink multicast groups (IPv4 route,
// IPv6 route, IPv4 address, IPv6 address) through a Transport, seeds its
// tables from a dump per group and then applies every add and delete
// notification as it arrives. Dump replies and notifications share one
// path, so an object created while its dump is in flight can be recorded
// twice. Tables keep such duplicates; rtmirror_duplicate_adds_total makes
// them visible.
//
// Removal uses wildcard-if-absent matching: family, table and interface
// index (or, for addresses, family, prefix length, index and address) must
// agree, while optional attributes only constrain the match when both the
// stored entry and the delete carry them. The oldest matching entry is
// removed.
package rtconf
