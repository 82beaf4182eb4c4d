// Package storage defines the persistence interfaces and record shapes for
// game rooms.
//
// Two stores exist: the snapshot store holds the latest full room state so
// a restarted server can rehydrate every room, and the roll journal keeps
// an append-only log of processed rolls so any game can be audited or
// replayed. Implementations live in subpackages; the SQLite store is the
// production one.
package storage
