// Package cache provides the TTL response cache that sits in front of the
// upstream market-data and analytics services.
//
// Entries are keyed by a canonical request signature (see BuildKey) and expire
// lazily: a stale entry is removed the next time its key is looked up. An
// optional second tier (SQLite or Redis) keeps payloads across restarts.
package cache

import "time"

// Entry is one cached response payload.
type Entry struct {
	Key      string        `msgpack:"k"`
	Payload  []byte        `msgpack:"p"`
	StoredAt time.Time     `msgpack:"s"`
	TTL      time.Duration `msgpack:"t"`
}

// ExpiresAt returns the last instant at which the entry is still valid.
func (e Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// Valid reports whether now <= StoredAt + TTL.
func (e Entry) Valid(now time.Time) bool {
	return !now.After(e.ExpiresAt())
}
