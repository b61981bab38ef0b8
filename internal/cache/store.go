package cache

import "time"

// Store is a persistent second tier behind the in-memory cache.
type Store interface {
	Load(key string) (Entry, bool, error)
	Save(e Entry) error
	Delete(key string) error
	// DeleteMatching removes every entry whose key contains pattern.
	DeleteMatching(pattern string) (int64, error)
	// DeleteExpired removes entries that expired before now.
	DeleteExpired(now time.Time) (int64, error)
	Clear() error
}
