// Package storage keeps the small amount of state the console persists between
// runs: the backend URL and the logged-in admin identity.
package storage

import (
	"github.com/samber/oops"
)

// KV is a flat string key/value store with local-storage semantics.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Delete removes the keys; missing keys are ignored.
	Delete(keys ...string) error
	Close() error
}

// Open returns the KV for the configured driver.
func Open(driver, path string) (KV, error) {
	switch driver {
	case "file":
		return NewFile(path)
	case "sqlite":
		return NewSQLite(path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, oops.
			With("kind", "config").
			Errorf("unknown storage driver %q", driver)
	}
}
