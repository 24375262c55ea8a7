// Package kv is the key-value storage used for invoice persistence. Values are
// opaque strings; callers own serialisation.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// ErrConflict is returned when an optimistic update keeps losing races.
var ErrConflict = errors.New("platform/kv: update conflict")

// UpdateFunc receives the current value (ok is false when absent) and returns
// the value to store.
type UpdateFunc func(current string, ok bool) (string, error)

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Update performs an atomic read-modify-write of key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// ValidateDriver reports an error for unknown driver names.
func ValidateDriver(name string) error {
	switch name {
	case DriverMemory, DriverRedis, DriverPostgres:
		return nil
	default:
		return fmt.Errorf("platform/kv: unknown driver %q", name)
	}
}
