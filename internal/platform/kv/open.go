package kv

import (
	"context"
	"fmt"

	"github.com/invox/invox/internal/platform/cache"
	"github.com/invox/invox/internal/platform/db"
)

// Options selects and configures a backend.
type Options struct {
	Driver    string
	Namespace string
	RedisAddr string
	PGDSN     string
}

// Open connects the configured backend. The returned close function releases
// any connections and is never nil.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(), func() {}, nil
	case DriverRedis:
		client, err := cache.New(ctx, opts.RedisAddr)
		if err != nil {
			return nil, func() {}, err
		}
		return NewRedis(client, opts.Namespace), func() { _ = client.Close() }, nil
	case DriverPostgres:
		if opts.PGDSN == "" {
			return nil, func() {}, fmt.Errorf("platform/kv: PG_DSN required for postgres driver")
		}
		pool, err := db.New(ctx, opts.PGDSN)
		if err != nil {
			return nil, func() {}, err
		}
		store := NewPostgres(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		return store, pool.Close, nil
	default:
		return nil, func() {}, ValidateDriver(opts.Driver)
	}
}
