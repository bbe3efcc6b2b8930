package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultPrefix namespaces limiter keys in the shared store.
const DefaultPrefix = "storefront:ratelimit"

// Limiter counts requests for a key and reports whether the limit is reached.
type Limiter interface {
	Get(ctx context.Context, key string) (limiter.Context, error)
}

// New builds a fixed-window limiter from a formatted rate such as "10-M".
// A nil client keeps counters in process memory.
func New(rate string, client redis.UniversalClient, prefix string) (*limiter.Limiter, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", rate, err)
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	opts := limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute}

	var store limiter.Store
	if client == nil {
		store = memory.NewStoreWithOptions(opts)
	} else {
		store, err = sredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("ratelimit: redis store: %w", err)
		}
	}
	return limiter.New(store, parsed), nil
}
