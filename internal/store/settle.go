package store

import (
	"context"
	"sync"
)

// Outcome is the settled result of one task in a fan-out.
type Outcome[K any] struct {
	Key K
	Err error
}

// settleAll runs fn for every key concurrently and waits for all of them.
// The aggregate never fails: each outcome carries its own error, in key order.
func settleAll[K any](ctx context.Context, keys []K, fn func(context.Context, K) error) []Outcome[K] {
	outcomes := make([]Outcome[K], len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key K) {
			defer wg.Done()
			outcomes[i] = Outcome[K]{Key: key, Err: fn(ctx, key)}
		}(i, key)
	}
	wg.Wait()
	return outcomes
}
