package executor

import "time"

// unboundedMax stands in for "no ceiling" in NewCachedPool. uint32 max
// rather than a sentinel keeps the size accessors simple integers.
const unboundedMax = 1<<32 - 1

// NewFixedPool returns a pool with exactly n workers: min == max == n, no
// keep-alive reclamation. Workers are not prestarted; call
// PrestartAllMinThreads if eager startup is wanted.
func NewFixedPool(n uint32, opts ...Option) *Executor {
	return New(n, n, 0, opts...)
}

// NewSingleThreadExecutor returns a pool backed by exactly one worker.
// Submitted tasks run strictly in submission order since there is never
// more than one active worker to race against.
func NewSingleThreadExecutor(opts ...Option) *Executor {
	return New(1, 1, 0, opts...)
}

// NewCachedPool returns a pool that starts empty, grows without a
// practical ceiling, and reclaims idle workers after 60 seconds.
func NewCachedPool(opts ...Option) *Executor {
	return New(0, unboundedMax, 60*time.Second, opts...)
}
