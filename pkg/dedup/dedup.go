// Package dedup wraps executor.Task submissions with a probabilistic
// duplicate filter, for producers that may retry a Submit after a timeout
// and want to avoid double-running the same logical task.
package dedup

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/nullstacklabs/execpool/pkg/executor"
)

// Filter is a thread-safe wrapper around a Bloom filter sized for an
// expected task volume and false-positive rate. It never produces false
// negatives: a task ID it reports as new has definitely not been seen,
// while one it reports as seen might rarely be a false positive (never a
// false negative) — the bloom filter's standard guarantee.
type Filter struct {
	mu sync.Mutex
	bf *bloom.BloomFilter
}

// NewFilter sizes the underlying Bloom filter for expectedTasks entries at
// the given false-positive rate (0.01 is a reasonable default for a
// dedup window covering a few minutes of submissions).
func NewFilter(expectedTasks uint, falsePositiveRate float64) *Filter {
	return &Filter{bf: bloom.NewWithEstimates(expectedTasks, falsePositiveRate)}
}

// Seen reports whether id has been passed to Seen before, recording it if
// not. The check-and-set is atomic under the filter's lock so two
// concurrent submitters racing on the same id cannot both see "new".
func (f *Filter) Seen(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := []byte(id)
	if f.bf.Test(key) {
		return true
	}
	f.bf.Add(key)
	return false
}

// IdentifiedTask pairs a Task with a stable ID for dedup purposes. Tasks
// without a natural key can derive one (content hash, request UUID) at
// the producer.
type IdentifiedTask struct {
	ID   string
	Task executor.Task
}

// SubmitOnce submits task to pool unless its ID has already passed
// through this filter, in which case it is silently dropped and
// SubmitOnce reports false. This is producer-side dedup — it never
// touches the pool's own queue or semaphore accounting for an already-seen
// task, so a dropped duplicate costs nothing beyond the Bloom-filter
// lookup.
func (f *Filter) SubmitOnce(pool *executor.Executor, it IdentifiedTask) bool {
	if f.Seen(it.ID) {
		return false
	}
	return pool.Submit(it.Task)
}
