package dedup

import (
	"sync"
	"testing"

	"github.com/nullstacklabs/execpool/pkg/executor"
)

func TestFilterSeenReportsFirstOccurrenceAsNew(t *testing.T) {
	f := NewFilter(100, 0.01)

	if f.Seen("task-1") {
		t.Error("expected the first occurrence of an ID to report as not seen")
	}
	if !f.Seen("task-1") {
		t.Error("expected a repeated ID to report as seen")
	}
}

func TestFilterSeenDistinguishesIDs(t *testing.T) {
	f := NewFilter(100, 0.01)

	f.Seen("task-a")
	if f.Seen("task-b") {
		t.Error("expected a distinct ID to report as not seen")
	}
}

func TestFilterSeenIsConcurrencySafe(t *testing.T) {
	f := NewFilter(1000, 0.01)

	var wg sync.WaitGroup
	seenCount := make([]int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if !f.Seen("shared-id") {
				seenCount[idx] = 1
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, v := range seenCount {
		total += v
	}
	if total != 1 {
		t.Errorf("expected exactly one goroutine to observe a new ID, got %d", total)
	}
}

func TestSubmitOnceDropsDuplicates(t *testing.T) {
	pool := executor.NewFixedPool(2)
	defer pool.Close()

	f := NewFilter(100, 0.01)

	var ran sync.WaitGroup
	ran.Add(1)
	task := executor.FuncTask(func() { ran.Done() })

	if !f.SubmitOnce(pool, IdentifiedTask{ID: "job-1", Task: task}) {
		t.Error("expected first submission of a new ID to be accepted")
	}
	if f.SubmitOnce(pool, IdentifiedTask{ID: "job-1", Task: executor.FuncTask(func() {})}) {
		t.Error("expected a duplicate ID to be dropped, not submitted")
	}

	ran.Wait()
}
