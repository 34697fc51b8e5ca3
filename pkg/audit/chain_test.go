package audit

import (
	"testing"
	"time"

	"github.com/nullstacklabs/execpool/pkg/executor"
)

type recordingSink struct {
	records []Record
}

func (s *recordingSink) Append(r Record) {
	s.records = append(s.records, r)
}

func TestChainRecordAssignsSequentialSeqNos(t *testing.T) {
	c := NewChain()

	c.Record(executor.Event{Time: time.Now(), Type: executor.EventWorkerSpawned, Detail: "worker 1"})
	c.Record(executor.Event{Time: time.Now(), Type: executor.EventWorkerSuicide, Detail: "worker 1 idle"})

	records := c.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].SeqNo != 1 || records[1].SeqNo != 2 {
		t.Errorf("expected seq numbers 1,2, got %d,%d", records[0].SeqNo, records[1].SeqNo)
	}
}

func TestChainLinksEachRecordToItsPredecessor(t *testing.T) {
	c := NewChain()
	c.Record(executor.Event{Time: time.Now(), Type: executor.EventWorkerSpawned})
	c.Record(executor.Event{Time: time.Now(), Type: executor.EventTaskRejected})

	records := c.Records()
	if records[0].PreviousHash != genesisHash {
		t.Errorf("expected first record to chain off the genesis hash, got %s", records[0].PreviousHash)
	}
	if records[1].PreviousHash != records[0].EntryHash {
		t.Error("expected second record's previous hash to equal the first record's entry hash")
	}
}

func TestChainVerifyIntegritySucceedsOnUntamperedChain(t *testing.T) {
	c := NewChain()
	for i := 0; i < 5; i++ {
		c.Record(executor.Event{Time: time.Now(), Type: executor.EventWorkerSpawned})
	}
	if err := c.VerifyIntegrity(); err != nil {
		t.Errorf("expected an untampered chain to verify, got %v", err)
	}
}

func TestChainVerifyIntegrityDetectsTampering(t *testing.T) {
	c := NewChain()
	c.Record(executor.Event{Time: time.Now(), Type: executor.EventWorkerSpawned, Detail: "original"})
	c.Record(executor.Event{Time: time.Now(), Type: executor.EventWorkerSuicide})

	c.records[0].Detail = "tampered"

	if err := c.VerifyIntegrity(); err == nil {
		t.Error("expected tampering a record's detail to break verification")
	}
}

func TestChainFansOutToSinks(t *testing.T) {
	sink := &recordingSink{}
	c := NewChain(sink)

	c.Record(executor.Event{Time: time.Now(), Type: executor.EventPoolDrained, Detail: "queue empty"})

	if len(sink.records) != 1 {
		t.Fatalf("expected sink to receive 1 record, got %d", len(sink.records))
	}
	if sink.records[0].TypeName() != "pool_drained" {
		t.Errorf("expected type name pool_drained, got %s", sink.records[0].TypeName())
	}
}

func TestRecordTypeNameCoversAllEventTypes(t *testing.T) {
	cases := map[executor.EventType]string{
		executor.EventWorkerSpawned:      "worker_spawned",
		executor.EventWorkerSuicide:      "worker_suicide",
		executor.EventTaskRejected:       "task_rejected",
		executor.EventShutdownRequested:  "shutdown_requested",
		executor.EventPoolDrained:        "pool_drained",
		executor.EventPoolDead:           "pool_dead",
		executor.EventUnknown:            "unknown",
	}
	for eventType, want := range cases {
		r := Record{Type: eventType}
		if got := r.TypeName(); got != want {
			t.Errorf("TypeName() for %v = %q, want %q", eventType, got, want)
		}
	}
}
