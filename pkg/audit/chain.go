// Package audit hash-chains execpool lifecycle events (worker spawned,
// worker suicide, task rejected, shutdown requested, pool drained, pool
// dead) into a tamper-evident record, and implements executor.Recorder so
// it wires directly into executor.WithRecorder.
package audit

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/nullstacklabs/execpool/pkg/executor"
)

// genesisHash seeds the chain before any record exists, the same role
// noisefs's compliance audit log gives its all-zero genesis hash.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Record is one hash-chained entry: an executor.Event plus the chain
// linkage that lets VerifyIntegrity detect a tampered or reordered log.
type Record struct {
	SeqNo        uint64
	Time         time.Time
	Type         executor.EventType
	Detail       string
	PreviousHash string
	EntryHash    string
}

// TypeName renders the numeric EventType as the word an operator expects
// to see in a log line or search index.
func (r Record) TypeName() string {
	switch r.Type {
	case executor.EventWorkerSpawned:
		return "worker_spawned"
	case executor.EventWorkerSuicide:
		return "worker_suicide"
	case executor.EventTaskRejected:
		return "task_rejected"
	case executor.EventShutdownRequested:
		return "shutdown_requested"
	case executor.EventPoolDrained:
		return "pool_drained"
	case executor.EventPoolDead:
		return "pool_dead"
	case executor.EventUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Chain is an in-memory, hash-chained Recorder. It satisfies
// executor.Recorder, so it plugs straight into executor.WithRecorder. Record
// never errors, but it calls every sink synchronously after releasing the
// chain's own lock, so a slow sink delays the caller of Record.
type Chain struct {
	mu      sync.Mutex
	records []Record
	last    string
	sinks   []Sink
}

// Sink receives a confirmed Record after it has been appended to the
// chain. Append failures from a sink are swallowed (best-effort delivery,
// same as noisefs's outbox pattern) — a sink wanting guaranteed delivery
// should maintain its own retry queue downstream.
type Sink interface {
	Append(Record)
}

// NewChain constructs an empty chain, optionally fanning every appended
// record out to sinks (e.g. a postgres.Store or a search.Index).
func NewChain(sinks ...Sink) *Chain {
	return &Chain{last: genesisHash, sinks: sinks}
}

// AddSink registers an additional sink to receive every future appended
// record. It does not replay already-recorded entries to the new sink.
func (c *Chain) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Record implements executor.Recorder.
func (c *Chain) Record(e executor.Event) {
	c.mu.Lock()
	rec := Record{
		SeqNo:        uint64(len(c.records)) + 1,
		Time:         e.Time,
		Type:         e.Type,
		Detail:       e.Detail,
		PreviousHash: c.last,
	}
	rec.EntryHash = hashRecord(rec)
	c.last = rec.EntryHash
	c.records = append(c.records, rec)
	sinks := c.sinks
	c.mu.Unlock()

	for _, s := range sinks {
		s.Append(rec)
	}
}

// Records returns a copy of every record appended so far, oldest first.
func (c *Chain) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// VerifyIntegrity walks the chain and confirms every entry's hash matches
// its recomputed value and links to the previous entry's hash, the same
// check noisefs's VerifyAuditChainIntegrity runs against Postgres rows.
func (c *Chain) VerifyIntegrity() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := genesisHash
	for _, rec := range c.records {
		if rec.PreviousHash != prev {
			return fmt.Errorf("audit: chain broken at seq %d: expected previous hash %s, got %s",
				rec.SeqNo, prev, rec.PreviousHash)
		}
		want := hashRecord(Record{
			SeqNo:        rec.SeqNo,
			Time:         rec.Time,
			Type:         rec.Type,
			Detail:       rec.Detail,
			PreviousHash: rec.PreviousHash,
		})
		if want != rec.EntryHash {
			return fmt.Errorf("audit: hash mismatch at seq %d: expected %s, got %s",
				rec.SeqNo, want, rec.EntryHash)
		}
		prev = rec.EntryHash
	}
	return nil
}

func hashRecord(r Record) string {
	input := fmt.Sprintf("%d|%s|%s|%s|%s",
		r.SeqNo, r.Time.Format(time.RFC3339Nano), r.TypeName(), r.Detail, r.PreviousHash)
	sum := blake2b.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
