package audit

import "github.com/nullstacklabs/execpool/pkg/executor"

// ParseEventType maps a persisted event_type column value back to the
// executor.EventType it was recorded from. An unrecognized name reports
// executor.EventUnknown rather than panicking or aliasing a real event type
// — it only drives display/filtering, never pool control flow, but a
// corrupted or future event_type value must not be misreported as a real
// worker_spawned event in ByEventType lookups or the search index.
func ParseEventType(name string) executor.EventType {
	switch name {
	case "worker_spawned":
		return executor.EventWorkerSpawned
	case "worker_suicide":
		return executor.EventWorkerSuicide
	case "task_rejected":
		return executor.EventTaskRejected
	case "shutdown_requested":
		return executor.EventShutdownRequested
	case "pool_drained":
		return executor.EventPoolDrained
	case "pool_dead":
		return executor.EventPoolDead
	default:
		return executor.EventUnknown
	}
}
