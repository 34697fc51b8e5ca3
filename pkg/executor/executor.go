package executor

import (
	"sync"
	"time"
)

// state is the executor's lifecycle. Transitions are monotone:
// running -> quitting -> dead.
type state int

const (
	running state = iota
	quitting
	dead
)

// EventType identifies a pool lifecycle event for an optional Recorder.
type EventType int

const (
	// EventWorkerSpawned fires when a new worker goroutine is started.
	EventWorkerSpawned EventType = iota
	// EventWorkerSuicide fires when a worker exits its loop.
	EventWorkerSuicide
	// EventTaskRejected fires when Submit is rejected (pool not running).
	EventTaskRejected
	// EventShutdownRequested fires on a successful Shutdown call.
	EventShutdownRequested
	// EventPoolDrained fires when a drain shutdown finishes emptying the queue.
	EventPoolDrained
	// EventPoolDead fires once the last worker has exited.
	EventPoolDead
	// EventUnknown marks an event whose recorded type name didn't match any
	// of the above — e.g. a record written by a newer version of this
	// package, or a corrupted event_type column. It never fires from the
	// executor itself; it exists so callers deserializing events (see
	// audit.ParseEventType) have a distinct value to fall back to instead
	// of aliasing a real event.
	EventUnknown
)

// Event is a single pool lifecycle occurrence, passed to a Recorder.
// Detail is a short human-readable note; it carries no task data — tasks
// are opaque to the pool and never appear in events.
type Event struct {
	Time   time.Time
	Type   EventType
	Detail string
}

// Recorder observes pool lifecycle events. Record must not block and must
// not call back into the Executor that invokes it — the executor calls
// Record while holding the pool lock for worker-spawned, task-rejected,
// shutdown-requested and pool-dead events (worker-suicide and pool-drained
// are recorded outside it), so a slow recorder stalls the whole pool and a
// reentrant one deadlocks. A nil Recorder is the default and costs nothing.
type Recorder interface {
	Record(Event)
}

// Logger is the minimal logging surface the executor needs. *poollog.Logger
// satisfies it; so does any other leveled logger with this shape.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Executor is an elastic worker-pool: a long-lived coordinator that accepts
// Submit calls from many producer goroutines and runs them on an
// internally managed, auto-scaling set of worker goroutines.
//
// Construction parameters and factory presets are documented on New and on
// NewFixedPool / NewSingleThreadExecutor / NewCachedPool. The zero value of
// Executor is not usable; always construct through one of those.
type Executor struct {
	mu       sync.Mutex
	quitCond *sync.Cond

	min       uint32
	max       uint32
	current   uint32
	active    uint32
	keepAlive time.Duration
	st        state
	quitASAP  bool
	drainNotified bool
	destructorTimeout time.Duration

	queue taskQueue
	sem   *semaphore

	recorder Recorder
	logger   Logger
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithRecorder attaches an optional lifecycle-event observer. See Recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithLogger attaches an optional structured logger.
func WithLogger(l Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New constructs a RUNNING executor with zero workers and an empty queue.
//
// minSize is the floor the pool will grow back to on demand; maxSize is
// the hard ceiling (a maxSize of 0 is raised to 1; minSize > maxSize is
// clamped down to maxSize). keepAlive is how long a surplus idle worker (above minSize)
// waits before self-terminating; 0 means idle workers are never reclaimed.
func New(minSize, maxSize uint32, keepAlive time.Duration, opts ...Option) *Executor {
	if maxSize == 0 {
		maxSize = 1
	}
	if minSize > maxSize {
		minSize = maxSize
	}

	e := &Executor{
		min:               minSize,
		max:               maxSize,
		keepAlive:         keepAlive,
		st:                running,
		sem:               newSemaphore(),
		destructorTimeout: 0,
	}
	e.quitCond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) record(t EventType, detail string) {
	if e.recorder != nil {
		e.recorder.Record(Event{Time: time.Now(), Type: t, Detail: detail})
	}
}

// addWorkerLocked starts one worker goroutine. Caller must hold e.mu.
func (e *Executor) addWorkerLocked() {
	e.current++
	id := e.current
	go e.workerLoop(id)
	if e.logger != nil {
		e.logger.Infof("executor: worker %d spawned (pool size %d/%d)", id, e.current, e.max)
	}
	e.record(EventWorkerSpawned, "")
}

// Submit enqueues task for execution. Returns false without enqueueing if
// the pool is not RUNNING. On true, the task eventually runs unless a
// subsequent Shutdown(true) discards it first while still queued.
//
// Spawn predicate: below min, always grow; at or above min, grow only when
// there are more queued tasks than idle workers, so the pool does
// not oscillate around min under light, bursty load.
func (e *Executor) Submit(task Task) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st != running {
		e.record(EventTaskRejected, "pool not running")
		return false
	}

	e.queue.push(task)

	idle := e.current - e.active
	needMore := uint32(e.queue.size()) > idle
	if e.current < e.min || (needMore && e.current < e.max) {
		e.addWorkerLocked()
	}

	e.sem.post()
	return true
}

// PrestartAllMinThreads spawns workers up to minSize immediately instead of
// waiting for organic growth on Submit. Returns false if the pool is not
// RUNNING.
func (e *Executor) PrestartAllMinThreads() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st != running {
		return false
	}
	for e.current < e.min {
		e.addWorkerLocked()
	}
	return true
}

// GetPoolSize returns the current number of live workers.
func (e *Executor) GetPoolSize() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// GetActiveCount returns the number of workers currently executing a task.
func (e *Executor) GetActiveCount() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// GetMinPoolSize returns the configured floor.
func (e *Executor) GetMinPoolSize() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.min
}

// SetMinPoolSize updates the floor. Rejects (returns false) if the pool is
// not RUNNING or newMin exceeds the current max. Does not spawn
// immediately; workers are added on demand via Submit.
func (e *Executor) SetMinPoolSize(newMin uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st != running || newMin > e.max {
		return false
	}
	e.min = newMin
	return true
}

// GetMaxPoolSize returns the configured ceiling.
func (e *Executor) GetMaxPoolSize() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.max
}

// SetMaxPoolSize updates the ceiling. Rejects if the pool is not RUNNING,
// newMax is 0, or newMax is below min.
//
// On reduction, posts the semaphore once per excess worker so that many
// idle workers wake and take the SUICIDE branch. On enlargement, spawns
// additional workers immediately if queued-plus-active demand exceeds the
// current worker count: spawn = min(newMax-current, queue+active-current),
// clamped at zero — this repo resolves spec.md's §9 open question on
// eager-vs-organic growth the same way the source implementation does.
func (e *Executor) SetMaxPoolSize(newMax uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st != running || newMax == 0 || newMax < e.min {
		return false
	}

	oldMax := e.max
	e.max = newMax

	if e.current > newMax {
		excess := e.current - newMax
		for i := uint32(0); i < excess; i++ {
			e.sem.post()
		}
		return true
	}

	if newMax > oldMax {
		room := newMax - e.current
		demand := uint32(e.queue.size()) + e.active
		var need uint32
		if demand > e.current {
			need = demand - e.current
		}
		toAdd := room
		if need < toAdd {
			toAdd = need
		}
		for i := uint32(0); i < toAdd; i++ {
			e.addWorkerLocked()
		}
	}
	return true
}

// GetKeepAliveTime returns the configured idle timeout. 0 means infinite.
func (e *Executor) GetKeepAliveTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keepAlive
}

// SetKeepAliveTime updates the idle timeout and wakes every parked worker
// (via notifyAll, which does not consume a post) so they re-evaluate
// against the new value on their next wait.
func (e *Executor) SetKeepAliveTime(newAlive time.Duration) bool {
	e.mu.Lock()
	if e.st != running {
		e.mu.Unlock()
		return false
	}
	e.keepAlive = newAlive
	e.mu.Unlock()

	e.sem.notifyAll()
	return true
}

// SetDestructorTimeout sets the AwaitTermination bound Close() applies.
func (e *Executor) SetDestructorTimeout(timeout time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st != running {
		return false
	}
	e.destructorTimeout = timeout
	return true
}

// Shutdown transitions the pool out of RUNNING. asap selects the flavor:
// false drains the queue to completion before workers exit; true abandons
// anything still queued and exits workers as soon as they next reach the
// classifier. No-op if the pool is already shutting down or dead.
//
// This posts the semaphore once per live worker rather than calling
// notifyAll: notifyAll does not consume a post and would fail to wake a
// worker currently executing a task, which re-enters wait and must see a
// pending post to notice the shutdown.
func (e *Executor) Shutdown(asap bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st != running {
		return
	}
	e.quitASAP = asap
	e.st = quitting
	e.record(EventShutdownRequested, "")

	for i := uint32(0); i < e.current; i++ {
		e.sem.post()
	}
	if e.current == 0 {
		e.st = dead
		e.record(EventPoolDead, "")
		e.quitCond.Broadcast()
	}
}

// IsShutdown reports whether every worker has exited. QUITTING (shutdown
// requested, workers still draining or exiting) is not reported as shut
// down — the contract is "all workers gone", not "shutdown requested".
func (e *Executor) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st == dead
}

// AwaitTermination blocks until the pool reaches DEAD or timeout elapses.
// timeout <= 0 waits indefinitely and returns true. May be called without
// a prior Shutdown — it simply blocks until someone else shuts the pool
// down.
func (e *Executor) AwaitTermination(timeout time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == 0 && e.st == dead {
		return true
	}

	if timeout <= 0 {
		for !(e.current == 0 && e.st == dead) {
			e.quitCond.Wait()
		}
		return true
	}

	timedOut := false
	timer := time.AfterFunc(timeout, func() {
		e.mu.Lock()
		timedOut = true
		e.mu.Unlock()
		e.quitCond.Broadcast()
	})
	defer timer.Stop()

	for !(e.current == 0 && e.st == dead) && !timedOut {
		e.quitCond.Wait()
	}
	return !timedOut
}

// Close is the destructor equivalent: it forces an ASAP shutdown and waits
// (bounded by the configured destructor timeout) for every worker to
// exit, trading queued work for a faster return. A destructor timeout of 0,
// the default, waits without bound.
func (e *Executor) Close() {
	e.Shutdown(true)
	e.mu.Lock()
	timeout := e.destructorTimeout
	e.mu.Unlock()
	e.AwaitTermination(timeout)
}

// workerLoop is the per-worker state machine: {WAIT, WORK, SUICIDE}. Each
// iteration waits on the semaphore with the current keep-alive as timeout,
// then classifies the next action under the pool lock using, in order:
//
//  1. WORK    — queue non-empty, not over max, not (quitting && asap)
//  2. SUICIDE — over max, or (quitting && asap), or (quitting && queue
//     empty, i.e. drain complete), or (timed out && queue empty && above
//     min, i.e. idle reclamation)
//  3. WAIT    — otherwise, loop back to the semaphore
func (e *Executor) workerLoop(id uint32) {
	for {
		timedOut := !e.sem.wait(e.currentKeepAlive())

		e.mu.Lock()
		task, isWork, isSuicide, justDrained := e.classify(timedOut)

		var quitNow bool
		if isWork {
			e.active++
		} else if isSuicide {
			e.current--
			quitNow = e.current == 0 && e.st == quitting
			if quitNow {
				e.st = dead
			}
		}
		e.mu.Unlock()

		if justDrained {
			e.record(EventPoolDrained, "")
		}

		switch {
		case isWork:
			e.runTask(task)
		case isSuicide:
			if e.logger != nil {
				e.logger.Infof("executor: worker %d exiting", id)
			}
			e.record(EventWorkerSuicide, "")
			if quitNow {
				e.mu.Lock()
				e.record(EventPoolDead, "")
				e.quitCond.Broadcast()
				e.mu.Unlock()
			}
			return
		default: // WAIT
			continue
		}
	}
}

// classify evaluates the three-branch predicate from spec.md §4.4. Caller
// must hold e.mu; it pops the task for a WORK result but does not mutate
// active/current, leaving that accounting to workerLoop. justDrained
// reports the first moment a drain shutdown (quitting, not asap) finds the
// queue empty, for a one-time EventPoolDrained.
func (e *Executor) classify(timedOut bool) (task Task, isWork, isSuicide, justDrained bool) {
	listEmpty := e.queue.empty()
	exceedLimit := e.current > e.max
	quickQuit := e.st == quitting && e.quitASAP
	quietIdle := timedOut && listEmpty && e.current > e.min
	finalQuit := e.st == quitting && listEmpty

	if !listEmpty && !exceedLimit && !quickQuit {
		t, _ := e.queue.pop()
		return t, true, false, false
	}

	if e.st == quitting && !e.quitASAP && listEmpty && !e.drainNotified {
		e.drainNotified = true
		justDrained = true
	}

	if exceedLimit || quickQuit || finalQuit || quietIdle {
		return nil, false, true, justDrained
	}
	return nil, false, false, justDrained
}

func (e *Executor) runTask(t Task) {
	func() {
		defer func() {
			if r := recover(); r != nil && e.logger != nil {
				e.logger.Warnf("executor: task panicked: %v", r)
			}
		}()
		t.Run()
	}()

	e.mu.Lock()
	e.active--
	e.mu.Unlock()
}

func (e *Executor) currentKeepAlive() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keepAlive
}
