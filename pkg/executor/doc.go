// Package executor implements an elastic worker-pool executor: a long-lived
// coordination object that accepts task submissions from many producer
// goroutines and runs them on an internally managed, auto-scaling set of
// worker goroutines.
//
// The pool grows lazily between a configurable minimum and maximum size,
// reclaims idle workers after a keep-alive interval, and supports two
// shutdown modes: drain (finish everything queued) and ASAP (abandon
// anything still queued). It is the Go-native counterpart of the classical
// ThreadPoolExecutor contract.
//
// A Task is anything satisfying the Task interface; use FuncTask to adapt a
// plain closure. Tasks have no return channel and cannot be cancelled once
// dequeued — submit a context-aware closure if a task needs to observe
// cancellation itself.
//
// Typical use:
//
//	pool := executor.NewCachedPool() // (0, unbounded, 60s)
//	defer pool.Shutdown(true)
//
//	ok := pool.Submit(executor.FuncTask(func() {
//		// ... do work ...
//	}))
//
// Construct directly with New for full control over min/max/keep-alive, or
// use one of the three factory presets (NewFixedPool, NewSingleThreadExecutor,
// NewCachedPool) for the common shapes.
package executor
