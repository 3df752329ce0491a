// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"sync"

	"github.com/ava-labs/avalanchego/utils/set"
	"go.uber.org/atomic"

	"github.com/ava-labs/countervm/state"
)

// Metrics is notified whenever a task is enqueued.
type Metrics interface {
	RecordBlocked()
	RecordExecutable()
}

type noopMetrics struct{}

func (noopMetrics) RecordBlocked()    {}
func (noopMetrics) RecordExecutable() {}

// Executor sequences the concurrent execution of
// tasks with arbitrary conflicts on-the-fly.
//
// Executor ensures that conflicting tasks
// are executed in the order they were queued.
// Tasks with no conflicts are executed immediately (up to the
// concurrency limit). Two tasks conflict if they share a key and at least
// one of them holds more than [state.Read] on it.
type Executor struct {
	metrics Metrics

	added int
	tasks []*task
	keys  map[string]*keyState

	slots       chan struct{}
	outstanding sync.WaitGroup

	err atomic.Error
}

type keyState struct {
	// writer is the last task that may modify the key (-1 if none).
	writer int
	// readers enqueued after [writer].
	readers []int
}

// New creates a new [Executor] able to hold [items] tasks, running at most
// [concurrency] of them at once.
func New(items, concurrency int, metrics Metrics) *Executor {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Executor{
		metrics: metrics,
		tasks:   make([]*task, items),
		keys:    make(map[string]*keyState, items*2),
		slots:   make(chan struct{}, concurrency),
	}
}

type task struct {
	f func() error

	l        sync.Mutex
	waiters  []*sync.WaitGroup
	executed bool
}

// Run executes [f] after all previously enqueued [f] with
// overlapping [conflicts] are executed.
//
// Run is not safe to call concurrently.
func (e *Executor) Run(conflicts state.Keys, f func() error) {
	// Ensure too many tasks not enqueued
	if e.added >= len(e.tasks) {
		e.err.CompareAndSwap(nil, ErrTooManyTasks)
		return
	}

	// Generate task
	id := e.added
	e.added++
	t := &task{f: f}
	e.tasks[id] = t
	e.outstanding.Add(1)

	// Record dependencies
	deps := set.NewSet[int](len(conflicts))
	for k, perm := range conflicts {
		ks, ok := e.keys[k]
		if !ok {
			ks = &keyState{writer: -1}
			e.keys[k] = ks
		}
		if ks.writer >= 0 {
			deps.Add(ks.writer)
		}
		if perm.ReadOnly() {
			ks.readers = append(ks.readers, id)
			continue
		}
		deps.Add(ks.readers...)
		ks.writer = id
		ks.readers = nil
	}
	wg := &sync.WaitGroup{}
	for dep := range deps {
		dt := e.tasks[dep]
		dt.l.Lock()
		if !dt.executed {
			wg.Add(1)
			dt.waiters = append(dt.waiters, wg)
		}
		dt.l.Unlock()
	}
	if deps.Len() > 0 {
		e.metrics.RecordBlocked()
	} else {
		e.metrics.RecordExecutable()
	}

	// Wait for the scheduler to execute us
	go func() {
		// Block until our dependencies have been executed
		wg.Wait()

		e.slots <- struct{}{}

		// Ensure we unblock our dependencies
		defer func() {
			<-e.slots

			t.l.Lock()
			for _, w := range t.waiters {
				w.Done()
			}
			t.waiters = nil
			t.executed = true
			t.l.Unlock()
			e.outstanding.Done()
		}()

		// Stop early if executor is stopped
		if e.err.Load() != nil {
			return
		}

		if err := t.f(); err != nil {
			e.err.CompareAndSwap(nil, err)
			return
		}
	}()
}

func (e *Executor) Stop() {
	e.err.CompareAndSwap(nil, ErrStopped)
}

// Wait returns as soon as all enqueued [f] are executed.
//
// You should not call [Run] after [Wait] is called.
func (e *Executor) Wait() error {
	e.outstanding.Wait()
	return e.err.Load()
}
