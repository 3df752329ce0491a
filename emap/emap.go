// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package emap

import (
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/heap"
	"github.com/ava-labs/avalanchego/utils/set"
)

// timeModulus groups expiries into one bucket per second.
const timeModulus = 1000 // ms -> s

func reducePrecision(t int64) int64 {
	return t - t%timeModulus
}

// Item is anything tracked by an [EMap].
type Item interface {
	ID() ids.ID
	Expiry() int64
}

type bucket struct {
	t     int64
	items []ids.ID
}

// EMap remembers item IDs until their expiry falls behind the minimum
// set with [SetMin]. Items are grouped by expiry so eviction only touches
// one heap entry per second.
type EMap[T Item] struct {
	mu sync.RWMutex

	bh    heap.Map[int64, *bucket]
	seen  set.Set[ids.ID]
	times map[int64]*bucket
}

func New[T Item]() *EMap[T] {
	return &EMap[T]{
		bh: heap.NewMap[int64, *bucket](func(a, b *bucket) bool {
			return a.t < b.t
		}),
		seen:  set.Set[ids.ID]{},
		times: make(map[int64]*bucket),
	}
}

// Add records [item]. It returns false if the ID was already present.
func (e *EMap[T]) Add(item T) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := item.ID()
	if e.seen.Contains(id) {
		return false
	}
	e.seen.Add(id)

	t := reducePrecision(item.Expiry())
	if b, ok := e.times[t]; ok {
		b.items = append(b.items, id)
		return true
	}
	b := &bucket{
		t:     t,
		items: []ids.ID{id},
	}
	e.times[t] = b
	e.bh.Push(t, b)
	return true
}

// SetMin evicts every item whose (reduced) expiry is below [t] and returns
// the evicted IDs.
func (e *EMap[T]) SetMin(t int64) []ids.ID {
	e.mu.Lock()
	defer e.mu.Unlock()

	t = reducePrecision(t)
	evicted := []ids.ID{}
	for {
		_, b, ok := e.bh.Peek()
		if !ok || b.t >= t {
			break
		}
		e.bh.Pop()
		for _, id := range b.items {
			e.seen.Remove(id)
			evicted = append(evicted, id)
		}
		delete(e.times, b.t)
	}
	return evicted
}

func (e *EMap[T]) Has(id ids.ID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.seen.Contains(id)
}

// Any returns true if any of [items] has been seen.
func (e *EMap[T]) Any(items []T) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, item := range items {
		if e.seen.Contains(item.ID()) {
			return true
		}
	}
	return false
}

func (e *EMap[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.seen.Len()
}
