// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"sync"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/native"
)

// ReverseTable maps native handles back to the value they were bound to.
// It stores handles, never the ad objects themselves, so it cannot keep a
// released native instance alive.
type ReverseTable[V any] struct {
	mu      sync.RWMutex
	entries map[native.Handle]V
}

// NewReverseTable creates an empty table
func NewReverseTable[V any]() *ReverseTable[V] {
	return &ReverseTable[V]{
		entries: make(map[native.Handle]V),
	}
}

// Bind associates h with v. A handle can only be bound once until unbound.
func (t *ReverseTable[V]) Bind(h native.Handle, v V) error {
	if h == 0 {
		return ads.ErrUnknownInstance
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[h]; exists {
		return ads.ErrHandleBound
	}
	t.entries[h] = v
	return nil
}

// Resolve returns the value bound to h
func (t *ReverseTable[V]) Resolve(h native.Handle) (V, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.entries[h]
	if !ok {
		var zero V
		return zero, ads.ErrUnknownInstance
	}
	return v, nil
}

// Unbind removes h; unbinding an unknown handle is a no-op
func (t *ReverseTable[V]) Unbind(h native.Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[h]
	delete(t.entries, h)
	return ok
}

// Len returns the number of bound handles
func (t *ReverseTable[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
