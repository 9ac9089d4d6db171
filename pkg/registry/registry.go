// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry keeps the live ad instances addressable by identifier and
// the reverse mapping used to route native callbacks back to them.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/native"
)

// Config is the creation config of one ad instance
type Config struct {
	Placement string
	Size      ads.BannerSize
}

// Factory instantiates native ad objects
type Factory interface {
	New(t ads.Type, cfg Config) (native.Ad, error)
}

// FactoryFunc adapts a function to Factory
type FactoryFunc func(t ads.Type, cfg Config) (native.Ad, error)

func (f FactoryFunc) New(t ads.Type, cfg Config) (native.Ad, error) {
	return f(t, cfg)
}

// Entry is one live registration
type Entry struct {
	Key       ads.Key
	Ad        native.Ad
	Placement string
}

// Registry maps identifiers to native instances per ad type. The forward
// maps and the reverse table are only mutated under mu, so the pair stays a
// bijection for every observer that also holds mu.
type Registry struct {
	mu      sync.RWMutex
	byType  map[ads.Type]map[ads.Identifier]*Entry
	pending map[ads.Key]struct{}
	reverse *ReverseTable[ads.Key]
	factory Factory
	log     log.Logger
	closed  bool
}

// New creates a registry that builds instances with factory
func New(factory Factory, logger log.Logger) *Registry {
	byType := make(map[ads.Type]map[ads.Identifier]*Entry, len(ads.Types))
	for _, t := range ads.Types {
		byType[t] = make(map[ads.Identifier]*Entry)
	}

	return &Registry{
		byType:  byType,
		pending: make(map[ads.Key]struct{}),
		reverse: NewReverseTable[ads.Key](),
		factory: factory,
		log:     logger,
	}
}

// Create instantiates and registers a new instance under key.
//
// The identifier is reserved before the factory runs and the factory is
// called without holding mu, so a native SDK that fires a callback from
// inside its constructor cannot deadlock the registry; such a callback
// resolves to ErrUnknownInstance and is dropped.
func (r *Registry) Create(t ads.Type, id ads.Identifier, cfg Config) (native.Ad, error) {
	if !t.Valid() {
		return nil, ads.ErrInvalidAdType
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	key := ads.Key{Type: t, Identifier: id}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ads.ErrClosed
	}
	if _, exists := r.byType[t][id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ads.ErrDuplicateIdentifier, key)
	}
	if _, reserved := r.pending[key]; reserved {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ads.ErrDuplicateIdentifier, key)
	}
	r.pending[key] = struct{}{}
	r.mu.Unlock()

	ad, err := r.factory.New(t, cfg)
	if err == nil && (ad == nil || ad.Handle() == 0) {
		err = fmt.Errorf("factory returned no instance for %s", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, key)

	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", key, err)
	}
	// Drain ran while the factory was building the instance
	if r.closed {
		go ad.Destroy()
		return nil, ads.ErrClosed
	}
	if err := r.reverse.Bind(ad.Handle(), key); err != nil {
		go ad.Destroy()
		return nil, fmt.Errorf("binding %s: %w", key, err)
	}

	r.byType[t][id] = &Entry{Key: key, Ad: ad, Placement: cfg.Placement}
	r.log.Debug("ad registered",
		log.Stringer("key", key),
		log.Uint64("handle", uint64(ad.Handle())),
	)
	return ad, nil
}

// Get returns the instance registered under (t, id)
func (r *Registry) Get(t ads.Type, id ads.Identifier) (native.Ad, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byType[t][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ads.ErrNotFound, ads.Key{Type: t, Identifier: id})
	}
	return entry.Ad, nil
}

// Placement returns the placement key was created for
func (r *Registry) Placement(key ads.Key) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byType[key.Type][key.Identifier]
	if !ok {
		return "", false
	}
	return entry.Placement, true
}

// Find looks id up across all ad types in ads.Types order
func (r *Registry) Find(id ads.Identifier) (ads.Type, native.Ad, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range ads.Types {
		if entry, ok := r.byType[t][id]; ok {
			return t, entry.Ad, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: %s", ads.ErrNotFound, id)
}

// Remove unregisters (t, id) and returns the instance so the caller can
// destroy it. Removing an absent identifier returns nil.
func (r *Registry) Remove(t ads.Type, id ads.Identifier) native.Ad {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byType[t][id]
	if !ok {
		return nil
	}
	delete(r.byType[t], id)
	r.reverse.Unbind(entry.Ad.Handle())

	r.log.Debug("ad unregistered", log.Stringer("key", entry.Key))
	return entry.Ad
}

// Resolve maps a native handle to its registry key
func (r *Registry) Resolve(h native.Handle) (ads.Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reverse.Resolve(h)
}

// WithResolved runs fn with the key bound to h while holding the read lock,
// so no Remove can complete between resolution and fn returning. fn must
// not block or call back into the registry's write paths.
func (r *Registry) WithResolved(h native.Handle, fn func(ads.Key)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, err := r.reverse.Resolve(h)
	if err != nil {
		return err
	}
	fn(key)
	return nil
}

// Len returns the number of live entries of type t
func (r *Registry) Len(t ads.Type) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[t])
}

// Entries returns a snapshot of every live entry ordered by key
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Drain closes the registry, removes every entry and returns them for
// destruction. Create fails with ads.ErrClosed afterwards.
func (r *Registry) Drain() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	entries := r.snapshotLocked()
	for _, e := range entries {
		delete(r.byType[e.Key.Type], e.Key.Identifier)
		r.reverse.Unbind(e.Ad.Handle())
	}
	return entries
}

func (r *Registry) snapshotLocked() []Entry {
	var entries []Entry
	for _, t := range ads.Types {
		for _, e := range r.byType[t] {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key.Type != entries[j].Key.Type {
			return entries[i].Key.Type < entries[j].Key.Type
		}
		return entries[i].Key.Identifier < entries[j].Key.Identifier
	})
	return entries
}
