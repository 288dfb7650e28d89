// Package viewmodel projects the record store for display. A ViewModel holds
// only a derived copy of the records and routes every mutation to the store.
package viewmodel

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hpungsan/glyco/internal/record"
	"github.com/hpungsan/glyco/internal/store"
)

// ViewModel keeps a projection P of the store current.
type ViewModel[P any] struct {
	store     *store.Store
	transform func([]record.Record) P
	sub       *store.Subscription

	mu        sync.RWMutex
	last      []record.Record
	proj      P
	closed    bool
	listeners []func(P)
}

// New subscribes to s. transform must be pure and total: it is called with
// every full snapshot, including the empty one, and its result replaces the
// projection.
func New[P any](s *store.Store, transform func([]record.Record) P) *ViewModel[P] {
	vm := &ViewModel[P]{store: s, transform: transform}
	vm.sub = s.Subscribe(vm.update)
	return vm
}

func (vm *ViewModel[P]) update(snap []record.Record) {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return
	}
	vm.last = snap
	vm.proj = vm.transform(snap)
	proj := vm.proj
	listeners := slices.Clone(vm.listeners)
	vm.mu.Unlock()

	for _, fn := range listeners {
		fn(proj)
	}
}

// Projection returns the latest projection.
func (vm *ViewModel[P]) Projection() P {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.proj
}

// Refresh re-applies the transform to the last snapshot and returns the
// result. Transforms that depend on the clock, like day labels, use it.
func (vm *ViewModel[P]) Refresh() P {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.closed {
		vm.proj = vm.transform(vm.last)
	}
	return vm.proj
}

// OnUpdate registers fn to receive each new projection. fn runs while the
// store is locked and must not call back into the store.
func (vm *ViewModel[P]) OnUpdate(fn func(P)) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.listeners = append(vm.listeners, fn)
}

// Close releases the subscription. The projection is frozen afterwards.
func (vm *ViewModel[P]) Close() {
	vm.mu.Lock()
	vm.closed = true
	vm.listeners = nil
	vm.mu.Unlock()
	vm.sub.Cancel()
}

// Closed reports whether Close has been called.
func (vm *ViewModel[P]) Closed() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.closed
}

// AddInsulin forwards to the store.
func (vm *ViewModel[P]) AddInsulin(ctx context.Context, units int, at time.Time) (record.Record, error) {
	return vm.store.AddInsulin(ctx, units, at)
}

// AddGlucose forwards to the store.
func (vm *ViewModel[P]) AddGlucose(ctx context.Context, value float64, at time.Time) (record.Record, error) {
	return vm.store.AddGlucose(ctx, value, at)
}

// Delete forwards to the store.
func (vm *ViewModel[P]) Delete(ctx context.Context, id string) (bool, error) {
	return vm.store.Delete(ctx, id)
}

// DeleteAll forwards to the store.
func (vm *ViewModel[P]) DeleteAll(ctx context.Context) error {
	return vm.store.DeleteAll(ctx)
}
