package reactive

import "sync"

// Atom is a root mutable cell in the dependency graph.
// Reading an Atom during a tracked computation records a dependency edge;
// writing a changed value invalidates dependents and triggers propagation
// when the enclosing transaction closes.
type Atom[T any] struct {
	base nodeBase

	// value is the current cell value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal is the equality policy used for write no-op detection.
	// If nil, EqualsDefault is used.
	equal Equality[T]
}

// NewAtom creates a new atom holding the given initial value.
func NewAtom[T any](initial T) *Atom[T] {
	a := &Atom[T]{value: initial}
	a.base.id = nextID()
	a.base.knd = KindAtom
	notifyNodeCreated(a.base.id, KindAtom)
	return a
}

// Get returns the current value. If a tracking frame is active, the atom
// registers itself as a dependency of the computation being evaluated.
// Get never fails.
func (a *Atom[T]) Get() T {
	a.mu.RLock()
	value := a.value
	a.mu.RUnlock()

	// Track dependency (after releasing the value lock to prevent deadlock)
	recordRead(&a.base)

	return value
}

// Peek returns the current value without registering a dependency.
func (a *Atom[T]) Peek() T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// Set writes a new value. If the value equals the current one under the
// atom's equality policy the write is a no-op: no version bump, no
// propagation. Otherwise the atom joins the open transaction's changed
// set; with no transaction open, the write is an implicit single-write
// transaction and propagates immediately.
func (a *Atom[T]) Set(value T) {
	a.mu.Lock()
	changed := !a.equals(a.value, value)
	if changed {
		a.value = value
	}
	a.mu.Unlock()

	if !changed {
		return
	}
	a.base.bumpVersion()
	notifyAtomChanged(a.base.id, a.base.currentVersion())
	registerWrite(&a.base)
}

// Update atomically reads and writes the value. The function receives the
// current value and returns the new one; equality suppression applies as
// in Set.
func (a *Atom[T]) Update(fn func(T) T) {
	a.mu.Lock()
	next := fn(a.value)
	changed := !a.equals(a.value, next)
	if changed {
		a.value = next
	}
	a.mu.Unlock()

	if !changed {
		return
	}
	a.base.bumpVersion()
	notifyAtomChanged(a.base.id, a.base.currentVersion())
	registerWrite(&a.base)
}

// WithEquals configures the atom with a custom equality policy and returns
// the atom for chaining.
func (a *Atom[T]) WithEquals(fn Equality[T]) *Atom[T] {
	a.equal = fn
	return a
}

// ID returns the unique identifier for this atom.
func (a *Atom[T]) ID() uint64 {
	return a.base.id
}

// Version returns the atom's version counter. It increases exactly when a
// write actually changes the value.
func (a *Atom[T]) Version() uint64 {
	return a.base.currentVersion()
}

func (a *Atom[T]) equals(x, y T) bool {
	if a.equal != nil {
		return a.equal(x, y)
	}
	return EqualsDefault(x, y)
}

// node implements Source.
func (a *Atom[T]) node() *nodeBase {
	return &a.base
}

// observe implements Source: an untracked read. Atom reads never fail.
func (a *Atom[T]) observe() (T, error) {
	return a.Peek(), nil
}
