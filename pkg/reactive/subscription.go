package reactive

import (
	"runtime/debug"
	"sync/atomic"
)

// Source is the typed read capability shared by Atom[T] and Derivation[T].
// Subscriptions observe a Source; the engine only needs its version
// counter and an untracked read.
type Source[T any] interface {
	// Version increases exactly when the observable result changes.
	Version() uint64

	node() *nodeBase
	observe() (T, error)

	// equals applies the node's configured equality policy.
	equals(a, b T) bool
}

var (
	_ Source[int] = (*Atom[int])(nil)
	_ Source[int] = (*Derivation[int])(nil)
)

// Subscription is an observer bound to one source. After each propagation
// pass in which the source settles to a new result, the callback fires
// exactly once with that result.
type Subscription struct {
	id     uint64
	target *nodeBase
	active atomic.Bool

	// fire is the typed compare-and-notify closure bound at creation.
	fire func() settleResult
}

// Subscribe attaches cb to src. The source is evaluated once immediately
// to establish the baseline; the callback does not fire for the baseline
// result. When the source settles to an error, the error is delivered
// through the same callback with the zero value.
func Subscribe[T any](src Source[T], cb func(value T, err error)) *Subscription {
	s := &Subscription{
		id:     nextID(),
		target: src.node(),
	}
	s.active.Store(true)

	// Baseline read: evaluates the target (establishing its edges) without
	// firing.
	lastValue, lastErr := src.observe()
	lastVersion := src.Version()

	s.fire = func() settleResult {
		value, err := src.observe()
		version := src.Version()
		if version == lastVersion {
			return settleResult{}
		}
		lastVersion = version

		// The version moved, but the settled value may still equal the last
		// one observed (a transaction whose writes cancelled out). Fire only
		// on a difference under the target's own equality policy, or when
		// crossing into or out of an error.
		if err == nil && lastErr == nil && src.equals(lastValue, value) {
			return settleResult{}
		}
		lastValue, lastErr = value, err

		res := settleResult{fired: true}
		func() {
			defer func() {
				if r := recover(); r != nil {
					res.err = &CallbackError{SubscriptionID: s.id, Value: r, Stack: debug.Stack()}
				}
			}()
			if err != nil {
				var zero T
				cb(zero, err)
				return
			}
			cb(value, nil)
		}()
		return res
	}

	s.target.addDependent(s)
	notifyNodeCreated(s.id, KindSubscription)
	return s
}

// OnChange is the disposer-function form of Subscribe, matching callers
// that only ever need to detach:
//
//	dispose := OnChange(full, func(v string, err error) { ... })
//	defer dispose()
func OnChange[T any](src Source[T], cb func(value T, err error)) func() {
	s := Subscribe(src, cb)
	return s.Dispose
}

// Dispose permanently detaches the subscription. The callback is never
// invoked again, and any derivation left without dependents is recursively
// released so orphaned evaluation chains do not linger in the graph.
// Dispose is idempotent.
func (s *Subscription) Dispose() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	s.target.removeDependent(s)
	releaseOrphan(s.target)
	notifyNodeDisposed(s.id)
}

// ID returns the unique identifier for this subscription.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Active reports whether the subscription can still fire.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// nodeID implements dependent.
func (s *Subscription) nodeID() uint64 {
	return s.id
}

// invalidate implements dependent. Subscriptions have no cached
// computation; staleness is decided at settle time by comparing the
// target's version against the last observed one.
func (s *Subscription) invalidate() {}

// sources implements dependent.
func (s *Subscription) sources() []*nodeBase {
	return []*nodeBase{s.target}
}

// selfNode implements dependent: a subscription is never a source.
func (s *Subscription) selfNode() *nodeBase {
	return nil
}

// settle implements dependent: compare the settled target against the last
// observed result and fire at most once.
func (s *Subscription) settle() settleResult {
	if !s.active.Load() {
		return settleResult{}
	}
	res := s.fire()
	if res.fired {
		notifySubscriptionFired(s.id, s.target.id)
	}
	return res
}

// kind implements dependent.
func (s *Subscription) kind() NodeKind {
	return KindSubscription
}

var _ dependent = (*Subscription)(nil)

// releaseOrphan recursively drops a derivation whose dependent set just
// became empty. Atoms are owned by ordinary references and are never
// released by the graph.
func releaseOrphan(base *nodeBase) {
	if base.owner == nil || base.hasDependents() {
		return
	}
	if r, ok := base.owner.(interface{ release() }); ok {
		r.release()
	}
}
