package reactive

import (
	"log/slog"
	"sync"
	"time"
)

// Observer receives engine events: node lifecycle, evaluations, and
// transaction summaries. Observers run synchronously on the mutating
// goroutine after the state they describe is committed; implementations
// must be fast and must not call back into the engine. A panicking
// observer is contained and logged.
//
// This is the seam instrumentation attaches to; the engine itself carries
// no metrics or tracing.
type Observer interface {
	// NodeCreated fires when an atom, derivation, or subscription is created.
	NodeCreated(id uint64, kind NodeKind)

	// NodeDisposed fires when a subscription is disposed.
	NodeDisposed(id uint64)

	// AtomChanged fires when a write actually changes an atom's value.
	AtomChanged(id uint64, version uint64)

	// NodeEvaluated fires after a derivation commits an evaluation.
	NodeEvaluated(ev EvalEvent)

	// SubscriptionFired fires after a subscription callback was invoked.
	SubscriptionFired(id uint64, targetID uint64)

	// TransactionEnd fires after each propagation pass.
	TransactionEnd(stats TxStats)
}

// EvalEvent describes one committed derivation evaluation.
type EvalEvent struct {
	ID      uint64
	Version uint64
	Changed bool
	Err     error

	// Deps is the dependency edge set committed by this evaluation.
	Deps []uint64
}

// TxStats summarizes one propagation pass.
type TxStats struct {
	ChangedAtoms int
	Reachable    int
	Evaluated    int
	Fired        int
	Errors       int
	Duration     time.Duration
}

// NopObserver implements Observer with no-ops. Embed it to receive only
// the events you care about.
type NopObserver struct{}

func (NopObserver) NodeCreated(id uint64, kind NodeKind)       {}
func (NopObserver) NodeDisposed(id uint64)                     {}
func (NopObserver) AtomChanged(id uint64, version uint64)      {}
func (NopObserver) NodeEvaluated(ev EvalEvent)                 {}
func (NopObserver) SubscriptionFired(id uint64, target uint64) {}
func (NopObserver) TransactionEnd(stats TxStats)               {}

var _ Observer = NopObserver{}

var (
	observerMu sync.RWMutex
	observers  []Observer
)

// AddObserver registers an observer for engine events.
func AddObserver(o Observer) {
	if o == nil {
		return
	}
	observerMu.Lock()
	defer observerMu.Unlock()
	observers = append(observers, o)
}

// RemoveObserver unregisters a previously added observer, compared by
// identity.
func RemoveObserver(o Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	for i, existing := range observers {
		if existing == o {
			observers = append(observers[:i], observers[i+1:]...)
			return
		}
	}
}

// observersActive reports whether any observer is registered, so event
// payloads are only built when someone is listening.
func observersActive() bool {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return len(observers) > 0
}

// emit delivers one event to every observer, copy-before-notify so no lock
// is held during callbacks. Observer panics are contained here.
func emit(fn func(Observer)) {
	observerMu.RLock()
	if len(observers) == 0 {
		observerMu.RUnlock()
		return
	}
	snapshot := make([]Observer, len(observers))
	copy(snapshot, observers)
	observerMu.RUnlock()

	for _, o := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Default().With("component", "reactive").Error("observer panicked", "panic", r)
				}
			}()
			fn(o)
		}()
	}
}

func notifyNodeCreated(id uint64, kind NodeKind) {
	emit(func(o Observer) { o.NodeCreated(id, kind) })
}

func notifyNodeDisposed(id uint64) {
	emit(func(o Observer) { o.NodeDisposed(id) })
}

func notifyAtomChanged(id uint64, version uint64) {
	emit(func(o Observer) { o.AtomChanged(id, version) })
}

func notifyNodeEvaluated(ev EvalEvent) {
	emit(func(o Observer) { o.NodeEvaluated(ev) })
}

func notifySubscriptionFired(id uint64, targetID uint64) {
	emit(func(o Observer) { o.SubscriptionFired(id, targetID) })
}

func notifyTransactionEnd(stats TxStats) {
	emit(func(o Observer) { o.TransactionEnd(stats) })
}
