package reactive

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrTooManyCascades is reported through the error reporter when writes
// made by subscription callbacks keep scheduling new propagation passes
// without the graph ever settling.
var ErrTooManyCascades = errors.New("reactive: propagation cascade limit exceeded")

// CycleError reports a derivation that read itself, directly or through
// other derivations, during its own evaluation. The evaluation that found
// the cycle is aborted without touching cached state; the error surfaces
// synchronously to the read that triggered it.
type CycleError struct {
	// NodeID is the derivation whose evaluation re-entered itself.
	NodeID uint64

	// Path holds the IDs of the evaluations that were in flight when the
	// cycle was detected, outermost first.
	Path []uint64
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("reactive: dependency cycle through derivation %d (evaluation path %v)", e.NodeID, e.Path)
}

// ComputationError wraps a panic raised by a user computation. It is
// cached on the derivation and returned from every read until a dependency
// change allows re-evaluation.
type ComputationError struct {
	// NodeID is the derivation whose computation panicked.
	NodeID uint64

	// Value is the recovered panic value.
	Value any

	// Stack is the goroutine stack captured at recovery.
	Stack []byte
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("reactive: derivation %d computation panicked: %v", e.NodeID, e.Value)
}

// Unwrap exposes the panic value when it was itself an error, so
// errors.Is/As can reach through composed derivations.
func (e *ComputationError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// CallbackError wraps a panic raised by a subscription callback. One
// failing callback never prevents the other subscriptions in the pass from
// firing; all callback errors are aggregated and handed to the error
// reporter after the pass completes.
type CallbackError struct {
	// SubscriptionID is the subscription whose callback panicked.
	SubscriptionID uint64

	// Value is the recovered panic value.
	Value any

	// Stack is the goroutine stack captured at recovery.
	Stack []byte
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("reactive: subscription %d callback panicked: %v", e.SubscriptionID, e.Value)
}

func (e *CallbackError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

var (
	reporterMu    sync.RWMutex
	errorReporter = func(err error) {
		slog.Default().With("component", "reactive").Error("propagation errors", "error", err)
	}
)

// SetErrorReporter installs the hook that receives errors collected during
// a propagation pass (callback panics, cycle errors found while settling,
// cascade overruns). Passing nil restores the default slog reporter.
func SetErrorReporter(fn func(error)) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	if fn == nil {
		fn = func(err error) {
			slog.Default().With("component", "reactive").Error("propagation errors", "error", err)
		}
	}
	errorReporter = fn
}

// reportErrors delivers pass-level errors to the configured reporter.
func reportErrors(err error) {
	if err == nil {
		return
	}
	reporterMu.RLock()
	fn := errorReporter
	reporterMu.RUnlock()
	fn(err)
}
