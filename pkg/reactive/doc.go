// Package reactive provides a dependency-tracking runtime: mutable root
// cells (Atom), memoized computations over them (Derivation), and
// observers that fire exactly when a settled value changes (Subscription).
//
// Dependencies are discovered, not declared. Reading an atom or derivation
// during a computation records an edge in the dependency graph; each
// re-evaluation rediscovers its edges from scratch, so a computation that
// stops reading a source stops depending on it.
//
// # Core Types
//
// Atom[T] is a root mutable cell:
//
//	count := NewAtom(0)
//	value := count.Get()  // Read (records a dependency while tracking)
//	count.Set(5)          // Write (propagates to dependents)
//	count.Update(func(n int) int { return n + 1 })
//
// Derivation[T] is a cached computation:
//
//	doubled := NewDerivation(func() int { return count.Get() * 2 })
//	value, err := doubled.Get()  // Recomputes only if dependencies changed
//
// Subscribe attaches an observer that fires on settled changes:
//
//	sub := Subscribe(doubled, func(v int, err error) {
//	    fmt.Println("doubled is now", v)
//	})
//	defer sub.Dispose()
//
// # Transactions
//
// Writes inside Batch are collected and propagated in a single pass:
//
//	Batch(func() {
//	    first.Set("Ada")
//	    last.Set("Lovelace")
//	})  // subscriptions fire at most once, with the settled values
//
// A write outside any Batch behaves as its own single-write transaction.
//
// Propagation is glitch-free: nodes are re-evaluated in dependency order
// (longest path from any changed atom), so an observer never sees a state
// where one branch of a diamond reflects the new value while another still
// reflects the old one.
//
// # Thread Safety
//
// The tracking context is per-goroutine. Individual reads and writes are
// safe from multiple goroutines, but the propagation model is synchronous
// and cooperative: a transaction and its propagation pass run to completion
// on the goroutine that closed the transaction.
package reactive
