package reactive

import (
	"runtime/debug"
	"sync"
)

// derivationState tracks the evaluation lifecycle of a derivation.
//
// Fresh -(a dependency's version increased)-> Stale
// Stale -(read or scheduled re-evaluation)-> Computing
// Computing -(success)-> Fresh, or -(computation panics)-> Errored
//
// Errored behaves like Fresh for caching: reads return the captured error
// until a dependency change makes the node Stale again.
type derivationState int32

const (
	stateStale derivationState = iota
	stateFresh
	stateComputing
	stateErrored
)

func (s derivationState) String() string {
	switch s {
	case stateStale:
		return "stale"
	case stateFresh:
		return "fresh"
	case stateComputing:
		return "computing"
	case stateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// depEdge is one committed dependency link, together with the source
// version observed when the link was committed. Staleness verification
// compares the recorded version against the source's current one, so a
// derivation whose sources recomputed to equal values never re-runs.
type depEdge struct {
	src     *nodeBase
	version uint64
}

// Derivation is a memoized computation over atoms and other derivations.
// Its dependency set is rediscovered on every evaluation: edges to sources
// the computation no longer reads are dropped, new reads add new edges.
//
// Derivations are lazy. One with no subscription among its transitive
// dependents stays stale until the next read; one that an active
// subscription depends on is re-evaluated eagerly during propagation.
type Derivation[T any] struct {
	base nodeBase

	// compute is the computation. It must be pure and read-only over the
	// graph; writes from inside a computation are queued, not propagated.
	compute func() T

	// equal is the equality policy for output-change detection.
	// If nil, EqualsDefault is used.
	equal Equality[T]

	mu      sync.Mutex
	state   derivationState
	value   T
	evalErr error // cached *ComputationError while Errored

	// deps is the edge set committed by the last completed evaluation.
	deps []depEdge

	// hasRun is false until the first evaluation commits, and again after
	// the derivation is released by its last dependent.
	hasRun bool
}

// NewDerivation creates a derivation with the given computation.
// The computation does not run immediately; it runs on first read.
func NewDerivation[T any](compute func() T) *Derivation[T] {
	d := &Derivation[T]{
		compute: compute,
		state:   stateStale,
	}
	d.base.id = nextID()
	d.base.knd = KindDerivation
	d.base.owner = d
	notifyNodeCreated(d.base.id, KindDerivation)
	return d
}

// Get returns the derivation's value, recomputing if a dependency changed
// since the last evaluation. It registers the derivation into any active
// tracking frame. A cached computation failure is returned as a
// *ComputationError; a self-read returns a *CycleError.
func (d *Derivation[T]) Get() (T, error) {
	return d.read(true)
}

// Peek returns the value without registering a dependency.
// It still recomputes when the cached value is out of date.
func (d *Derivation[T]) Peek() (T, error) {
	return d.read(false)
}

// MustGet is Get for computations composing derivations: it panics with
// the read error, which the enclosing evaluation captures as its own
// ComputationError (or unwinds, for cycles).
func (d *Derivation[T]) MustGet() T {
	v, err := d.Get()
	if err != nil {
		panic(err)
	}
	return v
}

func (d *Derivation[T]) read(track bool) (T, error) {
	tc := getTrackingContext()
	if tc.onEvalStack(d.base.id) {
		// A self-read is always inside this derivation's own evaluation.
		// Unwind every evaluation between here and the read that started
		// the chain; each aborts without committing, and the outermost
		// read returns the error.
		panic(&CycleError{NodeID: d.base.id, Path: tc.evalStackIDs()})
	}

	if track {
		recordRead(&d.base)
	}

	if res := d.ensure(); res.err != nil {
		// ensure only returns an error for a cycle detected at the top of
		// the evaluation stack; nested cycles unwind via panic above.
		var zero T
		return zero, res.err
	}

	return d.current()
}

// ID returns the unique identifier for this derivation.
func (d *Derivation[T]) ID() uint64 {
	return d.base.id
}

// Version returns the derivation's version counter. It increases exactly
// when a re-evaluation produces an observably different result.
func (d *Derivation[T]) Version() uint64 {
	return d.base.currentVersion()
}

// WithEquals configures the derivation with a custom equality policy and
// returns the derivation for chaining.
func (d *Derivation[T]) WithEquals(fn Equality[T]) *Derivation[T] {
	d.equal = fn
	return d
}

// ensure brings the cached result up to date. Dependencies are settled
// first; the computation re-runs only when one of them actually changed
// version since the last committed evaluation. A non-nil error is returned
// only when a cycle aborted the evaluation at the top of the stack;
// computation failures are cached and surface through reads.
func (d *Derivation[T]) ensure() settleResult {
	// Settling can reach this derivation while it is already mid-evaluation
	// on this goroutine: a computation that dynamically rewires to read a
	// node whose committed edges still point back at it arrives here through
	// depsChanged rather than through read. That is the same cycle, caught
	// the same way.
	if tc := getTrackingContext(); tc.onEvalStack(d.base.id) {
		panic(&CycleError{NodeID: d.base.id, Path: tc.evalStackIDs()})
	}

	d.mu.Lock()
	st := d.state
	ran := d.hasRun
	d.mu.Unlock()

	if st == stateFresh || st == stateErrored {
		return settleResult{}
	}

	if ran && !d.depsChanged() {
		// Every source settled to an equal value; keep the cache and flip
		// back without running the computation.
		d.mu.Lock()
		if d.state == stateStale {
			if d.evalErr != nil {
				d.state = stateErrored
			} else {
				d.state = stateFresh
			}
		}
		d.mu.Unlock()
		return settleResult{}
	}

	return d.evaluate()
}

// depsChanged settles each committed source and reports whether any of
// them changed version since this derivation last evaluated. The committed
// edge set is acyclic, so the downward recursion terminates.
func (d *Derivation[T]) depsChanged() bool {
	d.mu.Lock()
	edges := make([]depEdge, len(d.deps))
	copy(edges, d.deps)
	d.mu.Unlock()

	for _, e := range edges {
		if owner := e.src.owner; owner != nil {
			owner.settle()
		}
		if e.src.currentVersion() != e.version {
			return true
		}
	}
	return false
}

// evaluate runs the computation under a fresh tracking frame and commits
// the result. A cycle unwinding through the computation aborts the
// evaluation without touching cached state or committed edges.
func (d *Derivation[T]) evaluate() settleResult {
	tc := getTrackingContext()

	d.mu.Lock()
	prev := d.state
	d.state = stateComputing
	d.mu.Unlock()

	tc.beginFrame(d)
	var (
		next    T
		compErr *ComputationError
		cycle   *CycleError
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				if ce, ok := r.(*CycleError); ok {
					cycle = ce
					return
				}
				compErr = &ComputationError{NodeID: d.base.id, Value: r, Stack: debug.Stack()}
			}
		}()
		next = d.compute()
	}()
	reads := tc.endFrame()

	if cycle != nil {
		d.mu.Lock()
		d.state = prev
		d.mu.Unlock()
		if tc.evalDepth() > 0 {
			panic(cycle)
		}
		return settleResult{err: cycle}
	}

	return d.commit(next, compErr, reads)
}

// commit replaces the dependency edge set and the cached result. The new
// edge set is computed in full before any link is touched, so the graph is
// never observable half-rewired.
func (d *Derivation[T]) commit(next T, compErr *ComputationError, reads []*nodeBase) settleResult {
	edges := make([]depEdge, len(reads))
	newIDs := make(map[uint64]struct{}, len(reads))
	for i, src := range reads {
		edges[i] = depEdge{src: src, version: src.currentVersion()}
		newIDs[src.id] = struct{}{}
	}

	d.mu.Lock()
	old := d.deps
	d.deps = edges

	hadErr := d.evalErr != nil
	var changed bool
	if compErr != nil {
		// A failure is always a new observable result: re-evaluation only
		// happens after a dependency change, so the previous value or
		// error no longer stands.
		changed = true
		d.evalErr = compErr
		d.state = stateErrored
	} else {
		changed = !d.hasRun || hadErr || !d.equals(d.value, next)
		d.value = next
		d.evalErr = nil
		d.state = stateFresh
	}
	d.hasRun = true
	d.mu.Unlock()

	if changed {
		d.base.bumpVersion()
	}

	// Diff the edge sets: unlink sources the run no longer read, link the
	// new ones.
	oldIDs := make(map[uint64]struct{}, len(old))
	for _, e := range old {
		oldIDs[e.src.id] = struct{}{}
		if _, ok := newIDs[e.src.id]; !ok {
			e.src.removeDependent(d)
		}
	}
	for _, e := range edges {
		if _, ok := oldIDs[e.src.id]; !ok {
			e.src.addDependent(d)
		}
	}

	if observersActive() {
		depIDs := make([]uint64, len(edges))
		for i, e := range edges {
			depIDs[i] = e.src.id
		}
		var evErr error
		if compErr != nil {
			evErr = compErr
		}
		notifyNodeEvaluated(EvalEvent{
			ID:      d.base.id,
			Version: d.base.currentVersion(),
			Changed: changed,
			Err:     evErr,
			Deps:    depIDs,
		})
	}

	return settleResult{recomputed: true, changed: changed, failed: compErr != nil}
}

func (d *Derivation[T]) current() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.evalErr != nil {
		var zero T
		return zero, d.evalErr
	}
	return d.value, nil
}

func (d *Derivation[T]) equals(a, b T) bool {
	if d.equal != nil {
		return d.equal(a, b)
	}
	return EqualsDefault(a, b)
}

// node implements Source.
func (d *Derivation[T]) node() *nodeBase {
	return &d.base
}

// observe implements Source: an untracked read.
func (d *Derivation[T]) observe() (T, error) {
	return d.Peek()
}

// nodeID implements dependent.
func (d *Derivation[T]) nodeID() uint64 {
	return d.base.id
}

// invalidate implements dependent: Fresh/Errored -> Stale.
func (d *Derivation[T]) invalidate() {
	d.mu.Lock()
	if d.state == stateFresh || d.state == stateErrored {
		d.state = stateStale
	}
	d.mu.Unlock()
}

// sources implements dependent.
func (d *Derivation[T]) sources() []*nodeBase {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deps) == 0 {
		return nil
	}
	out := make([]*nodeBase, len(d.deps))
	for i, e := range d.deps {
		out[i] = e.src
	}
	return out
}

// selfNode implements dependent.
func (d *Derivation[T]) selfNode() *nodeBase {
	return &d.base
}

// settle implements dependent.
func (d *Derivation[T]) settle() settleResult {
	return d.ensure()
}

// kind implements dependent.
func (d *Derivation[T]) kind() NodeKind {
	return KindDerivation
}

// release drops every dependency edge and resets the derivation to its
// never-run state. Called when the last dependent detaches; a later read
// re-evaluates and re-links from scratch.
func (d *Derivation[T]) release() {
	d.mu.Lock()
	edges := d.deps
	d.deps = nil
	d.hasRun = false
	d.state = stateStale
	d.mu.Unlock()

	for _, e := range edges {
		e.src.removeDependent(d)
		releaseOrphan(e.src)
	}
}

var _ dependent = (*Derivation[int])(nil)
