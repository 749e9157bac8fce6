package reactive

import (
	"runtime"
	"sync"
)

// frame records the sources read during one tracked evaluation.
// Frames nest: a derivation reading another derivation pushes a new frame
// for the inner computation and restores the outer one when it completes.
type frame struct {
	// owner is the derivation being evaluated; nil for muted frames.
	owner dependent

	// muted suppresses read registration (Untracked).
	muted bool

	// reads holds the sources read so far, in first-read order.
	reads []*nodeBase
	seen  map[uint64]struct{}
}

// trackingContext holds the reactive state for a goroutine: the evaluation
// frame stack and the open transaction's changed-atom ledger.
type trackingContext struct {
	frames []*frame

	// txDepth tracks nested Batch() calls. When > 0, atom writes only
	// record changed membership; propagation runs when it returns to zero.
	txDepth int

	// changed accumulates atoms written during the open transaction,
	// deduplicated by ID.
	changed     []*nodeBase
	changedSeen map[uint64]struct{}

	// propagating is true while a propagation pass is running. Writes made
	// by subscription callbacks during a pass are queued and drained by the
	// same propagation loop instead of recursing.
	propagating bool
}

// trackingContexts stores per-goroutine tracking contexts.
// Using sync.Map for concurrent access from multiple goroutines.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine.
// This uses the runtime stack to extract the goroutine ID.
// Note: This is an implementation detail and should not be relied upon externally.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> "
	var id uint64
	for i := 10; i < n; i++ { // Skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating one if none exists. Contexts are lightweight and are reused for
// the goroutine's lifetime.
func getTrackingContext() *trackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}

	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// beginFrame pushes a new read-set frame for owner and makes it active.
func (tc *trackingContext) beginFrame(owner dependent) {
	tc.frames = append(tc.frames, &frame{
		owner: owner,
		seen:  make(map[uint64]struct{}),
	})
}

// endFrame pops the active frame and returns the sources it recorded,
// restoring the previous frame. Callers pair it with beginFrame on every
// exit path, including panics.
func (tc *trackingContext) endFrame() []*nodeBase {
	f := tc.frames[len(tc.frames)-1]
	tc.frames[len(tc.frames)-1] = nil
	tc.frames = tc.frames[:len(tc.frames)-1]
	return f.reads
}

// recordRead registers a source into the active frame, if any.
func recordRead(src *nodeBase) {
	tc := getTrackingContext()
	if len(tc.frames) == 0 {
		return
	}
	f := tc.frames[len(tc.frames)-1]
	if f.muted {
		return
	}
	if _, ok := f.seen[src.id]; ok {
		return
	}
	f.seen[src.id] = struct{}{}
	f.reads = append(f.reads, src)
}

// onEvalStack reports whether the node is currently being evaluated, at
// any nesting level. A read of such a node is a cycle.
func (tc *trackingContext) onEvalStack(id uint64) bool {
	for _, f := range tc.frames {
		if f.owner != nil && f.owner.nodeID() == id {
			return true
		}
	}
	return false
}

// evalStackIDs returns the IDs of the evaluations currently in flight,
// outermost first. Used to describe cycles.
func (tc *trackingContext) evalStackIDs() []uint64 {
	var ids []uint64
	for _, f := range tc.frames {
		if f.owner != nil {
			ids = append(ids, f.owner.nodeID())
		}
	}
	return ids
}

// evalDepth returns the number of evaluations in flight on this goroutine.
func (tc *trackingContext) evalDepth() int {
	depth := 0
	for _, f := range tc.frames {
		if f.owner != nil {
			depth++
		}
	}
	return depth
}

// recordChanged adds an atom to the open transaction's changed set.
func (tc *trackingContext) recordChanged(base *nodeBase) {
	if tc.changedSeen == nil {
		tc.changedSeen = make(map[uint64]struct{})
	}
	if _, ok := tc.changedSeen[base.id]; ok {
		return
	}
	tc.changedSeen[base.id] = struct{}{}
	tc.changed = append(tc.changed, base)
}

// drainChanged returns and clears the changed-atom ledger.
func (tc *trackingContext) drainChanged() []*nodeBase {
	changed := tc.changed
	tc.changed = nil
	tc.changedSeen = nil
	return changed
}

// Untracked runs fn without registering its reads as dependencies of the
// surrounding computation.
//
// Example:
//
//	Untracked(func() {
//	    // Reading count here won't add an edge for the enclosing derivation
//	    value := count.Get()
//	    fmt.Println("Current value:", value)
//	})
//
// Note: For single atom reads, Peek() is more direct and clearer in intent.
func Untracked(fn func()) {
	tc := getTrackingContext()
	tc.frames = append(tc.frames, &frame{muted: true})
	defer func() {
		tc.frames[len(tc.frames)-1] = nil
		tc.frames = tc.frames[:len(tc.frames)-1]
	}()
	fn()
}
