package reactive

import (
	"sync"
	"sync/atomic"
)

// NodeKind identifies the role of a node in the dependency graph.
type NodeKind int

const (
	KindAtom NodeKind = iota
	KindDerivation
	KindSubscription
)

// String returns the kind name used in events and debug output.
func (k NodeKind) String() string {
	switch k {
	case KindAtom:
		return "atom"
	case KindDerivation:
		return "derivation"
	case KindSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// dependent is a node that reacts when one of its sources changes:
// derivations and subscriptions implement it.
type dependent interface {
	nodeID() uint64

	// invalidate marks the node as needing re-evaluation. For derivations
	// this is the Fresh/Errored -> Stale transition; subscriptions have no
	// cached computation to invalidate.
	invalidate()

	// sources returns the dependency edges committed by the last
	// evaluation. Subscriptions return their single target.
	sources() []*nodeBase

	// selfNode returns the node's own trackable base when the dependent is
	// itself a source (derivations). Subscriptions return nil.
	selfNode() *nodeBase

	// settle brings the node up to date during a propagation pass:
	// derivations re-evaluate if stale, subscriptions compare and fire.
	settle() settleResult

	kind() NodeKind
}

// settleResult reports what one settle call did.
type settleResult struct {
	recomputed bool
	changed    bool
	fired      bool

	// failed marks an evaluation that ended in a cached ComputationError.
	// It counts into the pass stats but is not reported: the error surfaces
	// through reads and subscription callbacks.
	failed bool

	// err carries errors the pass itself must surface: callback panics and
	// cycles found while settling.
	err error
}

// nodeBase provides type-erased versioning and dependent-set management.
// It is embedded in Atom[T] and Derivation[T]; the dependency graph's
// edges are expressed in terms of *nodeBase so that generic node types can
// share one propagation engine.
type nodeBase struct {
	id  uint64
	knd NodeKind

	// owner is the derivation this base belongs to, nil for atoms.
	// Propagation uses it to walk dependency edges downward from
	// subscriptions when computing the eagerly-required set.
	owner dependent

	// version increases exactly when the externally observable result
	// changes: a new value under the equality policy, or a new error.
	version atomic.Uint64

	// dependents are the nodes that read this source during their last
	// completed evaluation.
	depMu      sync.RWMutex
	dependents []dependent
}

func (n *nodeBase) nodeID() uint64 {
	return n.id
}

func (n *nodeBase) currentVersion() uint64 {
	return n.version.Load()
}

func (n *nodeBase) bumpVersion() {
	n.version.Add(1)
}

// addDependent adds a node to this source's dependent set.
// Deduplicates by node ID to prevent double-linking.
func (n *nodeBase) addDependent(d dependent) {
	if d == nil {
		return
	}

	n.depMu.Lock()
	defer n.depMu.Unlock()

	id := d.nodeID()
	for _, existing := range n.dependents {
		if existing.nodeID() == id {
			return
		}
	}

	n.dependents = append(n.dependents, d)
}

// removeDependent removes a node from this source's dependent set.
func (n *nodeBase) removeDependent(d dependent) {
	if d == nil {
		return
	}

	n.depMu.Lock()
	defer n.depMu.Unlock()

	id := d.nodeID()
	for i, existing := range n.dependents {
		if existing.nodeID() == id {
			// Remove by swapping with the last element (order doesn't matter)
			n.dependents[i] = n.dependents[len(n.dependents)-1]
			n.dependents = n.dependents[:len(n.dependents)-1]
			return
		}
	}
}

// snapshotDependents copies the dependent set so propagation can walk it
// without holding the lock while other edges are being rewired.
func (n *nodeBase) snapshotDependents() []dependent {
	n.depMu.RLock()
	defer n.depMu.RUnlock()

	if len(n.dependents) == 0 {
		return nil
	}
	out := make([]dependent, len(n.dependents))
	copy(out, n.dependents)
	return out
}

func (n *nodeBase) hasDependents() bool {
	n.depMu.RLock()
	defer n.depMu.RUnlock()
	return len(n.dependents) > 0
}
