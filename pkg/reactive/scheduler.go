package reactive

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
)

// maxCascadePasses bounds the number of follow-up passes one propagation
// trigger may run. Each pass exists because a subscription callback wrote
// an atom during the previous one; an unbounded chain means two callbacks
// are feeding each other.
const maxCascadePasses = 100

// runPropagation drains the changed-atom ledger and runs passes until the
// graph settles. Writes made by callbacks during a pass land back in the
// ledger and are drained by the same loop instead of recursing.
func runPropagation(tc *trackingContext) {
	if tc.propagating {
		return
	}
	tc.propagating = true
	defer func() { tc.propagating = false }()

	for pass := 0; ; pass++ {
		roots := tc.drainChanged()
		if len(roots) == 0 {
			return
		}
		if pass == maxCascadePasses {
			reportErrors(fmt.Errorf("%w: %d passes without settling", ErrTooManyCascades, pass))
			return
		}
		runPass(roots)
	}
}

// runPass performs one propagation pass from the given changed atoms:
// compute the reachable set with heights, mark reachable derivations
// stale, and settle the eagerly-required nodes in strictly increasing
// height order (ties broken by creation order). Height ordering means no
// node settles before everything it depends on has settled, which is what
// makes propagation glitch-free.
func runPass(roots []*nodeBase) {
	start := time.Now()

	nodes, heights := collectReachable(roots)

	for _, n := range nodes {
		n.invalidate()
	}

	needed := observedSet(nodes)

	order := make([]dependent, 0, len(nodes))
	for _, n := range nodes {
		order = append(order, n)
	}
	sort.Slice(order, func(i, j int) bool {
		hi, hj := heights[order[i].nodeID()], heights[order[j].nodeID()]
		if hi != hj {
			return hi < hj
		}
		return order[i].nodeID() < order[j].nodeID()
	})

	stats := TxStats{ChangedAtoms: len(roots), Reachable: len(order)}
	var errs *multierror.Error

	for _, n := range order {
		if n.kind() == KindDerivation {
			if sn := n.selfNode(); sn != nil && !needed[sn.id] {
				// No subscription transitively depends on it: stays stale
				// until the next read.
				continue
			}
		}
		res := n.settle()
		if res.recomputed {
			stats.Evaluated++
		}
		if res.fired {
			stats.Fired++
		}
		if res.err != nil {
			stats.Errors++
			errs = multierror.Append(errs, res.err)
		} else if res.failed {
			stats.Errors++
		}
	}

	stats.Duration = time.Since(start)
	notifyTransactionEnd(stats)
	debugLog("propagation pass",
		"changed", stats.ChangedAtoms,
		"reachable", stats.Reachable,
		"evaluated", stats.Evaluated,
		"fired", stats.Fired,
		"errors", stats.Errors,
	)

	if err := errs.ErrorOrNil(); err != nil {
		reportErrors(err)
	}
}

// collectReachable walks dependent edges from the changed atoms and
// assigns each reachable node its height: the length of the longest path
// from any changed atom. Heights are found by relaxation; committed edges
// are acyclic, so the walk terminates.
func collectReachable(roots []*nodeBase) (map[uint64]dependent, map[uint64]int) {
	nodes := make(map[uint64]dependent)
	heights := make(map[uint64]int)

	type item struct {
		base   *nodeBase
		height int
	}
	queue := make([]item, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, item{base: r})
	}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		for _, dep := range it.base.snapshotDependents() {
			id := dep.nodeID()
			h := it.height + 1
			if prev, ok := heights[id]; ok && prev >= h {
				continue
			}
			heights[id] = h
			nodes[id] = dep
			if sn := dep.selfNode(); sn != nil {
				queue = append(queue, item{base: sn, height: h})
			}
		}
	}

	return nodes, heights
}

// observedSet returns the IDs of every node some active subscription in
// the reachable set transitively depends on. Only these nodes are settled
// eagerly; everything else keeps pull semantics.
func observedSet(nodes map[uint64]dependent) map[uint64]bool {
	needed := make(map[uint64]bool)

	var walk func(base *nodeBase)
	walk = func(base *nodeBase) {
		if needed[base.id] {
			return
		}
		needed[base.id] = true
		if base.owner == nil {
			return
		}
		for _, src := range base.owner.sources() {
			walk(src)
		}
	}

	for _, n := range nodes {
		if n.kind() != KindSubscription {
			continue
		}
		if s, ok := n.(*Subscription); ok && !s.Active() {
			continue
		}
		for _, src := range n.sources() {
			walk(src)
		}
	}

	return needed
}
