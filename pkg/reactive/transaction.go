package reactive

// Batch groups multiple atom writes into a single transaction. Writes
// inside the batch only record changed membership; one propagation pass
// runs when the outermost batch completes, so every dependent re-evaluates
// at most once and every subscription fires at most once with the settled
// values.
//
// Batches nest: propagation only runs when the nesting level returns to
// zero.
//
// Example:
//
//	Batch(func() {
//	    firstName.Set("Ada")
//	    lastName.Set("Lovelace")
//	})
//	// subscriptions fire once, seeing both changes
func Batch(fn func()) {
	tc := getTrackingContext()
	tc.txDepth++

	defer func() {
		tc.txDepth--
		if tc.txDepth == 0 {
			runPropagation(tc)
		}
	}()

	fn()
}

// RunInTransaction runs fn as a transaction and returns its result.
// It is Batch for callers that produce a value.
//
// Example:
//
//	id := RunInTransaction(func() int {
//	    user.Set(newUser)
//	    profile.Set(newProfile)
//	    return newUser.ID
//	})
func RunInTransaction[R any](fn func() R) R {
	var out R
	Batch(func() {
		out = fn()
	})
	return out
}

// BatchNamed runs fn as a named transaction for debugging. The name is
// logged in debug mode so update storms can be traced to their source.
func BatchNamed(name string, fn func()) {
	if DebugMode {
		debugLog("transaction start", "name", name)
		defer debugLog("transaction end", "name", name)
	}
	Batch(fn)
}

// registerWrite records a changed atom in the open transaction, opening
// and immediately closing an implicit one when no transaction is active.
func registerWrite(base *nodeBase) {
	tc := getTrackingContext()

	if tc.evalDepth() > 0 {
		// Computations are read-only over the graph. A write from inside
		// one is queued and picked up by the next propagation trigger
		// rather than recursing into the evaluation in flight.
		debugLog("atom written during computation", "atom", base.id)
		tc.recordChanged(base)
		return
	}

	tc.recordChanged(base)
	if tc.txDepth == 0 {
		runPropagation(tc)
	}
}
