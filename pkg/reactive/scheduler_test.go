package reactive

import "testing"

// The diamond: a feeds b and c, which both feed d. A single write to a
// must evaluate d exactly once, and d must never observe b at the new
// value while c still holds the old one.
func TestDiamondGlitchFree(t *testing.T) {
	a := NewAtom(1)

	b := NewDerivation(func() int { return a.Get() + 1 })
	c := NewDerivation(func() int { return a.Get() * 10 })

	dRuns := 0
	var observed [][2]int
	d := NewDerivation(func() int {
		dRuns++
		bv := b.MustGet()
		cv := c.MustGet()
		observed = append(observed, [2]int{bv, cv})
		return bv + cv
	})

	var fired []int
	sub := Subscribe[int](d, func(v int, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		fired = append(fired, v)
	})
	defer sub.Dispose()

	if dRuns != 1 {
		t.Fatalf("expected 1 baseline run, got %d", dRuns)
	}

	a.Set(5)

	if dRuns != 2 {
		t.Errorf("expected d to run exactly once per write, total %d runs", dRuns)
	}
	if len(fired) != 1 || fired[0] != 56 {
		t.Errorf("expected one fire with 56, got %v", fired)
	}

	// Every observed (b, c) pair must be consistent: both derived from the
	// same value of a.
	for _, pair := range observed {
		bv, cv := pair[0], pair[1]
		if (bv-1)*10 != cv {
			t.Errorf("glitch: observed b=%d with c=%d", bv, cv)
		}
	}
}

// Uneven path lengths: a feeds mid, a and mid both feed top. The direct
// edge gives top height 1, the longer path height 2; the longest path
// wins, so mid always settles first.
func TestUnevenHeights(t *testing.T) {
	a := NewAtom(1)

	mid := NewDerivation(func() int { return a.Get() * 2 })

	topRuns := 0
	top := NewDerivation(func() int {
		topRuns++
		return a.Get() + mid.MustGet()
	})

	var fired []int
	sub := Subscribe[int](top, func(v int, err error) { fired = append(fired, v) })
	defer sub.Dispose()

	a.Set(10)

	if topRuns != 2 {
		t.Errorf("expected exactly one re-run of top, total %d runs", topRuns)
	}
	if len(fired) != 1 || fired[0] != 30 {
		t.Errorf("expected one fire with 30, got %v", fired)
	}
}

func TestUnobservedBranchStaysLazy(t *testing.T) {
	a := NewAtom(1)

	watchedRuns := 0
	watched := NewDerivation(func() int {
		watchedRuns++
		return a.Get() + 1
	})

	idleRuns := 0
	idle := NewDerivation(func() int {
		idleRuns++
		return a.Get() * 100
	})

	sub := Subscribe[int](watched, func(int, error) {})
	defer sub.Dispose()

	// Prime both so each holds an edge to a.
	if _, err := idle.Get(); err != nil {
		t.Fatal(err)
	}

	a.Set(2)

	if watchedRuns != 2 {
		t.Errorf("expected subscribed branch to re-run, got %d runs", watchedRuns)
	}
	if idleRuns != 1 {
		t.Errorf("unsubscribed branch evaluated during propagation, %d runs", idleRuns)
	}

	// The lazy branch still reflects the write on pull.
	if v, _ := idle.Get(); v != 200 {
		t.Errorf("expected 200 on pull, got %d", v)
	}
}

// A wide diamond with a suppressing layer in the middle: the top must not
// fire when the middle recomputes to equal values.
func TestSuppressionInsideDiamond(t *testing.T) {
	n := NewAtom(2)

	sign := NewDerivation(func() int {
		if n.Get() < 0 {
			return -1
		}
		return 1
	})
	mag := NewDerivation(func() int {
		v := n.Get()
		if v < 0 {
			return -v
		}
		return v
	})

	topRuns := 0
	top := NewDerivation(func() int {
		topRuns++
		return sign.MustGet() * mag.MustGet()
	})

	fires := 0
	sub := Subscribe[int](top, func(int, error) { fires++ })
	defer sub.Dispose()

	// 2 -> 4: sign stays 1, mag changes, top re-runs and fires.
	n.Set(4)
	if topRuns != 2 || fires != 1 {
		t.Fatalf("expected run/fire after magnitude change, got %d/%d", topRuns, fires)
	}

	// 4 -> -4: sign flips, mag stays 4, top re-runs exactly once more.
	n.Set(-4)
	if topRuns != 3 {
		t.Errorf("expected exactly one re-run for sign flip, total %d", topRuns)
	}
	if fires != 2 {
		t.Errorf("expected second fire, got %d", fires)
	}
}

// An errored derivation inside the graph must not halt the pass: siblings
// still settle and the error reaches the subscription on the failed branch.
func TestPropagationContinuesPastError(t *testing.T) {
	n := NewAtom(1)

	bad := NewDerivation(func() int {
		if n.Get() > 1 {
			panic("boom")
		}
		return 0
	})
	good := NewDerivation(func() int { return n.Get() * 2 })

	var badErr error
	s1 := Subscribe[int](bad, func(_ int, err error) { badErr = err })
	defer s1.Dispose()

	goodFires := 0
	var goodLast int
	s2 := Subscribe[int](good, func(v int, err error) {
		goodFires++
		goodLast = v
	})
	defer s2.Dispose()

	n.Set(3)

	if badErr == nil {
		t.Error("expected error on failed branch")
	}
	if goodFires != 1 || goodLast != 6 {
		t.Errorf("healthy branch did not settle, fires=%d last=%d", goodFires, goodLast)
	}
}
