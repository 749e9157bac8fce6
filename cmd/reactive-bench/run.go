package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactive/pkg/reactive"
)

type benchConfig struct {
	Scenario   string
	Size       int
	Writes     int
	Warmup     int
	JSONOutput string
}

type benchResult struct {
	Scenario string `json:"scenario"`
	Size     int    `json:"size"`
	Writes   int    `json:"writes"`

	TotalTime    time.Duration `json:"total_ns"`
	WritesPerSec float64       `json:"writes_per_sec"`

	P50 time.Duration `json:"p50_ns"`
	P95 time.Duration `json:"p95_ns"`
	P99 time.Duration `json:"p99_ns"`
	Max time.Duration `json:"max_ns"`

	Evaluations uint64 `json:"evaluations"`
	Fires       uint64 `json:"fires"`
}

func runCmd() *cobra.Command {
	cfg := benchConfig{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a propagation benchmark scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Scenario, "scenario", "chain", "Graph shape: chain, diamond, or fanout")
	cmd.Flags().IntVar(&cfg.Size, "size", 100, "Number of derivations (chain depth / diamond width / fanout count)")
	cmd.Flags().IntVar(&cfg.Writes, "writes", 10000, "Number of timed writes")
	cmd.Flags().IntVar(&cfg.Warmup, "warmup", 100, "Untimed warmup writes")
	cmd.Flags().StringVar(&cfg.JSONOutput, "json", "", "Write results as JSON to this file ('-' for stdout)")

	return cmd
}

// benchCounter tallies engine activity during the timed phase.
type benchCounter struct {
	reactive.NopObserver
	evaluations uint64
	fires       uint64
	enabled     bool
}

func (b *benchCounter) NodeEvaluated(ev reactive.EvalEvent) {
	if b.enabled {
		b.evaluations++
	}
}

func (b *benchCounter) SubscriptionFired(id, target uint64) {
	if b.enabled {
		b.fires++
	}
}

func runBench(cfg benchConfig) error {
	root, dispose, err := buildScenario(cfg.Scenario, cfg.Size)
	if err != nil {
		return err
	}
	defer dispose()

	counter := &benchCounter{}
	reactive.AddObserver(counter)
	defer reactive.RemoveObserver(counter)

	for i := 0; i < cfg.Warmup; i++ {
		root.Set(i)
	}

	counter.enabled = true
	latencies := make([]time.Duration, cfg.Writes)
	start := time.Now()
	for i := 0; i < cfg.Writes; i++ {
		w := time.Now()
		root.Set(cfg.Warmup + i)
		latencies[i] = time.Since(w)
	}
	total := time.Since(start)
	counter.enabled = false

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	res := benchResult{
		Scenario:     cfg.Scenario,
		Size:         cfg.Size,
		Writes:       cfg.Writes,
		TotalTime:    total,
		WritesPerSec: float64(cfg.Writes) / total.Seconds(),
		P50:          percentile(latencies, 0.50),
		P95:          percentile(latencies, 0.95),
		P99:          percentile(latencies, 0.99),
		Max:          latencies[len(latencies)-1],
		Evaluations:  counter.evaluations,
		Fires:        counter.fires,
	}

	success("%s/%d: %d writes in %s (%.0f writes/s)",
		res.Scenario, res.Size, res.Writes, res.TotalTime.Round(time.Millisecond), res.WritesPerSec)
	info("latency p50=%s p95=%s p99=%s max=%s", res.P50, res.P95, res.P99, res.Max)
	info("evaluations=%d fires=%d", res.Evaluations, res.Fires)

	if cfg.JSONOutput != "" {
		return writeJSON(cfg.JSONOutput, res)
	}
	return nil
}

// buildScenario constructs the graph shape and returns the root atom and
// a disposer for the attached subscriptions.
func buildScenario(name string, size int) (*reactive.Atom[int], func(), error) {
	if size < 1 {
		return nil, nil, fmt.Errorf("size must be positive, got %d", size)
	}
	root := reactive.NewAtom(0)

	switch name {
	case "chain":
		prev := reactive.NewDerivation(func() int { return root.Get() + 1 })
		for i := 1; i < size; i++ {
			p := prev
			prev = reactive.NewDerivation(func() int { return p.MustGet() + 1 })
		}
		sub := reactive.Subscribe[int](prev, func(int, error) {})
		return root, sub.Dispose, nil

	case "diamond":
		arms := make([]*reactive.Derivation[int], size)
		for i := 0; i < size; i++ {
			k := i
			arms[i] = reactive.NewDerivation(func() int { return root.Get() * (k + 1) })
		}
		join := reactive.NewDerivation(func() int {
			sum := 0
			for _, arm := range arms {
				sum += arm.MustGet()
			}
			return sum
		})
		sub := reactive.Subscribe[int](join, func(int, error) {})
		return root, sub.Dispose, nil

	case "fanout":
		subs := make([]*reactive.Subscription, size)
		for i := 0; i < size; i++ {
			d := reactive.NewDerivation(func() int { return root.Get() + 1 })
			subs[i] = reactive.Subscribe[int](d, func(int, error) {})
		}
		return root, func() {
			for _, s := range subs {
				s.Dispose()
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown scenario %q (want chain, diamond, or fanout)", name)
	}
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

func writeJSON(path string, res benchResult) error {
	payload, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	success("results written to %s", path)
	return nil
}
