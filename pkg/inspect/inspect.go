// Package inspect serves a live view of a reactive graph over HTTP: a
// JSON snapshot of every node and its edges, a Prometheus endpoint, and a
// WebSocket stream of engine events. It attaches through the engine's
// observer seam and maintains its own copy of the graph topology, so the
// engine is never locked for a snapshot.
package inspect

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// Config configures the inspector.
type Config struct {
	// CheckOrigin validates WebSocket upgrade origins.
	// Default: allow same-host origins only.
	CheckOrigin func(r *http.Request) bool

	// SendBuffer is the per-client event buffer size. A client that falls
	// this far behind starts losing events rather than stalling the graph.
	// Default: 256.
	SendBuffer int

	// ReadBufferSize is the WebSocket read buffer size. Default: 1024.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size. Default: 4096.
	WriteBufferSize int

	// PingInterval is the WebSocket keepalive interval. Default: 30s.
	PingInterval time.Duration
}

// DefaultConfig returns the default inspector configuration.
func DefaultConfig() *Config {
	return &Config{
		SendBuffer:      256,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		PingInterval:    30 * time.Second,
	}
}

// NodeInfo is the inspector's record of one graph node, rebuilt from
// observer events.
type NodeInfo struct {
	ID      uint64   `json:"id"`
	Kind    string   `json:"kind"`
	Version uint64   `json:"version"`
	Deps    []uint64 `json:"deps,omitempty"`
	Evals   uint64   `json:"evals,omitempty"`
	Fires   uint64   `json:"fires,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// GraphSnapshot is the /graph response payload.
type GraphSnapshot struct {
	Nodes []NodeInfo `json:"nodes"`

	Propagations uint64        `json:"propagations"`
	Evaluations  uint64        `json:"evaluations"`
	TotalTime    time.Duration `json:"total_time_ns"`
}

// Inspector is a reactive.Observer that mirrors the graph topology and
// serves it over HTTP. Create one with New, register it with
// reactive.AddObserver, and mount Handler on any router.
type Inspector struct {
	config *Config
	logger *slog.Logger

	mu    sync.RWMutex
	nodes map[uint64]*NodeInfo

	propagations uint64
	evaluations  uint64
	totalTime    time.Duration

	hub *hub
}

// New creates an inspector with the given configuration.
// A nil config uses defaults; unset fields are filled in.
func New(config *Config) *Inspector {
	if config == nil {
		config = DefaultConfig()
	} else {
		defaults := DefaultConfig()
		if config.SendBuffer == 0 {
			config.SendBuffer = defaults.SendBuffer
		}
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.PingInterval == 0 {
			config.PingInterval = defaults.PingInterval
		}
	}

	return &Inspector{
		config: config,
		logger: slog.Default().With("component", "inspect"),
		nodes:  make(map[uint64]*NodeInfo),
		hub:    newHub(config.SendBuffer),
	}
}

// Snapshot returns the inspector's current view of the graph.
func (in *Inspector) Snapshot() GraphSnapshot {
	in.mu.RLock()
	defer in.mu.RUnlock()

	snap := GraphSnapshot{
		Nodes:        make([]NodeInfo, 0, len(in.nodes)),
		Propagations: in.propagations,
		Evaluations:  in.evaluations,
		TotalTime:    in.totalTime,
	}
	for _, n := range in.nodes {
		info := *n
		info.Deps = append([]uint64(nil), n.Deps...)
		snap.Nodes = append(snap.Nodes, info)
	}
	return snap
}

// Close disconnects every live client.
func (in *Inspector) Close() {
	in.hub.close()
}

// NodeCreated implements reactive.Observer.
func (in *Inspector) NodeCreated(id uint64, kind reactive.NodeKind) {
	in.mu.Lock()
	in.nodes[id] = &NodeInfo{ID: id, Kind: kind.String()}
	in.mu.Unlock()

	in.hub.broadcast(event{Type: "node_created", ID: id, Kind: kind.String()})
}

// NodeDisposed implements reactive.Observer.
func (in *Inspector) NodeDisposed(id uint64) {
	in.mu.Lock()
	delete(in.nodes, id)
	in.mu.Unlock()

	in.hub.broadcast(event{Type: "node_disposed", ID: id})
}

// AtomChanged implements reactive.Observer.
func (in *Inspector) AtomChanged(id uint64, version uint64) {
	in.mu.Lock()
	if n, ok := in.nodes[id]; ok {
		n.Version = version
	}
	in.mu.Unlock()

	in.hub.broadcast(event{Type: "atom_changed", ID: id, Version: version})
}

// NodeEvaluated implements reactive.Observer.
func (in *Inspector) NodeEvaluated(ev reactive.EvalEvent) {
	in.mu.Lock()
	in.evaluations++
	if n, ok := in.nodes[ev.ID]; ok {
		n.Version = ev.Version
		n.Deps = append(n.Deps[:0], ev.Deps...)
		n.Evals++
		if ev.Err != nil {
			n.Error = ev.Err.Error()
		} else {
			n.Error = ""
		}
	}
	in.mu.Unlock()

	e := event{Type: "evaluated", ID: ev.ID, Version: ev.Version, Changed: ev.Changed, Deps: ev.Deps}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	in.hub.broadcast(e)
}

// SubscriptionFired implements reactive.Observer.
func (in *Inspector) SubscriptionFired(id uint64, targetID uint64) {
	in.mu.Lock()
	if n, ok := in.nodes[id]; ok {
		n.Fires++
		n.Deps = append(n.Deps[:0], targetID)
	}
	in.mu.Unlock()

	in.hub.broadcast(event{Type: "fired", ID: id, Target: targetID})
}

// TransactionEnd implements reactive.Observer.
func (in *Inspector) TransactionEnd(stats reactive.TxStats) {
	in.mu.Lock()
	in.propagations++
	in.totalTime += stats.Duration
	in.mu.Unlock()

	in.hub.broadcast(event{
		Type:      "propagation",
		Changed:   stats.Evaluated > 0 || stats.Fired > 0,
		Reachable: stats.Reachable,
		Evaluated: stats.Evaluated,
		Fired:     stats.Fired,
		Errors:    stats.Errors,
		Duration:  stats.Duration,
	})
}

var _ reactive.Observer = (*Inspector)(nil)
