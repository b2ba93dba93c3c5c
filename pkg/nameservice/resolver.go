// Package nameservice publishes and resolves the current Raft leader's RPC
// endpoint so workers and CLI clients that only know a static seed list of
// coordinator addresses can find whoever is presently in charge.
//
// There is no DNS zone to serve for a batch coordinator, only a single
// well-known name ("leader") whose address changes on every Raft
// election, so this drops the real DNS wire protocol entirely. The
// Registry/Resolver/Server split below keeps the same lookup-table-
// behind-a-Resolver shape, queried by a small standalone Server, without
// the wire-protocol weight.
package nameservice

import (
	"fmt"
	"sync"

	"github.com/shuttle-mr/shuttle/pkg/log"
)

// leaderName is the single name this package resolves.
const leaderName = "leader"

// Registry is the coordinator-side source of truth for the current leader
// endpoint and the live worker roster's advertised addresses. The Raft
// manager calls SetLeader on every leadership change; workers call
// UpsertWorker on each heartbeat.
type Registry struct {
	mu      sync.RWMutex
	leader  string
	workers map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]string)}
}

// SetLeader records addr as the current Raft leader's RPC endpoint. An empty
// addr marks the cluster as leaderless (mid-election).
func (r *Registry) SetLeader(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leader = addr
}

// Leader returns the current leader endpoint, if known.
func (r *Registry) Leader() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.leader, r.leader != ""
}

// UpsertWorker records addr as worker id's advertised RPC endpoint.
func (r *Registry) UpsertWorker(id, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[id] = addr
}

// RemoveWorker forgets a worker's advertised endpoint.
func (r *Registry) RemoveWorker(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
}

// ResolveWorker returns worker id's advertised endpoint, if known.
func (r *Registry) ResolveWorker(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.workers[id]
	return addr, ok
}

// Workers returns a snapshot copy of the worker id to endpoint table.
func (r *Registry) Workers() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.workers))
	for id, addr := range r.workers {
		out[id] = addr
	}
	return out
}

// Resolver answers "where is X" queries against a Registry, falling back to
// a static seed list of coordinator addresses for bootstrap before any
// leader has announced itself (e.g. a worker's very first heartbeat after
// process start).
type Resolver struct {
	registry *Registry
	seeds    []string
}

// NewResolver creates a Resolver backed by registry, with seeds used only
// when the registry has no leader recorded yet.
func NewResolver(registry *Registry, seeds []string) *Resolver {
	return &Resolver{registry: registry, seeds: seeds}
}

// Resolve returns an RPC endpoint for name: "leader" resolves to the current
// Raft leader (falling back to a seed address if no leader is known yet),
// anything else is looked up in the worker roster.
func (r *Resolver) Resolve(name string) (string, error) {
	log.Logger.Debug().Str("component", "nameservice.resolver").Str("query", name).Msg("resolving name")

	if name == leaderName {
		if addr, ok := r.registry.Leader(); ok {
			return addr, nil
		}
		if len(r.seeds) > 0 {
			return r.seeds[0], nil
		}
		return "", fmt.Errorf("no leader known and no seed addresses configured")
	}

	if addr, ok := r.registry.ResolveWorker(name); ok {
		return addr, nil
	}

	return "", fmt.Errorf("name not resolvable: %s", name)
}

// Seeds returns every seed address, used by callers that want to probe all
// of them for the current leader (a "who is leader" fan-out) rather than
// trust a single one.
func (r *Resolver) Seeds() []string {
	out := make([]string, len(r.seeds))
	copy(out, r.seeds)
	return out
}
