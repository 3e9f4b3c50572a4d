package addrspace

import (
	"github.com/elastic/go-freelru"

	"github.com/maxgio92/unwindreport/internal/utils"
)

const lookupCacheSize = 8192

type lookupKey struct {
	pid  int
	addr uint64
}

type lookupResult struct {
	rng Range
	ok  bool
}

func hashLookupKey(k lookupKey) uint32 {
	return utils.HashAddr(k.pid, k.addr)
}

// Registry owns one overlay per process id, built incrementally from the
// mapping and fork events of a trace. Lookups go through an LRU cache that
// is purged on every mutation, so a cached result can never outlive the
// address-space state it was computed from.
type Registry struct {
	overlays map[int]*Overlay
	cache    *freelru.LRU[lookupKey, lookupResult]
}

func NewRegistry() *Registry {
	// The error is unreachable: capacity and hash callback are fixed.
	cache, _ := freelru.New[lookupKey, lookupResult](lookupCacheSize, hashLookupKey)

	return &Registry{
		overlays: make(map[int]*Overlay),
		cache:    cache,
	}
}

// Insert records a new mapping for pid, creating its overlay on first use.
func (r *Registry) Insert(pid int, rng Range) {
	overlay := r.overlays[pid]
	if overlay == nil {
		overlay = &Overlay{}
		r.overlays[pid] = overlay
	}
	overlay.Insert(rng)
	r.cache.Purge()
}

// Fork copies the parent's overlay under the child pid. The copy is value
// independent: later mutations of either side are never observed by the other.
// A self-fork is a no-op so it can never clobber existing state.
func (r *Registry) Fork(pid, ppid int) {
	if pid == ppid {
		return
	}
	parent := r.overlays[ppid]
	if parent == nil {
		parent = &Overlay{}
	}
	r.overlays[pid] = parent.Clone()
	r.cache.Purge()
}

// Find returns the mapping covering addr in pid's address space, if any.
func (r *Registry) Find(pid int, addr uint64) (Range, bool) {
	key := lookupKey{pid: pid, addr: addr}
	if res, ok := r.cache.Get(key); ok {
		return res.rng, res.ok
	}

	var res lookupResult
	if overlay := r.overlays[pid]; overlay != nil {
		res.rng, res.ok = overlay.Find(addr)
	}
	r.cache.Add(key, res)

	return res.rng, res.ok
}

// Snapshot returns the per-pid mappings at the current point of the trace.
func (r *Registry) Snapshot() map[int][]Range {
	snapshot := make(map[int][]Range, len(r.overlays))
	for pid, overlay := range r.overlays {
		snapshot[pid] = overlay.Ranges()
	}

	return snapshot
}
