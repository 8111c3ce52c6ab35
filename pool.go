package corepose

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/restpose-go/corepose/rpcerr"
)

// CollectionPool hands out Collection handles, partitioned into a
// bounded readonly cache (reusable, popped/pushed per name) and
// writable slots (at most one checked-out handle per name at a time),
// with every operation serialised on a single mutex (spec §4.6).
//
// Grounded on the teacher's pool/pool.go connection pool for the
// acquire/release shape (this pool has no health check), generalised from "N interchangeable
// connections to one database" to "one writable handle and a small
// readonly cache per collection name" — the teacher pool has no notion
// of per-key exclusivity, so the writable side below is new, built from
// spec §4.6's ordering guarantee ("a successful get_writable excludes
// concurrent writable access until release") rather than copied.
type CollectionPool struct {
	mu sync.Mutex

	dataDir      string
	maxNewDBDocs int
	maxReaders   int

	readonly map[string][]*Collection

	// writable holds, per name, the single Collection instance ever
	// constructed for writing plus whether it is currently checked out.
	// Concurrent GetWritable calls for the same name block on waiters
	// until release wakes the next one, rather than racing to construct
	// a second handle onto the same DbGroup (which is not thread-safe).
	writable map[string]*writableSlot
}

type writableSlot struct {
	coll    *Collection
	busy    bool
	waiters []chan struct{}
}

// NewCollectionPool returns an empty pool rooted at opts.DataDir.
func NewCollectionPool(opts Options) *CollectionPool {
	return &CollectionPool{
		dataDir:      opts.DataDir,
		maxNewDBDocs: opts.MaxNewDBDocs,
		maxReaders:   opts.MaxCachedReadersPerCollection,
		readonly:     make(map[string][]*Collection),
		writable:     make(map[string]*writableSlot),
	}
}

// Exists reports whether name has an open handle in the pool or a
// directory already on disk.
func (p *CollectionPool) Exists(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.readonly[name]) > 0 {
		return true
	}
	if slot, ok := p.writable[name]; ok && slot.coll != nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(p.dataDir, name)); err == nil {
		return true
	}
	return false
}

// GetReadonly pops a cached readonly handle for name if one is
// available, else constructs and opens a new one.
func (p *CollectionPool) GetReadonly(name string) (*Collection, error) {
	p.mu.Lock()
	cached := p.readonly[name]
	if len(cached) > 0 {
		coll := cached[len(cached)-1]
		p.readonly[name] = cached[:len(cached)-1]
		p.mu.Unlock()
		if err := coll.OpenReadonly(); err != nil {
			return nil, err
		}
		return coll, nil
	}
	p.mu.Unlock()

	coll := newCollection(p.dataDir, name, p.maxNewDBDocs)
	if err := coll.OpenReadonly(); err != nil {
		return nil, err
	}
	return coll, nil
}

// GetWritable checks out the single writable handle for name, blocking
// until any concurrent checkout is released.
func (p *CollectionPool) GetWritable(name string) (*Collection, error) {
	p.mu.Lock()
	slot, ok := p.writable[name]
	if !ok {
		slot = &writableSlot{}
		p.writable[name] = slot
	}
	for slot.busy {
		wake := make(chan struct{})
		slot.waiters = append(slot.waiters, wake)
		p.mu.Unlock()
		<-wake
		p.mu.Lock()
	}
	slot.busy = true
	if slot.coll == nil {
		slot.coll = newCollection(p.dataDir, name, p.maxNewDBDocs)
	}
	coll := slot.coll
	p.mu.Unlock()

	if err := coll.OpenWritable(); err != nil {
		p.mu.Lock()
		slot.busy = false
		p.wakeNextLocked(slot)
		p.mu.Unlock()
		return nil, err
	}
	return coll, nil
}

// ReleaseReadonly returns a readonly handle to name's cache if under
// MaxCachedReadersPerCollection, else closes it.
func (p *CollectionPool) ReleaseReadonly(name string, coll *Collection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.readonly[name]) < p.maxReaders {
		p.readonly[name] = append(p.readonly[name], coll)
		return
	}
	_ = coll.Close()
}

// ReleaseWritable returns the writable handle for name to its slot and
// wakes the next waiter, if any.
func (p *CollectionPool) ReleaseWritable(name string, coll *Collection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot, ok := p.writable[name]
	if !ok || slot.coll != coll {
		return
	}
	slot.busy = false
	p.wakeNextLocked(slot)
}

func (p *CollectionPool) wakeNextLocked(slot *writableSlot) {
	if len(slot.waiters) == 0 {
		return
	}
	wake := slot.waiters[0]
	slot.waiters = slot.waiters[1:]
	close(wake)
}

// Del destroys every cached handle for name and recursively removes its
// directory.
func (p *CollectionPool) Del(name string) error {
	p.mu.Lock()
	for _, coll := range p.readonly[name] {
		_ = coll.Close()
	}
	delete(p.readonly, name)
	if slot, ok := p.writable[name]; ok {
		if slot.coll != nil {
			_ = slot.coll.Close()
		}
		delete(p.writable, name)
	}
	p.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(p.dataDir, name)); err != nil {
		return rpcerr.Wrap(rpcerr.System, "pool: remove collection directory", err)
	}
	return nil
}
