// Package fragment implements the tri-state handle on a single on-disk
// shard of a collection's data (spec.md §4.1), grounded on the original
// RestPose DbFragment (src/dbgroup/dbgroup.{h,cc}): a fragment is closed,
// open for reading, or open for writing, and persistence is delegated to
// the engine.Handle contract (concretely, engine/filedb).
package fragment

import (
	"sync"

	"github.com/restpose-go/corepose/engine"
	"github.com/restpose-go/corepose/engine/filedb"
	"github.com/restpose-go/corepose/rpcerr"
)

// State is a Fragment's lifecycle state.
type State int

const (
	Closed State = iota
	OpenForReading
	OpenForWriting
)

// Fragment is a handle on one shard: a name, an on-disk path, and
// whichever engine.Handle is currently open over it.
type Fragment struct {
	mu    sync.Mutex
	name  string
	path  string
	state State
	h     engine.Handle
}

// New creates a closed handle on the fragment stored at path.
func New(name, path string) *Fragment {
	return &Fragment{name: name, path: path, state: Closed}
}

func (f *Fragment) Name() string { return f.name }
func (f *Fragment) Path() string { return f.path }

// IsWritable reports whether the fragment is currently open for writing.
func (f *Fragment) IsWritable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == OpenForWriting
}

// IsOpen reports whether the fragment is open at all.
func (f *Fragment) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != Closed
}

// Close releases the underlying handle, if any.
func (f *Fragment) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeLocked()
}

func (f *Fragment) closeLocked() error {
	if f.state == Closed {
		return nil
	}
	err := f.h.Close()
	f.h = nil
	f.state = Closed
	return err
}

// OpenWritable opens the fragment for writing. A no-op if already open
// for writing.
func (f *Fragment) OpenWritable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == OpenForWriting {
		return nil
	}
	if err := f.closeLocked(); err != nil {
		return err
	}
	h, err := filedb.Open(f.path, true)
	if err != nil {
		return err
	}
	f.h = h
	f.state = OpenForWriting
	return nil
}

// OpenReadonly opens the fragment for reading, reloading its contents
// even if already open.
func (f *Fragment) OpenReadonly() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.closeLocked(); err != nil {
		return err
	}
	h, err := filedb.Open(f.path, false)
	if err != nil {
		return err
	}
	f.h = h
	f.state = OpenForReading
	return nil
}

// Handle returns the currently open engine.Handle, opening the fragment
// readonly first if it is closed.
func (f *Fragment) Handle() (engine.Handle, error) {
	f.mu.Lock()
	state := f.state
	f.mu.Unlock()
	if state == Closed {
		if err := f.OpenReadonly(); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.h, nil
}

// DocCount returns the number of documents in the fragment, opening it
// read-only first if it is closed.
func (f *Fragment) DocCount() (int, error) {
	h, err := f.Handle()
	if err != nil {
		return 0, err
	}
	return h.DocCount(), nil
}

// ContainsTerm reports whether idterm exists in the fragment.
func (f *Fragment) ContainsTerm(idterm string) (bool, error) {
	h, err := f.Handle()
	if err != nil {
		return false, err
	}
	return h.TermFrequency(idterm) > 0, nil
}

// AddDoc adds doc to the fragment. The fragment must be open for
// writing.
func (f *Fragment) AddDoc(doc engine.Document, idterm string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != OpenForWriting {
		return rpcerr.New(rpcerr.InvalidState, "fragment: must be open for writing to add document")
	}
	return f.h.AddDoc(doc, idterm)
}

// DeleteDoc deletes idterm from the fragment. The fragment must be open
// for writing.
func (f *Fragment) DeleteDoc(idterm string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != OpenForWriting {
		return rpcerr.New(rpcerr.InvalidState, "fragment: must be open for writing to delete document")
	}
	return f.h.DeleteDoc(idterm)
}

// SetMetadata sets a metadata key on the fragment. The fragment must be
// open for writing.
func (f *Fragment) SetMetadata(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != OpenForWriting {
		return rpcerr.New(rpcerr.InvalidState, "fragment: must be open for writing to set metadata")
	}
	return f.h.SetMetadata(key, value)
}

// Commit flushes the fragment's pending writes, if it's open for
// writing.
func (f *Fragment) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != OpenForWriting {
		return nil
	}
	return f.h.Commit()
}
