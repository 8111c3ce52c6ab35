// Package dbgroup manages a group of fragments as a single logical
// database: new documents are appended to a small, writable tail
// fragment, and older fragments accumulate as read-mostly shards (spec
// §4.2). Grounded directly on the original RestPose DbGroup
// (src/dbgroup/dbgroup.{h,cc}): the control fragment's "_frags" /
// "_next_fragnum" metadata, the frag<N> naming scheme, and the
// write-temp-then-rename XAPIANDB sidecar file are all carried over
// unchanged in semantics.
package dbgroup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/restpose-go/corepose/engine"
	"github.com/restpose-go/corepose/engine/filedb"
	"github.com/restpose-go/corepose/fragment"
	"github.com/restpose-go/corepose/rpcerr"
)

// DefaultMaxNewDBDocs is the fallback cap on documents in the tail
// fragment before a new one is rotated in.
const DefaultMaxNewDBDocs = 10_000_000

type fragInfo struct {
	Name string `json:"name"`
}

// DbGroup is a group of fragments under one directory.
type DbGroup struct {
	mu sync.Mutex

	groupDir     string
	maxNewDBDocs int

	control *fragment.Fragment
	frags   []*fragment.Fragment // oldest first, matching on-disk order
	nextFragNum int

	lastFragListStr string

	union      engine.Handle
	unionValid bool
}

// New returns a closed handle on the group stored under groupDir.
// maxNewDBDocs of 0 selects DefaultMaxNewDBDocs.
func New(groupDir string, maxNewDBDocs int) *DbGroup {
	if maxNewDBDocs <= 0 {
		maxNewDBDocs = DefaultMaxNewDBDocs
	}
	return &DbGroup{
		groupDir:     groupDir,
		maxNewDBDocs: maxNewDBDocs,
		control:      fragment.New("control", filepath.Join(groupDir, "control")),
	}
}

// Close releases every fragment's handle.
func (g *DbGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invalidateUnionLocked()
	g.lastFragListStr = ""
	var firstErr error
	if err := g.control.Close(); err != nil {
		firstErr = err
	}
	for _, f := range g.frags {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsWritable reports whether the group is open for writing.
func (g *DbGroup) IsWritable() bool { return g.control.IsWritable() }

// IsOpen reports whether the group is open at all.
func (g *DbGroup) IsOpen() bool { return g.control.IsOpen() }

// OpenWritable opens the group for writing, creating groupDir and the
// control fragment if necessary. A no-op if already open for writing.
func (g *DbGroup) OpenWritable() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.control.IsWritable() {
		return nil
	}

	if _, err := os.Stat(g.groupDir); os.IsNotExist(err) {
		if err := os.MkdirAll(g.groupDir, 0o770); err != nil {
			return rpcerr.Wrap(rpcerr.System, "dbgroup: create group directory", err)
		}
	}

	g.invalidateUnionLocked()
	if err := g.control.OpenWritable(); err != nil {
		return err
	}
	if err := g.initFragsLocked(); err != nil {
		g.control.Close()
		return err
	}
	return nil
}

// OpenReadonly opens the group for reading, reloading every fragment.
func (g *DbGroup) OpenReadonly() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invalidateUnionLocked()

	if err := g.control.OpenReadonly(); err != nil {
		return err
	}
	if err := g.initFragsLocked(); err != nil {
		g.control.Close()
		return err
	}
	for _, f := range g.frags {
		if err := f.OpenReadonly(); err != nil {
			g.control.Close()
			return err
		}
	}
	return nil
}

func (g *DbGroup) initFragsLocked() error {
	h, err := g.control.Handle()
	if err != nil {
		return err
	}
	fragListStr, _ := h.Metadata("_frags")
	if fragListStr == g.lastFragListStr {
		return nil
	}
	if fragListStr == "" {
		g.frags = nil
		g.lastFragListStr = ""
		g.nextFragNum = 0
		return nil
	}

	var list []fragInfo
	if err := json.Unmarshal([]byte(fragListStr), &list); err != nil {
		return rpcerr.Wrap(rpcerr.InvalidValue, "dbgroup: parse stored fragment list", err)
	}
	frags := make([]*fragment.Fragment, 0, len(list))
	for _, info := range list {
		frags = append(frags, fragment.New(info.Name, filepath.Join(g.groupDir, info.Name)))
	}
	g.frags = frags
	g.lastFragListStr = fragListStr

	nextFragNumStr, _ := h.Metadata("_next_fragnum")
	if nextFragNumStr == "" {
		g.nextFragNum = 0
	} else {
		var n int
		if err := json.Unmarshal([]byte(nextFragNumStr), &n); err != nil {
			return rpcerr.Wrap(rpcerr.InvalidValue, "dbgroup: parse next fragment number", err)
		}
		g.nextFragNum = n
	}
	return nil
}

// storeFragListLocked persists the current fragment list to the control
// fragment's metadata and rewrites the XAPIANDB sidecar file via
// write-temp-then-rename, so a crash mid-write never leaves a
// half-written sidecar visible.
func (g *DbGroup) storeFragListLocked() error {
	list := make([]fragInfo, len(g.frags))
	var sidecar string
	for i, f := range g.frags {
		list[i] = fragInfo{Name: f.Name()}
		sidecar += "auto " + f.Name() + "\n"
	}
	listJSON, err := json.Marshal(list)
	if err != nil {
		return rpcerr.Wrap(rpcerr.InvalidValue, "dbgroup: marshal fragment list", err)
	}
	if err := g.control.SetMetadata("_frags", string(listJSON)); err != nil {
		return err
	}
	nextJSON, err := json.Marshal(g.nextFragNum)
	if err != nil {
		return err
	}
	if err := g.control.SetMetadata("_next_fragnum", string(nextJSON)); err != nil {
		return err
	}

	sidecarPath := filepath.Join(g.groupDir, "XAPIANDB")
	tmpPath := sidecarPath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(sidecar), 0o644); err != nil {
		return rpcerr.Wrap(rpcerr.System, "dbgroup: write XAPIANDB sidecar", err)
	}
	if err := os.Rename(tmpPath, sidecarPath); err != nil {
		return rpcerr.Wrap(rpcerr.System, "dbgroup: rename XAPIANDB sidecar", err)
	}
	return nil
}

func (g *DbGroup) addFragLocked() error {
	g.invalidateUnionLocked()
	name := fmt.Sprintf("frag%d", g.nextFragNum)
	g.nextFragNum++
	f := fragment.New(name, filepath.Join(g.groupDir, name))
	if err := f.OpenWritable(); err != nil {
		return err
	}
	g.frags = append(g.frags, f)

	if err := g.storeFragListLocked(); err != nil {
		return err
	}
	return g.control.Commit()
}

func (g *DbGroup) invalidateUnionLocked() {
	g.unionValid = false
	g.union = nil
}

// unionLocked builds (or returns the cached) read view over every
// fragment, newest first, so idterm collisions resolve to the newest
// copy.
func (g *DbGroup) unionLocked() (engine.Handle, error) {
	if g.unionValid {
		return g.union, nil
	}
	handles := make([]engine.Handle, 0, len(g.frags))
	for i := len(g.frags) - 1; i >= 0; i-- {
		h, err := g.frags[i].Handle()
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	g.union = filedb.Union(handles)
	g.unionValid = true
	return g.union, nil
}

// Document returns the document bearing idterm, if it exists anywhere in
// the group.
func (g *DbGroup) Document(idterm string) (engine.Document, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, err := g.unionLocked()
	if err != nil {
		return engine.Document{}, false, err
	}
	doc, ok := u.Document(idterm)
	return doc, ok, nil
}

// DocExists reports whether idterm exists anywhere in the group.
func (g *DbGroup) DocExists(idterm string) (bool, error) {
	_, ok, err := g.Document(idterm)
	return ok, err
}

// DocCount returns the total number of distinct documents across every
// fragment.
func (g *DbGroup) DocCount() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, err := g.unionLocked()
	if err != nil {
		return 0, err
	}
	return u.DocCount(), nil
}

// Search runs query over every fragment's logical union.
func (g *DbGroup) Search(query engine.Query, observers []engine.MatchObserver, limit int) ([]engine.Hit, error) {
	g.mu.Lock()
	u, err := g.unionLocked()
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return u.Search(query, observers, limit)
}

// AddDoc adds doc to the group. If idterm is non-empty and already
// exists in some fragment, it is replaced there; otherwise the document
// is appended to the tail fragment, rotating in a new one first if the
// tail has reached maxNewDBDocs.
func (g *DbGroup) AddDoc(doc engine.Document, idterm string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.control.IsWritable() {
		return rpcerr.New(rpcerr.InvalidState, "dbgroup: group must be open for writing to add document")
	}

	if len(g.frags) == 0 {
		if err := g.addFragLocked(); err != nil {
			return err
		}
	}

	if idterm != "" {
		for i := len(g.frags) - 1; i >= 0; i-- {
			f := g.frags[i]
			contains, err := f.ContainsTerm(idterm)
			if err != nil {
				return err
			}
			if contains {
				g.invalidateUnionLocked()
				if err := f.OpenWritable(); err != nil {
					return err
				}
				return f.AddDoc(doc, idterm)
			}
		}
	}

	tail := g.frags[len(g.frags)-1]
	count, err := tail.DocCount()
	if err != nil {
		return err
	}
	if count >= g.maxNewDBDocs {
		if err := g.addFragLocked(); err != nil {
			return err
		}
		tail = g.frags[len(g.frags)-1]
	}
	g.invalidateUnionLocked()
	if err := tail.OpenWritable(); err != nil {
		return err
	}
	return tail.AddDoc(doc, idterm)
}

// DeleteDoc deletes idterm from whichever fragment contains it.
func (g *DbGroup) DeleteDoc(idterm string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.control.IsWritable() {
		return rpcerr.New(rpcerr.InvalidState, "dbgroup: group must be open for writing to delete document")
	}
	if idterm == "" {
		return rpcerr.New(rpcerr.InvalidValue, "dbgroup: empty idterm must not be passed to delete document")
	}

	for i := len(g.frags) - 1; i >= 0; i-- {
		f := g.frags[i]
		contains, err := f.ContainsTerm(idterm)
		if err != nil {
			return err
		}
		if contains {
			g.invalidateUnionLocked()
			if err := f.OpenWritable(); err != nil {
				return err
			}
			return f.DeleteDoc(idterm)
		}
	}
	return nil
}

// SetMetadata sets a metadata key on the control fragment.
func (g *DbGroup) SetMetadata(key, value string) error {
	return g.control.SetMetadata(key, value)
}

// GetMetadata reads a metadata key from the control fragment.
func (g *DbGroup) GetMetadata(key string) (string, error) {
	h, err := g.control.Handle()
	if err != nil {
		return "", err
	}
	v, _ := h.Metadata(key)
	return v, nil
}

// Sync commits every fragment and the control fragment to stable
// storage.
func (g *DbGroup) Sync() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, f := range g.frags {
		if err := f.Commit(); err != nil {
			return err
		}
	}
	return g.control.Commit()
}
