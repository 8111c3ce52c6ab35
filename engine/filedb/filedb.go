package filedb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/restpose-go/corepose/engine"
	"github.com/restpose-go/corepose/rpcerr"
)

// DB is a single fragment's handle: an in-memory index kept consistent
// with an append-only record log on disk. Every mutation is written to
// the log before the in-memory state is updated, so a crash between the
// two leaves the log as the source of truth to replay from on the next
// Open.
type DB struct {
	mu       sync.RWMutex
	path     string
	file     *os.File // nil for a readonly handle
	writable bool
	closed   bool

	docs     map[string]engine.Document
	order    []string // insertion order, for deterministic iteration
	postings map[string]map[string]struct{}
	metadata map[string]string

	autoSeq int64
}

var _ engine.Handle = (*DB)(nil)

// Open opens path, creating it if writable and absent, and replays its
// record log into memory. A nonexistent path opened read-only yields an
// empty handle (mirrors a freshly rotated-in fragment with no data yet).
func Open(path string, writable bool) (*DB, error) {
	db := &DB{
		path:     path,
		writable: writable,
		docs:     make(map[string]engine.Document),
		postings: make(map[string]map[string]struct{}),
		metadata: make(map[string]string),
	}

	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if !writable && os.IsNotExist(err) {
			return db, nil
		}
		return nil, rpcerr.Wrap(rpcerr.System, "filedb: open fragment file", err)
	}

	if err := db.replay(f); err != nil {
		f.Close()
		return nil, rpcerr.Wrap(rpcerr.System, "filedb: replay fragment log", err)
	}

	if writable {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, rpcerr.Wrap(rpcerr.System, "filedb: seek fragment log", err)
		}
		db.file = f
	} else {
		f.Close()
	}
	return db, nil
}

func (db *DB) replay(f *os.File) error {
	for {
		rec, err := readRecord(f)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		db.apply(rec)
	}
}

func (db *DB) apply(rec *record) {
	switch rec.Op {
	case opAdd:
		var doc engine.Document
		if err := json.Unmarshal(rec.Value, &doc); err != nil {
			return
		}
		db.indexPut(rec.Key, doc)
	case opDelete:
		db.indexRemove(rec.Key)
	case opSetMetadata:
		db.metadata[rec.Key] = string(rec.Value)
	}
}

func (db *DB) indexPut(key string, doc engine.Document) {
	if _, exists := db.docs[key]; !exists {
		db.order = append(db.order, key)
	} else {
		db.unindexPostings(key)
	}
	db.docs[key] = doc
	for _, p := range doc.Postings {
		set, ok := db.postings[p.Term]
		if !ok {
			set = make(map[string]struct{})
			db.postings[p.Term] = set
		}
		set[key] = struct{}{}
	}
}

func (db *DB) unindexPostings(key string) {
	old, ok := db.docs[key]
	if !ok {
		return
	}
	for _, p := range old.Postings {
		if set, ok := db.postings[p.Term]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(db.postings, p.Term)
			}
		}
	}
}

func (db *DB) indexRemove(key string) {
	if _, ok := db.docs[key]; !ok {
		return
	}
	db.unindexPostings(key)
	delete(db.docs, key)
	for i, k := range db.order {
		if k == key {
			db.order = append(db.order[:i], db.order[i+1:]...)
			break
		}
	}
}

func (db *DB) append(rec *record) error {
	if !db.writable {
		return rpcerr.New(rpcerr.InvalidState, "filedb: handle is not writable")
	}
	if _, err := db.file.Write(rec.encode()); err != nil {
		return rpcerr.Wrap(rpcerr.System, "filedb: append record", err)
	}
	return nil
}

// Close releases the underlying file handle. Idempotent.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	if db.file != nil {
		return db.file.Close()
	}
	return nil
}

// AddDoc implements engine.Handle.
func (db *DB) AddDoc(doc engine.Document, idterm string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := idterm
	if key == "" {
		// Auto keys carry the fragment's file name, so documents from
		// different fragments never share a key in a union view, and skip
		// any key already replayed from this fragment's log.
		for {
			seq := atomic.AddInt64(&db.autoSeq, 1)
			key = fmt.Sprintf("\x00#%s#%d", filepath.Base(db.path), seq)
			if _, taken := db.docs[key]; !taken {
				break
			}
		}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return rpcerr.Wrap(rpcerr.InvalidValue, "filedb: marshal document", err)
	}
	if err := db.append(&record{Op: opAdd, Key: key, Value: payload}); err != nil {
		return err
	}
	db.indexPut(key, doc)
	return nil
}

// DeleteDoc implements engine.Handle.
func (db *DB) DeleteDoc(idterm string) error {
	if idterm == "" {
		return rpcerr.New(rpcerr.InvalidValue, "filedb: DeleteDoc requires a non-empty idterm")
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.append(&record{Op: opDelete, Key: idterm}); err != nil {
		return err
	}
	db.indexRemove(idterm)
	return nil
}

// SetMetadata implements engine.Handle.
func (db *DB) SetMetadata(key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.append(&record{Op: opSetMetadata, Key: key, Value: []byte(value)}); err != nil {
		return err
	}
	db.metadata[key] = value
	return nil
}

// Commit flushes buffered writes to stable storage.
func (db *DB) Commit() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.file == nil {
		return nil
	}
	if err := db.file.Sync(); err != nil {
		return rpcerr.Wrap(rpcerr.System, "filedb: sync fragment log", err)
	}
	return nil
}

// Metadata implements engine.Handle.
func (db *DB) Metadata(key string) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.metadata[key]
	return v, ok
}

// Document implements engine.Handle.
func (db *DB) Document(idterm string) (engine.Document, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	d, ok := db.docs[idterm]
	return d, ok
}

// DocCount implements engine.Handle.
func (db *DB) DocCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.docs)
}

// TermFrequency implements engine.Handle.
func (db *DB) TermFrequency(term string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.postings[term])
}

// Search implements engine.Handle.
func (db *DB) Search(query engine.Query, observers []engine.MatchObserver, limit int) ([]engine.Hit, error) {
	db.mu.RLock()
	keys := make([]string, len(db.order))
	copy(keys, db.order)
	docs := make(map[string]engine.Document, len(keys))
	for _, k := range keys {
		docs[k] = db.docs[k]
	}
	db.mu.RUnlock()

	var hits []engine.Hit
	for _, key := range keys {
		doc := docs[key]
		terms := engine.TermSet(&doc)
		matched, score, err := engine.Eval(query, &doc, terms)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		for _, obs := range observers {
			obs.Observe(doc, score)
		}
		hits = append(hits, engine.Hit{IDTerm: key, Score: score, Doc: doc})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].IDTerm < hits[j].IDTerm })
	return engine.SortHits(hits, limit), nil
}
