package filedb

import (
	"sort"

	"github.com/restpose-go/corepose/engine"
	"github.com/restpose-go/corepose/rpcerr"
)

// union presents several fragment handles (newest first) as a single
// read-only logical database, matching spec.md's DbGroup group-read view:
// a document visible in more than one fragment is resolved to its copy in
// the newest fragment that carries it.
type union struct {
	handles []engine.Handle // newest first
}

var _ engine.Handle = (*union)(nil)

// Union builds a read-only composite over handles, which must be ordered
// newest-first.
func Union(handles []engine.Handle) engine.Handle {
	return &union{handles: handles}
}

func (u *union) Close() error {
	var firstErr error
	for _, h := range u.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (u *union) AddDoc(engine.Document, string) error {
	return rpcerr.New(rpcerr.InvalidState, "filedb: union handle is read-only")
}

func (u *union) DeleteDoc(string) error {
	return rpcerr.New(rpcerr.InvalidState, "filedb: union handle is read-only")
}

func (u *union) SetMetadata(string, string) error {
	return rpcerr.New(rpcerr.InvalidState, "filedb: union handle is read-only")
}

func (u *union) Commit() error { return nil }

func (u *union) Metadata(key string) (string, bool) {
	for _, h := range u.handles {
		if v, ok := h.Metadata(key); ok {
			return v, true
		}
	}
	return "", false
}

func (u *union) Document(idterm string) (engine.Document, bool) {
	for _, h := range u.handles {
		if d, ok := h.Document(idterm); ok {
			return d, true
		}
	}
	return engine.Document{}, false
}

func (u *union) DocCount() int {
	seen := make(map[string]struct{})
	for _, h := range u.handles {
		db, ok := h.(*DB)
		if !ok {
			continue
		}
		db.mu.RLock()
		for _, k := range db.order {
			seen[k] = struct{}{}
		}
		db.mu.RUnlock()
	}
	return len(seen)
}

func (u *union) TermFrequency(term string) int {
	seen := make(map[string]struct{})
	for _, h := range u.handles {
		db, ok := h.(*DB)
		if !ok {
			continue
		}
		db.mu.RLock()
		for k := range db.postings[term] {
			seen[k] = struct{}{}
		}
		db.mu.RUnlock()
	}
	return len(seen)
}

// Search evaluates query against the newest surviving copy of each
// idterm across every fragment, so a document replaced in a newer
// fragment is never double-counted from an older one.
func (u *union) Search(query engine.Query, observers []engine.MatchObserver, limit int) ([]engine.Hit, error) {
	latest := make(map[string]engine.Document)
	order := []string{}
	for _, h := range u.handles {
		db, ok := h.(*DB)
		if !ok {
			continue
		}
		db.mu.RLock()
		for _, k := range db.order {
			if _, exists := latest[k]; !exists {
				latest[k] = db.docs[k]
				order = append(order, k)
			}
		}
		db.mu.RUnlock()
	}
	sort.Strings(order)

	var hits []engine.Hit
	for _, key := range order {
		doc := latest[key]
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
	return engine.SortHits(hits, limit), nil
}
