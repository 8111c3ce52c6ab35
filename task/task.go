// Package task implements the worker pool that drains processing,
// indexing, and search work (spec §4.7): a processing task runs a
// document through a Pipe and enqueues the resulting indexing task; an
// indexing task is executed by a single writer per collection, so
// writes to one collection's DbGroup are never concurrent.
//
// Grounded on the teacher's channel/goroutine worker pool
// (bundoc/internal/wal/group_commit.go, batching requests off a
// channel on a background goroutine) and, for the pool's goroutine
// management, on the sibling docdb submodule's scheduler
// (docdb/internal/pool/scheduler.go), which drives its per-database
// queues through github.com/panjf2000/ants/v2 rather than raw
// goroutines-per-worker — adopted here for the same reason: a fixed,
// reusable goroutine pool instead of spawning one goroutine per queued
// task.
package task

import (
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/restpose-go/corepose/mapping"
	"github.com/restpose-go/corepose/queue"
	"github.com/restpose-go/corepose/rpcerr"
)

// Kind distinguishes the three task shapes spec §4.7 names.
type Kind int

const (
	KindProcessing Kind = iota
	KindIndexing
	KindSearch
)

// ProcessingTask carries one raw document through a named pipe.
type ProcessingTask struct {
	Collection string
	PipeName   string
	Doc        map[string]interface{}
}

// IndexingTask carries one already-piped document (or a delete) to a
// collection's single writer goroutine.
type IndexingTask struct {
	Collection string
	Doc        map[string]interface{}
	Delete     bool
	IDTerm     string
}

// SearchTask carries a query to be run against a collection's read
// view; Run is invoked on a worker goroutine and its result delivered
// however the caller's Run closure chooses (typically a channel).
type SearchTask struct {
	Collection string
	Run        func() error
}

// Item is the sum type pushed through a Manager's queues.
type Item struct {
	Kind       Kind
	Processing *ProcessingTask
	Indexing   *IndexingTask
	Search     *SearchTask
}

// PipeRunner runs a document through a named pipe to completion,
// delivering every document that reaches a terminal pipe via sink. It
// is satisfied by *mapping.Registry.
type PipeRunner interface {
	Run(pipeName string, input map[string]interface{}, sink mapping.Sink) error
}

// IndexWriter applies one indexing task to a collection; Manager calls
// it on the single writer goroutine owned by that collection name.
type IndexWriter interface {
	ApplyIndexingTask(collection string, t *IndexingTask) error
}

// Manager owns one bounded queue per known collection (processing +
// indexing share a queue, since a processing task's only effect is to
// enqueue an indexing task for the same collection) and a fixed-size
// ants goroutine pool draining them. Search tasks go through the same
// per-collection queue and run in order on that collection's drain
// goroutine.
type Manager struct {
	pipes   PipeRunner
	writer  IndexWriter
	pool    *ants.Pool
	queues  map[string]*queue.Queue[Item]
	closeFn func()
}

// Options configures queue sizing and worker count.
type Options struct {
	// ThrottleSize/MaxSize bound each collection's queue (spec §4.7).
	ThrottleSize int
	MaxSize      int
	// Workers is the fixed ants pool size; 0 picks a small default.
	Workers int
}

// NewManager builds a Manager with workers ready to drain any
// collection queue created by EnsureQueue.
func NewManager(pipes PipeRunner, writer IndexWriter, opts Options) (*Manager, error) {
	if opts.ThrottleSize <= 0 {
		opts.ThrottleSize = 1000
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 2000
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}

	m := &Manager{
		pipes:  pipes,
		writer: writer,
		queues: make(map[string]*queue.Queue[Item]),
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.System, "task: create worker pool", err)
	}
	m.pool = pool
	m.closeFn = func() { pool.Release() }
	return m, nil
}

// EnsureQueue creates (if needed) the bounded queue for collection and
// starts a dedicated drain goroutine for it, so that every task for one
// collection is executed in enqueue order by a single logical writer
// (spec §4.7: "An indexing task is executed by a single writer thread
// per collection").
func (m *Manager) EnsureQueue(collection string, throttleSize, maxSize int) *queue.Queue[Item] {
	if q, ok := m.queues[collection]; ok {
		return q
	}
	if throttleSize <= 0 {
		throttleSize = 1000
	}
	if maxSize <= 0 {
		maxSize = 2000
	}
	q := queue.New[Item](throttleSize, maxSize)
	m.queues[collection] = q

	_ = m.pool.Submit(func() { m.drain(collection, q) })
	return q
}

// Submit pushes item onto collection's queue, creating it with default
// sizing if not already present.
func (m *Manager) Submit(collection string, item Item, allowThrottle bool) queue.State {
	q := m.EnsureQueue(collection, 0, 0)
	return q.Push(item, allowThrottle)
}

// drain runs on one ants-pool goroutine for the lifetime of
// collection's queue, executing tasks strictly in FIFO order so writes
// to that collection's DbGroup are serialised.
func (m *Manager) drain(collection string, q *queue.Queue[Item]) {
	for {
		item, ok := q.Pop()
		if !ok {
			return
		}
		if err := m.execute(collection, item); err != nil && item.Search == nil {
			// Processing/indexing failures have nowhere else to go;
			// a production deployment would route this to the
			// logger's error channel (logqueue) keyed by
			// collection and checkpoint id (spec §4.9).
			_ = err
		}
	}
}

func (m *Manager) execute(collection string, item Item) error {
	switch item.Kind {
	case KindProcessing:
		return m.runProcessing(collection, item.Processing)
	case KindIndexing:
		return m.writer.ApplyIndexingTask(collection, item.Indexing)
	case KindSearch:
		return item.Search.Run()
	default:
		return rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("task: unknown task kind %d", item.Kind))
	}
}

func (m *Manager) runProcessing(collection string, t *ProcessingTask) error {
	return m.pipes.Run(t.PipeName, t.Doc, func(doc map[string]interface{}) error {
		q := m.EnsureQueue(collection, 0, 0)
		q.Push(Item{Kind: KindIndexing, Indexing: &IndexingTask{Collection: collection, Doc: doc}}, false)
		return nil
	})
}

// Close stops every collection queue and releases the worker pool.
func (m *Manager) Close() {
	for _, q := range m.queues {
		q.Close()
	}
	if m.closeFn != nil {
		m.closeFn()
	}
}
