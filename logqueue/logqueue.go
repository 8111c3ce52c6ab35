// Package logqueue implements the bounded, drop-newest-preserve-count
// logging queue described for the server's background logger thread. A
// single goroutine drains timestamped records into a structured sink; when
// the queue is full, further messages increment the tail record's overflow
// counter instead of growing the queue, and the drain emits one extra line
// reporting how many entries were dropped.
//
// The line-formatting itself is delegated to zap (go.uber.org/zap), since
// the human-readable output format is an external contract, not something
// this package owns.
package logqueue

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Record is a single queued log entry.
type Record struct {
	At      time.Time
	Message string

	// queueFullCount counts additional messages that arrived while this
	// record was the tail of a full queue.
	queueFullCount int
}

// Logger drains a bounded FIFO of Records on a background goroutine.
type Logger struct {
	sink *zap.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	records  []*Record
	capacity int
	closed   bool
	done     chan struct{}
}

// New starts a logger with the given bounded capacity, draining into sink.
func New(sink *zap.Logger, capacity int) *Logger {
	if capacity <= 0 {
		capacity = 1024
	}
	l := &Logger{
		sink:     sink,
		capacity: capacity,
		done:     make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Log enqueues message with the current time. If the queue is already at
// capacity, the tail record's overflow counter is incremented instead and
// the new message is dropped.
func (l *Logger) Log(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	if len(l.records) >= l.capacity {
		if len(l.records) > 0 {
			l.records[len(l.records)-1].queueFullCount++
		}
		return
	}

	l.records = append(l.records, &Record{At: time.Now(), Message: message})
	l.cond.Signal()
}

func (l *Logger) run() {
	l.mu.Lock()
	for {
		for !l.closed && len(l.records) == 0 {
			l.cond.Wait()
		}
		if len(l.records) == 0 && l.closed {
			l.mu.Unlock()
			close(l.done)
			return
		}
		rec := l.records[0]
		l.records = l.records[1:]
		l.mu.Unlock()

		l.sink.Info(rec.Message, zap.Time("at", rec.At))
		if rec.queueFullCount > 0 {
			l.sink.Warn("LOG OVERLOADED - missing entries",
				zap.Int("missing", rec.queueFullCount))
		}

		l.mu.Lock()
	}
}

// Close stops accepting new messages, drains whatever remains, and blocks
// until the drain goroutine exits.
func (l *Logger) Close() {
	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()
	<-l.done
	_ = l.sink.Sync()
}
