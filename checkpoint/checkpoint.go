// Package checkpoint implements per-collection checkpoints: opaque tokens
// identifying a position in the indexing stream, which clients poll to
// learn when their submissions have been durably applied.
package checkpoint

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// IndexingError describes a single failure that occurred while indexing a
// document on the way to a checkpoint.
type IndexingError struct {
	Message string `json:"message"`
	DocType string `json:"doc_type,omitempty"`
	DocID   string `json:"doc_id,omitempty"`
}

// ErrorLog is a bounded log of indexing errors since the previous
// checkpoint: it keeps the first MaxErrors in detail, and a running total
// count beyond that.
type ErrorLog struct {
	MaxErrors int

	errors      []IndexingError
	totalErrors int
}

// NewErrorLog creates an error log that keeps detail on at most maxErrors
// entries.
func NewErrorLog(maxErrors int) *ErrorLog {
	return &ErrorLog{MaxErrors: maxErrors}
}

// Append records one more error. Once MaxErrors entries are stored in
// detail, further calls only increase the total count.
func (l *ErrorLog) Append(message, docType, docID string) {
	l.totalErrors++
	if len(l.errors) < l.MaxErrors {
		l.errors = append(l.errors, IndexingError{Message: message, DocType: docType, DocID: docID})
	}
}

// TotalErrors returns the total number of errors recorded, including ones
// dropped from the detail log.
func (l *ErrorLog) TotalErrors() int {
	return l.totalErrors
}

// Errors returns the detail entries retained (at most MaxErrors).
func (l *ErrorLog) Errors() []IndexingError {
	return append([]IndexingError(nil), l.errors...)
}

// State is the externally visible status of a checkpoint.
type State struct {
	Reached     bool            `json:"reached"`
	TotalErrors int             `json:"total_errors,omitempty"`
	Errors      []IndexingError `json:"errors,omitempty"`
}

// CheckPoint tracks whether a single submission has been durably applied.
type CheckPoint struct {
	mu          sync.Mutex
	reached     bool
	errors      *ErrorLog
	lastTouched time.Time
}

func newCheckPoint() *CheckPoint {
	return &CheckPoint{lastTouched: time.Now()}
}

// SetReached marks the checkpoint as reached, taking ownership of errors
// (which may be nil). Idempotent: calling it again replaces the errors.
func (c *CheckPoint) SetReached(errors *ErrorLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reached = true
	c.errors = errors
	c.lastTouched = time.Now()
}

// GetState returns the checkpoint's current status and refreshes its
// last-touched time.
func (c *CheckPoint) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTouched = time.Now()

	st := State{Reached: c.reached}
	if c.errors != nil {
		st.TotalErrors = c.errors.TotalErrors()
		st.Errors = c.errors.Errors()
	}
	return st
}

// SecondsSinceTouched returns how long it has been since the checkpoint
// was last modified or inspected via GetState.
func (c *CheckPoint) SecondsSinceTouched() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastTouched).Seconds()
}

// CheckPoints is the set of known checkpoints for one collection.
type CheckPoints struct {
	mu     sync.Mutex
	points map[string]*CheckPoint
}

// New creates an empty checkpoint set.
func New() *CheckPoints {
	return &CheckPoints{points: make(map[string]*CheckPoint)}
}

// Alloc allocates a new, unreached checkpoint and returns its id.
func (c *CheckPoints) Alloc() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.NewString()
	c.points[id] = newCheckPoint()
	return id
}

// IDs returns the ids of every currently-known checkpoint.
func (c *CheckPoints) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.points))
	for id := range c.points {
		ids = append(ids, id)
	}
	return ids
}

// SetReached marks checkid as reached, creating it first if it doesn't
// exist (or has expired). Takes ownership of errors (may be nil).
func (c *CheckPoints) SetReached(checkid string, errors *ErrorLog) {
	c.mu.Lock()
	cp, ok := c.points[checkid]
	if !ok {
		cp = newCheckPoint()
		c.points[checkid] = cp
	}
	c.mu.Unlock()
	cp.SetReached(errors)
}

// GetState returns the status of checkid, and whether it was found.
func (c *CheckPoints) GetState(checkid string) (State, bool) {
	c.mu.Lock()
	cp, ok := c.points[checkid]
	c.mu.Unlock()
	if !ok {
		return State{}, false
	}
	return cp.GetState(), true
}

// Expire removes any checkpoint that hasn't been touched in more than
// maxAge.
func (c *CheckPoints) Expire(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cp := range c.points {
		if cp.SecondsSinceTouched() > maxAge.Seconds() {
			delete(c.points, id)
		}
	}
}
