package queue

import (
	"sync"
	"testing"
	"time"
)

func TestThrottleBoundary(t *testing.T) {
	q := New[int](10, 20)

	for i := 0; i < 9; i++ {
		if st := q.Push(i, false); st != HasSpace {
			t.Fatalf("push %d: got %v, want HasSpace", i, st)
		}
	}

	if st := q.Push(9, false); st != LowSpace {
		t.Fatalf("10th push: got %v, want LowSpace", st)
	}

	for i := 10; i < 20; i++ {
		if st := q.Push(i, true); st != Full {
			t.Fatalf("throttled push %d: got %v, want Full", i, st)
		}
	}

	for i := 10; i < 20; i++ {
		if st := q.Push(i, false); st != LowSpace {
			t.Fatalf("unthrottled push %d: got %v, want LowSpace", i, st)
		}
	}

	if st := q.Push(999, false); st != Full {
		t.Fatalf("21st push: got %v, want Full", st)
	}
	if st := q.Push(999, true); st != Full {
		t.Fatalf("21st throttled push: got %v, want Full", st)
	}
}

func TestThrottleEqualsMaxNeverHasSpace(t *testing.T) {
	q := New[int](5, 5)
	for i := 0; i < 5; i++ {
		st := q.Push(i, false)
		if st == HasSpace {
			t.Fatalf("push %d: got HasSpace, want FULL or LowSpace when throttle==max", i)
		}
	}
}

func TestPopBlocksThenCloses(t *testing.T) {
	q := New[int](10, 20)

	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected Pop to return false after close on empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Close")
	}
}

func TestCloseRejectsPush(t *testing.T) {
	q := New[int](10, 20)
	q.Close()
	if st := q.Push(1, false); st != Closed {
		t.Fatalf("push after close: got %v, want Closed", st)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("pop after close on empty queue should return false")
	}
}

func TestFIFOOrder(t *testing.T) {
	q := New[int](100, 100)
	for i := 0; i < 5; i++ {
		q.Push(i, false)
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d: got (%v, %v), want (%d, true)", i, v, ok, i)
		}
	}
}

type countingNudger struct {
	mu    sync.Mutex
	count int
}

func (c *countingNudger) Nudge() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func TestNudgeOnDropBelowThrottle(t *testing.T) {
	q := New[int](3, 10)
	n := &countingNudger{}
	q.SetNudger(n)

	for i := 0; i < 3; i++ {
		q.Push(i, false)
	}
	// Queue is at throttle_size (3); popping one should nudge.
	q.Pop()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.count != 1 {
		t.Fatalf("expected exactly 1 nudge, got %d", n.count)
	}
}
