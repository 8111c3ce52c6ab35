package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restpose-go/corepose/mapping"
)

type fakePipes struct {
	target string
}

func (f *fakePipes) Run(pipeName string, input map[string]interface{}, sink mapping.Sink) error {
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		out[k] = v
	}
	out["piped_via"] = pipeName
	return sink(out)
}

type recordingWriter struct {
	mu      sync.Mutex
	applied []*IndexingTask
}

func (w *recordingWriter) ApplyIndexingTask(collection string, t *IndexingTask) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applied = append(w.applied, t)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.applied)
}

func TestProcessingTaskEnqueuesIndexingTask(t *testing.T) {
	pipes := &fakePipes{}
	writer := &recordingWriter{}
	m, err := NewManager(pipes, writer, Options{Workers: 2})
	require.NoError(t, err)
	defer m.Close()

	m.Submit("coll1", Item{Kind: KindProcessing, Processing: &ProcessingTask{
		Collection: "coll1",
		PipeName:   "default",
		Doc:        map[string]interface{}{"id": "1"},
	}}, false)

	assert.Eventually(t, func() bool { return writer.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestIndexingTasksForOneCollectionRunInOrder(t *testing.T) {
	pipes := &fakePipes{}
	writer := &recordingWriter{}
	m, err := NewManager(pipes, writer, Options{Workers: 4})
	require.NoError(t, err)
	defer m.Close()

	for i := 0; i < 20; i++ {
		m.Submit("coll1", Item{Kind: KindIndexing, Indexing: &IndexingTask{
			Collection: "coll1",
			IDTerm:     string(rune('a' + i)),
		}}, false)
	}

	assert.Eventually(t, func() bool { return writer.count() == 20 }, time.Second, 5*time.Millisecond)

	writer.mu.Lock()
	defer writer.mu.Unlock()
	for i, task := range writer.applied {
		assert.Equal(t, string(rune('a'+i)), task.IDTerm)
	}
}

func TestSearchTaskRuns(t *testing.T) {
	pipes := &fakePipes{}
	writer := &recordingWriter{}
	m, err := NewManager(pipes, writer, Options{Workers: 2})
	require.NoError(t, err)
	defer m.Close()

	var ran bool
	var mu sync.Mutex
	m.Submit("coll1", Item{Kind: KindSearch, Search: &SearchTask{
		Collection: "coll1",
		Run: func() error {
			mu.Lock()
			ran = true
			mu.Unlock()
			return nil
		},
	}}, false)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran
	}, time.Second, 5*time.Millisecond)
}
