package config

import (
	"sort"
	"sync"

	"github.com/restpose-go/corepose/categoriser"
)

// CategoriserSpec is the persisted form of a categoriser.NGram: the
// categoriser.NGram itself only holds derived trigram profiles, so the
// labelled training examples are kept here and a runnable categoriser
// is (re)built from them on demand.
type CategoriserSpec struct {
	mu       sync.Mutex
	Examples map[string][]string

	built *categoriser.NGram
}

// NewCategoriserSpec returns an empty spec with no trained labels.
func NewCategoriserSpec() *CategoriserSpec {
	return &CategoriserSpec{Examples: make(map[string][]string)}
}

// Train records additional example text under label.
func (s *CategoriserSpec) Train(label string, examples ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Examples[label] = append(s.Examples[label], examples...)
	s.built = nil
}

// Build returns a categoriser.NGram trained on every recorded example,
// caching the result until the next Train call invalidates it.
func (s *CategoriserSpec) Build() *categoriser.NGram {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built != nil {
		return s.built
	}
	n := categoriser.New()
	labels := make([]string, 0, len(s.Examples))
	for label := range s.Examples {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		n.Train(label, s.Examples[label]...)
	}
	s.built = n
	return n
}

// Clone returns an independent copy of s.
func (s *CategoriserSpec) Clone() *CategoriserSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := NewCategoriserSpec()
	for label, examples := range s.Examples {
		clone.Examples[label] = append([]string(nil), examples...)
	}
	return clone
}
