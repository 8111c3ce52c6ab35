package mapping

import (
	"fmt"

	"github.com/restpose-go/corepose/rpcerr"
)

// maxPipeDepth bounds pipe-to-pipe recursion (SPEC_FULL.md's resolution
// of the open question in spec §9: loop detection via recursion-depth
// cap combined with a per-call-stack visited set, so a two-pipe cycle is
// caught on its second visit well before the depth cap is reached).
const maxPipeDepth = 32

// Pipe is an ordered list of Mappings plus a target: the name of the
// next pipe to hand matched output to, or empty to deliver to the
// indexer (spec §4.4).
type Pipe struct {
	Mappings []*Mapping
	ApplyAll bool
	Target   string
}

// Sink receives documents that have reached a pipe's terminal stage
// (Target == "").
type Sink func(doc map[string]interface{}) error

// Registry holds every named pipe and categoriser for one collection,
// and dispatches a document through them.
type Registry struct {
	pipes        map[string]*Pipe
	categorisers Categorisers
}

// NewRegistry builds a dispatch registry over pipes, resolving
// categoriser names against cats.
func NewRegistry(pipes map[string]*Pipe, cats Categorisers) *Registry {
	return &Registry{pipes: pipes, categorisers: cats}
}

// Run dispatches input through the named pipe, recursively following
// `target` chains, delivering every document that reaches a terminal
// pipe to sink.
func (r *Registry) Run(pipeName string, input map[string]interface{}, sink Sink) error {
	return r.run(pipeName, input, sink, 0, make(map[string]bool))
}

func (r *Registry) run(name string, input map[string]interface{}, sink Sink, depth int, visited map[string]bool) error {
	if depth > maxPipeDepth {
		return rpcerr.New(rpcerr.InvalidState, fmt.Sprintf("mapping: pipe recursion exceeded depth %d (possible cycle through %q)", maxPipeDepth, name))
	}
	// visited tracks the pipes currently on this call's stack, not
	// every pipe ever seen, so the same target reached twice via two
	// different ApplyAll branches (not a cycle) isn't misflagged.
	if visited[name] {
		return rpcerr.New(rpcerr.InvalidState, fmt.Sprintf("mapping: pipe loop detected: %q revisited", name))
	}
	visited[name] = true
	defer delete(visited, name)

	pipe, ok := r.pipes[name]
	if !ok {
		return rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("mapping: unknown pipe %q", name))
	}

	for _, m := range pipe.Mappings {
		out, matched := m.Apply(input, r.categorisers)
		if !matched {
			continue
		}
		if pipe.Target == "" {
			if err := sink(out); err != nil {
				return err
			}
		} else {
			if err := r.run(pipe.Target, out, sink, depth+1, visited); err != nil {
				return err
			}
		}
		if !pipe.ApplyAll {
			break
		}
	}
	return nil
}
