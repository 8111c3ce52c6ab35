// Package corepose binds the leaf packages (dbgroup, schema, config,
// mapping, engine) into the two root
// components spec.md places outside any of them: Collection, which owns
// one DbGroup and one CollectionConfig, and CollectionPool, which hands
// out and reclaims Collection handles (spec §2, §4.6).
package corepose

// Options configures the root-level pieces a server process wires
// together: where collections live on disk, and the defaults new
// collections and their pool are built with. Grounded on the teacher's
// options.go (a single flat QueryOptions struct) and its sibling
// database.go's Options (Path, BufferPoolSize, ...), generalised from
// "one database directory" to "one directory of named collections".
type Options struct {
	// DataDir is the root directory; each collection lives under
	// DataDir/<name> (spec §6).
	DataDir string

	// MaxNewDBDocs caps the tail fragment's document count before
	// DbGroup rotates in a new one; 0 selects dbgroup.DefaultMaxNewDBDocs.
	MaxNewDBDocs int

	// MaxCachedReadersPerCollection bounds CollectionPool's readonly
	// handle cache; spec §4.6 states this is "currently zero" (caching
	// disabled), which is also this field's zero-value default.
	MaxCachedReadersPerCollection int
}

// QueryOptions shapes one search call. Grounded on the teacher's
// options.go QueryOptions (SortField/SortDesc/Limit/Skip), trimmed to
// what spec §4.3's perform_search actually uses — sorting is entirely
// score order from engine.Handle.Search (spec's query trees have no
// independent sort-field concept).
type QueryOptions struct {
	Limit int
	Skip  int
}
