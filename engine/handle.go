package engine

// Hit is one matching document returned from a search, already in score
// order.
type Hit struct {
	IDTerm string
	Score  float64
	Doc    Document
}

// MatchObserver is invoked once per matching document during a search,
// before results are sorted — the streaming aggregation point matchspies
// attach to.
type MatchObserver interface {
	Observe(doc Document, score float64)
}

// Handle is a handle on one database: either a single fragment, opened
// for read or write, or the logical union of every fragment in a group
// (spec §4.2's "group read view").
type Handle interface {
	// State

	// Close releases any OS resources held by the handle. Idempotent.
	Close() error

	// Mutation (valid only on a writable handle; filedb enforces this
	// with rpcerr.InvalidState)

	// AddDoc adds doc. If idterm is empty a new document is always
	// appended; otherwise any existing document bearing idterm is
	// atomically replaced.
	AddDoc(doc Document, idterm string) error
	// DeleteDoc removes any document bearing idterm. Not an error if
	// absent. idterm must not be empty.
	DeleteDoc(idterm string) error
	SetMetadata(key, value string) error
	Commit() error

	// Read

	Metadata(key string) (string, bool)
	Document(idterm string) (Document, bool)
	DocCount() int
	// TermFrequency returns the number of documents carrying term.
	TermFrequency(term string) int
	// Search runs query over every document in the handle, invoking each
	// observer for every match, then returns the top `limit` hits
	// ordered by descending score (ties broken by ascending idterm).
	Search(query Query, observers []MatchObserver, limit int) ([]Hit, error)
}
