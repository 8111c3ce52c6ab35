package engine

// Query is a node in the translated query tree: leaves match on a term or
// a value-slot range; nodes combine children with boolean logic, filter
// out non-matches without affecting score, or scale a child's score by an
// expression.
type Query interface {
	isQuery()
}

// TermQuery matches documents carrying Term.
type TermQuery struct {
	Term string
}

// ValueRangeQuery matches documents whose value in Slot lies within
// [Lo, Hi] (lexical comparison, inclusive), backed by the same
// multi-value-range posting source idea as the original engine.
type ValueRangeQuery struct {
	Slot   int
	Lo, Hi string
}

// AndQuery matches when every child matches; its score is the sum of the
// children's scores.
type AndQuery struct {
	Children []Query
}

// OrQuery matches when any child matches; its score is the sum of the
// matching children's scores.
type OrQuery struct {
	Children []Query
}

// FilterQuery matches when both Match and Filter match, but only Match
// contributes to the score — Filter is a pure boolean restriction.
type FilterQuery struct {
	Match  Query
	Filter Query
}

// ScaleQuery multiplies Child's score by evaluating Expr (a CEL
// expression) against the candidate document's stored fields.
type ScaleQuery struct {
	Child Query
	Expr  string
}

func (TermQuery) isQuery()       {}
func (ValueRangeQuery) isQuery() {}
func (AndQuery) isQuery()        {}
func (OrQuery) isQuery()         {}
func (FilterQuery) isQuery()     {}
func (ScaleQuery) isQuery()      {}
