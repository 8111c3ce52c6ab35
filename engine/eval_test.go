package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermSetCollectsPostingTerms(t *testing.T) {
	doc := &Document{Postings: []Posting{{Term: "red"}, {Term: "blue"}}}
	set := TermSet(doc)

	assert.True(t, set["red"])
	assert.True(t, set["blue"])
	assert.False(t, set["green"])
}

func TestEvalTermQuery(t *testing.T) {
	doc := &Document{Postings: []Posting{{Term: "red"}}}
	terms := TermSet(doc)

	matched, score, err := Eval(TermQuery{Term: "red"}, doc, terms)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, 1.0, score)

	matched, _, err = Eval(TermQuery{Term: "blue"}, doc, terms)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEvalValueRangeQuery(t *testing.T) {
	doc := &Document{Values: map[int]string{0: "m"}}
	terms := TermSet(doc)

	matched, _, err := Eval(ValueRangeQuery{Slot: 0, Lo: "a", Hi: "z"}, doc, terms)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, _, err = Eval(ValueRangeQuery{Slot: 0, Lo: "n", Hi: "z"}, doc, terms)
	require.NoError(t, err)
	assert.False(t, matched)

	matched, _, err = Eval(ValueRangeQuery{Slot: 1, Lo: "a", Hi: "z"}, doc, terms)
	require.NoError(t, err)
	assert.False(t, matched, "missing slot never matches")
}

func TestEvalAndQuerySumsScoresOnlyWhenAllMatch(t *testing.T) {
	doc := &Document{Postings: []Posting{{Term: "red"}, {Term: "large"}}}
	terms := TermSet(doc)

	matched, score, err := Eval(AndQuery{Children: []Query{
		TermQuery{Term: "red"}, TermQuery{Term: "large"},
	}}, doc, terms)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, 2.0, score)

	matched, _, err = Eval(AndQuery{Children: []Query{
		TermQuery{Term: "red"}, TermQuery{Term: "missing"},
	}}, doc, terms)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEvalOrQuerySumsMatchingChildren(t *testing.T) {
	doc := &Document{Postings: []Posting{{Term: "red"}}}
	terms := TermSet(doc)

	matched, score, err := Eval(OrQuery{Children: []Query{
		TermQuery{Term: "red"}, TermQuery{Term: "blue"},
	}}, doc, terms)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, 1.0, score)

	matched, _, err = Eval(OrQuery{Children: []Query{
		TermQuery{Term: "green"}, TermQuery{Term: "blue"},
	}}, doc, terms)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEvalFilterQueryRestrictsWithoutAffectingScore(t *testing.T) {
	doc := &Document{Postings: []Posting{{Term: "red"}, {Term: "in-stock"}}}
	terms := TermSet(doc)

	matched, score, err := Eval(FilterQuery{
		Match:  TermQuery{Term: "red"},
		Filter: TermQuery{Term: "in-stock"},
	}, doc, terms)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, 1.0, score)

	matched, _, err = Eval(FilterQuery{
		Match:  TermQuery{Term: "red"},
		Filter: TermQuery{Term: "out-of-stock"},
	}, doc, terms)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEvalScaleQueryMultipliesScoreByExpression(t *testing.T) {
	doc := &Document{
		Postings: []Posting{{Term: "red"}},
		Data:     []byte(`{"boost": 3}`),
	}
	terms := TermSet(doc)

	matched, score, err := Eval(ScaleQuery{Child: TermQuery{Term: "red"}, Expr: "doc.boost"}, doc, terms)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, 3.0, score)
}

func TestEvalScaleQuerySkippedWhenChildDoesNotMatch(t *testing.T) {
	doc := &Document{Postings: []Posting{{Term: "red"}}}
	terms := TermSet(doc)

	matched, _, err := Eval(ScaleQuery{Child: TermQuery{Term: "blue"}, Expr: "doc.boost"}, doc, terms)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestSortHitsOrdersByScoreThenIDTerm(t *testing.T) {
	hits := []Hit{
		{IDTerm: "\tuser\t2", Score: 1.0},
		{IDTerm: "\tuser\t1", Score: 2.0},
		{IDTerm: "\tuser\t3", Score: 2.0},
	}

	sorted := SortHits(hits, 0)
	assert.Equal(t, "\tuser\t1", sorted[0].IDTerm)
	assert.Equal(t, "\tuser\t3", sorted[1].IDTerm)
	assert.Equal(t, "\tuser\t2", sorted[2].IDTerm)
}

func TestSortHitsTruncatesToLimit(t *testing.T) {
	hits := []Hit{
		{IDTerm: "a", Score: 1.0},
		{IDTerm: "b", Score: 2.0},
		{IDTerm: "c", Score: 3.0},
	}

	sorted := SortHits(hits, 2)
	assert.Len(t, sorted, 2)
	assert.Equal(t, "c", sorted[0].IDTerm)
	assert.Equal(t, "b", sorted[1].IDTerm)
}
