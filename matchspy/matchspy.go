// Package matchspy implements the streaming result-time aggregators
// attached to a search (spec §4.5): TermOccur counts term-suffix
// occurrences under a prefix; TermCoOccur counts unordered pairs of
// co-occurring suffixes. Grounded on the original
// Base/TermOccur/TermCoOccurMatchSpy (src/matchspies/termoccurmatchspy.{h,cc}).
package matchspy

import (
	"sort"
	"strings"

	"github.com/restpose-go/corepose/engine"
)

// TermFrequencyLookup looks up the collection-wide frequency of a term.
type TermFrequencyLookup interface {
	TermFrequency(term string) int
}

type base struct {
	docsSeen    int
	docLimit    int
	termsSeen   int
	resultLimit int
	prefix      string // with trailing tab, if non-empty
	origPrefix  string
	stopwords   map[string]bool
	getTermFreqs bool
	freqs       TermFrequencyLookup
}

func newBase(prefix string, docLimit, resultLimit int, getTermFreqs bool, freqs TermFrequencyLookup) base {
	b := base{
		docLimit:     docLimit,
		resultLimit:  resultLimit,
		origPrefix:   prefix,
		prefix:       prefix,
		stopwords:    make(map[string]bool),
		getTermFreqs: getTermFreqs,
		freqs:        freqs,
	}
	if b.prefix != "" {
		b.prefix += "\t"
	}
	return b
}

// AddStopword marks suffix as one to exclude from counts.
func (b *base) AddStopword(word string) { b.stopwords[word] = true }

func (b *base) suffixes(doc *engine.Document) []string {
	out := make([]string, 0, len(doc.Postings))
	for _, p := range doc.Postings {
		if !strings.HasPrefix(p.Term, b.prefix) {
			continue
		}
		suffix := p.Term[len(b.prefix):]
		if b.stopwords[suffix] {
			continue
		}
		out = append(out, suffix)
	}
	sort.Strings(out)
	return out
}

// termAndFreq is one (term, count) result row, ordered by descending
// count with ties broken by ascending term (spec §8 scenario 5).
type termAndFreq struct {
	term string
	freq int
}

func sortedTop(counts map[string]int, limit int) []termAndFreq {
	sorted := make([]termAndFreq, 0, len(counts))
	for term, freq := range counts {
		sorted = append(sorted, termAndFreq{term, freq})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].freq != sorted[j].freq {
			return sorted[i].freq > sorted[j].freq
		}
		return sorted[i].term < sorted[j].term
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// TermOccur counts how many documents carry each term-suffix under
// prefix.
type TermOccur struct {
	base
	counts map[string]int
}

// NewTermOccur builds a TermOccur spy. freqs may be nil if getTermFreqs
// is false.
func NewTermOccur(prefix string, docLimit, resultLimit int, getTermFreqs bool, freqs TermFrequencyLookup) *TermOccur {
	return &TermOccur{base: newBase(prefix, docLimit, resultLimit, getTermFreqs, freqs), counts: make(map[string]int)}
}

// Observe implements engine.MatchObserver.
func (s *TermOccur) Observe(doc engine.Document, _ float64) {
	if s.docsSeen >= s.docLimit {
		return
	}
	s.docsSeen++
	for _, suffix := range s.suffixes(&doc) {
		s.counts[suffix]++
		s.termsSeen++
	}
}

// Result is a JSON-ready summary: {type, prefix, docs_seen, terms_seen,
// counts: [[term, freq, tf?], ...]} (spec §6).
func (s *TermOccur) Result() map[string]interface{} {
	top := sortedTop(s.counts, s.resultLimit)
	tfs := s.termFreqsFor(top)

	rows := make([][]interface{}, 0, len(top))
	for _, tf := range top {
		row := []interface{}{tf.term, tf.freq}
		if s.getTermFreqs {
			row = append(row, tfs[tf.term])
		}
		rows = append(rows, row)
	}
	return map[string]interface{}{
		"type":       "occur",
		"prefix":     s.origPrefix,
		"docs_seen":  s.docsSeen,
		"terms_seen": s.termsSeen,
		"counts":     rows,
	}
}

func (s *base) termFreqsFor(top []termAndFreq) map[string]int {
	out := make(map[string]int)
	if !s.getTermFreqs || s.freqs == nil {
		return out
	}
	for _, tf := range top {
		out[tf.term] = s.freqs.TermFrequency(s.prefix + tf.term)
	}
	return out
}

// TermCoOccur counts unordered pairs of co-occurring term-suffixes under
// prefix.
type TermCoOccur struct {
	base
	counts map[[2]string]int
}

// NewTermCoOccur builds a TermCoOccur spy.
func NewTermCoOccur(prefix string, docLimit, resultLimit int, getTermFreqs bool, freqs TermFrequencyLookup) *TermCoOccur {
	return &TermCoOccur{base: newBase(prefix, docLimit, resultLimit, getTermFreqs, freqs), counts: make(map[[2]string]int)}
}

// Observe implements engine.MatchObserver.
func (s *TermCoOccur) Observe(doc engine.Document, _ float64) {
	if s.docsSeen >= s.docLimit {
		return
	}
	s.docsSeen++
	items := s.suffixes(&doc)
	s.termsSeen += len(items)
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			s.counts[[2]string{items[i], items[j]}]++
		}
	}
}

type pairAndFreq struct {
	a, b string
	freq int
}

// Result is a JSON-ready summary: {type, prefix, docs_seen, terms_seen,
// counts: [[t1, t2, freq, tf1?, tf2?], ...]} (spec §6).
func (s *TermCoOccur) Result() map[string]interface{} {
	sorted := make([]pairAndFreq, 0, len(s.counts))
	for pair, freq := range s.counts {
		sorted = append(sorted, pairAndFreq{pair[0], pair[1], freq})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].freq != sorted[j].freq {
			return sorted[i].freq > sorted[j].freq
		}
		if sorted[i].a != sorted[j].a {
			return sorted[i].a < sorted[j].a
		}
		return sorted[i].b < sorted[j].b
	})
	if s.resultLimit > 0 && len(sorted) > s.resultLimit {
		sorted = sorted[:s.resultLimit]
	}

	tfs := make(map[string]int)
	if s.getTermFreqs && s.freqs != nil {
		for _, p := range sorted {
			tfs[p.a] = s.freqs.TermFrequency(s.prefix + p.a)
			tfs[p.b] = s.freqs.TermFrequency(s.prefix + p.b)
		}
	}

	rows := make([][]interface{}, 0, len(sorted))
	for _, p := range sorted {
		row := []interface{}{p.a, p.b, p.freq}
		if s.getTermFreqs {
			row = append(row, tfs[p.a], tfs[p.b])
		}
		rows = append(rows, row)
	}
	return map[string]interface{}{
		"type":       "cooccur",
		"prefix":     s.origPrefix,
		"docs_seen":  s.docsSeen,
		"terms_seen": s.termsSeen,
		"counts":     rows,
	}
}
