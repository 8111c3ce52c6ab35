package engine

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/restpose-go/corepose/rules"
)

// scaleEngine is the shared CEL evaluator every ScaleQuery evaluation
// compiles and caches its expression against (spec §4.11 DOMAIN STACK).
var (
	scaleEngineOnce sync.Once
	scaleEngine     *rules.Engine
	scaleEngineErr  error
)

func getScaleEngine() (*rules.Engine, error) {
	scaleEngineOnce.Do(func() {
		scaleEngine, scaleEngineErr = rules.New()
	})
	return scaleEngine, scaleEngineErr
}

func evalScale(expr string, data []byte) (float64, error) {
	e, err := getScaleEngine()
	if err != nil {
		return 0, err
	}

	var doc map[string]interface{}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &doc)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	return e.EvalNumber(expr, doc)
}

// TermSet builds the set of term names carried by doc, for fast
// membership checks during query evaluation.
func TermSet(doc *Document) map[string]bool {
	set := make(map[string]bool, len(doc.Postings))
	for _, p := range doc.Postings {
		set[p.Term] = true
	}
	return set
}

// Eval evaluates query against doc (whose term set has already been
// computed), returning whether it matches and, if so, its score.
func Eval(query Query, doc *Document, terms map[string]bool) (bool, float64, error) {
	switch q := query.(type) {
	case TermQuery:
		if terms[q.Term] {
			return true, 1.0, nil
		}
		return false, 0, nil

	case ValueRangeQuery:
		val, ok := doc.Values[q.Slot]
		if !ok {
			return false, 0, nil
		}
		if val >= q.Lo && val <= q.Hi {
			return true, 1.0, nil
		}
		return false, 0, nil

	case AndQuery:
		score := 0.0
		for _, c := range q.Children {
			matched, s, err := Eval(c, doc, terms)
			if err != nil {
				return false, 0, err
			}
			if !matched {
				return false, 0, nil
			}
			score += s
		}
		return true, score, nil

	case OrQuery:
		matchedAny := false
		score := 0.0
		for _, c := range q.Children {
			matched, s, err := Eval(c, doc, terms)
			if err != nil {
				return false, 0, err
			}
			if matched {
				matchedAny = true
				score += s
			}
		}
		return matchedAny, score, nil

	case FilterQuery:
		matched, score, err := Eval(q.Match, doc, terms)
		if err != nil || !matched {
			return false, 0, err
		}
		filtered, _, err := Eval(q.Filter, doc, terms)
		if err != nil {
			return false, 0, err
		}
		if !filtered {
			return false, 0, nil
		}
		return true, score, nil

	case ScaleQuery:
		matched, score, err := Eval(q.Child, doc, terms)
		if err != nil || !matched {
			return false, 0, err
		}
		factor, err := evalScale(q.Expr, doc.Data)
		if err != nil {
			return false, 0, err
		}
		return true, score * factor, nil

	default:
		return false, 0, nil
	}
}

// SortHits sorts hits by descending score, ties broken by ascending
// idterm, and truncates to limit (0 meaning "all").
func SortHits(hits []Hit, limit int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].IDTerm < hits[j].IDTerm
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
