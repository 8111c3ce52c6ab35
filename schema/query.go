package schema

import (
	"encoding/json"
	"fmt"

	"github.com/restpose-go/corepose/engine"
	"github.com/restpose-go/corepose/rpcerr"
)

// ParseQuery translates a query JSON tree into an engine.Query (spec
// §4.3 perform_search). The accepted shapes are:
//
//	{"field": "<name>", "value": "<term>"}                       -> TermQuery
//	{"range": {"field": "<name>", "from": "<lo>", "to": "<hi>"}}  -> ValueRangeQuery
//	{"and": [<query>, ...]}                                       -> AndQuery
//	{"or":  [<query>, ...]}                                       -> OrQuery
//	{"filter": {"match": <query>, "filter": <query>}}             -> FilterQuery
//	{"scale": {"query": <query>, "expr": "<cel expression>"}}     -> ScaleQuery
func (s *Schema) ParseQuery(raw map[string]interface{}) (engine.Query, error) {
	if field, ok := raw["field"]; ok {
		name, _ := field.(string)
		value, _ := raw["value"].(string)
		cfg := s.configFor(name)
		prefix := ""
		if cfg != nil {
			prefix = cfg.Prefix
		}
		return engine.TermQuery{Term: prefix + value}, nil
	}

	if rangeVal, ok := raw["range"].(map[string]interface{}); ok {
		name, _ := rangeVal["field"].(string)
		lo, _ := rangeVal["from"].(string)
		hi, _ := rangeVal["to"].(string)
		cfg := s.configFor(name)
		slot := 0
		if cfg != nil {
			slot = cfg.Slot
		}
		return engine.ValueRangeQuery{Slot: slot, Lo: lo, Hi: hi}, nil
	}

	if children, ok := raw["and"].([]interface{}); ok {
		qs, err := s.parseQueryList(children)
		if err != nil {
			return nil, err
		}
		return engine.AndQuery{Children: qs}, nil
	}

	if children, ok := raw["or"].([]interface{}); ok {
		qs, err := s.parseQueryList(children)
		if err != nil {
			return nil, err
		}
		return engine.OrQuery{Children: qs}, nil
	}

	if filterVal, ok := raw["filter"].(map[string]interface{}); ok {
		match, ok := filterVal["match"].(map[string]interface{})
		if !ok {
			return nil, rpcerr.New(rpcerr.InvalidValue, "schema: filter query requires a \"match\" clause")
		}
		filter, ok := filterVal["filter"].(map[string]interface{})
		if !ok {
			return nil, rpcerr.New(rpcerr.InvalidValue, "schema: filter query requires a \"filter\" clause")
		}
		matchQ, err := s.ParseQuery(match)
		if err != nil {
			return nil, err
		}
		filterQ, err := s.ParseQuery(filter)
		if err != nil {
			return nil, err
		}
		return engine.FilterQuery{Match: matchQ, Filter: filterQ}, nil
	}

	if scaleVal, ok := raw["scale"].(map[string]interface{}); ok {
		child, ok := scaleVal["query"].(map[string]interface{})
		if !ok {
			return nil, rpcerr.New(rpcerr.InvalidValue, "schema: scale query requires a \"query\" clause")
		}
		expr, _ := scaleVal["expr"].(string)
		childQ, err := s.ParseQuery(child)
		if err != nil {
			return nil, err
		}
		return engine.ScaleQuery{Child: childQ, Expr: expr}, nil
	}

	return nil, rpcerr.New(rpcerr.InvalidValue, fmt.Sprintf("schema: unrecognised query node: %v", raw))
}

func (s *Schema) parseQueryList(raw []interface{}) ([]engine.Query, error) {
	out := make([]engine.Query, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, rpcerr.New(rpcerr.InvalidValue, "schema: query list entry must be an object")
		}
		q, err := s.ParseQuery(m)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// SearchResults is the formatted outcome of PerformSearch: top hits with
// display fields, plus one JSON entry per attached info handler (spec
// §6 "results.info").
type SearchResults struct {
	Hits []ResultHit
	Info []map[string]interface{}
}

// ResultHit is one formatted search result.
type ResultHit struct {
	IDTerm string                 `json:"id"`
	Score  float64                `json:"score"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// InfoHandler is a spy or other result-time aggregator that both
// observes matches and renders a JSON summary (spec §9's "small
// capability": on_document + result).
type InfoHandler interface {
	engine.MatchObserver
	Result() map[string]interface{}
}

// PerformSearch runs query over handle, streaming matches through every
// info handler, and returns the top `limit` hits with their stored
// display fields decoded.
func (s *Schema) PerformSearch(handle engine.Handle, query engine.Query, handlers []InfoHandler, limit int) (SearchResults, error) {
	observers := make([]engine.MatchObserver, len(handlers))
	for i, h := range handlers {
		observers[i] = h
	}

	rawHits, err := handle.Search(query, observers, limit)
	if err != nil {
		return SearchResults{}, err
	}

	hits := make([]ResultHit, 0, len(rawHits))
	for _, h := range rawHits {
		hits = append(hits, ResultHit{IDTerm: h.IDTerm, Score: h.Score, Data: decodeStored(h.Doc.Data)})
	}

	info := make([]map[string]interface{}, 0, len(handlers))
	for _, h := range handlers {
		info = append(info, h.Result())
	}

	return SearchResults{Hits: hits, Info: info}, nil
}

func decodeStored(data []byte) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
