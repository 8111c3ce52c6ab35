package mapping

// PathComponent identifies one step of a JSON path: either an object key
// or an array index (spec §3 Mapping: "JSONPathComponent"). Grounded on
// the original JSONPathComponent (jsonmanip/mapping.h), which is a
// similar tagged union used as a map key.
type PathComponent struct {
	Key     string
	Index   int
	IsIndex bool
}

// KeyComponent builds a PathComponent addressing an object key.
func KeyComponent(key string) PathComponent { return PathComponent{Key: key} }

// IndexComponent builds a PathComponent addressing an array index.
func IndexComponent(i int) PathComponent { return PathComponent{Index: i, IsIndex: true} }

// CondOp is a Conditional's operator tag.
type CondOp int

const (
	CondExists CondOp = iota
	CondEq
	CondAnd
	CondOr
	CondNot
)

// Conditional is the small boolean algebra used by Mapping's `when`
// clause (spec §9: "exists, and, or, not, equality ... a tagged
// variant evaluated over the input JSON").
type Conditional struct {
	Op       CondOp
	Path     []string // object-key path, used by CondExists/CondEq
	Value    interface{}
	Children []*Conditional // used by CondAnd/CondOr/CondNot
}

// Test evaluates the conditional against input. A nil Conditional always
// passes (Mapping's `when` is optional).
func (c *Conditional) Test(input map[string]interface{}) bool {
	if c == nil {
		return true
	}
	switch c.Op {
	case CondExists:
		_, ok := lookupPath(input, c.Path)
		return ok
	case CondEq:
		v, ok := lookupPath(input, c.Path)
		return ok && deepEqual(v, c.Value)
	case CondAnd:
		for _, child := range c.Children {
			if !child.Test(input) {
				return false
			}
		}
		return true
	case CondOr:
		for _, child := range c.Children {
			if child.Test(input) {
				return true
			}
		}
		return false
	case CondNot:
		if len(c.Children) == 0 {
			return true
		}
		return !c.Children[0].Test(input)
	default:
		return false
	}
}

func lookupPath(input map[string]interface{}, path []string) (interface{}, bool) {
	var cur interface{} = input
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func deepEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqual(v, bvv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
