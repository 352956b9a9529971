package predicate

import (
	"encoding/json"
	"fmt"
)

// Op names the predicate node kinds. Leaf operators compare one field
// against a constant; And/Or/Not combine subtrees.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpNot
	OpEq
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
)

var opNames = map[Op]string{
	OpAnd: "and", OpOr: "or", OpNot: "not", OpEq: "eq", OpNeq: "neq",
	OpGt: "gt", OpGte: "gte", OpLt: "lt", OpLte: "lte", OpIn: "in",
}

var namesToOp = func() map[string]Op {
	out := make(map[string]Op, len(opNames))
	for op, n := range opNames {
		out[n] = op
	}
	return out
}()

// MarshalJSON encodes an Op by name rather than its underlying int, so
// a predicate sent over the cluster boundary stays readable and stable
// across versions that might reorder the iota block.
func (o Op) MarshalJSON() ([]byte, error) {
	return json.Marshal(opNames[o])
}

func (o *Op) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	op, ok := namesToOp[name]
	if !ok {
		return fmt.Errorf("predicate: unknown op %q", name)
	}
	*o = op
	return nil
}

// Predicate is a node in a predicate tree: `and`, `or`, `not`, `eq`, `gt`,
// and so on. Leaf nodes carry Field and Value; And/Or carry Children;
// Not carries exactly one child.
type Predicate struct {
	Op       Op          `json:"op"`
	Field    string      `json:"field,omitempty"`
	Value    Value       `json:"value,omitempty"`
	Values   []Value     `json:"values,omitempty"` // operand list for OpIn
	Children []Predicate `json:"children,omitempty"`
}

func And(children ...Predicate) Predicate { return Predicate{Op: OpAnd, Children: children} }
func Or(children ...Predicate) Predicate  { return Predicate{Op: OpOr, Children: children} }
func Not(child Predicate) Predicate       { return Predicate{Op: OpNot, Children: []Predicate{child}} }
func Eq(field string, v Value) Predicate  { return Predicate{Op: OpEq, Field: field, Value: v} }
func Neq(field string, v Value) Predicate { return Predicate{Op: OpNeq, Field: field, Value: v} }
func Gt(field string, v Value) Predicate  { return Predicate{Op: OpGt, Field: field, Value: v} }
func Gte(field string, v Value) Predicate { return Predicate{Op: OpGte, Field: field, Value: v} }
func Lt(field string, v Value) Predicate  { return Predicate{Op: OpLt, Field: field, Value: v} }
func Lte(field string, v Value) Predicate { return Predicate{Op: OpLte, Field: field, Value: v} }
func In(field string, vs ...Value) Predicate {
	return Predicate{Op: OpIn, Field: field, Values: vs}
}

// Eval applies p to rec. Ordering comparisons (gt/gte/lt/lte) against a
// Null attribute, or across mismatched tags, are always false rather
// than erroring: a predicate tree never panics on heterogeneous data.
func Eval(p Predicate, rec Record) bool {
	switch p.Op {
	case OpAnd:
		for _, c := range p.Children {
			if !Eval(c, rec) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range p.Children {
			if Eval(c, rec) {
				return true
			}
		}
		return false
	case OpNot:
		if len(p.Children) != 1 {
			return false
		}
		return !Eval(p.Children[0], rec)
	case OpEq:
		return Equal(rec.Get(p.Field), p.Value)
	case OpNeq:
		return !Equal(rec.Get(p.Field), p.Value)
	case OpGt:
		less, ok := Less(p.Value, rec.Get(p.Field))
		return ok && less
	case OpGte:
		less, ok := Less(rec.Get(p.Field), p.Value)
		return ok && !less
	case OpLt:
		less, ok := Less(rec.Get(p.Field), p.Value)
		return ok && less
	case OpLte:
		less, ok := Less(p.Value, rec.Get(p.Field))
		return ok && !less
	case OpIn:
		v := rec.Get(p.Field)
		for _, candidate := range p.Values {
			if Equal(v, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Fields returns the set of distinct field names the predicate tree
// touches, recursing through And/Or/Not.
func Fields(p Predicate) map[string]struct{} {
	out := make(map[string]struct{})
	collectFields(p, out)
	return out
}

func collectFields(p Predicate, out map[string]struct{}) {
	if p.Field != "" {
		out[p.Field] = struct{}{}
	}
	for _, c := range p.Children {
		collectFields(c, out)
	}
}
