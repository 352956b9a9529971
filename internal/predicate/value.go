// Package predicate implements the standing query registry: a reverse
// index over predicate trees plus sliding-window diffing for subscriptions
// whose result set changes shape as values rise and fall.
package predicate

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
)

// Value is a tagged sum over the scalar and container shapes a record
// attribute can hold. Comparisons never cross tags: Less and Equal return
// false for operands of differing Kind (Null included), except that two
// Nulls are equal and neither is Less than the other.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	l    []Value
	m    map[string]Value
}

// Null is the absent-attribute value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value  { return Value{kind: KindBytes, by: b} }
func List(l []Value) Value  { return Value{kind: KindList, l: l} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)    { return v.by, v.kind == KindBytes }
func (v Value) AsList() ([]Value, bool)    { return v.l, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// FromAny lifts a loosely-typed record attribute (as decoded from JSON,
// YAML or a Go map literal) into a Value. Unrecognized types map to Null
// rather than panicking, since record attributes originate outside this
// package's control.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case int32:
		return Int(int64(t))
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = FromAny(e)
		}
		return List(out)
	case []Value:
		return List(t)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = FromAny(e)
		}
		return Map(out)
	default:
		return Null
	}
}

// Equal defines strict per-tag equality. Null equals only Null. Lists and
// maps compare structurally and recursively.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindBytes:
		return bytes.Equal(a.by, b.by)
	case KindList:
		if len(a.l) != len(b.l) {
			return false
		}
		for i := range a.l {
			if !Equal(a.l[i], b.l[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Less orders two values of the same orderable tag (Int, Float, String).
// ok is false for cross-tag operands or tags with no defined order
// (Null, Bool, Bytes, List, Map) — callers must treat ok==false as "the
// comparison does not hold", not as a panic condition.
func Less(a, b Value) (less bool, ok bool) {
	if a.kind != b.kind {
		return false, false
	}
	switch a.kind {
	case KindInt:
		return a.i < b.i, true
	case KindFloat:
		return a.f < b.f, true
	case KindString:
		return a.s < b.s, true
	default:
		return false, false
	}
}

var kindNames = map[Kind]string{
	KindNull: "null", KindBool: "bool", KindInt: "int", KindFloat: "float",
	KindString: "string", KindBytes: "bytes", KindList: "list", KindMap: "map",
}

var namesToKind = func() map[string]Kind {
	out := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		out[n] = k
	}
	return out
}()

// wireValue is Value's JSON wire shape: a tag plus the one field that
// tag populates. Required because Value's real fields are unexported so
// a Value can only ever be built through its constructors.
type wireValue struct {
	Kind  string       `json:"kind"`
	Bool  bool         `json:"bool,omitempty"`
	Int   int64        `json:"int,omitempty"`
	Float float64      `json:"float,omitempty"`
	Str   string       `json:"str,omitempty"`
	Bytes string       `json:"bytes,omitempty"` // base64
	List  []Value      `json:"list,omitempty"`
	Map   map[string]Value `json:"map,omitempty"`
}

// MarshalJSON encodes a Value as a tagged wire object, so a cluster
// message carrying record attributes round-trips through JSON without
// losing the Kind distinction FromAny would otherwise collapse.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: kindNames[v.kind]}
	switch v.kind {
	case KindBool:
		w.Bool = v.b
	case KindInt:
		w.Int = v.i
	case KindFloat:
		w.Float = v.f
	case KindString:
		w.Str = v.s
	case KindBytes:
		w.Bytes = base64.StdEncoding.EncodeToString(v.by)
	case KindList:
		w.List = v.l
	case KindMap:
		w.Map = v.m
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a tagged wire object back into a Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, ok := namesToKind[w.Kind]
	if !ok {
		return fmt.Errorf("predicate: unknown value kind %q", w.Kind)
	}
	switch kind {
	case KindNull:
		*v = Null
	case KindBool:
		*v = Bool(w.Bool)
	case KindInt:
		*v = Int(w.Int)
	case KindFloat:
		*v = Float(w.Float)
	case KindString:
		*v = String(w.Str)
	case KindBytes:
		b, err := base64.StdEncoding.DecodeString(w.Bytes)
		if err != nil {
			return fmt.Errorf("predicate: invalid bytes value: %w", err)
		}
		*v = Bytes(b)
	case KindList:
		*v = List(w.List)
	case KindMap:
		*v = Map(w.Map)
	}
	return nil
}

// Compare returns -1, 0 or 1 for orderable tags, and ok=false otherwise.
// Used by sort-key comparisons: the caller treats ok=false as a tie on
// that key and falls through to the next sort key, then the record key.
// Non-orderable or mixed-tag values are not grouped before or after
// orderable ones.
func Compare(a, b Value) (cmp int, ok bool) {
	less, ok := Less(a, b)
	if !ok {
		return 0, false
	}
	if less {
		return -1, true
	}
	if Equal(a, b) {
		return 0, true
	}
	return 1, true
}
