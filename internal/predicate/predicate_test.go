package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEval_ComparisonOperators(t *testing.T) {
	rec := Record{Key: "a", Attributes: map[string]Value{"age": Int(30), "name": String("alice")}}

	assert.True(t, Eval(Eq("name", String("alice")), rec))
	assert.False(t, Eval(Eq("name", String("bob")), rec))
	assert.True(t, Eval(Neq("name", String("bob")), rec))
	assert.True(t, Eval(Gt("age", Int(20)), rec))
	assert.False(t, Eval(Gt("age", Int(30)), rec))
	assert.True(t, Eval(Gte("age", Int(30)), rec))
	assert.True(t, Eval(Lt("age", Int(40)), rec))
	assert.True(t, Eval(Lte("age", Int(30)), rec))
	assert.True(t, Eval(In("age", Int(10), Int(30)), rec))
	assert.False(t, Eval(In("age", Int(10), Int(20)), rec))
}

func TestEval_OrderingAgainstNullIsAlwaysFalse(t *testing.T) {
	rec := Record{Key: "a", Attributes: map[string]Value{}}
	assert.False(t, Eval(Gt("missing", Int(1)), rec))
	assert.False(t, Eval(Lt("missing", Int(1)), rec))
}

func TestEval_AndOrNot(t *testing.T) {
	rec := Record{Key: "a", Attributes: map[string]Value{"x": Int(5), "y": Int(10)}}

	assert.True(t, Eval(And(Gt("x", Int(1)), Gt("y", Int(1))), rec))
	assert.False(t, Eval(And(Gt("x", Int(1)), Gt("y", Int(100))), rec))
	assert.True(t, Eval(Or(Gt("x", Int(100)), Gt("y", Int(1))), rec))
	assert.True(t, Eval(Not(Eq("x", Int(1))), rec))
	assert.False(t, Eval(Not(Eq("x", Int(5))), rec))
}

func TestFields_CollectsNestedFieldNames(t *testing.T) {
	p := And(Eq("a", Int(1)), Or(Gt("b", Int(2)), Not(Lt("c", Int(3)))))
	fields := Fields(p)
	assert.Contains(t, fields, "a")
	assert.Contains(t, fields, "b")
	assert.Contains(t, fields, "c")
	assert.Len(t, fields, 3)
}
