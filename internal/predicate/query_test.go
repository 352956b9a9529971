package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecute_FiltersSortsAndLimits(t *testing.T) {
	src := NewMapRecordSource(map[string]Record{
		"a": scoreRecord("a", 10),
		"b": scoreRecord("b", 30),
		"c": scoreRecord("c", 20),
	})
	q := Query{Sort: []SortKey{{Field: "score", Direction: SortDescending}}, Limit: 2}
	assert.Equal(t, []string{"b", "c"}, Execute(q, src))
}

func TestExecute_ZeroOrNegativeLimitMeansUnlimited(t *testing.T) {
	src := NewMapRecordSource(map[string]Record{
		"a": scoreRecord("a", 1),
		"b": scoreRecord("b", 2),
	})
	q := Query{Limit: 0}
	assert.Len(t, Execute(q, src), 2)

	q.Limit = -5
	assert.Len(t, Execute(q, src), 2)
}

func TestExecute_TieBreaksByKey(t *testing.T) {
	src := NewMapRecordSource(map[string]Record{
		"z": scoreRecord("z", 10),
		"a": scoreRecord("a", 10),
	})
	q := Query{Sort: []SortKey{{Field: "score", Direction: SortAscending}}}
	assert.Equal(t, []string{"a", "z"}, Execute(q, src))
}

func TestQuery_FieldsCollectsWhereAndSort(t *testing.T) {
	q := Query{
		Where: Eq("status", String("active")),
		Sort:  []SortKey{{Field: "createdAt"}},
	}
	fields := q.Fields()
	assert.Contains(t, fields, "status")
	assert.Contains(t, fields, "createdAt")
}
