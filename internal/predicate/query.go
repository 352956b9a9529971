package predicate

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SortDirection controls Query.Sort ordering.
type SortDirection int

const (
	SortAscending SortDirection = iota
	SortDescending
)

func (d SortDirection) MarshalJSON() ([]byte, error) {
	if d == SortDescending {
		return json.Marshal("desc")
	}
	return json.Marshal("asc")
}

func (d *SortDirection) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "asc":
		*d = SortAscending
	case "desc":
		*d = SortDescending
	default:
		return fmt.Errorf("predicate: unknown sort direction %q", s)
	}
	return nil
}

// SortKey orders query results by one record field.
type SortKey struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// Query is a standing predicate query: a where-clause, optional sort and
// an optional sliding-window limit.
type Query struct {
	Where Predicate `json:"where"`
	Sort  []SortKey `json:"sort,omitempty"`
	Limit int       `json:"limit,omitempty"` // 0 or negative means unlimited
}

// Fields returns every field the query's where-clause and sort keys
// touch, used to populate the reverse index.
func (q Query) Fields() map[string]struct{} {
	out := Fields(q.Where)
	for _, sk := range q.Sort {
		out[sk.Field] = struct{}{}
	}
	return out
}

// Execute runs q against every record in src, returning matching keys in
// final (sorted, limited) order. This always re-executes in full; it is
// the correctness baseline that sliding-window diffing in diff.go
// refreshes against on every candidate change.
func Execute(q Query, src RecordSource) []string {
	keys := src.Keys()
	matched := make([]Record, 0, len(keys))
	for _, k := range keys {
		rec, ok := src.GetRecord(k)
		if !ok {
			continue
		}
		if Eval(q.Where, rec) {
			matched = append(matched, rec)
		}
	}
	sortRecords(matched, q.Sort)

	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	out := make([]string, len(matched))
	for i, r := range matched {
		out[i] = r.Key
	}
	return out
}

func sortRecords(recs []Record, sortKeys []SortKey) {
	if len(sortKeys) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, sk := range sortKeys {
			a, b := recs[i].Get(sk.Field), recs[j].Get(sk.Field)
			cmp, ok := Compare(a, b)
			if !ok || cmp == 0 {
				continue
			}
			if sk.Direction == SortDescending {
				return cmp > 0
			}
			return cmp < 0
		}
		return recs[i].Key < recs[j].Key
	})
}
