package ftsindex

// Document is an external map entry: a stable string key and a mapping
// from field name to value. Only string-valued fields are tokenized;
// numeric/boolean/binary fields are ignored by full-text search.
type Document map[string]any

// StringFields returns doc's fields whose value is a string, restricted
// to fields when fields is non-empty.
func (d Document) StringFields(fields []string) map[string]string {
	out := make(map[string]string)
	if len(fields) == 0 {
		for k, v := range d {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	for _, f := range fields {
		if s, ok := d[f].(string); ok {
			out[f] = s
		}
	}
	return out
}

// SearchOptions configures FullTextIndex.Search.
type SearchOptions struct {
	// Limit caps the number of returned results. Zero or negative means
	// no limit is applied beyond ranking.
	Limit int

	// MinScore drops results scoring strictly below this threshold; a
	// result scoring exactly MinScore is kept. Zero keeps every match.
	MinScore float64

	// Boost maps field name to a multiplier (default 1.0) applied to
	// that field's score before summing per document. When non-empty,
	// scoring happens per field instead of against the combined index.
	Boost map[string]float64
}
