package ftsindex

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/golang/snappy"
)

// serializeFormatVersion is bumped whenever the wire shape of snapshot
// changes in an incompatible way. Load rejects any other version.
const serializeFormatVersion = 1

// snapshot is the stable encoding covering the combined InvertedIndex
// only: BM25 parameters, tokenizer parameters,
// postings, ordered doc lengths and totals. Per-field indexes are not
// serialized.
type snapshot struct {
	Version int

	K1 float64
	B  float64

	Lowercase bool
	Stopwords []string
	MinLength int
	MaxLength int

	Postings    map[string]map[string]int
	DocLengths  []DocLen
	TotalDocs   int
	TotalLength int
}

// Serialize persists the combined index (only) into a versioned,
// snappy-compressed blob.
func (f *FullTextIndex) Serialize() ([]byte, error) {
	stopwords := make([]string, 0, len(f.config.TokenizerOptions.Stopwords))
	for w := range f.config.TokenizerOptions.Stopwords {
		stopwords = append(stopwords, w)
	}

	snap := snapshot{
		Version:     serializeFormatVersion,
		K1:          f.config.BM25Params.K1,
		B:           f.config.BM25Params.B,
		Lowercase:   f.config.TokenizerOptions.Lowercase,
		Stopwords:   stopwords,
		MinLength:   f.config.TokenizerOptions.MinLength,
		MaxLength:   f.config.TokenizerOptions.MaxLength,
		Postings:    f.combined.postings,
		DocLengths:  f.combined.DocLengthsInOrder(),
		TotalDocs:   f.combined.totalDocs,
		TotalLength: f.combined.totalLength,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, fmt.Errorf("ftsindex: encode snapshot: %w", err)
	}
	return snappy.Encode(nil, buf.Bytes()), nil
}

// Load rebuilds the combined index from data produced by Serialize.
// Per-field indexes are re-initialized empty (boosting requires a
// rebuild from source) and the document-token cache is cleared.
// Incompatible versions are rejected.
func Load(data []byte, fields []string, stemmer stemmerFn) (*FullTextIndex, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("ftsindex: decompress snapshot: %w", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("ftsindex: decode snapshot: %w", err)
	}
	if snap.Version != serializeFormatVersion {
		return nil, fmt.Errorf("ftsindex: unsupported snapshot version %d (want %d)", snap.Version, serializeFormatVersion)
	}

	config := DefaultFullTextIndexConfig(fields)
	config.BM25Params = BM25Params{K1: snap.K1, B: snap.B}
	config.TokenizerOptions.Lowercase = snap.Lowercase
	config.TokenizerOptions.MinLength = snap.MinLength
	config.TokenizerOptions.MaxLength = snap.MaxLength
	config.TokenizerOptions.Stopwords = make(map[string]struct{}, len(snap.Stopwords))
	for _, w := range snap.Stopwords {
		config.TokenizerOptions.Stopwords[w] = struct{}{}
	}
	if stemmer != nil {
		config.TokenizerOptions.Stemmer = stemmer
	}

	fti := New(config)
	combined := fti.combined
	combined.postings = make(map[string]map[string]int, len(snap.Postings))
	for term, bucket := range snap.Postings {
		copied := make(map[string]int, len(bucket))
		for doc, tf := range bucket {
			copied[doc] = tf
		}
		combined.postings[term] = copied
		bm := combinedBitmapFromPostings(combined, term, bucket)
		combined.present[term] = bm
	}
	combined.docLengths = make(map[string]int, len(snap.DocLengths))
	combined.docOrderList = make([]string, 0, len(snap.DocLengths))
	for _, dl := range snap.DocLengths {
		combined.docLengths[dl.ID] = dl.Length
		combined.docOrderList = append(combined.docOrderList, dl.ID)
		num := combined.order.numberFor(dl.ID)
		fti.indexedDocs.Add(num)
	}
	combined.totalDocs = snap.TotalDocs
	combined.totalLength = snap.TotalLength

	return fti, nil
}

type stemmerFn = func(string) string

func combinedBitmapFromPostings(idx *InvertedIndex, term string, bucket map[string]int) *roaring.Bitmap {
	bm := roaring.New()
	for doc := range bucket {
		bm.Add(idx.order.numberFor(doc))
	}
	return bm
}
