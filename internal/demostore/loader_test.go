package demostore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecordFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "records.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_PopulatesStoreFromJSONLines(t *testing.T) {
	path := writeRecordFile(t,
		`{"key":"a","attributes":{"body":"hello world"}}`,
		`{"key":"b","attributes":{"body":"goodbye"}}`,
	)
	store := New("items")
	require.NoError(t, LoadFile(store, path))
	assert.Equal(t, 2, store.Len())

	rec, ok := store.GetRecord("a")
	require.True(t, ok)
	assert.Equal(t, "hello world", mustString(t, rec.Attributes["body"]))
}

func TestLoadFile_RemovesRecordsDroppedFromFile(t *testing.T) {
	store := New("items")
	store.Put(rec("stale", "old"))

	path := writeRecordFile(t, `{"key":"a","attributes":{"body":"hello"}}`)
	require.NoError(t, LoadFile(store, path))

	_, ok := store.GetRecord("stale")
	assert.False(t, ok)
	_, ok = store.GetRecord("a")
	assert.True(t, ok)
}

func TestLoadFile_RejectsMalformedLine(t *testing.T) {
	path := writeRecordFile(t, `not json`)
	store := New("items")
	err := LoadFile(store, path)
	assert.Error(t, err)
}
