package demostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvmesh/livefts/internal/predicate"
)

func rec(key, body string) predicate.Record {
	return predicate.Record{Key: key, Attributes: map[string]predicate.Value{"body": predicate.String(body)}}
}

type recordedCall struct {
	kind string // "set" or "remove"
	key  string
	old  *predicate.Record
}

type recordingListener struct{ calls []recordedCall }

func (l *recordingListener) OnSet(mapName, key string, r predicate.Record, old *predicate.Record) {
	l.calls = append(l.calls, recordedCall{kind: "set", key: key, old: old})
}

func (l *recordingListener) OnRemove(mapName, key string, old predicate.Record) {
	l.calls = append(l.calls, recordedCall{kind: "remove", key: key, old: &old})
}

func TestStore_PutNotifiesListenersWithNilOldOnFreshInsert(t *testing.T) {
	s := New("items")
	l := &recordingListener{}
	s.AddListener(l)

	s.Put(rec("a", "hello"))

	require.Len(t, l.calls, 1)
	assert.Equal(t, "set", l.calls[0].kind)
	assert.Nil(t, l.calls[0].old)
}

func TestStore_PutNotifiesListenersWithOldOnReplace(t *testing.T) {
	s := New("items")
	s.Put(rec("a", "hello"))

	l := &recordingListener{}
	s.AddListener(l)
	s.Put(rec("a", "goodbye"))

	require.Len(t, l.calls, 1)
	require.NotNil(t, l.calls[0].old)
	assert.Equal(t, "hello", mustString(t, l.calls[0].old.Attributes["body"]))
}

func TestStore_DeleteIsNoopWhenKeyAbsent(t *testing.T) {
	s := New("items")
	l := &recordingListener{}
	s.AddListener(l)

	s.Delete("missing")

	assert.Empty(t, l.calls)
}

func TestStore_DeleteNotifiesWithRemovedRecord(t *testing.T) {
	s := New("items")
	s.Put(rec("a", "hello"))

	l := &recordingListener{}
	s.AddListener(l)
	s.Delete("a")

	require.Len(t, l.calls, 1)
	assert.Equal(t, "remove", l.calls[0].kind)
	require.NotNil(t, l.calls[0].old)
	assert.Equal(t, "hello", mustString(t, l.calls[0].old.Attributes["body"]))
}

func TestStore_KeysAndGetRecordSatisfyRecordSource(t *testing.T) {
	s := New("items")
	s.Put(rec("a", "hello"))
	s.Put(rec("b", "world"))

	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())

	r, ok := s.GetRecord("a")
	require.True(t, ok)
	assert.Equal(t, "hello", mustString(t, r.Attributes["body"]))

	_, ok = s.GetRecord("missing")
	assert.False(t, ok)
}

func TestStore_Len(t *testing.T) {
	s := New("items")
	assert.Equal(t, 0, s.Len())
	s.Put(rec("a", "hello"))
	assert.Equal(t, 1, s.Len())
	s.Delete("a")
	assert.Equal(t, 0, s.Len())
}

func mustString(t *testing.T, v predicate.Value) string {
	t.Helper()
	s, ok := v.AsString()
	require.True(t, ok)
	return s
}
