package demostore

import (
	"github.com/kvmesh/livefts/internal/predicate"
	"github.com/kvmesh/livefts/internal/searchlocal"
)

// IndexListener implements ChangeListener by driving a searchlocal.Node's
// full-text index and predicate-query registry off a Store's mutations,
// the same write path a real map implementation would wire its storage
// engine through.
type IndexListener struct {
	mapName string
	node    *searchlocal.Node
	source  predicate.RecordSource
}

// NewIndexListener builds a listener that keeps node's SEARCH index and
// QUERY registry for mapName in sync with source.
func NewIndexListener(mapName string, node *searchlocal.Node, source predicate.RecordSource) *IndexListener {
	return &IndexListener{mapName: mapName, node: node, source: source}
}

// OnSet implements ChangeListener.
func (l *IndexListener) OnSet(mapName, key string, rec predicate.Record, old *predicate.Record) {
	if l.node.Search.IsEnabled(mapName) {
		l.node.Search.SetDocument(mapName, key, rec)
	}
	l.node.Query.ProcessChange(mapName, l.source, key, &rec, old)
}

// OnRemove implements ChangeListener.
func (l *IndexListener) OnRemove(mapName, key string, old predicate.Record) {
	if l.node.Search.IsEnabled(mapName) {
		l.node.Search.RemoveDocument(mapName, key)
	}
	l.node.Query.ProcessChange(mapName, l.source, key, nil, &old)
}
