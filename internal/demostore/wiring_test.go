package demostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvmesh/livefts/internal/cluster"
	"github.com/kvmesh/livefts/internal/ftsindex"
	"github.com/kvmesh/livefts/internal/predicate"
	"github.com/kvmesh/livefts/internal/searchlocal"
)

type noopMessaging struct{}

func (noopMessaging) SendTo(nodeID string, msg cluster.Message) error { return nil }
func (noopMessaging) Broadcast(msg cluster.Message) error             { return nil }

type capturingMessaging struct{ sent []cluster.Message }

func (m *capturingMessaging) SendTo(nodeID string, msg cluster.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}
func (m *capturingMessaging) Broadcast(msg cluster.Message) error { return nil }

func TestIndexListener_OnSetIndexesNewDocumentForSearch(t *testing.T) {
	store := New("articles")
	node := searchlocal.NewNode("n1", noopMessaging{}, searchlocal.New(5*time.Millisecond), predicate.NewRegistry())
	node.Search.EnableSearch("articles", []string{"body"}, store)
	store.AddListener(NewIndexListener("articles", node, store))

	store.Put(rec("a", "the quick brown fox"))

	rows, total, err := node.Search.Search("articles", "fox", ftsindex.SearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Key)
}

func TestIndexListener_OnRemoveDropsDocumentFromSearch(t *testing.T) {
	store := New("articles")
	node := searchlocal.NewNode("n1", noopMessaging{}, searchlocal.New(5*time.Millisecond), predicate.NewRegistry())
	node.Search.EnableSearch("articles", []string{"body"}, store)
	store.AddListener(NewIndexListener("articles", node, store))

	store.Put(rec("a", "the quick brown fox"))
	store.Delete("a")

	_, total, err := node.Search.Search("articles", "fox", ftsindex.SearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestIndexListener_OnSetDrivesQuerySubscriptionUpdates(t *testing.T) {
	store := New("items")
	messaging := &capturingMessaging{}
	node := searchlocal.NewNode("n1", messaging, searchlocal.New(5*time.Millisecond), predicate.NewRegistry())
	node.BindSource("items", store)
	store.AddListener(NewIndexListener("items", node, store))

	store.Put(rec("a", "hello"))

	q := predicate.Query{Where: predicate.Predicate{Op: predicate.OpEq, Field: "body", Value: predicate.String("hello")}}
	results, err := node.RegisterQuery("sub1", "items", q, "n1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Key)

	store.Put(rec("b", "hello"))
	store.Put(rec("a", "goodbye"))

	require.Len(t, messaging.sent, 2)
	enter, ok := messaging.sent[0].Payload.(cluster.UpdatePayload)
	require.True(t, ok)
	assert.Equal(t, "b", enter.Key)
	assert.Equal(t, cluster.ChangeEnter, enter.ChangeType)
	leave, ok := messaging.sent[1].Payload.(cluster.UpdatePayload)
	require.True(t, ok)
	assert.Equal(t, "a", leave.Key)
	assert.Equal(t, cluster.ChangeLeave, leave.ChangeType)
}
