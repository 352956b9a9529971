package searchlocal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvmesh/livefts/internal/cluster"
	"github.com/kvmesh/livefts/internal/predicate"
)

type recordingMessaging struct {
	sent []cluster.Message
}

func (m *recordingMessaging) SendTo(nodeID string, msg cluster.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}
func (m *recordingMessaging) Broadcast(msg cluster.Message) error { return nil }

func TestNode_RegisterSearchForwardsLiveUpdatesToCoordinator(t *testing.T) {
	messaging := &recordingMessaging{}
	node := NewNode("n1", messaging, New(5*time.Millisecond), predicate.NewRegistry())

	src := newSourceWith(rec("a", "the quick brown fox"))
	node.Search.EnableSearch("articles", []string{"body"}, src)

	results, _, err := node.RegisterSearch("sub1", "articles", "fox", cluster.SearchOptions{Limit: 10}, "n2")
	require.NoError(t, err)
	require.Len(t, results, 1)

	newRec := rec("b", "another fox sighting")
	src.Set(newRec)
	node.Search.SetDocument("articles", "b", newRec)

	require.Eventually(t, func() bool { return len(messaging.sent) > 0 }, time.Second, 5*time.Millisecond)
	payload := messaging.sent[0].Payload.(cluster.UpdatePayload)
	assert.Equal(t, "b", payload.Key)
	assert.Equal(t, cluster.ChangeEnter, payload.ChangeType)
	assert.Equal(t, "n1", payload.SourceNodeID)
}

func TestNode_RegisterQueryForwardsLiveUpdatesToCoordinator(t *testing.T) {
	messaging := &recordingMessaging{}
	node := NewNode("n1", messaging, New(5*time.Millisecond), predicate.NewRegistry())

	src := newSourceWith(rec("a", "hello"))
	node.BindSource("items", src)

	q := predicate.Query{Where: predicate.Predicate{Op: predicate.OpEq, Field: "body", Value: predicate.String("hello")}}
	_, err := node.RegisterQuery("sub1", "items", q, "n2")
	require.NoError(t, err)

	newRec := rec("b", "hello")
	src.Set(newRec)
	node.Query.ProcessChange("items", src, "b", &newRec, nil)

	require.Eventually(t, func() bool { return len(messaging.sent) > 0 }, time.Second, 5*time.Millisecond)
	payload := messaging.sent[0].Payload.(cluster.UpdatePayload)
	assert.Equal(t, "b", payload.Key)
}
