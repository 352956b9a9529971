package cluster

// Membership is the cluster membership view, an external collaborator
// owned by whatever gossip or consensus layer tracks cluster nodes. The
// coordinator treats a call to Members() as an immutable snapshot for
// the duration of one operation; membership only changes between calls,
// delivered separately via the MembershipListener callbacks.
type Membership interface {
	// SelfID is this node's own ID.
	SelfID() string
	// Members returns every node ID currently considered part of the
	// cluster, self included.
	Members() []string
}

// MembershipListener receives membership change notifications. A
// coordinator registers itself (or a thin adapter) to react to nodes
// joining and leaving.
type MembershipListener interface {
	OnMemberJoined(nodeID string)
	OnMemberLeft(nodeID string)
}

// Messaging is the cluster transport, an external collaborator
// abstracting whatever point-to-point or broadcast channel nodes use to
// exchange Messages. SendTo targets one node; Broadcast targets every
// other current member.
type Messaging interface {
	SendTo(nodeID string, msg Message) error
	Broadcast(msg Message) error
}
