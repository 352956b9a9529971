package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kvmesh/livefts/internal/ftsindex"
	"github.com/kvmesh/livefts/internal/predicate"
	"github.com/kvmesh/livefts/internal/searchlocal"
)

// Daemon keeps one node's search index and subscription registries
// resident in memory and serves them to CLI clients over a Unix socket,
// so repeated searches against the same map don't each pay the cost of
// reloading and reindexing the backing record file.
type Daemon struct {
	cfg    Config
	nodeID string
	node   *searchlocal.Node
	pid    *PIDFile

	mu      sync.Mutex
	server  *Server
	started time.Time
}

// Option configures a Daemon at construction time.
type Option func(*Daemon)

// WithNode attaches the searchlocal.Node a Daemon serves search and
// status requests from. Without one, HandleSearch always fails and
// GetStatus reports no maps indexed.
func WithNode(nodeID string, node *searchlocal.Node) Option {
	return func(d *Daemon) {
		d.nodeID = nodeID
		d.node = node
	}
}

// NewDaemon validates cfg and builds a Daemon ready to Start.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Daemon{cfg: cfg, pid: NewPIDFile(cfg.PIDPath)}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start writes the PID file, opens the socket and serves requests until
// ctx is cancelled. The PID and socket files are removed on return.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pid.Write(); err != nil {
		return err
	}
	defer d.pid.Remove()

	srv, err := NewServer(d.cfg.SocketPath)
	if err != nil {
		return err
	}
	srv.SetHandler(d)

	d.mu.Lock()
	d.server = srv
	d.started = time.Now()
	d.mu.Unlock()

	return srv.ListenAndServe(ctx)
}

// Close stops the server if it's running.
func (d *Daemon) Close() error {
	d.mu.Lock()
	srv := d.server
	d.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

// HandleSearch implements RequestHandler by running a one-shot search
// against the node's bound map.
func (d *Daemon) HandleSearch(ctx context.Context, params SearchParams) (SearchResponse, error) {
	if d.node == nil {
		return SearchResponse{}, fmt.Errorf("no search node configured")
	}
	if !d.node.Search.IsEnabled(params.MapName) {
		return SearchResponse{}, fmt.Errorf("map %q has no search index enabled", params.MapName)
	}

	rows, total, err := d.node.Search.Search(params.MapName, params.Query, ftsindex.SearchOptions{Limit: params.Limit})
	if err != nil {
		return SearchResponse{}, err
	}

	results := make([]SearchResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, SearchResult{
			Key:          r.Key,
			Value:        valueToPlainMap(r.Value),
			Score:        r.Score,
			MatchedTerms: r.MatchedTerms,
		})
	}
	return SearchResponse{Results: results, TotalHits: total}, nil
}

// GetStatus implements RequestHandler.
func (d *Daemon) GetStatus() StatusResult {
	status := StatusResult{NodeID: d.nodeID}
	if d.node != nil {
		status.MapsIndexed = d.node.Search.EnabledMaps()
		status.Subscriptions = d.node.Search.SubscriptionCount() + d.node.Query.Count()
	}
	return status
}

// valueToPlainMap flattens a predicate.Value holding a record's
// attributes into a plain JSON-friendly map, for wire transport to CLI
// clients that have no reason to know about predicate.Value's tagged
// encoding.
func valueToPlainMap(v predicate.Value) map[string]any {
	m, ok := v.AsMap()
	if !ok {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, fv := range m {
		out[k] = valueToPlain(fv)
	}
	return out
}

func valueToPlain(v predicate.Value) any {
	switch v.Kind() {
	case predicate.KindBool:
		b, _ := v.AsBool()
		return b
	case predicate.KindInt:
		i, _ := v.AsInt()
		return i
	case predicate.KindFloat:
		f, _ := v.AsFloat()
		return f
	case predicate.KindString:
		s, _ := v.AsString()
		return s
	case predicate.KindBytes:
		b, _ := v.AsBytes()
		return b
	case predicate.KindList:
		list, _ := v.AsList()
		out := make([]any, len(list))
		for i, lv := range list {
			out[i] = valueToPlain(lv)
		}
		return out
	case predicate.KindMap:
		return valueToPlainMap(v)
	default:
		return nil
	}
}
