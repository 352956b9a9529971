package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kvmesh/livefts/internal/cluster"
	"github.com/kvmesh/livefts/internal/config"
	"github.com/kvmesh/livefts/internal/daemon"
	"github.com/kvmesh/livefts/internal/demostore"
	"github.com/kvmesh/livefts/internal/ftsindex"
	"github.com/kvmesh/livefts/internal/output"
	"github.com/kvmesh/livefts/internal/predicate"
	"github.com/kvmesh/livefts/internal/progress"
	"github.com/kvmesh/livefts/internal/searchlocal"
	"github.com/kvmesh/livefts/internal/tokenize"
)

// loopbackMessaging is a cluster.Messaging that never leaves the
// process, for a node running standalone (no peers to forward
// distributed-subscription deltas to). A real deployment wires
// cluster.Messaging to a network transport instead, wrapped the same
// way in cluster.ResilientMessaging so a flaky peer degrades instead of
// blocking every delta.
type loopbackMessaging struct{}

func (loopbackMessaging) SendTo(string, cluster.Message) error { return nil }
func (loopbackMessaging) Broadcast(cluster.Message) error      { return nil }

func newMessaging() cluster.Messaging {
	return cluster.NewResilientMessaging(loopbackMessaging{})
}

type serveOptions struct {
	mapName string
	file    string
	fields  []string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node, keeping a map's full-text index resident and serving search over a Unix socket",
		Long: `serve loads a JSON-lines record file into an in-memory map, builds
a full-text index over it, and listens on a per-node Unix socket so
'livefts search' can query it without reloading the file on every
invocation. The file is watched and the index kept current for as long
as serve runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.mapName, "map", "items", "Name of the map to serve")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to a JSON-lines record file (required)")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "Fields to index for full-text search (default: all string fields)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	reporter := progress.NewReporter(out)

	store := demostore.New(opts.mapName)
	if err := demostore.LoadFileReporting(store, opts.file, func(done, total int) {
		reporter.Update(progress.StageLoading, done, total)
	}); err != nil {
		return fmt.Errorf("failed to load %s: %w", opts.file, err)
	}
	out.Successf("Loaded %d records from %s into map %q", store.Len(), opts.file, opts.mapName)

	indexStart := time.Now()
	search := searchlocal.New(searchlocal.DefaultBatchWindow)
	search.EnableSearchWithProgress(opts.mapName, indexConfig(cfg, opts.fields), store, func(done, total int) {
		reporter.Update(progress.StageIndexing, done, total)
	})
	reporter.Complete(progress.CompletionStats{Records: store.Len(), Duration: time.Since(indexStart)})

	node := searchlocal.NewNode(nodeID, newMessaging(), search, predicate.NewRegistry())
	node.BindSource(opts.mapName, store)
	store.AddListener(demostore.NewIndexListener(opts.mapName, node, store))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := demostore.WatchFile(ctx, store, opts.file); err != nil {
			slog.Warn("file watch stopped", slog.String("error", err.Error()))
		}
	}()

	daemonCfg := daemon.NodeConfig(nodeID)
	d, err := daemon.NewDaemon(daemonCfg, daemon.WithNode(nodeID, node))
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	out.Successf("Serving map %q (fields: %s) on node %q at %s", opts.mapName, fieldsOrAll(opts.fields), nodeID, daemonCfg.SocketPath)
	return d.Start(ctx)
}

func fieldsOrAll(fields []string) string {
	if len(fields) == 0 {
		return "all"
	}
	return strings.Join(fields, ",")
}

// indexConfig translates a loaded config.Config's tokenizer and BM25
// sections into the ftsindex config a Coordinator needs, so a
// livefts.yaml in the working directory actually governs tokenization
// and ranking instead of the index silently using spec defaults.
func indexConfig(cfg *config.Config, fields []string) ftsindex.FullTextIndexConfig {
	opts := tokenize.DefaultOptions()
	opts.Lowercase = cfg.Tokenizer.Lowercase
	opts.MinLength = cfg.Tokenizer.MinLength
	opts.MaxLength = cfg.Tokenizer.MaxLength
	if len(cfg.Tokenizer.Stopwords) > 0 {
		opts.Stopwords = tokenize.StopwordSet(cfg.Tokenizer.Stopwords)
	}
	if cfg.Tokenizer.Stemmer == "none" {
		opts.Stemmer = nil
	}

	return ftsindex.FullTextIndexConfig{
		Fields:           fields,
		TokenizerOptions: opts,
		BM25Params:       ftsindex.BM25Params{K1: cfg.BM25.K1, B: cfg.BM25.B},
	}
}
