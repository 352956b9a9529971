package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvmesh/livefts/internal/demostore"
	"github.com/kvmesh/livefts/internal/output"
	"github.com/kvmesh/livefts/internal/predicate"
	"github.com/kvmesh/livefts/internal/searchlocal"
)

type subscribeOptions struct {
	mapName string
	file    string
	eq      []string
}

func newSubscribeCmd() *cobra.Command {
	var opts subscribeOptions

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Run a standing predicate query and print ENTER/UPDATE/LEAVE deltas as the map changes",
		Long: `subscribe loads a JSON-lines record file into an in-memory map,
registers a standing predicate query against it and prints every
ENTER/UPDATE/LEAVE delta the query emits as the watched file changes.
This runs entirely in-process: there is no daemon socket involved, so
it only sees changes made to --file while it is running.

The where-clause is built from one or more --eq field=value flags,
AND-ed together. There is no general expression parser; anything more
than equality requires using the predicate package directly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubscribe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.mapName, "map", "items", "Name of the map to subscribe to")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to a JSON-lines record file (required)")
	cmd.Flags().StringArrayVar(&opts.eq, "eq", nil, "field=value equality clause (repeatable, AND-combined); omit for an unfiltered subscription")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSubscribe(ctx context.Context, cmd *cobra.Command, opts subscribeOptions) error {
	out := output.New(cmd.OutOrStdout())

	where, err := buildWhere(opts.eq)
	if err != nil {
		return err
	}

	store := demostore.New(opts.mapName)
	if err := demostore.LoadFile(store, opts.file); err != nil {
		return fmt.Errorf("failed to load %s: %w", opts.file, err)
	}
	out.Successf("Loaded %d records from %s into map %q", store.Len(), opts.file, opts.mapName)

	node := searchlocal.NewNode(nodeID, newMessaging(), searchlocal.New(searchlocal.DefaultBatchWindow), predicate.NewRegistry())
	node.BindSource(opts.mapName, store)

	sink := stdoutSink{out: out}
	query := predicate.Query{Where: where}

	initial := node.Query.Register(opts.mapName+":cli", opts.mapName, query, store, sink)
	out.Statusf("", "Initial result set: %d keys", len(initial))
	for _, key := range initial {
		out.Statusf("", "  ENTER %s", key)
	}

	store.AddListener(demostore.NewIndexListener(opts.mapName, node, store))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out.Status("", "Watching for changes (Ctrl-C to stop)...")
	if err := demostore.WatchFile(ctx, store, opts.file); err != nil {
		slog.Warn("file watch stopped", slog.String("error", err.Error()))
	}
	return nil
}

// buildWhere AND-combines a list of "field=value" equality clauses into
// a single predicate, defaulting to an always-true wildcard predicate
// (and-of-nothing) when none are given.
func buildWhere(eqFlags []string) (predicate.Predicate, error) {
	clauses := make([]predicate.Predicate, 0, len(eqFlags))
	for _, raw := range eqFlags {
		field, value, ok := strings.Cut(raw, "=")
		if !ok {
			return predicate.Predicate{}, fmt.Errorf("invalid --eq %q, expected field=value", raw)
		}
		clauses = append(clauses, predicate.Eq(field, predicate.FromAny(value)))
	}
	return predicate.And(clauses...), nil
}

type stdoutSink struct {
	out *output.Writer
}

func (s stdoutSink) Emit(d predicate.Delta) {
	s.out.Statusf("", "%s %s", d.Type.String(), d.Key)
}
