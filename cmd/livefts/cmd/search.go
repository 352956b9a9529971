package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kvmesh/livefts/internal/config"
	"github.com/kvmesh/livefts/internal/daemon"
	"github.com/kvmesh/livefts/internal/demostore"
	"github.com/kvmesh/livefts/internal/ftsindex"
	"github.com/kvmesh/livefts/internal/output"
	"github.com/kvmesh/livefts/internal/searchlocal"
)

type searchOptions struct {
	mapName string
	file    string
	fields  []string
	limit   int
	format  string
	local   bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot full-text search against a map",
		Long: `search runs a BM25-ranked full-text search. If a node for the
current --node is already running 'livefts serve', the query is sent to
it over the daemon socket; otherwise (or with --local) the record file
is loaded and indexed for this one invocation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.mapName, "map", "items", "Name of the map to search")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to a JSON-lines record file, for local/fallback search")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "Fields to index, for local/fallback search")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Force local search, bypassing the daemon")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	daemonCfg := daemon.NodeConfig(nodeID)
	client := daemon.NewClient(daemonCfg)
	if !opts.local && client.IsRunning() {
		resp, err := client.Search(ctx, daemon.SearchParams{MapName: opts.mapName, Query: query, Limit: opts.limit})
		if err != nil {
			slog.Warn("daemon search failed, falling back to local", slog.String("error", err.Error()))
		} else {
			return formatDaemonResults(cmd, out, query, resp, opts.format)
		}
	}

	if opts.file == "" {
		return fmt.Errorf("no daemon running for node %q and --file not given for local search", nodeID)
	}
	return runLocalSearch(cmd, out, query, opts)
}

func runLocalSearch(cmd *cobra.Command, out *output.Writer, query string, opts searchOptions) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store := demostore.New(opts.mapName)
	if err := demostore.LoadFile(store, opts.file); err != nil {
		return fmt.Errorf("failed to load %s: %w", opts.file, err)
	}

	coord := searchlocal.New(searchlocal.DefaultBatchWindow)
	coord.EnableSearchWithConfig(opts.mapName, indexConfig(cfg, opts.fields), store)

	rows, total, err := coord.Search(opts.mapName, query, ftsindex.SearchOptions{Limit: opts.limit})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	resp := daemon.SearchResponse{TotalHits: total}
	for _, r := range rows {
		m, _ := r.Value.AsMap()
		value := make(map[string]any, len(m))
		for k, v := range m {
			s, _ := v.AsString()
			value[k] = s
		}
		resp.Results = append(resp.Results, daemon.SearchResult{Key: r.Key, Value: value, Score: r.Score, MatchedTerms: r.MatchedTerms})
	}

	return formatDaemonResults(cmd, out, query, resp, opts.format)
}

func formatDaemonResults(cmd *cobra.Command, out *output.Writer, query string, resp daemon.SearchResponse, format string) error {
	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	out.Statusf("", "Found %d results (showing %d) for %q:", resp.TotalHits, len(resp.Results), query)
	out.Newline()
	for i, r := range resp.Results {
		out.Statusf("", "%d. %s (score: %.3f)", i+1, r.Key, r.Score)
		if len(r.MatchedTerms) > 0 {
			out.Status("", "   matched: "+strings.Join(r.MatchedTerms, ", "))
		}
	}
	return nil
}
