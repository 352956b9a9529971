// Package main provides the livefts-logs command - a log viewer for a
// livefts cluster's node logs.
//
// Usage:
//
//	livefts-logs [flags]
//
// Flags:
//
//	-f, --follow         Follow log output (like tail -f)
//	-n, --lines int      Number of lines to show (default 50)
//	    --level string   Filter by level (debug|info|warn|error)
//	    --filter string  Filter by pattern (regex)
//	    --no-color       Disable colored output
//	    --file string    Custom log file path
//	    --node string    Node ID to view logs for (default: "default")
//	    --nodes strings  Multiple node IDs to merge by timestamp
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvmesh/livefts/internal/logging"
	"github.com/kvmesh/livefts/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		follow  bool
		lines   int
		level   string
		filter  string
		noColor bool
		logFile string
		node    string
		nodes   []string
	)

	cmd := &cobra.Command{
		Use:   "livefts-logs",
		Short: "View livefts node logs",
		Long: `View and tail livefts node logs.

By default, shows the last 50 lines of the "default" node's log. Use -f
to follow new log entries in real-time (like 'tail -f'). A node only
writes a log file once it has been run with --debug.

Examples:
  livefts-logs                         # Show last 50 lines of node "default"
  livefts-logs --node n1               # Show node n1's log
  livefts-logs --nodes n1,n2,n3         # Merge several nodes' logs by timestamp
  livefts-logs --nodes n1,n2,n3 -f      # Follow several nodes' logs in real-time
  livefts-logs -n 100                  # Show last 100 lines
  livefts-logs --level error           # Show only error logs
  livefts-logs --filter "search"       # Filter by pattern`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), logsOptions{
				follow:  follow,
				lines:   lines,
				level:   level,
				filter:  filter,
				noColor: noColor,
				logFile: logFile,
				node:    node,
				nodes:   nodes,
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&filter, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&logFile, "file", "", "Path to log file (overrides --node/--nodes)")
	cmd.Flags().StringVar(&node, "node", "default", "Node ID to view logs for")
	cmd.Flags().StringSliceVar(&nodes, "nodes", nil, "Multiple node IDs to merge by timestamp (overrides --node)")

	return cmd
}

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
	node    string
	nodes   []string
}

func runLogs(ctx context.Context, opts logsOptions) error {
	paths, err := resolvePaths(opts)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	showSource := len(paths) > 1

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:      opts.level,
		Pattern:    pattern,
		NoColor:    opts.noColor,
		ShowSource: showSource,
	}, os.Stdout)

	if len(paths) == 1 {
		fmt.Fprintf(os.Stderr, "Log file: %s\n", paths[0])
	} else {
		fmt.Fprintf(os.Stderr, "Log files: %s\n", strings.Join(paths, ", "))
	}
	if opts.follow {
		fmt.Fprintf(os.Stderr, "Following... (Ctrl+C to stop)\n")
	}
	fmt.Fprintln(os.Stderr, "---")

	if opts.follow {
		if len(paths) == 1 {
			return runFollow(ctx, viewer, paths[0])
		}
		return runFollowMultiple(ctx, viewer, paths)
	}

	var entries []logging.LogEntry
	if len(paths) == 1 {
		entries, err = viewer.Tail(paths[0], opts.lines)
	} else {
		entries, err = viewer.TailMultiple(paths, opts.lines)
	}
	if err != nil {
		return err
	}

	viewer.Print(entries)
	return nil
}

// resolvePaths picks the log file(s) to view: an explicit --file wins
// outright, --nodes merges several node logs, otherwise a single
// --node's log is used.
func resolvePaths(opts logsOptions) ([]string, error) {
	if opts.logFile != "" {
		path, err := logging.FindLogFile(opts.logFile)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	if len(opts.nodes) > 0 {
		paths := logging.FindNodeLogFiles(opts.nodes)
		if len(paths) == 0 {
			return nil, fmt.Errorf("no log files found for nodes %v", opts.nodes)
		}
		return paths, nil
	}

	path, err := logging.FindLogFile(logging.NodeLogPath(opts.node))
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func runFollow(ctx context.Context, viewer *logging.Viewer, path string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			fmt.Println(viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\n---")
			fmt.Fprintln(os.Stderr, "Stopped.")
			return nil
		}
	}
}

func runFollowMultiple(ctx context.Context, viewer *logging.Viewer, paths []string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() {
		errCh <- viewer.FollowMultiple(ctx, paths, entries)
	}()

	for {
		select {
		case entry := <-entries:
			fmt.Println(viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\n---")
			fmt.Fprintln(os.Stderr, "Stopped.")
			return nil
		}
	}
}
