// Command livefts is the CLI for running and querying a livefts node:
// a replicated map with live full-text search and predicate-query
// subscriptions layered on top.
package main

import (
	"fmt"
	"os"

	"github.com/kvmesh/livefts/cmd/livefts/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
