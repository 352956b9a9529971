package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.livefts/logs/).
// Falls back to the OS temp directory if the home directory is
// unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".livefts", "logs")
	}
	return filepath.Join(home, ".livefts", "logs")
}

// DefaultLogPath returns the default log path for the local node.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "node.log")
}

// NodeLogPath returns the log path for a named cluster node, so a single
// operator machine can hold one rotating log per node it runs.
func NodeLogPath(nodeID string) string {
	return filepath.Join(DefaultLogDir(), nodeID+".log")
}

// FindLogFile locates the log file to view.
// Priority: an explicit path, then the default node log path.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found. The node may not have run with --debug yet.\nExpected at: %s", path)
}

// FindNodeLogFiles resolves the log file for each of the given node IDs,
// skipping nodes whose log file does not exist yet.
func FindNodeLogFiles(nodeIDs []string) []string {
	var paths []string
	for _, id := range nodeIDs {
		path := NodeLogPath(id)
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
	}
	return paths
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}
