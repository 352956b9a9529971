// Package logging provides opt-in file-based logging with rotation for a
// livefts node. When --debug is set, comprehensive logs are written to
// ~/.livefts/logs/ for debugging and troubleshooting. By default,
// logging is minimal and goes to stderr only.
package logging
