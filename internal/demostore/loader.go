package demostore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/kvmesh/livefts/internal/predicate"
)

// rawRecord is one line of a record file: a key plus its attributes as
// plain JSON values, converted to predicate.Value on load.
type rawRecord struct {
	Key        string         `json:"key"`
	Attributes map[string]any `json:"attributes"`
}

// LoadFile replaces store's contents with the records decoded from a
// JSON-lines file at path (one rawRecord object per line). Existing
// records not present in the file are removed; each add, change, or
// removal fires the store's normal listener notifications, so a running
// search or query subscription sees the load as a burst of diffs rather
// than silently swapping state underneath it.
func LoadFile(store *Store, path string) error {
	return LoadFileReporting(store, path, nil)
}

// LoadFileReporting is LoadFile with an optional report callback invoked
// after every applied record (report(done, total)), for a command that
// wants to show load progress on a large record file.
func LoadFileReporting(store *Store, path string, report func(done, total int)) error {
	records, err := decodeFile(path)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		seen[rec.Key] = true
		store.Put(rec)
		if report != nil {
			report(i+1, len(records))
		}
	}
	for _, key := range store.Keys() {
		if !seen[key] {
			store.Delete(key)
		}
	}
	return nil
}

func decodeFile(path string) ([]predicate.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var records []predicate.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if len(text) == 0 {
			continue
		}
		var raw rawRecord
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid record: %w", path, line, err)
		}
		attrs := make(map[string]predicate.Value, len(raw.Attributes))
		for k, v := range raw.Attributes {
			attrs[k] = predicate.FromAny(v)
		}
		records = append(records, predicate.Record{Key: raw.Key, Attributes: attrs})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read record file %s: %w", path, err)
	}
	return records, nil
}

// WatchFile reloads store from path every time the file is written,
// using fsnotify as the teacher's file watcher does, and runs until ctx
// is done. Reload errors are logged and otherwise ignored: a transient
// partial write (the editor still mid-save) should not crash the demo.
func WatchFile(ctx context.Context, store *Store, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := LoadFile(store, path); err != nil {
				slog.Warn("reload_failed", slog.String("path", path), slog.String("error", err.Error()))
			} else {
				slog.Info("reloaded", slog.String("path", path), slog.Int("records", store.Len()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}
