// Package routeconfig loads the WebSocket endpoint registry's route table
// from a JSON file and keeps it in sync with the file on disk, so
// add_endpoint calls are driven by a watched config file instead of being
// hardcoded into the server binary.
package routeconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/flowcast/rtmp-ingest/internal/logger"
	"github.com/flowcast/rtmp-ingest/internal/ws/registry"
)

// Route is one line of the route table file: a path (exact or URI template)
// mapped to buffer sizing hints. Endpoints needing a real Encoder register
// it programmatically after Load/Watch returns; the file only drives path
// registration.
type Route struct {
	Path             string `json:"path"`
	BinaryBufferSize int    `json:"binary_buffer_size"`
	TextBufferSize   int    `json:"text_buffer_size"`
}

// Load reads path, parses it as a JSON array of Route, and registers each
// one against reg. Routes already registered (e.g. from a previous Load) are
// skipped rather than treated as fatal duplicates, since Watch calls Load
// again on every file change.
func Load(path string, reg *registry.Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("routeconfig: read %s: %w", path, err)
	}
	var routes []Route
	if err := json.Unmarshal(data, &routes); err != nil {
		return fmt.Errorf("routeconfig: parse %s: %w", path, err)
	}
	for _, route := range routes {
		err := reg.AddEndpoint(&registry.EndpointConfig{
			Path:             route.Path,
			BinaryBufferSize: route.BinaryBufferSize,
			TextBufferSize:   route.TextBufferSize,
		})
		if err != nil {
			logger.Logger().Warn("routeconfig: endpoint not added", "path", route.Path, "error", err)
		}
	}
	return nil
}

// Watch loads path once, then watches it with fsnotify and reloads on every
// write, logging (not failing) on parse errors so a bad edit doesn't bring
// down the server mid-stream. Watch blocks until stop is closed.
func Watch(path string, reg *registry.Registry, stop <-chan struct{}) error {
	if err := Load(path, reg); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("routeconfig: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("routeconfig: watch %s: %w", path, err)
	}

	log := logger.Logger().With("component", "routeconfig")
	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := Load(path, reg); err != nil {
				log.Error("reload failed", "path", path, "error", err)
			} else {
				log.Info("reloaded route table", "path", path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)
		}
	}
}
