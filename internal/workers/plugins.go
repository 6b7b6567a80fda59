package workers

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/loomshell/loom/internal/engine"
	"github.com/loomshell/loom/internal/intent"
	"github.com/loomshell/loom/internal/plugin"
)

// PluginLoader scans a plugin directory and converts the resolved
// activation order into structural intents. With watching enabled it
// rescans on manifest changes and enqueues only the delta: plugins whose
// activation state (version or failure reason) changed since the last
// scan.
//
// Activation intents are durable: the activated set is part of the
// persisted model and must not be lost to a full queue.
type PluginLoader struct {
	queue *engine.Queue
	dir   string
	watch bool

	// last scan's outcome per plugin name, "" keyed by failure path for
	// manifests that never parsed far enough to have a name.
	activated map[string]string
	failed    map[string]string
}

// NewPluginLoader creates a loader over dir. With watch set, Run keeps
// watching the directory after the initial scan.
func NewPluginLoader(q *engine.Queue, dir string, watch bool) *PluginLoader {
	return &PluginLoader{
		queue:     q,
		dir:       dir,
		watch:     watch,
		activated: make(map[string]string),
		failed:    make(map[string]string),
	}
}

// Run performs the initial scan, then (if watching) follows directory
// events until the context is cancelled.
func (l *PluginLoader) Run(ctx context.Context) error {
	if err := l.Scan(ctx); err != nil {
		return err
	}
	if !l.watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("plugin watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !plugin.IsManifestFile(ev.Name) {
				continue
			}
			if err := l.Scan(ctx); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("plugin watcher: %w", err)
		}
	}
}

// Scan rescans the directory and enqueues intents for every plugin whose
// state changed. Exported for tests and for forced rescans.
func (l *PluginLoader) Scan(ctx context.Context) error {
	manifests, scanFailures := plugin.ScanDir(l.dir)
	order, resolveFailures := plugin.Resolve(manifests)

	activated := make(map[string]string, len(order))
	failed := make(map[string]string, len(scanFailures)+len(resolveFailures))

	// Failures keep activation order intact for the rest: emit them
	// first so diagnostics show why a dependent never activated.
	for _, f := range append(scanFailures, resolveFailures...) {
		key := f.Name
		if key == "" {
			key = f.Path
		}
		failed[key] = f.Reason
		if l.failed[key] == f.Reason {
			continue
		}
		in := intent.Intent{
			Kind:   intent.KindPluginLoadFailed,
			Plugin: key,
			Reason: f.Reason,
		}
		if err := l.queue.EnqueueDurable(ctx, in, intent.SourcePluginLoader); err != nil {
			return err
		}
	}

	for _, m := range order {
		activated[m.Name] = m.Version
		if l.activated[m.Name] == m.Version {
			continue
		}
		in := intent.Intent{
			Kind:   intent.KindPluginActivated,
			Plugin: m.Name,
		}
		if err := l.queue.EnqueueDurable(ctx, in, intent.SourcePluginLoader); err != nil {
			return err
		}
	}

	l.activated = activated
	l.failed = failed
	return nil
}
