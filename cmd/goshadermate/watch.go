package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/richinsley/goshadermate/renderer"
)

// watch renders until the window closes, rebuilding the pipeline when one
// of the project files changes. A rebuild that fails keeps the running
// pipeline.
func (v *viewer) watch(ctx context.Context, pr *project) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range pr.files {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		files[abs] = true
		// editors often replace files on save, so watch directories
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			dirs[dir] = true
			if err := watcher.Add(dir); err != nil {
				slog.Warn("cannot watch directory", "path", dir, "error", err)
			}
		}
	}

	changed := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !files[filepath.Clean(event.Name)] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					select {
					case changed <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("file watcher error", "error", err)
			}
		}
	}()

	for !v.canvas.ShouldClose() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		select {
		case <-changed:
			v.reload(ctx)
		default:
		}
		if v.pipeline.Usable() {
			if err := v.pipeline.RenderFrame(v.canvas.Time()); err != nil {
				slog.Error("frame failed", "error", err)
			}
		}
		v.canvas.EndFrame()
	}
	v.pipeline.Stop()
	return nil
}

func (v *viewer) reload(ctx context.Context) {
	pr, err := loadProject(v.flags)
	if err != nil {
		slog.Error("reload failed", "error", err)
		return
	}
	next, err := renderer.Start(ctx, pr.passes, v.flags.options(pr, v.canvas, v.dev))
	if err != nil {
		slog.Error("rebuild failed; keeping the running pipeline", "error", err)
		if next != nil {
			next.Dispose()
		}
		return
	}
	prev := v.pipeline
	if prev.Usable() {
		next.SetTime(prev.Clock().Time)
	}
	v.pipeline = next
	prev.Dispose()
	slog.Info("pipeline rebuilt", "passes", len(next.Passes()))
}
