package assemble

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/chazu/usdassemble/pkg/asset"
)

// DefaultDebounce is how long the watcher waits for a burst of changes to
// settle before rebuilding.
const DefaultDebounce = 300 * time.Millisecond

// Watcher rebuilds an asset whenever its inputs change.
type Watcher struct {
	Builder  *Builder
	Debounce time.Duration
	Logger   *zap.Logger
	// OnBuild, when set, receives the outcome of every build.
	OnBuild func(*Report, error)
}

// Run builds root once, then again after every settled burst of relevant
// changes, until ctx is done. Build failures are reported and do not stop
// the watcher.
func (w *Watcher) Run(ctx context.Context, root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("assemble: watch: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("assemble: watch: %w", err)
	}
	defer fsw.Close()

	if err := addTree(fsw, root); err != nil {
		return err
	}

	log := w.logger().With(zap.String("root", root))
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w.build(ctx, root)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !Relevant(root, ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := addTree(fsw, ev.Name); err != nil {
						log.Warn("cannot watch new directory", zap.String("path", ev.Name), zap.Error(err))
					}
				}
			}
			log.Debug("change detected", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			w.build(ctx, root)
		}
	}
}

func (w *Watcher) build(ctx context.Context, root string) {
	report, err := w.Builder.Build(ctx, root, false)
	if err != nil {
		w.logger().Error("build failed", zap.String("root", root), zap.Error(err))
	}
	if w.OnBuild != nil {
		w.OnBuild(report, err)
	}
}

func (w *Watcher) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

// addTree watches dir and every visible directory below it.
func addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("assemble: watch %s: %w", p, err)
		}
		return nil
	})
}

// Relevant reports whether a change at path can alter the scan of root:
// containers, component directories, geometry files and anything under a
// textures directory. Generated documents, temporary files and hidden
// entries are not.
func Relevant(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range parts {
		if strings.HasPrefix(p, ".") || strings.Contains(p, ".temp.") {
			return false
		}
	}
	switch {
	case len(parts) == 1:
		_, ok := asset.ComponentTypeFromDirectory(parts[0])
		return ok
	case len(parts) == 2:
		return true
	case parts[2] == asset.TexturesDirName:
		return true
	default:
		return len(parts) == 3 && parts[2] == asset.GeometryFileName(parts[1])
	}
}
