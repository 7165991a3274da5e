package capture

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/offlinefirst/activity-recorder/pkg/capability"
	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// DefaultRenameWindow bounds how long a rename waits for the matching
// create that carries its destination.
const DefaultRenameWindow = 250 * time.Millisecond

// FileOptions configure the filesystem source.
type FileOptions struct {
	Roots []string
	// Exclude lists directories whose contents are never reported, normally
	// the recorder's own data directory.
	Exclude      []string
	Filter       PathFilter
	RenameWindow time.Duration
}

// DefaultWatchRoots returns the user's Desktop, Documents and Downloads
// folders plus installDir, skipping any that do not exist.
func DefaultWatchRoots(home, installDir string) []string {
	candidates := []string{
		filepath.Join(home, "Desktop"),
		filepath.Join(home, "Documents"),
		filepath.Join(home, "Downloads"),
	}
	if installDir != "" {
		candidates = append(candidates, installDir)
	}
	roots := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			roots = append(roots, c)
		}
	}
	return roots
}

// Files reports created, modified, deleted and moved files under the
// configured roots.
type Files struct {
	opts FileOptions
	env  Env
}

// NewFiles returns a filesystem source.
func NewFiles(opts FileOptions, env Env) *Files {
	if opts.RenameWindow <= 0 {
		opts.RenameWindow = DefaultRenameWindow
	}
	for i, ex := range opts.Exclude {
		opts.Exclude[i] = filepath.Clean(ex)
	}
	return &Files{opts: opts, env: env.withDefaults()}
}

func (f *Files) Name() string { return "files" }

func (f *Files) Modalities() []event.Modality { return []event.Modality{event.ModalityFileChange} }

func (f *Files) Requires() []capability.Name { return []capability.Name{capability.Filesystem} }

type pendingRename struct {
	path string
	at   time.Time
}

func (f *Files) Run(ctx context.Context, emit Emitter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return unavailable(capability.Filesystem, err)
	}
	defer watcher.Close()

	watched := 0
	for _, root := range f.opts.Roots {
		watched += f.addTree(watcher, root)
	}
	if len(f.opts.Roots) > 0 && watched == 0 {
		return unavailable(capability.Filesystem, errors.New("no watch root could be added"))
	}
	f.env.Logger.Info("watching filesystem", zap.Strings("roots", f.opts.Roots), zap.Int("directories", watched))

	var (
		pending *pendingRename
		expiry  <-chan time.Time
		timer   *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	flushRename := func(ctx context.Context) error {
		if pending == nil {
			return nil
		}
		p := pending
		pending, expiry = nil, nil
		return f.env.emit(ctx, emit, p.at, event.FileChange{Action: event.FileMoved, Path: p.path})
	}

	for {
		select {
		case <-ctx.Done():
			if err := flushRename(context.WithoutCancel(ctx)); err != nil {
				return finish(err)
			}
			return nil
		case <-expiry:
			if err := f.env.sample(f.Name(), func() error { return flushRename(ctx) }); err != nil {
				return finish(err)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.env.fault(f.Name(), werr)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			err := f.env.sample(f.Name(), func() error {
				if f.skip(ev.Name) {
					return nil
				}
				now := f.env.now()
				switch {
				case ev.Has(fsnotify.Create):
					info, statErr := os.Stat(ev.Name)
					if statErr != nil {
						return nil
					}
					if info.IsDir() {
						f.addTree(watcher, ev.Name)
					}
					if pending != nil && now.Sub(pending.at) <= f.opts.RenameWindow {
						p := pending
						pending, expiry = nil, nil
						return f.env.emit(ctx, emit, now, event.FileChange{
							Action:   event.FileMoved,
							Path:     p.path,
							DestPath: ev.Name,
							Size:     sizeOf(info),
							IsDir:    info.IsDir(),
						})
					}
					if err := flushRename(ctx); err != nil {
						return err
					}
					return f.env.emit(ctx, emit, now, changeFor(event.FileCreated, ev.Name, info))
				case ev.Has(fsnotify.Write):
					info, statErr := os.Stat(ev.Name)
					if statErr != nil || info.IsDir() {
						return nil
					}
					return f.env.emit(ctx, emit, now, changeFor(event.FileModified, ev.Name, info))
				case ev.Has(fsnotify.Remove):
					return f.env.emit(ctx, emit, now, event.FileChange{Action: event.FileDeleted, Path: ev.Name})
				case ev.Has(fsnotify.Rename):
					if err := flushRename(ctx); err != nil {
						return err
					}
					pending = &pendingRename{path: ev.Name, at: now}
					if timer == nil {
						timer = time.NewTimer(f.opts.RenameWindow)
					} else {
						timer.Reset(f.opts.RenameWindow)
					}
					expiry = timer.C
					return nil
				default:
					return nil
				}
			})
			if err != nil {
				return finish(err)
			}
		}
	}
}

// addTree watches dir and every directory below it that is not excluded.
// It returns the number of directories added.
func (f *Files) addTree(w *fsnotify.Watcher, dir string) int {
	added := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if f.excluded(path) {
			return filepath.SkipDir
		}
		if addErr := w.Add(path); addErr != nil {
			f.env.Logger.Debug("watch add failed", zap.String("dir", path), zap.Error(addErr))
			return filepath.SkipDir
		}
		added++
		return nil
	})
	return added
}

func (f *Files) excluded(path string) bool {
	clean := filepath.Clean(path)
	for _, ex := range f.opts.Exclude {
		if clean == ex || strings.HasPrefix(clean, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (f *Files) skip(path string) bool {
	return f.excluded(path) || f.opts.Filter.Ignored(path)
}

func changeFor(action event.FileAction, path string, info fs.FileInfo) event.FileChange {
	return event.FileChange{Action: action, Path: path, Size: sizeOf(info), IsDir: info.IsDir()}
}

func sizeOf(info fs.FileInfo) int64 {
	if info.IsDir() {
		return 0
	}
	return info.Size()
}
