// Package watch re-runs a callback when files under a directory tree
// change.  Bursts of events are coalesced: the callback runs once the
// tree has been quiet for the debounce window.
package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// DefaultDebounce is the quiet period used when Watcher.Debounce is
// not set.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches every directory under Root.
type Watcher struct {
	Root     string
	Debounce time.Duration
	// Skip, if set, drops events for slash-separated relpaths it
	// accepts.  The relpath of a directory has no trailing slash.
	Skip func(relpath string) bool

	watcher *fsnotify.Watcher
}

// New registers root and every directory below it.
func New(root string, skip func(relpath string) bool) (w *Watcher, err error) {
	defer Return(&err)
	absroot, err := filepath.Abs(root)
	Ck(err)
	w = &Watcher{Root: absroot, Skip: skip, Debounce: DefaultDebounce}
	w.watcher, err = fsnotify.NewWatcher()
	Ck(err)
	err = filepath.WalkDir(absroot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absroot {
				return err
			}
			log.Warnf("not watching %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != absroot && w.skip(path) {
			return filepath.SkipDir
		}
		return w.add(path)
	})
	if err != nil {
		w.watcher.Close()
		return nil, errors.Wrapf(err, "watch %s", absroot)
	}
	return
}

func (w *Watcher) add(dir string) (err error) {
	err = w.watcher.Add(dir)
	if err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	log.Debugf("watching %s", dir)
	return
}

// rel returns path relative to Root, slash-separated.
func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) skip(path string) bool {
	return w.Skip != nil && w.Skip(w.rel(path))
}

// Run delivers coalesced changes to onChange until ctx is done, then
// closes the watcher.  onChange is called from Run's goroutine, so
// calls never overlap; events arriving while it runs start the next
// window.  An error from onChange is logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string) error) (err error) {
	defer w.watcher.Close()
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	pending := make(map[string]bool)
	var order []string
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if w.skip(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				w.addNew(event.Name)
			}
			rel := w.rel(event.Name)
			log.Debugf("%s %s", event.Op, rel)
			if !pending[rel] {
				pending[rel] = true
				order = append(order, rel)
			}
			// restart the window
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			log.Errorf("watch error: %v", err)
		case <-timer.C:
			if len(order) == 0 {
				continue
			}
			changed := order
			pending = make(map[string]bool)
			order = nil
			err = onChange(changed)
			if err != nil {
				log.Errorf("change handler: %v", err)
			}
		}
	}
}

// addNew registers a directory created after New, along with any
// directories already inside it.
func (w *Watcher) addNew(path string) {
	filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if w.skip(p) {
			return filepath.SkipDir
		}
		err = w.add(p)
		if err != nil {
			log.Warn(err)
		}
		return nil
	})
}

// Close stops watching without waiting for Run.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
