// Package assets watches asset files for hot reload. The loaders
// subpackage turns files into textures, shader code and fonts.
package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/castle/engine/core"
)

var ErrWatcherClosed = errors.New("asset watcher already closed")

// Change is a create or write of a watched asset.
type Change struct {
	Path string
	Type AssetType
	At   time.Time
}

/**
 * @brief Watches directories recursively, or single files through their
 * parent directory, and reports changed assets both on the Events channel
 * and as EVENT_CODE_ASSET_CHANGED on the event bus.
 */
type Watcher struct {
	fsnotify *fsnotify.Watcher

	mutex sync.RWMutex
	// directories added for single files, with the files wanted in them
	only     map[string]map[string]bool
	isClosed bool

	events chan Change
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewWatcher() (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsnotify: fsWatch,
		only:     make(map[string]map[string]bool),
		events:   make(chan Change, 64),
		errors:   make(chan error, 8),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

// Watch adds a file or a directory tree.
func (w *Watcher) Watch(path string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return ErrWatcherClosed
	}

	path = filepath.Clean(path)
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return w.watchRecursive(path)
	}

	// Editors replace files on save, so the directory is what gets watched.
	dir := filepath.Dir(path)
	if w.only[dir] == nil {
		w.only[dir] = make(map[string]bool)
		if err := w.fsnotify.Add(dir); err != nil {
			delete(w.only, dir)
			return err
		}
	}
	w.only[dir][path] = true
	core.LogDebug("watching %s", path)
	return nil
}

// watchRecursive adds every directory under root.
func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		core.LogDebug("watching directory %s", walkPath)
		return w.fsnotify.Add(walkPath)
	})
}

func (w *Watcher) Events() <-chan Change { return w.events }

func (w *Watcher) Errors() <-chan error { return w.errors }

func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return nil
	}
	w.isClosed = true
	w.mutex.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.fsnotify.Close()
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			w.handle(e)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)
			select {
			case w.errors <- err:
			default:
			}

		case <-w.done:
			close(w.events)
			close(w.errors)
			return
		}
	}
}

func (w *Watcher) handle(e fsnotify.Event) {
	name := filepath.Clean(e.Name)

	if e.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(name); err == nil && fi.IsDir() && w.wantsTree(filepath.Dir(name)) {
			w.mutex.Lock()
			if err := w.watchRecursive(name); err != nil {
				core.LogWarn("cannot watch new directory %s: %s", name, err.Error())
			}
			w.mutex.Unlock()
			return
		}
	}
	if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	w.mutex.RLock()
	files, single := w.only[filepath.Dir(name)]
	wanted := !single || files[name]
	w.mutex.RUnlock()
	if !wanted {
		return
	}

	assetType := DetermineAssetType(name)
	if assetType == ASSET_TYPE_NONE {
		return
	}
	change := Change{Path: name, Type: assetType, At: time.Now()}
	core.LogDebug("%s changed: %s", assetType, name)
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_ASSET_CHANGED,
		Data: &core.AssetEvent{Path: name},
	})
	select {
	case w.events <- change:
	default:
		core.LogWarn("asset change of %s dropped, nobody is reading", name)
	}
}

// wantsTree reports whether dir was added as part of a directory tree.
func (w *Watcher) wantsTree(dir string) bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	_, single := w.only[dir]
	return !single
}
