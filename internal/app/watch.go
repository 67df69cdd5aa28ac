package app

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"labelsense/internal/image"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay coalesces the burst of events a file copy produces.
const DefaultSettleDelay = 250 * time.Millisecond

// FolderWatcher watches an image folder and triggers a callback when
// supported images are added, removed, renamed or rewritten.
type FolderWatcher struct {
	dir         string
	settleDelay time.Duration
	watcher     *fsnotify.Watcher
	stopCh      chan struct{}
	stopOnce    sync.Once
	onChange    func(names []string) // Called with the affected file names
}

// NewFolderWatcher creates a watcher for dir. Call Start to begin watching.
func NewFolderWatcher(dir string, settleDelay time.Duration) (*FolderWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create folder watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	return &FolderWatcher{
		dir:         dir,
		settleDelay: settleDelay,
		watcher:     w,
		stopCh:      make(chan struct{}),
	}, nil
}

// OnChange sets the callback to invoke after the folder settles.
// The callback is called from a background goroutine - use appropriate
// synchronization if updating UI.
func (f *FolderWatcher) OnChange(callback func(names []string)) {
	f.onChange = callback
}

// Dir returns the watched folder.
func (f *FolderWatcher) Dir() string {
	return f.dir
}

// Start begins watching in a background goroutine.
func (f *FolderWatcher) Start() {
	go f.watchLoop()
}

// Stop stops the watcher goroutine and releases the OS watch. It is safe to
// call more than once.
func (f *FolderWatcher) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopCh)
		f.watcher.Close()
	})
}

// watchLoop collects image events until they stop arriving for settleDelay,
// then reports them in one callback.
func (f *FolderWatcher) watchLoop() {
	var (
		pending = make(map[string]struct{})
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-f.stopCh:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			pending[filepath.Base(ev.Name)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(f.settleDelay)
			} else {
				timer.Reset(f.settleDelay)
			}
			fire = timer.C
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Folder watcher %s: %v", f.dir, err)
		case <-fire:
			fire = nil
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			clear(pending)
			if f.onChange != nil {
				f.onChange(names)
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !image.IsSupportedFormat(ev.Name) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) ||
		ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Write)
}
