package project

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay is how long Watch waits after the last write before firing,
// so editors that write in several steps trigger a single reload.
var DebounceDelay = 250 * time.Millisecond

// Watch calls onChange after each change to the file at path until ctx is
// cancelled. The parent directory is watched so editors that replace the file
// with a rename are still seen.
func Watch(ctx context.Context, path string, onChange func()) error {
	dir := filepath.Dir(path)
	file := filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(DebounceDelay, onChange)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case _, ok := <-w.Errors:
			if !ok {
				return nil
			}
			// keep watching
		}
	}
}
