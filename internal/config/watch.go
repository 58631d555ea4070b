package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/log"
)

// watchDebounce coalesces the burst of filesystem events editors emit
// on save into a single reload.
const watchDebounce = 500 * time.Millisecond

// Watcher reloads the configuration when the config file changes on
// disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching the config file and invokes onChange after
// each modification. The parent directory is watched rather than the
// file itself, so atomic rename-on-save is picked up too.
func Watch(configPath string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(configPath)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fsw, done: make(chan struct{})}
	go w.run(filepath.Clean(configPath), onChange)
	return w, nil
}

func (w *Watcher) run(configPath string, onChange func()) {
	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug(log.CatConfig, "config file changed", "event", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatConfig, "config watcher error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
