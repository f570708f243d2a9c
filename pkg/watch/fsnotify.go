package watch

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fsnotifySource adapts a kernel-level fsnotify watcher to the Source
// interface.
type fsnotifySource struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error

	closeOnce sync.Once
	done      chan struct{}
}

// NewFSNotifySource watches the given directories using the platform's
// native change-notification API.
func NewFSNotifySource(dirs ...string) (Source, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	s := &fsnotifySource{
		watcher: w,
		events:  make(chan Event, 16),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *fsnotifySource) pump() {
	defer close(s.events)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			var op Op
			switch {
			case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
				op = OpRemove
			case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
				// fsnotify watches are not recursive; start watching a
				// directory created under a watched one.
				if ev.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if err := s.watcher.Add(ev.Name); err != nil {
							select {
							case s.errors <- err:
							default:
							}
						}
						continue
					}
				}
				op = OpWrite
			default:
				continue // chmod etc.
			}
			select {
			case s.events <- Event{Path: ev.Name, Op: op}:
			case <-s.done:
				return
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			default:
			}
		case <-s.done:
			return
		}
	}
}

func (s *fsnotifySource) Events() <-chan Event { return s.events }
func (s *fsnotifySource) Errors() <-chan error { return s.errors }

func (s *fsnotifySource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})
	return err
}
