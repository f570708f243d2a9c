package watch

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPollInterval is how often the polling source rescans its
// directories.
const DefaultPollInterval = time.Second

// pollSource detects changes by periodically walking its directory
// trees and comparing modification times. Subdirectories created after
// startup are picked up on the next scan. Used where native watch APIs
// are unreliable (network mounts) or in environments that disallow
// inotify.
type pollSource struct {
	dirs     []string
	interval time.Duration
	events   chan Event
	errors   chan error

	closeOnce sync.Once
	done      chan struct{}

	seen map[string]time.Time // path -> mtime from the previous scan
}

// NewPollSource watches directories by polling at the given interval
// (DefaultPollInterval when interval <= 0). The initial scan primes the
// baseline without emitting events.
func NewPollSource(interval time.Duration, dirs ...string) Source {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := &pollSource{
		dirs:     dirs,
		interval: interval,
		events:   make(chan Event, 16),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
		seen:     make(map[string]time.Time),
	}
	s.scan(false)
	go s.loop()
	return s
}

func (s *pollSource) loop() {
	defer close(s.events)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.scan(true)
		case <-s.done:
			return
		}
	}
}

// scan walks the watched trees recursively. When emit is true, new or
// touched files produce OpWrite events and vanished files produce
// OpRemove.
func (s *pollSource) scan(emit bool) {
	current := make(map[string]time.Time, len(s.seen))
	for _, dir := range s.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			info, err := d.Info()
			if err != nil {
				// Deleted mid-walk; the next scan settles it.
				return nil
			}
			current[path] = info.ModTime()
			return nil
		})
		if err != nil && emit {
			select {
			case s.errors <- err:
			default:
			}
		}
	}

	if emit {
		for path, mtime := range current {
			prev, existed := s.seen[path]
			if !existed || mtime.After(prev) {
				if !s.send(Event{Path: path, Op: OpWrite}) {
					return
				}
			}
		}
		for path := range s.seen {
			if _, still := current[path]; !still {
				if !s.send(Event{Path: path, Op: OpRemove}) {
					return
				}
			}
		}
	}
	s.seen = current
}

func (s *pollSource) send(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *pollSource) Events() <-chan Event { return s.events }
func (s *pollSource) Errors() <-chan error { return s.errors }

func (s *pollSource) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
