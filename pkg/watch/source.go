// Package watch abstracts filesystem change notification behind a small
// interface so the registry's reload loop can be driven by a real
// watcher in production and a fake event channel in tests.
package watch

// Op is the kind of change observed on a file.
type Op int

const (
	OpWrite Op = iota // created or modified
	OpRemove
)

// Event is one observed file change.
type Event struct {
	Path string
	Op   Op
}

// Source emits file change events for one or more watched directories.
// Close releases the underlying watch handle; after Close the Events
// channel is closed.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}
