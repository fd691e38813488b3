package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when a key has never been written
var ErrNotFound = errors.New("key not found")

// Backend defines the interface that all local key-value stores must implement
type Backend interface {
	// Name returns the backend identifier (e.g., "sqlite", "badger")
	Name() string

	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources
	Close() error
}

// Watcher is implemented by backends that can report changes made by
// other processes. The returned channel receives a value after each
// change to key and is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan struct{}, error)
}

// Options configures a backend when it is opened
type Options struct {
	// Path is a file or directory, depending on the backend.
	// Backends that support it run in memory when Path is empty.
	Path string

	Logger *zap.SugaredLogger
}

// BackendFactory is a function that opens a new instance of a Backend
type BackendFactory func(opts Options) (Backend, error)
