// Package store provides the scoped, versioned key-value storage that
// keeps questionnaire state across restarts.
package store

import (
	"context"
	"time"
)

// Entry is one stored value. Version tags the schema of Value so readers
// can refuse blobs they do not understand.
type Entry struct {
	Scope     string
	Key       string
	Version   int
	Value     []byte
	UpdatedAt time.Time
}

// Store defines the interface contract for state storage.
type Store interface {
	Get(ctx context.Context, scope, key string) (*Entry, error)
	Put(ctx context.Context, scope, key string, version int, value []byte) error
	Delete(ctx context.Context, scope, key string) error
	List(ctx context.Context, scope string) ([]Entry, error)
	Close() error
}
