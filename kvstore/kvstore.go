// Package kvstore is a persisted key-value store that notifies subscribers
// of every write. It stands in for browser storage plus its cross-tab
// "storage" event: each Change reaches every subscriber, and filtering by
// key is the subscriber's job.
package kvstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("kvstore: key not found")

// Change describes one write. Origin identifies the writer so a subscriber
// can skip its own writes.
type Change struct {
	Key     string `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites the key. Last write wins.
	Set(ctx context.Context, key string, value []byte, origin string) error
	Delete(ctx context.Context, key string, origin string) error
	// Subscribe delivers every subsequent change until ctx is done, then
	// closes the channel.
	Subscribe(ctx context.Context) (<-chan Change, error)
}
