// Package store is the durable entity store used by the indexer: a key-value
// collaborator (Store) plus a typed Repository on top of it. Entities are JSON
// encoded; ids are unique per kind.
package store

import (
	"context"
	"errors"

	"dexanalytics/internal/domain"
)

var ErrNotFound = errors.New("entity not found")

type Store interface {
	// Get returns ErrNotFound when nothing is stored under (kind, id)
	Get(ctx context.Context, kind domain.Kind, id string) ([]byte, error)
	// Put is a durable upsert
	Put(ctx context.Context, kind domain.Kind, id string, data []byte) error
	Health(ctx context.Context) error
	Close() error
}

func entityKey(kind domain.Kind, id string) string {
	return string(kind) + ":" + id
}
