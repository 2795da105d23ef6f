// Package storage persists the durable slice of application state as named
// opaque JSON blobs. Two blobs exist: the profile list (with the active
// pointer) and the story progress list. Session content is never persisted.
package storage

import (
	"context"
)

// Blob keys. Independent blobs, no schema versioning.
const (
	ProfilesKey = "storyteller:profiles"
	StoriesKey  = "storyteller:stories"
)

// Persistence saves and loads named JSON blobs.
type Persistence interface {
	// SaveBlob marshals value and stores it under key, replacing any
	// previous blob.
	SaveBlob(ctx context.Context, key string, value interface{}) error

	// LoadBlob unmarshals the blob under key into out. The bool result is
	// false when no blob exists for the key.
	LoadBlob(ctx context.Context, key string, out interface{}) (bool, error)

	Close() error
}
