// Package vectorstore defines the interface for vector storage operations
// and provides the Qdrant gRPC implementation.
//
// The store works at the vector level: callers compose embedding inputs and
// supply vectors explicitly, which keeps embedding-input composition
// reproducible and owned by the index builder rather than the store.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyPoints indicates empty or nil points.
	ErrEmptyPoints = errors.New("empty or nil points")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of vectors in the collection.
	PointCount int `json:"point_count"`

	// VectorSize is the dimensionality of vectors in this collection.
	VectorSize int `json:"vector_size"`
}

// Point is a vector with its payload, addressed by a caller-chosen ID.
// The ID is preserved in the payload; the store derives its own stable
// point identifier from it.
type Point struct {
	// ID is the unique identifier (chunk ID) for the point.
	ID string

	// Vector is the embedding of the point's composed input text.
	Vector []float32

	// Payload contains the full record stored alongside the vector.
	Payload map[string]interface{}
}

// ScoredPoint is a search result: a point ID with its raw similarity score
// and stored payload. Scores are returned unmodified by the store.
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]interface{}
}

// Store is the interface for vector storage operations.
//
// Implementations must be safe for concurrent reads. Writes (Upsert,
// collection management) are expected to be serialized by the caller;
// rebuilds use SwapAlias so reads never observe a half-built collection.
type Store interface {
	// CreateCollection creates a collection with the given vector size and
	// cosine distance.
	CreateCollection(ctx context.Context, name string, vectorSize int) error

	// DeleteCollection deletes a collection and all its points.
	DeleteCollection(ctx context.Context, name string) error

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns metadata about a collection, or
	// ErrCollectionNotFound.
	GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// CreateKeywordIndexes registers payload fields for exact-match
	// filtering.
	CreateKeywordIndexes(ctx context.Context, name string, fields ...string) error

	// Upsert writes points into a collection. Re-upserting an existing
	// point ID overwrites it.
	Upsert(ctx context.Context, name string, points []Point) error

	// Search performs nearest-neighbor search, returning up to topK results
	// ordered by descending similarity. Filters are exact-match conditions
	// over indexed payload fields; unknown values yield an empty list.
	Search(ctx context.Context, name string, vector []float32, topK int, filters map[string]string) ([]ScoredPoint, error)

	// ScrollPayloads returns the named payload fields of every point in the
	// collection. Used by resumable index builds.
	ScrollPayloads(ctx context.Context, name string, fields ...string) ([]map[string]interface{}, error)

	// SwapAlias atomically redirects a read alias to a new collection.
	SwapAlias(ctx context.Context, alias, target string) error

	// Close closes the store connection and releases resources.
	Close() error
}
