package typegoose

import "context"

// =====================================
// Engine Interfaces
// =====================================

// Engine is a document store a model can be bound to.
type Engine interface {
	// Name identifies the engine kind, e.g. "mongodb" or "redis".
	Name() string

	// Collection returns the collection a model is stored in. h carries the
	// collection name and the indexes of the model.
	Collection(name string, h *Handle) (Collection, error)

	// Health checks if the store is reachable.
	Health() error

	// Close releases the connection.
	Close() error
}

// Collection stores documents as field maps keyed by "_id".
//
// Errors raised by the store (duplicate keys, connection failures) are
// returned unchanged.
type Collection interface {
	// InsertOne stores doc and returns its _id.
	InsertOne(ctx context.Context, doc map[string]any) (any, error)

	// FindOne returns the first document matching filter, or nil if none does.
	FindOne(ctx context.Context, filter map[string]any) (map[string]any, error)

	// Find returns the documents matching query.Filter, sorted and paged.
	// Without orders documents come back in storage order.
	Find(ctx context.Context, query *FindQuery) ([]map[string]any, error)

	// ReplaceOne replaces the document with the given _id. With upsert set
	// a missing document is inserted.
	ReplaceOne(ctx context.Context, id any, doc map[string]any, upsert bool) error

	// DeleteOne removes the document with the given _id and reports how many were removed.
	DeleteOne(ctx context.Context, id any) (int64, error)

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, filter map[string]any) (int64, error)

	// CreateIndex creates idx if it does not exist.
	CreateIndex(ctx context.Context, idx Index) error
}
