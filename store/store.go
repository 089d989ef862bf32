package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrNoDocuments is returned by single-document operations that matched
// nothing.
var ErrNoDocuments = errors.New("store: no documents")

// Dialer opens new connections to a document store.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// Conn is a single live connection. A Conn is used by one operation at a
// time; the pool guarantees exclusivity.
type Conn interface {
	// Collection resolves a collection handle inside the tenant's database.
	Collection(tenant, name string) Collection

	// Ping checks that the store is reachable over this connection.
	Ping(ctx context.Context) error

	// Err returns a non-nil error once the connection has become unusable.
	// The pool destroys such connections on release instead of reusing them.
	Err() error

	// Close tears the connection down.
	Close(ctx context.Context) error
}

// Collection is a tenant-scoped collection handle, expressed in the
// store's native query and aggregation grammar.
type Collection interface {
	Find(ctx context.Context, filter bson.M, opts FindOptions) (Cursor, error)
	FindOne(ctx context.Context, filter bson.M, projection bson.M) (bson.M, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	InsertOne(ctx context.Context, doc bson.M) (any, error)
	InsertMany(ctx context.Context, docs []bson.M) ([]any, error)
	FindOneAndUpdate(ctx context.Context, filter, update bson.M, opts FindOneAndUpdateOptions) (bson.M, error)
	FindOneAndReplace(ctx context.Context, filter, replacement bson.M, opts FindOneAndUpdateOptions) (bson.M, error)
	Update(ctx context.Context, filter, update bson.M, opts UpdateOptions) (UpdateResult, error)
	FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error)
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
	Aggregate(ctx context.Context, pipeline any) (Cursor, error)
}

// Cursor iterates over query or aggregation results. It must be closed.
type Cursor interface {
	Next(ctx context.Context) bool
	Current() (bson.M, error)
	Err() error
	Close(ctx context.Context) error
}

// FindOptions shape a multi-document read.
type FindOptions struct {
	Projection bson.M
	Sort       bson.D
	Skip       int64
	Limit      int64
}

// FindOneAndUpdateOptions shape a single-document read-modify-write, by
// update operators or by replacement.
type FindOneAndUpdateOptions struct {
	// ReturnOriginal returns the document as it was before the update.
	ReturnOriginal bool
	Upsert         bool
}

// UpdateOptions shape a criteria update.
type UpdateOptions struct {
	Multi  bool
	Upsert bool
}

// UpdateResult reports the outcome of a criteria update.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
	UpsertedID    any
}

// All drains and closes a cursor.
func All(ctx context.Context, cur Cursor) (docs []bson.M, err error) {
	defer func() {
		if cerr := cur.Close(ctx); err == nil {
			err = cerr
		}
	}()

	docs = make([]bson.M, 0)
	for cur.Next(ctx) {
		doc, derr := cur.Current()
		if derr != nil {
			return nil, derr
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
