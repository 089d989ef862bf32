package provider

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/scope"
)

// Defaults applied to zero-valued paging fields.
const (
	DefaultPage  int64 = 1
	DefaultLimit int64 = 10
)

// FindParams selects a page of documents. A zero Page or Limit takes the
// default, and a nil Sort orders most recent first.
type FindParams struct {
	Scope         scope.Scope
	Query         bson.M
	Projection    bson.M
	Page          int64
	Limit         int64
	Sort          bson.D
	IncludeCursor bool
}

// Cursor describes the page returned by Find.
type Cursor struct {
	CurrentPage  int64 `json:"currentPage"`
	PerPage      int64 `json:"perPage"`
	TotalRecords int64 `json:"totalRecords"`
}

// FindResult is the outcome of Find. Cursor is nil unless requested.
type FindResult struct {
	Cursor  *Cursor                `json:"cursor,omitempty"`
	Records []tenantstore.Document `json:"records"`
}

// StreamParams selects the documents written by FindAsStream. A zero
// Limit takes DefaultLimit and a negative one streams every match. Transform,
// when set, is applied to each record before serialization; returning an
// error aborts the stream. Columns fixes the CSV header; when empty the
// header is the sorted field names of the first record.
type StreamParams struct {
	Scope      scope.Scope
	Query      bson.M
	Projection bson.M
	Sort       bson.D
	Limit      int64
	Transform  func(tenantstore.Document) (tenantstore.Document, error)
	Columns    []string
}

// CountParams selects the documents to count.
type CountParams struct {
	Scope scope.Scope
	Query bson.M
}

// CountResult is the outcome of Count.
type CountResult struct {
	Count int64 `json:"count"`
}

// FindOneParams selects a single document.
type FindOneParams struct {
	Scope      scope.Scope
	Query      bson.M
	Projection bson.M
}

// FindByIDParams selects a document by its external id.
type FindByIDParams struct {
	Scope      scope.Scope
	ID         string
	Projection bson.M
}

// InsertParams inserts one document. Payload must be built with Single.
type InsertParams struct {
	Scope   scope.Scope
	Payload Payload
}

// InsertResult acknowledges Insert. InsertedID is the store's internal
// identifier and ID the external one.
type InsertResult struct {
	InsertedID any    `json:"insertedId"`
	ID         string `json:"id"`
}

// InsertManyParams inserts a batch. Payload must be built with Batch.
type InsertManyParams struct {
	Scope   scope.Scope
	Payload Payload
}

// InsertManyResult acknowledges InsertMany, in payload order.
type InsertManyResult struct {
	InsertedIDs []any    `json:"insertedIds"`
	IDs         []string `json:"ids"`
}

// UpdateParams modifies the first document matching Criteria.
//
// Payload holds the fields to set, and IncPayload numeric increments. With
// RawUpdate, Payload is sent without the $set wrapper: plain fields replace
// the matched document (keeping its id and createdAt), and an operator
// document ($set, $unset, $push, ...) is applied as given with updatedAt
// merged into its $set.
type UpdateParams struct {
	Scope          scope.Scope
	Criteria       bson.M
	Payload        bson.M
	IncPayload     bson.M
	ReturnOriginal bool
	Upsert         bool
	RawUpdate      bool
}

// FindByIDAndUpdateParams is UpdateParams keyed on the external id.
type FindByIDAndUpdateParams struct {
	Scope          scope.Scope
	ID             string
	Payload        bson.M
	IncPayload     bson.M
	ReturnOriginal bool
	Upsert         bool
	RawUpdate      bool
}

// UpdateByCriteriaParams modifies one document matching Criteria, or all of
// them when Multi is set.
type UpdateByCriteriaParams struct {
	Scope      scope.Scope
	Criteria   bson.M
	Payload    bson.M
	IncPayload bson.M
	Multi      bool
	Upsert     bool
	RawUpdate  bool
}

// UpdateResult acknowledges UpdateByCriteria.
type UpdateResult struct {
	Matched    int64 `json:"matched"`
	Modified   int64 `json:"modified"`
	Upserted   int64 `json:"upserted"`
	UpsertedID any   `json:"upsertedId,omitempty"`
}

// RemoveParams selects documents to remove.
type RemoveParams struct {
	Scope    scope.Scope
	Criteria bson.M
}

// RemoveResult acknowledges RemoveMultiple.
type RemoveResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// AggregateParams runs Pipeline against the scoped collection. The pipeline
// is passed to the store without validation.
type AggregateParams struct {
	Scope    scope.Scope
	Pipeline any
}
