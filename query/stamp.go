package query

import (
	"maps"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
)

// StampInsert returns a copy of doc ready for insertion. The id is set to
// newID when overwrite is true or the document carries no usable id, and
// createdAt and updatedAt are both set to now.
func StampInsert(doc bson.M, newID string, overwrite bool, now time.Time) bson.M {
	out := make(bson.M, len(doc)+3)
	maps.Copy(out, doc)

	if overwrite || !hasID(out) {
		out[tenantstore.FieldID] = newID
	}
	out[tenantstore.FieldCreatedAt] = now
	out[tenantstore.FieldUpdatedAt] = now
	return out
}

// StampUpdate returns a copy of doc with updatedAt set to now.
func StampUpdate(doc bson.M, now time.Time) bson.M {
	out := make(bson.M, len(doc)+1)
	maps.Copy(out, doc)
	out[tenantstore.FieldUpdatedAt] = now
	return out
}

// ExternalID returns the document's id field when it is a non-empty string.
func ExternalID(doc bson.M) (string, bool) {
	s, ok := doc[tenantstore.FieldID].(string)
	return s, ok && s != ""
}

func hasID(doc bson.M) bool {
	v, ok := doc[tenantstore.FieldID]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && s == "" {
		return false
	}
	return true
}
