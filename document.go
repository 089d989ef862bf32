package tenantstore

import "go.mongodb.org/mongo-driver/v2/bson"

// Reserved document fields.
const (
	FieldID        = "id"
	FieldObjectID  = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Document is a single stored record: field name to value, plus the
// reserved id, createdAt and updatedAt fields.
type Document = bson.M
