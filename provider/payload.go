package provider

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
)

// ErrUnsupportedPayload is returned by PayloadOf for values that are
// neither a document nor a sequence of documents.
var ErrUnsupportedPayload = errors.New("tenantstore/provider: unsupported payload")

type payloadKind uint8

const (
	kindNone payloadKind = iota
	kindSingle
	kindBatch
)

// Payload is an insert payload: either a single document or a batch. The
// zero value is empty and rejected by both insert operations.
type Payload struct {
	kind  payloadKind
	doc   tenantstore.Document
	batch []tenantstore.Document
}

// Single wraps one document.
func Single(doc tenantstore.Document) Payload {
	return Payload{kind: kindSingle, doc: doc}
}

// Batch wraps a sequence of documents.
func Batch(docs ...tenantstore.Document) Payload {
	return Payload{kind: kindBatch, batch: docs}
}

// PayloadOf classifies a dynamically typed value, such as a decoded JSON
// request body. Maps and bson documents become Single; slices of them
// become Batch.
func PayloadOf(v any) (Payload, error) {
	switch x := v.(type) {
	case bson.M:
		return Single(x), nil
	case map[string]any:
		return Single(x), nil
	case bson.D:
		doc := make(tenantstore.Document, len(x))
		for _, e := range x {
			doc[e.Key] = e.Value
		}
		return Single(doc), nil
	case []bson.M:
		return Batch(x...), nil
	case []map[string]any:
		docs := make([]tenantstore.Document, len(x))
		for i, d := range x {
			docs[i] = d
		}
		return Batch(docs...), nil
	case bson.A:
		return PayloadOf([]any(x))
	case []any:
		docs := make([]tenantstore.Document, len(x))
		for i, e := range x {
			p, err := PayloadOf(e)
			if err != nil || p.kind != kindSingle {
				return Payload{}, fmt.Errorf("%w: element %d is %T", ErrUnsupportedPayload, i, e)
			}
			docs[i] = p.doc
		}
		return Batch(docs...), nil
	default:
		return Payload{}, fmt.Errorf("%w: %T", ErrUnsupportedPayload, v)
	}
}

// IsBatch reports whether the payload is a sequence of documents.
func (p Payload) IsBatch() bool { return p.kind == kindBatch }

// Len returns the number of documents carried.
func (p Payload) Len() int {
	switch p.kind {
	case kindSingle:
		return 1
	case kindBatch:
		return len(p.batch)
	default:
		return 0
	}
}
