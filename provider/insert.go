package provider

import (
	"context"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/query"
	"github.com/xraph/tenantstore/store"
)

// Insert stores a single document. The document keeps a caller-supplied id;
// otherwise a new one is generated. createdAt and updatedAt are set to the
// same instant. A batch payload is rejected before any connection is leased.
func (pr *Provider) Insert(ctx context.Context, params InsertParams) (*InsertResult, error) {
	var (
		doc tenantstore.Document
		res InsertResult
	)
	err := pr.run(ctx, opInsert, params.Scope, func() error {
		switch params.Payload.kind {
		case kindSingle:
		case kindBatch:
			return tenantstore.ValidationError(opInsert, "payload is a batch of %d documents; use InsertMany", len(params.Payload.batch))
		default:
			return tenantstore.ValidationError(opInsert, "payload is empty")
		}
		doc = query.StampInsert(params.Payload.doc, pr.newID(), false, pr.timestamp())
		res.ID, _ = query.ExternalID(doc)
		return nil
	}, func(ctx context.Context, c store.Collection) (err error) {
		res.InsertedID, err = c.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}

	pr.exts.EmitDocumentsInserted(ctx, params.Scope, []string{res.ID})
	return &res, nil
}

// InsertMany stores a batch of documents. Every document gets a freshly
// generated id, replacing any id the caller supplied, and the same
// createdAt and updatedAt instant. The caller's documents are not
// modified. A single-document payload is rejected.
func (pr *Provider) InsertMany(ctx context.Context, params InsertManyParams) (*InsertManyResult, error) {
	var (
		docs []tenantstore.Document
		res  InsertManyResult
	)
	err := pr.run(ctx, opInsertMany, params.Scope, func() error {
		switch params.Payload.kind {
		case kindBatch:
		case kindSingle:
			return tenantstore.ValidationError(opInsertMany, "payload is a single document; use Insert")
		default:
			return tenantstore.ValidationError(opInsertMany, "payload is empty")
		}
		if len(params.Payload.batch) == 0 {
			return tenantstore.ValidationError(opInsertMany, "payload batch is empty")
		}

		now := pr.timestamp()
		docs = make([]tenantstore.Document, len(params.Payload.batch))
		res.IDs = make([]string, len(docs))
		for i, d := range params.Payload.batch {
			docs[i] = query.StampInsert(d, pr.newID(), true, now)
			res.IDs[i], _ = query.ExternalID(docs[i])
		}
		return nil
	}, func(ctx context.Context, c store.Collection) (err error) {
		res.InsertedIDs, err = c.InsertMany(ctx, docs)
		return err
	})
	if err != nil {
		return nil, err
	}

	pr.exts.EmitDocumentsInserted(ctx, params.Scope, res.IDs)
	return &res, nil
}
