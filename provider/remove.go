package provider

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/query"
	"github.com/xraph/tenantstore/store"
)

// Remove deletes the first document matching Criteria and returns it, or
// nil when nothing matched.
func (pr *Provider) Remove(ctx context.Context, params RemoveParams) (tenantstore.Document, error) {
	return pr.remove(ctx, opRemove, params)
}

// FindByIDAndRemove is Remove keyed on the external id.
func (pr *Provider) FindByIDAndRemove(ctx context.Context, params FindByIDParams) (tenantstore.Document, error) {
	if params.ID == "" {
		return nil, tenantstore.ValidationError(opFindByIDAndRemove, "id is required")
	}
	return pr.remove(ctx, opFindByIDAndRemove, RemoveParams{
		Scope:    params.Scope,
		Criteria: query.ByID(params.ID),
	})
}

func (pr *Provider) remove(ctx context.Context, op string, params RemoveParams) (tenantstore.Document, error) {
	var (
		f   bson.M
		doc tenantstore.Document
	)
	err := pr.run(ctx, op, params.Scope, func() (err error) {
		f, err = filter(op, params.Criteria)
		return err
	}, func(ctx context.Context, c store.Collection) (err error) {
		doc, err = c.FindOneAndDelete(ctx, f)
		if errors.Is(err, store.ErrNoDocuments) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if doc != nil {
		pr.exts.EmitDocumentRemoved(ctx, params.Scope, doc)
	}
	return doc, nil
}

// RemoveMultiple deletes every document matching Criteria. An empty
// criteria matches, and removes, the whole collection.
func (pr *Provider) RemoveMultiple(ctx context.Context, params RemoveParams) (*RemoveResult, error) {
	var (
		f bson.M
		n int64
	)
	err := pr.run(ctx, opRemoveMultiple, params.Scope, func() (err error) {
		f, err = filter(opRemoveMultiple, params.Criteria)
		return err
	}, func(ctx context.Context, c store.Collection) (err error) {
		n, err = c.DeleteMany(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	pr.exts.EmitDocumentsRemoved(ctx, params.Scope, n)
	return &RemoveResult{DeletedCount: n}, nil
}

// RemoveByCriteria is an alias of RemoveMultiple.
func (pr *Provider) RemoveByCriteria(ctx context.Context, params RemoveParams) (*RemoveResult, error) {
	return pr.RemoveMultiple(ctx, params)
}
