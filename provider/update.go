package provider

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/query"
	"github.com/xraph/tenantstore/store"
)

func (pr *Provider) newUpdate(payload, inc bson.M, raw, upsert bool) query.Update {
	u := query.Update{
		Payload: payload,
		Inc:     inc,
		Raw:     raw,
		Upsert:  upsert,
		Now:     pr.timestamp(),
	}
	if upsert {
		u.NewID = pr.newID()
	}
	return u
}

// buildUpdate validates u and returns its operator document, or nil for a
// replacement, which is built once the matched document is known.
func buildUpdate(op string, u query.Update) (bson.M, error) {
	if u.IsReplacement() {
		if _, err := u.Replacement(nil); err != nil {
			return nil, tenantstore.ValidationError(op, "%w", err)
		}
		return nil, nil
	}
	update, err := u.Build()
	if err != nil {
		return nil, tenantstore.ValidationError(op, "%w", err)
	}
	return update, nil
}

// identity is the projection read before a replacement.
var identity = bson.M{tenantstore.FieldID: 1, tenantstore.FieldCreatedAt: 1}

// replace swaps the first document matching f for u's replacement. The
// match is read first so its id and createdAt survive; the write then
// targets it by _id. created reports whether an upsert inserted.
func replace(ctx context.Context, c store.Collection, f bson.M, u query.Update, opts store.FindOneAndUpdateOptions) (doc bson.M, created bool, err error) {
	target := f
	existing, err := c.FindOne(ctx, f, identity)
	switch {
	case errors.Is(err, store.ErrNoDocuments):
		if !opts.Upsert {
			return nil, false, store.ErrNoDocuments
		}
		existing = nil
	case err != nil:
		return nil, false, err
	default:
		target = bson.M{tenantstore.FieldObjectID: existing[tenantstore.FieldObjectID]}
	}

	repl, err := u.Replacement(existing)
	if err != nil {
		return nil, false, err
	}
	doc, err = c.FindOneAndReplace(ctx, target, repl, opts)
	return doc, existing == nil, err
}

// Update modifies the first document matching Criteria and returns it, as
// it is after the write or, with ReturnOriginal, as it was before. It
// returns nil when nothing matched and Upsert is not set.
//
// With Upsert and no match, a document is created from the criteria and
// payload with a new id and createdAt. When a document matches, its id and
// createdAt are never changed; only the payload fields and updatedAt are
// written.
//
// With RawUpdate, a payload of update operators is applied as given and a
// payload of plain fields replaces the matched document. A replacement
// keeps the document's id and createdAt, drops every field the payload does
// not carry, and cannot be combined with IncPayload.
func (pr *Provider) Update(ctx context.Context, params UpdateParams) (tenantstore.Document, error) {
	return pr.update(ctx, opUpdate, params)
}

// Upsert is Update with Upsert forced on.
func (pr *Provider) Upsert(ctx context.Context, params UpdateParams) (tenantstore.Document, error) {
	params.Upsert = true
	return pr.update(ctx, opUpdate, params)
}

// FindByIDAndUpdate is Update keyed on the external id.
func (pr *Provider) FindByIDAndUpdate(ctx context.Context, params FindByIDAndUpdateParams) (tenantstore.Document, error) {
	if params.ID == "" {
		return nil, tenantstore.ValidationError(opFindByIDAndUpdate, "id is required")
	}
	return pr.update(ctx, opFindByIDAndUpdate, UpdateParams{
		Scope:          params.Scope,
		Criteria:       query.ByID(params.ID),
		Payload:        params.Payload,
		IncPayload:     params.IncPayload,
		ReturnOriginal: params.ReturnOriginal,
		Upsert:         params.Upsert,
		RawUpdate:      params.RawUpdate,
	})
}

func (pr *Provider) update(ctx context.Context, op string, params UpdateParams) (tenantstore.Document, error) {
	var (
		f, update bson.M
		doc       tenantstore.Document
	)
	u := pr.newUpdate(params.Payload, params.IncPayload, params.RawUpdate, params.Upsert)
	err := pr.run(ctx, op, params.Scope, func() (err error) {
		if f, err = filter(op, params.Criteria); err != nil {
			return err
		}
		update, err = buildUpdate(op, u)
		return err
	}, func(ctx context.Context, c store.Collection) (err error) {
		opts := store.FindOneAndUpdateOptions{
			ReturnOriginal: params.ReturnOriginal,
			Upsert:         params.Upsert,
		}
		if u.IsReplacement() {
			doc, _, err = replace(ctx, c, f, u, opts)
		} else {
			doc, err = c.FindOneAndUpdate(ctx, f, update, opts)
		}
		if errors.Is(err, store.ErrNoDocuments) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if doc != nil {
		pr.exts.EmitDocumentUpdated(ctx, params.Scope, doc)
	}
	return doc, nil
}

// UpdateByCriteria modifies the first document matching Criteria, or every
// match when Multi is set, using the same payload rules as Update. A
// replacement payload applies to one document only, so it rejects Multi.
func (pr *Provider) UpdateByCriteria(ctx context.Context, params UpdateByCriteriaParams) (*UpdateResult, error) {
	var (
		f, update bson.M
		res       store.UpdateResult
	)
	u := pr.newUpdate(params.Payload, params.IncPayload, params.RawUpdate, params.Upsert)
	err := pr.run(ctx, opUpdateByCriteria, params.Scope, func() (err error) {
		if f, err = filter(opUpdateByCriteria, params.Criteria); err != nil {
			return err
		}
		if params.Multi && u.IsReplacement() {
			return tenantstore.ValidationError(opUpdateByCriteria, "a replacement payload cannot be applied with multi")
		}
		update, err = buildUpdate(opUpdateByCriteria, u)
		return err
	}, func(ctx context.Context, c store.Collection) (err error) {
		if u.IsReplacement() {
			res, err = replaceResult(ctx, c, f, u, params.Upsert)
			return err
		}
		res, err = c.Update(ctx, f, update, store.UpdateOptions{
			Multi:  params.Multi,
			Upsert: params.Upsert,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	pr.exts.EmitDocumentsUpdated(ctx, params.Scope, res.MatchedCount, res.ModifiedCount)
	return &UpdateResult{
		Matched:    res.MatchedCount,
		Modified:   res.ModifiedCount,
		Upserted:   res.UpsertedCount,
		UpsertedID: res.UpsertedID,
	}, nil
}

func replaceResult(ctx context.Context, c store.Collection, f bson.M, u query.Update, upsert bool) (store.UpdateResult, error) {
	doc, created, err := replace(ctx, c, f, u, store.FindOneAndUpdateOptions{Upsert: upsert})
	switch {
	case errors.Is(err, store.ErrNoDocuments):
		return store.UpdateResult{}, nil
	case err != nil:
		return store.UpdateResult{}, err
	case created:
		return store.UpdateResult{UpsertedCount: 1, UpsertedID: doc[tenantstore.FieldObjectID]}, nil
	}
	return store.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

// FindAndUpdate is an alias of UpdateByCriteria.
func (pr *Provider) FindAndUpdate(ctx context.Context, params UpdateByCriteriaParams) (*UpdateResult, error) {
	return pr.UpdateByCriteria(ctx, params)
}
