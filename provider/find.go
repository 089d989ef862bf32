package provider

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/query"
	"github.com/xraph/tenantstore/store"
)

// filter normalizes a caller query.
func filter(op string, q bson.M) (bson.M, error) {
	f, err := query.CoerceID(q)
	if err != nil {
		return nil, tenantstore.ValidationError(op, "%w", err)
	}
	return f, nil
}

// Find returns one page of documents. A zero Page reads DefaultPage and a
// negative one reads the first page; the cursor echoes the page requested.
//
// With IncludeCursor, TotalRecords comes from a separate count run on its
// own lease after the page is read. It is best effort: writes landing
// between the two reads can make it disagree with the page contents.
func (pr *Provider) Find(ctx context.Context, params FindParams) (*FindResult, error) {
	page := params.Page
	if page == 0 {
		page = DefaultPage
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	sort := params.Sort
	if len(sort) == 0 {
		sort = query.DefaultSort()
	}

	var (
		f   bson.M
		res = &FindResult{Records: []tenantstore.Document{}}
	)
	steps := []step{func(ctx context.Context, c store.Collection) error {
		cur, err := c.Find(ctx, f, store.FindOptions{
			Projection: query.Projection(params.Projection),
			Sort:       sort,
			Skip:       query.Skip(page, limit),
			Limit:      limit,
		})
		if err != nil {
			return err
		}
		docs, err := store.All(ctx, cur)
		if err != nil {
			return err
		}
		res.Records = append(res.Records, docs...)
		return nil
	}}
	if params.IncludeCursor {
		steps = append(steps, func(ctx context.Context, c store.Collection) error {
			n, err := c.CountDocuments(ctx, f)
			if err != nil {
				return err
			}
			res.Cursor = &Cursor{
				CurrentPage:  page,
				PerPage:      limit,
				TotalRecords: n,
			}
			return nil
		})
	}

	err := pr.run(ctx, opFind, params.Scope, func() (err error) {
		f, err = filter(opFind, params.Query)
		return err
	}, steps...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Count returns the number of documents matching the query.
func (pr *Provider) Count(ctx context.Context, params CountParams) (*CountResult, error) {
	var (
		f bson.M
		n int64
	)
	err := pr.run(ctx, opCount, params.Scope, func() (err error) {
		f, err = filter(opCount, params.Query)
		return err
	}, func(ctx context.Context, c store.Collection) (err error) {
		n, err = c.CountDocuments(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &CountResult{Count: n}, nil
}

// FindOne returns the first document matching the query, or nil when
// nothing matches.
func (pr *Provider) FindOne(ctx context.Context, params FindOneParams) (tenantstore.Document, error) {
	return pr.findOne(ctx, opFindOne, params)
}

// FindByParams is an alias of FindOne.
func (pr *Provider) FindByParams(ctx context.Context, params FindOneParams) (tenantstore.Document, error) {
	return pr.findOne(ctx, opFindOne, params)
}

// FindByID returns the document with the given external id, or nil.
func (pr *Provider) FindByID(ctx context.Context, params FindByIDParams) (tenantstore.Document, error) {
	if params.ID == "" {
		return nil, tenantstore.ValidationError(opFindByID, "id is required")
	}
	return pr.findOne(ctx, opFindByID, FindOneParams{
		Scope:      params.Scope,
		Query:      query.ByID(params.ID),
		Projection: params.Projection,
	})
}

func (pr *Provider) findOne(ctx context.Context, op string, params FindOneParams) (tenantstore.Document, error) {
	var (
		f   bson.M
		doc tenantstore.Document
	)
	err := pr.run(ctx, op, params.Scope, func() (err error) {
		f, err = filter(op, params.Query)
		return err
	}, func(ctx context.Context, c store.Collection) (err error) {
		doc, err = c.FindOne(ctx, f, query.Projection(params.Projection))
		if errors.Is(err, store.ErrNoDocuments) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Aggregate runs a pipeline and returns every result document.
func (pr *Provider) Aggregate(ctx context.Context, params AggregateParams) ([]tenantstore.Document, error) {
	out := []tenantstore.Document{}
	err := pr.run(ctx, opAggregate, params.Scope, nil, func(ctx context.Context, c store.Collection) error {
		cur, err := c.Aggregate(ctx, params.Pipeline)
		if err != nil {
			return err
		}
		docs, err := store.All(ctx, cur)
		if err != nil {
			return err
		}
		out = append(out, docs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
