package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/tenantstore/store"
)

type collection struct {
	conn *Conn
	col  *mongod.Collection
}

func (c *collection) Find(ctx context.Context, filter bson.M, opts store.FindOptions) (store.Cursor, error) {
	findOpts := options.Find()
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cur, err := c.col.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, c.conn.observe(err)
	}
	return &cursor{conn: c.conn, cur: cur}, nil
}

func (c *collection) FindOne(ctx context.Context, filter, projection bson.M) (bson.M, error) {
	opts := options.FindOne()
	if len(projection) > 0 {
		opts.SetProjection(projection)
	}

	var doc bson.M
	if err := c.col.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNoDocuments
		}
		return nil, c.conn.observe(err)
	}
	return doc, nil
}

func (c *collection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	n, err := c.col.CountDocuments(ctx, filter)
	return n, c.conn.observe(err)
}

func (c *collection) InsertOne(ctx context.Context, doc bson.M) (any, error) {
	res, err := c.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, c.conn.observe(err)
	}
	return res.InsertedID, nil
}

func (c *collection) InsertMany(ctx context.Context, docs []bson.M) ([]any, error) {
	res, err := c.col.InsertMany(ctx, docs)
	if err != nil {
		return nil, c.conn.observe(err)
	}
	return res.InsertedIDs, nil
}

func (c *collection) FindOneAndUpdate(ctx context.Context, filter, update bson.M, opts store.FindOneAndUpdateOptions) (bson.M, error) {
	returnDoc := options.After
	if opts.ReturnOriginal {
		returnDoc = options.Before
	}
	fopts := options.FindOneAndUpdate().
		SetReturnDocument(returnDoc).
		SetUpsert(opts.Upsert)

	var doc bson.M
	if err := c.col.FindOneAndUpdate(ctx, filter, update, fopts).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNoDocuments
		}
		return nil, c.conn.observe(err)
	}
	return doc, nil
}

func (c *collection) FindOneAndReplace(ctx context.Context, filter, replacement bson.M, opts store.FindOneAndUpdateOptions) (bson.M, error) {
	returnDoc := options.After
	if opts.ReturnOriginal {
		returnDoc = options.Before
	}
	fopts := options.FindOneAndReplace().
		SetReturnDocument(returnDoc).
		SetUpsert(opts.Upsert)

	var doc bson.M
	if err := c.col.FindOneAndReplace(ctx, filter, replacement, fopts).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNoDocuments
		}
		return nil, c.conn.observe(err)
	}
	return doc, nil
}

func (c *collection) Update(ctx context.Context, filter, update bson.M, opts store.UpdateOptions) (store.UpdateResult, error) {
	var (
		res *mongod.UpdateResult
		err error
	)
	if opts.Multi {
		res, err = c.col.UpdateMany(ctx, filter, update, options.UpdateMany().SetUpsert(opts.Upsert))
	} else {
		res, err = c.col.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(opts.Upsert))
	}
	if err != nil {
		return store.UpdateResult{}, c.conn.observe(err)
	}
	return store.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    res.UpsertedID,
	}, nil
}

func (c *collection) FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error) {
	var doc bson.M
	if err := c.col.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNoDocuments
		}
		return nil, c.conn.observe(err)
	}
	return doc, nil
}

func (c *collection) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, c.conn.observe(err)
	}
	return res.DeletedCount, nil
}

func (c *collection) Aggregate(ctx context.Context, pipeline any) (store.Cursor, error) {
	cur, err := c.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, c.conn.observe(err)
	}
	return &cursor{conn: c.conn, cur: cur}, nil
}

type cursor struct {
	conn *Conn
	cur  *mongod.Cursor
}

func (c *cursor) Next(ctx context.Context) bool { return c.cur.Next(ctx) }

func (c *cursor) Current() (bson.M, error) {
	var doc bson.M
	if err := c.cur.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *cursor) Err() error { return c.conn.observe(c.cur.Err()) }

func (c *cursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
