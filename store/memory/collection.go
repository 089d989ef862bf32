package memory

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore/store"
)

type collection struct {
	conn   *Conn
	tenant string
	name   string
}

// docs returns the live slice; callers must hold the store lock.
func (c *collection) docs() []bson.M {
	return c.conn.store.dbs[c.tenant][c.name]
}

func (c *collection) setDocs(docs []bson.M) {
	dbs := c.conn.store.dbs
	if dbs[c.tenant] == nil {
		dbs[c.tenant] = make(map[string][]bson.M)
	}
	dbs[c.tenant][c.name] = docs
}

// filter returns indexes of matching documents, in natural order.
func (c *collection) filter(filter bson.M) ([]int, error) {
	var idx []int
	for i, d := range c.docs() {
		hit, err := matches(d, filter)
		if err != nil {
			return nil, err
		}
		if hit {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

func (c *collection) Find(_ context.Context, filter bson.M, opts store.FindOptions) (store.Cursor, error) {
	if err := c.conn.usable(); err != nil {
		return nil, err
	}
	c.conn.store.mu.RLock()
	defer c.conn.store.mu.RUnlock()

	idx, err := c.filter(filter)
	if err != nil {
		return nil, err
	}
	all := c.docs()
	out := make([]bson.M, 0, len(idx))
	for _, i := range idx {
		out = append(out, all[i])
	}
	sortDocs(out, opts.Sort)

	if opts.Skip > 0 {
		if int(opts.Skip) >= len(out) {
			out = out[:0]
		} else {
			out = out[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int(opts.Limit) < len(out) {
		out = out[:opts.Limit]
	}

	// Snapshot so later writes never leak into an open cursor.
	snap := make([]bson.M, len(out))
	for i, d := range out {
		snap[i] = cloneDoc(project(d, opts.Projection))
	}
	return &cursor{docs: snap}, nil
}

func (c *collection) FindOne(_ context.Context, filter, projection bson.M) (bson.M, error) {
	if err := c.conn.usable(); err != nil {
		return nil, err
	}
	c.conn.store.mu.RLock()
	defer c.conn.store.mu.RUnlock()

	idx, err := c.filter(filter)
	if err != nil {
		return nil, err
	}
	if len(idx) == 0 {
		return nil, store.ErrNoDocuments
	}
	return cloneDoc(project(c.docs()[idx[0]], projection)), nil
}

func (c *collection) CountDocuments(_ context.Context, filter bson.M) (int64, error) {
	if err := c.conn.usable(); err != nil {
		return 0, err
	}
	c.conn.store.mu.RLock()
	defer c.conn.store.mu.RUnlock()

	idx, err := c.filter(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(idx)), nil
}

func (c *collection) InsertOne(ctx context.Context, doc bson.M) (any, error) {
	ids, err := c.InsertMany(ctx, []bson.M{doc})
	if err != nil {
		return nil, err
	}
	return ids[0], nil
}

func (c *collection) InsertMany(_ context.Context, docs []bson.M) ([]any, error) {
	if err := c.conn.usable(); err != nil {
		return nil, err
	}
	c.conn.store.mu.Lock()
	defer c.conn.store.mu.Unlock()

	existing := c.docs()
	ids := make([]any, 0, len(docs))
	added := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		stored := cloneDoc(d)
		if stored == nil {
			stored = bson.M{}
		}
		if _, ok := stored["_id"]; !ok {
			stored["_id"] = bson.NewObjectID()
		}
		if c.hasID(existing, stored["_id"]) || c.hasID(added, stored["_id"]) {
			return nil, fmt.Errorf("memory: E11000 duplicate key error collection: %s.%s index: _id_ dup key: { _id: %v }",
				c.tenant, c.name, stored["_id"])
		}
		added = append(added, stored)
		ids = append(ids, stored["_id"])
	}
	c.setDocs(append(existing, added...))
	return ids, nil
}

func (c *collection) hasID(docs []bson.M, oid any) bool {
	for _, d := range docs {
		if equal(d["_id"], oid) {
			return true
		}
	}
	return false
}

func (c *collection) FindOneAndUpdate(_ context.Context, filter, update bson.M, opts store.FindOneAndUpdateOptions) (bson.M, error) {
	if err := c.conn.usable(); err != nil {
		return nil, err
	}
	c.conn.store.mu.Lock()
	defer c.conn.store.mu.Unlock()

	idx, err := c.filter(filter)
	if err != nil {
		return nil, err
	}

	if len(idx) == 0 {
		if !opts.Upsert {
			return nil, store.ErrNoDocuments
		}
		doc, err := c.upsertDoc(filter, update)
		if err != nil {
			return nil, err
		}
		c.setDocs(append(c.docs(), doc))
		if opts.ReturnOriginal {
			return nil, store.ErrNoDocuments
		}
		return cloneDoc(doc), nil
	}

	docs := c.docs()
	original := docs[idx[0]]
	next := cloneDoc(original)
	if err := applyUpdate(next, update, false); err != nil {
		return nil, err
	}
	docs[idx[0]] = next
	if opts.ReturnOriginal {
		return cloneDoc(original), nil
	}
	return cloneDoc(next), nil
}

// FindOneAndReplace swaps the first match for replacement, keeping its _id.
// Unlike FindOneAndUpdate, an upserted document takes only _id from the
// filter.
func (c *collection) FindOneAndReplace(_ context.Context, filter, replacement bson.M, opts store.FindOneAndUpdateOptions) (bson.M, error) {
	if err := c.conn.usable(); err != nil {
		return nil, err
	}
	for k := range replacement {
		if strings.HasPrefix(k, "$") {
			return nil, fmt.Errorf("memory: replacement document must not contain update operators")
		}
	}
	c.conn.store.mu.Lock()
	defer c.conn.store.mu.Unlock()

	idx, err := c.filter(filter)
	if err != nil {
		return nil, err
	}

	if len(idx) == 0 {
		if !opts.Upsert {
			return nil, store.ErrNoDocuments
		}
		doc := cloneDoc(replacement)
		if doc == nil {
			doc = bson.M{}
		}
		if _, ok := doc["_id"]; !ok {
			if oid, ok := upsertSeed(filter)["_id"]; ok {
				doc["_id"] = oid
			} else {
				doc["_id"] = bson.NewObjectID()
			}
		}
		c.setDocs(append(c.docs(), doc))
		if opts.ReturnOriginal {
			return nil, store.ErrNoDocuments
		}
		return cloneDoc(doc), nil
	}

	docs := c.docs()
	original := docs[idx[0]]
	if oid, ok := replacement["_id"]; ok && !equal(oid, original["_id"]) {
		return nil, fmt.Errorf("memory: the _id field cannot be changed by a replacement")
	}
	next := cloneDoc(replacement)
	if next == nil {
		next = bson.M{}
	}
	next["_id"] = original["_id"]
	docs[idx[0]] = next
	if opts.ReturnOriginal {
		return cloneDoc(original), nil
	}
	return cloneDoc(next), nil
}

func (c *collection) upsertDoc(filter, update bson.M) (bson.M, error) {
	doc := upsertSeed(filter)
	if err := applyUpdate(doc, update, true); err != nil {
		return nil, err
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = bson.NewObjectID()
	}
	return doc, nil
}

func (c *collection) Update(_ context.Context, filter, update bson.M, opts store.UpdateOptions) (store.UpdateResult, error) {
	if err := c.conn.usable(); err != nil {
		return store.UpdateResult{}, err
	}
	c.conn.store.mu.Lock()
	defer c.conn.store.mu.Unlock()

	idx, err := c.filter(filter)
	if err != nil {
		return store.UpdateResult{}, err
	}

	if len(idx) == 0 {
		if !opts.Upsert {
			return store.UpdateResult{}, nil
		}
		doc, err := c.upsertDoc(filter, update)
		if err != nil {
			return store.UpdateResult{}, err
		}
		c.setDocs(append(c.docs(), doc))
		return store.UpdateResult{UpsertedCount: 1, UpsertedID: doc["_id"]}, nil
	}
	if !opts.Multi {
		idx = idx[:1]
	}

	// Apply to copies first so a failing update leaves nothing half-written.
	docs := c.docs()
	next := make([]bson.M, len(idx))
	for n, i := range idx {
		next[n] = cloneDoc(docs[i])
		if err := applyUpdate(next[n], update, false); err != nil {
			return store.UpdateResult{}, err
		}
	}

	res := store.UpdateResult{MatchedCount: int64(len(idx))}
	for n, i := range idx {
		if !docEqual(docs[i], next[n]) {
			res.ModifiedCount++
		}
		docs[i] = next[n]
	}
	return res, nil
}

func (c *collection) FindOneAndDelete(_ context.Context, filter bson.M) (bson.M, error) {
	if err := c.conn.usable(); err != nil {
		return nil, err
	}
	c.conn.store.mu.Lock()
	defer c.conn.store.mu.Unlock()

	idx, err := c.filter(filter)
	if err != nil {
		return nil, err
	}
	if len(idx) == 0 {
		return nil, store.ErrNoDocuments
	}
	docs := c.docs()
	removed := docs[idx[0]]
	c.setDocs(append(docs[:idx[0]:idx[0]], docs[idx[0]+1:]...))
	return removed, nil
}

func (c *collection) DeleteMany(_ context.Context, filter bson.M) (int64, error) {
	if err := c.conn.usable(); err != nil {
		return 0, err
	}
	c.conn.store.mu.Lock()
	defer c.conn.store.mu.Unlock()

	kept := make([]bson.M, 0, len(c.docs()))
	var deleted int64
	for _, d := range c.docs() {
		hit, err := matches(d, filter)
		if err != nil {
			return 0, err
		}
		if hit {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	c.setDocs(kept)
	return deleted, nil
}

func (c *collection) Aggregate(_ context.Context, pipeline any) (store.Cursor, error) {
	if err := c.conn.usable(); err != nil {
		return nil, err
	}
	c.conn.store.mu.RLock()
	all := make([]bson.M, len(c.docs()))
	for i, d := range c.docs() {
		all[i] = cloneDoc(d)
	}
	c.conn.store.mu.RUnlock()

	out, err := aggregate(all, pipeline)
	if err != nil {
		return nil, err
	}
	return &cursor{docs: out}, nil
}
