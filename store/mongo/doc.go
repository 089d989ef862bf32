// Package mongo implements the store interfaces on top of the official
// MongoDB driver (go.mongodb.org/mongo-driver/v2).
//
// Each pooled connection owns its own *mongo.Client restricted to a single
// driver socket, so the outer pool (not the driver) decides how many
// connections exist:
//
//	import (
//	    "github.com/xraph/tenantstore/pool"
//	    "github.com/xraph/tenantstore/store/mongo"
//	)
//
//	d := mongo.NewDialer("mongodb://localhost:27017/app")
//	p, _ := pool.New(ctx, d, pool.WithMax(20))
//
// A tenant maps to a database and a scope collection to a collection in
// that database.
package mongo
