// Package store defines the backend interfaces the connection pool and the
// provider talk to.
//
// A [Dialer] opens a [Conn]; a Conn resolves tenant-scoped [Collection]
// handles; a Collection executes reads, writes and aggregations in the
// store's native (MongoDB) grammar and hands back [Cursor]s.
//
// # Available Backends
//
//   - store/mongo — MongoDB via go.mongodb.org/mongo-driver/v2
//   - store/memory — in-memory store for development and testing
//
// # Usage
//
//	import "github.com/xraph/tenantstore/store/mongo"
//
//	d := mongo.NewDialer(cfg.ConnectionURI(),
//	    mongo.WithConnectTimeout(cfg.ConnectTimeout),
//	)
//	p, err := pool.New(ctx, d, pool.WithMax(cfg.Max), pool.WithMin(cfg.Min))
package store
