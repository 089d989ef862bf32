package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore/store"
)

// Ensure the backend implements the store interfaces at compile time.
var (
	_ store.Dialer     = (*Store)(nil)
	_ store.Conn       = (*Conn)(nil)
	_ store.Collection = (*collection)(nil)
	_ store.Cursor     = (*cursor)(nil)
)

// ErrConnClosed is returned by operations on a closed connection.
var ErrConnClosed = errors.New("memory: connection closed")

// Store is a fully in-memory document store. It plays the role of the
// server: Dial hands out connections that all see the same data.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu  sync.RWMutex
	dbs map[string]map[string][]bson.M

	dialMu  sync.Mutex
	dialErr error

	dials  atomic.Int64
	open   atomic.Int64
	closed atomic.Int64
}

// New returns a new empty Store.
func New() *Store {
	return &Store{dbs: make(map[string]map[string][]bson.M)}
}

// Dial opens a connection, or fails with the error set by FailDial.
func (m *Store) Dial(ctx context.Context) (store.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.dialMu.Lock()
	err := m.dialErr
	m.dialMu.Unlock()
	if err != nil {
		return nil, err
	}

	m.dials.Add(1)
	m.open.Add(1)
	return &Conn{store: m}, nil
}

// FailDial makes subsequent dials fail with err, simulating an unreachable
// server. A nil err restores normal dialing.
func (m *Store) FailDial(err error) {
	m.dialMu.Lock()
	m.dialErr = err
	m.dialMu.Unlock()
}

// Dials returns the number of successful dials so far.
func (m *Store) Dials() int64 { return m.dials.Load() }

// OpenConns returns the number of connections dialed and not yet closed.
func (m *Store) OpenConns() int64 { return m.open.Load() }

// Len returns the number of documents in tenant.collection.
func (m *Store) Len(tenant, collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dbs[tenant][collection])
}

// Drop removes every document of a tenant.
func (m *Store) Drop(tenant string) {
	m.mu.Lock()
	delete(m.dbs, tenant)
	m.mu.Unlock()
}

// Conn is a connection to a memory Store.
type Conn struct {
	store *Store

	mu     sync.Mutex
	broken error
	closed bool
}

// Break marks the connection unusable, simulating a dropped socket.
func (c *Conn) Break(err error) {
	c.mu.Lock()
	if c.broken == nil {
		c.broken = err
	}
	c.mu.Unlock()
}

// Collection resolves tenant.name.
func (c *Conn) Collection(tenant, name string) store.Collection {
	return &collection{conn: c, tenant: tenant, name: name}
}

// Ping fails once the connection is broken or closed.
func (c *Conn) Ping(_ context.Context) error { return c.usable() }

// Err returns the error passed to Break, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close releases the connection. Closing twice is an error.
func (c *Conn) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.closed = true
	c.store.open.Add(-1)
	c.store.closed.Add(1)
	return nil
}

func (c *Conn) usable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.broken != nil {
		return fmt.Errorf("memory: connection broken: %w", c.broken)
	}
	return nil
}

type cursor struct {
	docs   []bson.M
	pos    int
	cur    bson.M
	err    error
	closed bool
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos >= len(c.docs) {
		return false
	}
	c.cur = c.docs[c.pos]
	c.pos++
	return true
}

func (c *cursor) Current() (bson.M, error) {
	if c.cur == nil {
		return nil, errors.New("memory: cursor not positioned")
	}
	return cloneDoc(c.cur), nil
}

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close(_ context.Context) error {
	c.closed = true
	c.docs = nil
	return nil
}
