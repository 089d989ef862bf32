package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/xraph/tenantstore/store"
)

// Ensure the backend implements the store interfaces at compile time.
var (
	_ store.Dialer     = (*Dialer)(nil)
	_ store.Conn       = (*Conn)(nil)
	_ store.Collection = (*collection)(nil)
	_ store.Cursor     = (*cursor)(nil)
)

// Dialer opens MongoDB connections for the pool.
type Dialer struct {
	uri            string
	appName        string
	connectTimeout time.Duration
	keepAlive      time.Duration
	logger         *slog.Logger
}

// Option configures the Dialer.
type Option func(*Dialer)

// WithConnectTimeout bounds establishing and verifying a connection.
func WithConnectTimeout(d time.Duration) Option {
	return func(dl *Dialer) { dl.connectTimeout = d }
}

// WithKeepAlive sets the TCP keep-alive period of the driver socket.
func WithKeepAlive(d time.Duration) Option {
	return func(dl *Dialer) { dl.keepAlive = d }
}

// WithAppName sets the application name reported to the server.
func WithAppName(name string) Option {
	return func(dl *Dialer) { dl.appName = name }
}

// WithLogger sets the logger for the dialer.
func WithLogger(logger *slog.Logger) Option {
	return func(dl *Dialer) { dl.logger = logger }
}

// NewDialer creates a dialer for the given connection string.
func NewDialer(uri string, opts ...Option) *Dialer {
	d := &Dialer{
		uri:            uri,
		appName:        "tenantstore",
		connectTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial connects a new client and pings the primary. mongo.Connect is lazy,
// so the ping is what surfaces an unreachable server.
func (d *Dialer) Dial(ctx context.Context) (store.Conn, error) {
	opts := options.Client().
		ApplyURI(d.uri).
		SetAppName(d.appName).
		SetMaxPoolSize(1).
		SetMinPoolSize(0).
		SetConnectTimeout(d.connectTimeout).
		SetServerSelectionTimeout(d.connectTimeout)
	if d.keepAlive > 0 {
		opts.SetDialer(&net.Dialer{Timeout: d.connectTimeout, KeepAlive: d.keepAlive})
	}

	client, err := mongod.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("tenantstore/mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		if derr := client.Disconnect(context.Background()); derr != nil {
			d.logger.Warn("disconnect after failed ping", slog.String("error", derr.Error()))
		}
		return nil, fmt.Errorf("tenantstore/mongo: ping: %w", err)
	}

	return &Conn{client: client}, nil
}

// Conn is a pooled MongoDB connection.
type Conn struct {
	client *mongod.Client

	mu     sync.Mutex
	broken error
}

// Client returns the underlying driver client for advanced usage.
func (c *Conn) Client() *mongod.Client { return c.client }

// Collection resolves tenant.name.
func (c *Conn) Collection(tenant, name string) store.Collection {
	return &collection{conn: c, col: c.client.Database(tenant).Collection(name)}
}

// Ping checks connectivity.
func (c *Conn) Ping(ctx context.Context) error {
	return c.observe(c.client.Ping(ctx, readpref.Primary()))
}

// Err reports whether a network-level failure was observed on this
// connection.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

// Close disconnects the client.
func (c *Conn) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("tenantstore/mongo: disconnect: %w", err)
	}
	return nil
}

// observe marks the connection unusable on network errors and returns err
// unchanged.
func (c *Conn) observe(err error) error {
	if err == nil {
		return nil
	}
	if mongod.IsNetworkError(err) || errors.Is(err, mongod.ErrClientDisconnected) {
		c.mu.Lock()
		if c.broken == nil {
			c.broken = err
		}
		c.mu.Unlock()
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// IsDuplicateKey checks if a MongoDB error is a duplicate key violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if mongod.IsDuplicateKeyError(err) {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}
