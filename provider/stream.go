package provider

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/middleware"
	"github.com/xraph/tenantstore/pool"
	"github.com/xraph/tenantstore/query"
	"github.com/xraph/tenantstore/scope"
	"github.com/xraph/tenantstore/store"
)

// Stream is a lazily evaluated CSV export of a query. Each call to Next
// advances to the next line: first the header, then one line per record.
//
// A stream holds its pooled connection until it is exhausted, fails, or is
// closed, so callers must always Close it.
type Stream struct {
	pr        *Provider
	scope     scope.Scope
	lease     *pool.Lease
	cur       store.Cursor
	transform func(tenantstore.Document) (tenantstore.Document, error)

	columns []string
	started bool
	pending tenantstore.Document
	rec     tenantstore.Document
	line    []byte

	buf bytes.Buffer
	w   *csv.Writer

	err      error
	done     bool
	once     sync.Once
	closeErr error
}

// FindAsStream opens a cursor for params and returns a stream over it. The
// query runs inside the middleware chain; iteration happens afterwards,
// driven by the caller.
func (pr *Provider) FindAsStream(ctx context.Context, params StreamParams) (*Stream, error) {
	var st *Stream
	err := pr.chain(ctx, &middleware.Operation{Name: opFindAsStream, Scope: params.Scope}, func(ctx context.Context) error {
		if err := params.Scope.Validate(); err != nil {
			return tenantstore.ValidationError(opFindAsStream, "%w", err)
		}
		f, err := filter(opFindAsStream, params.Query)
		if err != nil {
			return err
		}
		sort := params.Sort
		if len(sort) == 0 {
			sort = query.DefaultSort()
		}
		limit := params.Limit
		switch {
		case limit == 0:
			limit = DefaultLimit
		case limit < 0:
			limit = 0
		}

		lease, err := pr.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		opened := false
		defer func() {
			if !opened {
				pr.pool.Release(lease)
			}
		}()

		coll := lease.Conn().Collection(params.Scope.Tenant, params.Scope.Collection)
		cur, err := coll.Find(ctx, f, store.FindOptions{
			Projection: query.Projection(params.Projection),
			Sort:       sort,
			Limit:      limit,
		})
		if err != nil {
			return executionError(opFindAsStream, err)
		}

		st = &Stream{
			pr:        pr,
			scope:     params.Scope,
			lease:     lease,
			cur:       cur,
			transform: params.Transform,
			columns:   slices.Clone(params.Columns),
		}
		st.w = csv.NewWriter(&st.buf)
		opened = true
		return nil
	})
	if err != nil {
		pr.exts.EmitOperationFailed(ctx, opFindAsStream, params.Scope, err)
		return nil, err
	}
	return st, nil
}

// Next advances to the next CSV line. It returns false once the stream is
// exhausted or has failed; Err distinguishes the two. The connection is
// released as soon as Next returns false.
func (s *Stream) Next(ctx context.Context) bool {
	if s.err != nil || s.done {
		return false
	}

	if !s.started {
		s.started = true
		rec, ok := s.fetch(ctx)
		if s.err != nil {
			s.fail(ctx)
			return false
		}
		if ok {
			s.pending = rec
			if len(s.columns) == 0 {
				s.columns = fieldNames(rec)
			}
		}
		if len(s.columns) == 0 {
			s.release()
			return false
		}
		s.rec = nil
		return s.encode(ctx, s.columns)
	}

	rec := s.pending
	s.pending = nil
	if rec == nil {
		var ok bool
		if rec, ok = s.fetch(ctx); !ok {
			if s.err != nil {
				s.fail(ctx)
			} else {
				s.release()
			}
			return false
		}
	}

	s.rec = rec
	fields := make([]string, len(s.columns))
	for i, col := range s.columns {
		fields[i] = formatValue(rec[col])
	}
	return s.encode(ctx, fields)
}

// Bytes returns the current line, terminated by a newline. The slice is
// only valid until the next call to Next.
func (s *Stream) Bytes() []byte { return s.line }

// Text returns the current line as a string.
func (s *Stream) Text() string { return string(s.line) }

// Record returns the document behind the current line, after Transform.
// It is nil for the header line.
func (s *Stream) Record() tenantstore.Document { return s.rec }

// Columns returns the header fields, known after the first call to Next.
func (s *Stream) Columns() []string { return s.columns }

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error { return s.err }

// Close releases the cursor and the pooled connection. It is safe to call
// more than once and after the stream is exhausted.
func (s *Stream) Close() error {
	s.release()
	return s.closeErr
}

// WriteCSV copies every remaining line to w and closes the stream. It
// returns the number of bytes written.
func (s *Stream) WriteCSV(ctx context.Context, w io.Writer) (int64, error) {
	defer s.Close()

	var n int64
	for s.Next(ctx) {
		m, err := w.Write(s.line)
		n += int64(m)
		if err != nil {
			return n, fmt.Errorf("tenantstore/provider: write csv: %w", err)
		}
	}
	if s.err != nil {
		return n, s.err
	}
	return n, s.Close()
}

// WriteTo implements io.WriterTo. It is WriteCSV without a context.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	return s.WriteCSV(context.Background(), w)
}

func (s *Stream) fetch(ctx context.Context) (tenantstore.Document, bool) {
	if !s.cur.Next(ctx) {
		if err := s.cur.Err(); err != nil {
			s.err = executionError(opFindAsStream, err)
		}
		return nil, false
	}
	doc, err := s.cur.Current()
	if err != nil {
		s.err = executionError(opFindAsStream, err)
		return nil, false
	}
	if s.transform != nil {
		if doc, err = s.transform(doc); err != nil {
			s.err = tenantstore.ExecutionError(opFindAsStream, fmt.Errorf("transform: %w", err))
			return nil, false
		}
	}
	return doc, true
}

func (s *Stream) encode(ctx context.Context, fields []string) bool {
	s.buf.Reset()
	if err := s.w.Write(fields); err != nil {
		s.err = tenantstore.ExecutionError(opFindAsStream, err)
		s.fail(ctx)
		return false
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.err = tenantstore.ExecutionError(opFindAsStream, err)
		s.fail(ctx)
		return false
	}
	s.line = s.buf.Bytes()
	return true
}

func (s *Stream) fail(ctx context.Context) {
	s.line, s.rec = nil, nil
	s.release()
	s.pr.exts.EmitOperationFailed(ctx, opFindAsStream, s.scope, s.err)
}

func (s *Stream) release() {
	s.once.Do(func() {
		s.done = true
		if s.cur != nil {
			if err := s.cur.Close(context.Background()); err != nil {
				s.closeErr = executionError(opFindAsStream, err)
			}
		}
		s.pr.pool.Release(s.lease)
		s.lease = nil
	})
}

// fieldNames returns the keys of doc in lexical order, _id first when
// present.
func fieldNames(doc tenantstore.Document) []string {
	names := make([]string, 0, len(doc))
	for k := range doc {
		if k != tenantstore.FieldObjectID {
			names = append(names, k)
		}
	}
	slices.Sort(names)
	if _, ok := doc[tenantstore.FieldObjectID]; ok {
		names = append([]string{tenantstore.FieldObjectID}, names...)
	}
	return names
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case bson.DateTime:
		return x.Time().UTC().Format(time.RFC3339Nano)
	case bson.ObjectID:
		return x.Hex()
	case bson.M, bson.D, map[string]any, bson.A, []any:
		return nested(x)
	default:
		return fmt.Sprint(x)
	}
}

// nested renders an embedded document or array as relaxed extended JSON.
func nested(v any) string {
	switch x := v.(type) {
	case bson.M, bson.D, map[string]any:
		b, err := bson.MarshalExtJSON(x, false, false)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	case bson.A:
		return nested([]any(x))
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = nested(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
