package query

import (
	"errors"
	"fmt"
	"maps"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
)

var (
	// ErrInvalidObjectID is returned when an _id string is not a valid
	// 24-character hex object id.
	ErrInvalidObjectID = errors.New("tenantstore/query: invalid object id")

	// ErrNotOperatorDocument is returned when a raw operator payload has
	// top-level keys that are not update operators.
	ErrNotOperatorDocument = errors.New("tenantstore/query: raw update must contain only operators")

	// ErrNotReplacement is returned when a replacement is requested for a
	// payload that holds update operators.
	ErrNotReplacement = errors.New("tenantstore/query: replacement must not contain operators")

	// ErrReplacementInc is returned when a replacement payload is combined
	// with increments.
	ErrReplacementInc = errors.New("tenantstore/query: a replacement cannot carry increments")
)

// DefaultSort orders results most recent first.
func DefaultSort() bson.D {
	return bson.D{{Key: tenantstore.FieldObjectID, Value: -1}}
}

// CoerceID returns a copy of q in which an _id given as a hex string, or as
// {$in: [hex strings]}, is converted to object ids. Other shapes of _id and
// every other field pass through unchanged. A nil q yields an empty filter.
func CoerceID(q bson.M) (bson.M, error) {
	out := make(bson.M, len(q))
	maps.Copy(out, q)

	v, ok := out[tenantstore.FieldObjectID]
	if !ok {
		return out, nil
	}

	switch x := v.(type) {
	case string:
		oid, err := parseObjectID(x)
		if err != nil {
			return nil, err
		}
		out[tenantstore.FieldObjectID] = oid
	case bson.M:
		in, ok, err := coerceIn(x)
		if err != nil {
			return nil, err
		}
		if ok {
			out[tenantstore.FieldObjectID] = in
		}
	case map[string]any:
		in, ok, err := coerceIn(x)
		if err != nil {
			return nil, err
		}
		if ok {
			out[tenantstore.FieldObjectID] = in
		}
	}
	return out, nil
}

// coerceIn converts {$in: [strings]}. It reports false for any other
// operator document, or an $in list holding non-strings.
func coerceIn(m map[string]any) (bson.M, bool, error) {
	if len(m) != 1 {
		return nil, false, nil
	}

	var list []any
	switch l := m["$in"].(type) {
	case []string:
		list = make([]any, len(l))
		for i, s := range l {
			list[i] = s
		}
	case []any:
		list = l
	case bson.A:
		list = l
	default:
		return nil, false, nil
	}

	oids := make(bson.A, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, false, nil
		}
		oid, err := parseObjectID(s)
		if err != nil {
			return nil, false, err
		}
		oids = append(oids, oid)
	}
	return bson.M{"$in": oids}, true, nil
}

func parseObjectID(s string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidObjectID, s)
	}
	return oid, nil
}

// Projection returns a copy of p that also selects the external id field.
// An empty projection stays nil (all fields), and an exclusion projection is
// returned as a copy unchanged since the store rejects mixing the two styles.
func Projection(p bson.M) bson.M {
	if len(p) == 0 {
		return nil
	}
	out := maps.Clone(p)
	if isExclusion(p) {
		return out
	}
	if _, ok := out[tenantstore.FieldID]; !ok {
		out[tenantstore.FieldID] = 1
	}
	return out
}

// isExclusion reports whether every field other than _id is excluded.
func isExclusion(p bson.M) bool {
	seen := false
	for k, v := range p {
		if k == tenantstore.FieldObjectID {
			continue
		}
		seen = true
		if included(v) {
			return false
		}
	}
	return seen
}

func included(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		// Expressions and string paths are inclusions.
		return true
	}
}

// Skip converts a one-based page into a document offset. Pages below one
// are treated as the first page.
func Skip(page, limit int64) int64 {
	if page <= 1 || limit <= 0 {
		return 0
	}
	return (page - 1) * limit
}

// ByID is the criteria selecting a document by its external id.
func ByID(id string) bson.M {
	return bson.M{tenantstore.FieldID: id}
}
