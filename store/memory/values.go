package memory

import (
	"bytes"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// cloneDoc deep-copies a document so stored state never aliases caller
// memory.
func cloneDoc(m bson.M) bson.M {
	if m == nil {
		return nil
	}
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return cloneDoc(t)
	case map[string]any:
		return cloneDoc(bson.M(t))
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []any:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []byte:
		return bytes.Clone(t)
	default:
		if s, ok := toSlice(v); ok {
			return cloneValue(bson.A(s))
		}
		return v
	}
}

// toM views a document-shaped value as bson.M.
func toM(v any) (bson.M, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]any:
		return bson.M(t), true
	case bson.D:
		m := make(bson.M, len(t))
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return m, true
	default:
		return nil, false
	}
}

// toSlice views a slice-shaped value as []any. Byte slices, ordered
// documents and fixed-size arrays such as bson.ObjectID are scalars.
func toSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case bson.A:
		return t, true
	case []any:
		return t, true
	case []byte, bson.D, bson.ObjectID:
		return nil, false
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// lookup resolves a dotted path. Missing intermediate documents yield
// (nil, false).
func lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := toM(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath assigns v at a dotted path, creating intermediate documents.
func setPath(doc bson.M, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := toM(cur[part])
		if !ok {
			next = bson.M{}
		}
		// bson.D views are copies; normalise to bson.M so writes stick.
		if _, isD := cur[part].(bson.D); isD || !ok {
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := toM(cur[part])
		if !ok {
			return
		}
		if _, isD := cur[part].(bson.D); isD {
			cur[part] = next
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// number converts any numeric value to float64.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

// typeRank orders BSON type classes the way MongoDB sorts mixed values.
func typeRank(v any) int {
	if v == nil {
		return 1
	}
	if _, ok := number(v); ok {
		return 2
	}
	switch v.(type) {
	case string:
		return 3
	case bson.M, map[string]any, bson.D:
		return 4
	case []byte:
		return 6
	case bson.ObjectID:
		return 7
	case bool:
		return 8
	case time.Time, bson.DateTime:
		return 9
	}
	if _, ok := toSlice(v); ok {
		return 5
	}
	return 10
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case bson.DateTime:
		return t.Time()
	}
	return time.Time{}
}

// compare returns -1, 0 or 1.
func compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 1:
		return 0
	case 2:
		fa, _ := number(a)
		fb, _ := number(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	case 4:
		ma, _ := toM(a)
		mb, _ := toM(b)
		if docEqual(ma, mb) {
			return 0
		}
		return compareKeys(ma, mb)
	case 5:
		sa, _ := toSlice(a)
		sb, _ := toSlice(b)
		for i := 0; i < len(sa) && i < len(sb); i++ {
			if c := compare(sa[i], sb[i]); c != 0 {
				return c
			}
		}
		return compareInt(len(sa), len(sb))
	case 6:
		return bytes.Compare(a.([]byte), b.([]byte))
	case 7:
		oa, ob := a.(bson.ObjectID), b.(bson.ObjectID)
		return bytes.Compare(oa[:], ob[:])
	case 8:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case 9:
		return asTime(a).Compare(asTime(b))
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return -1
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareKeys gives documents with different contents a stable order.
func compareKeys(a, b bson.M) int {
	if c := compareInt(len(a), len(b)); c != 0 {
		return c
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			return 1
		}
		if c := compare(va, vb); c != 0 {
			return c
		}
	}
	return 0
}

func equal(a, b any) bool {
	return typeRank(a) == typeRank(b) && compareEqual(a, b)
}

func compareEqual(a, b any) bool {
	if ma, ok := toM(a); ok {
		mb, _ := toM(b)
		return docEqual(ma, mb)
	}
	return compare(a, b) == 0
}

func docEqual(a, b bson.M) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !equal(va, vb) {
			return false
		}
	}
	return true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	return true
}

func isOperatorDoc(m bson.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}
