package query

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
)

// Update describes a single- or multi-document modification.
type Update struct {
	// Payload holds plain field values, or update operators when Raw is set.
	Payload bson.M

	// Inc holds numeric increments applied alongside Payload.
	Inc bson.M

	// Raw skips the $set wrapper. A payload of update operators passes
	// through as the operator document; a payload of plain fields replaces
	// the matched document (see Replacement).
	Raw bool

	// Upsert requests creation when nothing matches. The created document
	// gets NewID (or the id carried by Payload) and createdAt.
	Upsert bool
	NewID  string

	Now time.Time
}

// immutable fields never written by $set.
var immutable = []string{
	tenantstore.FieldID,
	tenantstore.FieldObjectID,
	tenantstore.FieldCreatedAt,
}

// Build produces the store update document. The id and createdAt fields are
// only ever written through $setOnInsert, so an upsert that matches an
// existing document leaves them untouched. Replacement payloads are built
// with Replacement instead.
func (u Update) Build() (bson.M, error) {
	var (
		out bson.M
		id  string
	)
	if u.Raw {
		var err error
		out, id, err = u.raw()
		if err != nil {
			return nil, err
		}
	} else {
		out, id = u.set()
	}

	if len(u.Inc) > 0 {
		inc, err := operand(out, "$inc")
		if err != nil {
			return nil, err
		}
		maps.Copy(inc, u.Inc)
		out["$inc"] = inc
	}

	if u.Upsert {
		soi, err := operand(out, "$setOnInsert")
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = u.NewID
		}
		if _, ok := soi[tenantstore.FieldID]; !ok {
			soi[tenantstore.FieldID] = id
		}
		soi[tenantstore.FieldCreatedAt] = u.Now
		out["$setOnInsert"] = soi
	}
	return out, nil
}

// IsReplacement reports whether the update replaces the matched document
// instead of applying operators to it.
func (u Update) IsReplacement() bool {
	if !u.Raw || len(u.Payload) == 0 {
		return false
	}
	for k := range u.Payload {
		if strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// Replacement builds the document that replaces existing. The payload's
// settable fields are written as given and updatedAt is set to Now. The id
// and createdAt are carried over from existing; with a nil existing (an
// upsert that creates) they are the payload id or NewID, and Now.
func (u Update) Replacement(existing bson.M) (bson.M, error) {
	if !u.IsReplacement() {
		return nil, ErrNotReplacement
	}
	if len(u.Inc) > 0 {
		return nil, ErrReplacementInc
	}

	out := make(bson.M, len(u.Payload)+2)
	maps.Copy(out, u.Payload)
	for _, f := range immutable {
		delete(out, f)
	}
	out[tenantstore.FieldUpdatedAt] = u.Now

	if existing != nil {
		for _, f := range []string{tenantstore.FieldID, tenantstore.FieldCreatedAt} {
			if v, ok := existing[f]; ok {
				out[f] = v
			}
		}
		return out, nil
	}

	id, ok := ExternalID(u.Payload)
	if !ok {
		id = u.NewID
	}
	out[tenantstore.FieldID] = id
	out[tenantstore.FieldCreatedAt] = u.Now
	return out, nil
}

func (u Update) set() (bson.M, string) {
	id, _ := ExternalID(u.Payload)

	set := make(bson.M, len(u.Payload)+1)
	maps.Copy(set, u.Payload)
	for _, f := range immutable {
		delete(set, f)
	}
	set[tenantstore.FieldUpdatedAt] = u.Now
	return bson.M{"$set": set}, id
}

func (u Update) raw() (bson.M, string, error) {
	if len(u.Payload) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrNotOperatorDocument)
	}
	out := make(bson.M, len(u.Payload)+1)
	for k, v := range u.Payload {
		if !strings.HasPrefix(k, "$") {
			return nil, "", fmt.Errorf("%w: field %q", ErrNotOperatorDocument, k)
		}
		out[k] = v
	}

	set, err := operand(out, "$set")
	if err != nil {
		return nil, "", err
	}
	id, _ := ExternalID(set)
	for _, f := range immutable {
		delete(set, f)
	}
	set[tenantstore.FieldUpdatedAt] = u.Now
	out["$set"] = set
	return out, id, nil
}

// operand returns a copy of the operator document stored under op, or a new
// empty one.
func operand(update bson.M, op string) (bson.M, error) {
	v, ok := update[op]
	if !ok || v == nil {
		return bson.M{}, nil
	}
	switch m := v.(type) {
	case bson.M:
		out := make(bson.M, len(m))
		maps.Copy(out, m)
		return out, nil
	case map[string]any:
		out := make(bson.M, len(m))
		maps.Copy(out, m)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a document, got %T", ErrNotOperatorDocument, op, v)
	}
}
