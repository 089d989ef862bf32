package memory

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// applyUpdate mutates doc with an update document. inserting is true when
// the document is being created by an upsert, which enables $setOnInsert.
// A document without operators replaces everything but _id.
func applyUpdate(doc, update bson.M, inserting bool) error {
	if len(update) == 0 {
		return fmt.Errorf("memory: update document must not be empty")
	}
	hasOps, hasFields := false, false
	for k := range update {
		if strings.HasPrefix(k, "$") {
			hasOps = true
		} else {
			hasFields = true
		}
	}
	if hasOps && hasFields {
		return fmt.Errorf("memory: update document mixes operators and fields")
	}

	if !hasOps {
		oid := doc["_id"]
		for k := range doc {
			delete(doc, k)
		}
		for k, v := range update {
			doc[k] = cloneValue(v)
		}
		if oid != nil {
			doc["_id"] = oid
		}
		return nil
	}

	for op, arg := range update {
		fields, ok := toM(arg)
		if !ok {
			return fmt.Errorf("memory: %s needs a document", op)
		}
		for path, v := range fields {
			if path == "_id" && op != "$setOnInsert" {
				if cur, exists := doc["_id"]; exists && !equal(cur, v) {
					return fmt.Errorf("memory: performing an update on the path '_id' would modify the immutable field '_id'")
				}
			}
			switch op {
			case "$set":
				setPath(doc, path, cloneValue(v))
			case "$setOnInsert":
				if inserting {
					setPath(doc, path, cloneValue(v))
				}
			case "$unset":
				unsetPath(doc, path)
			case "$inc":
				if err := incPath(doc, path, v); err != nil {
					return err
				}
			case "$push":
				cur, _ := lookup(doc, path)
				arr, isArr := toSlice(cur)
				if cur != nil && !isArr {
					return fmt.Errorf("memory: $push target %s is not an array", path)
				}
				next := make(bson.A, 0, len(arr)+1)
				for _, e := range arr {
					next = append(next, cloneValue(e))
				}
				setPath(doc, path, append(next, cloneValue(v)))
			default:
				return fmt.Errorf("memory: unknown update operator: %s", op)
			}
		}
	}
	return nil
}

func incPath(doc bson.M, path string, by any) error {
	if _, ok := number(by); !ok {
		return fmt.Errorf("memory: cannot $inc with non-numeric argument for %s", path)
	}
	cur, exists := lookup(doc, path)
	if !exists || cur == nil {
		setPath(doc, path, by)
		return nil
	}
	if _, ok := number(cur); !ok {
		return fmt.Errorf("memory: cannot apply $inc to non-numeric field %s", path)
	}
	ci, curInt := integer(cur)
	bi, byInt := integer(by)
	if curInt && byInt {
		setPath(doc, path, ci+bi)
		return nil
	}
	cf, _ := number(cur)
	bf, _ := number(by)
	setPath(doc, path, cf+bf)
	return nil
}

// upsertSeed extracts the equality fields of a filter, which MongoDB copies
// into a document created by an upsert.
func upsertSeed(filter bson.M) bson.M {
	seed := bson.M{}
	for k, v := range filter {
		if strings.HasPrefix(k, "$") {
			continue
		}
		if ops, ok := toM(v); ok && isOperatorDoc(ops) {
			if eq, has := ops["$eq"]; has {
				setPath(seed, k, cloneValue(eq))
			}
			continue
		}
		setPath(seed, k, cloneValue(v))
	}
	return seed
}

// project applies an inclusion or exclusion projection.
func project(doc, proj bson.M) bson.M {
	if len(proj) == 0 {
		return doc
	}
	include := false
	for k, v := range proj {
		if k != "_id" && truthy(v) {
			include = true
			break
		}
	}

	if include {
		out := bson.M{}
		if v, ok := proj["_id"]; !ok || truthy(v) {
			if oid, has := doc["_id"]; has {
				out["_id"] = oid
			}
		}
		for k, v := range proj {
			if k == "_id" || !truthy(v) {
				continue
			}
			if val, ok := lookup(doc, k); ok {
				setPath(out, k, val)
			}
		}
		return out
	}

	out := cloneDoc(doc)
	for k, v := range proj {
		if !truthy(v) {
			unsetPath(out, k)
		}
	}
	return out
}
