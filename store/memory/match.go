package memory

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// matches evaluates a MongoDB query filter against doc. Supported: implicit
// equality, $and/$or/$nor and the comparison, set and existence operators.
func matches(doc, filter bson.M) (bool, error) {
	for key, cond := range filter {
		ok, err := matchKey(doc, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchKey(doc bson.M, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, ok := toSlice(cond)
		if !ok || len(clauses) == 0 {
			return false, fmt.Errorf("memory: %s must be a nonempty array", key)
		}
		for _, c := range clauses {
			sub, ok := toM(c)
			if !ok {
				return false, fmt.Errorf("memory: %s entries must be documents", key)
			}
			hit, err := matches(doc, sub)
			if err != nil {
				return false, err
			}
			switch {
			case key == "$and" && !hit:
				return false, nil
			case key == "$or" && hit:
				return true, nil
			case key == "$nor" && hit:
				return false, nil
			}
		}
		return key != "$or", nil
	}
	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("memory: unknown top level operator: %s", key)
	}

	val, exists := lookup(doc, key)
	if ops, ok := toM(cond); ok && isOperatorDoc(ops) {
		for op, arg := range ops {
			hit, err := matchOp(val, exists, op, arg)
			if err != nil || !hit {
				return false, err
			}
		}
		return true, nil
	}
	return matchEq(val, exists, cond), nil
}

// matchEq implements equality, including "array contains" semantics.
func matchEq(val any, exists bool, want any) bool {
	if !exists {
		return want == nil
	}
	if equal(val, want) {
		return true
	}
	if arr, ok := toSlice(val); ok {
		for _, e := range arr {
			if equal(e, want) {
				return true
			}
		}
	}
	return false
}

func matchOp(val any, exists bool, op string, arg any) (bool, error) {
	switch op {
	case "$eq":
		return matchEq(val, exists, arg), nil
	case "$ne":
		return !matchEq(val, exists, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !exists {
			return false, nil
		}
		return anyElement(val, func(v any) bool {
			if typeRank(v) != typeRank(arg) {
				return false
			}
			c := compare(v, arg)
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			}
			return c <= 0
		}), nil
	case "$in", "$nin":
		set, ok := toSlice(arg)
		if !ok {
			return false, fmt.Errorf("memory: %s needs an array", op)
		}
		hit := false
		for _, want := range set {
			if matchEq(val, exists, want) {
				hit = true
				break
			}
		}
		if op == "$nin" {
			return !hit, nil
		}
		return hit, nil
	case "$exists":
		return exists == truthy(arg), nil
	case "$regex":
		var pattern string
		switch r := arg.(type) {
		case string:
			pattern = r
		case bson.Regex:
			pattern = r.Pattern
			if r.Options != "" {
				pattern = "(?" + r.Options + ")" + pattern
			}
		default:
			return false, fmt.Errorf("memory: $regex needs a string")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("memory: $regex: %w", err)
		}
		return anyElement(val, func(v any) bool {
			s, isStr := v.(string)
			return isStr && re.MatchString(s)
		}), nil
	case "$not":
		sub, ok := toM(arg)
		if !ok {
			return false, fmt.Errorf("memory: $not needs a document")
		}
		for subOp, subArg := range sub {
			hit, err := matchOp(val, exists, subOp, subArg)
			if err != nil {
				return false, err
			}
			if !hit {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("memory: unknown operator: %s", op)
	}
}

func anyElement(val any, fn func(any) bool) bool {
	if fn(val) {
		return true
	}
	if arr, ok := toSlice(val); ok {
		for _, e := range arr {
			if fn(e) {
				return true
			}
		}
	}
	return false
}
