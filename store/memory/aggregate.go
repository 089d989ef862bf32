package memory

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// aggregate runs a pipeline over docs. It supports the stages used by
// reporting queries: $match, $project, $group, $sort, $skip, $limit and
// $count. Anything else is rejected the way a server rejects an unknown
// stage.
func aggregate(docs []bson.M, pipeline any) ([]bson.M, error) {
	stages, err := pipelineStages(pipeline)
	if err != nil {
		return nil, err
	}

	for _, stage := range stages {
		if len(stage) != 1 {
			return nil, fmt.Errorf("memory: a pipeline stage specification object must contain exactly one field")
		}
		for name, spec := range stage {
			docs, err = runStage(docs, name, spec)
			if err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

func pipelineStages(pipeline any) ([]bson.M, error) {
	if pipeline == nil {
		return nil, nil
	}
	raw, ok := toSlice(pipeline)
	if !ok {
		return nil, fmt.Errorf("memory: pipeline must be an array, got %T", pipeline)
	}
	stages := make([]bson.M, 0, len(raw))
	for _, s := range raw {
		m, ok := toM(s)
		if !ok {
			return nil, fmt.Errorf("memory: pipeline stage must be a document, got %T", s)
		}
		stages = append(stages, m)
	}
	return stages, nil
}

func runStage(docs []bson.M, name string, spec any) ([]bson.M, error) {
	switch name {
	case "$match":
		filter, ok := toM(spec)
		if !ok {
			return nil, fmt.Errorf("memory: $match needs a document")
		}
		out := make([]bson.M, 0, len(docs))
		for _, d := range docs {
			hit, err := matches(d, filter)
			if err != nil {
				return nil, err
			}
			if hit {
				out = append(out, d)
			}
		}
		return out, nil
	case "$project":
		proj, ok := toM(spec)
		if !ok {
			return nil, fmt.Errorf("memory: $project needs a document")
		}
		out := make([]bson.M, 0, len(docs))
		for _, d := range docs {
			out = append(out, projectStage(d, proj))
		}
		return out, nil
	case "$group":
		g, ok := toM(spec)
		if !ok {
			return nil, fmt.Errorf("memory: $group needs a document")
		}
		return group(docs, g)
	case "$sort":
		keys, err := sortSpec(spec)
		if err != nil {
			return nil, err
		}
		out := append([]bson.M(nil), docs...)
		sortDocs(out, keys)
		return out, nil
	case "$skip":
		n, ok := integer(spec)
		if !ok || n < 0 {
			return nil, fmt.Errorf("memory: $skip needs a non-negative integer")
		}
		if int(n) >= len(docs) {
			return []bson.M{}, nil
		}
		return docs[n:], nil
	case "$limit":
		n, ok := integer(spec)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("memory: $limit needs a positive integer")
		}
		if int(n) < len(docs) {
			return docs[:n], nil
		}
		return docs, nil
	case "$count":
		field, ok := spec.(string)
		if !ok || field == "" || strings.HasPrefix(field, "$") {
			return nil, fmt.Errorf("memory: $count needs a field name")
		}
		if len(docs) == 0 {
			return []bson.M{}, nil
		}
		return []bson.M{{field: int64(len(docs))}}, nil
	default:
		return nil, fmt.Errorf("memory: unrecognized pipeline stage name: '%s'", name)
	}
}

// eval resolves an aggregation expression: "$path" references, nested
// expression documents, and literals.
func eval(doc bson.M, expr any) any {
	switch e := expr.(type) {
	case string:
		if strings.HasPrefix(e, "$") {
			v, _ := lookup(doc, e[1:])
			return v
		}
		return e
	}
	if m, ok := toM(expr); ok {
		if lit, has := m["$literal"]; has && len(m) == 1 {
			return lit
		}
		out := bson.M{}
		for k, v := range m {
			out[k] = eval(doc, v)
		}
		return out
	}
	return expr
}

func projectStage(doc, proj bson.M) bson.M {
	exclusion := true
	for k, v := range proj {
		if k == "_id" {
			continue
		}
		if _, isNum := number(v); isNum || isBool(v) {
			if truthy(v) {
				exclusion = false
			}
			continue
		}
		exclusion = false
	}
	if exclusion {
		return project(doc, proj)
	}

	out := bson.M{}
	if v, ok := proj["_id"]; !ok || truthy(v) {
		if ok && !isFlag(v) {
			out["_id"] = eval(doc, v)
		} else if oid, has := doc["_id"]; has {
			out["_id"] = oid
		}
	}
	for k, v := range proj {
		if k == "_id" {
			continue
		}
		if isFlag(v) {
			if truthy(v) {
				if val, ok := lookup(doc, k); ok {
					setPath(out, k, val)
				}
			}
			continue
		}
		setPath(out, k, eval(doc, v))
	}
	return out
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func isFlag(v any) bool {
	_, isNum := number(v)
	return isNum || isBool(v)
}

type groupState struct {
	key  any
	out  bson.M
	accs map[string]*accumulator
}

func group(docs []bson.M, spec bson.M) ([]bson.M, error) {
	keyExpr, ok := spec["_id"]
	if !ok {
		return nil, fmt.Errorf("memory: a group specification must include an _id")
	}

	type accSpec struct {
		field string
		op    string
		expr  any
	}
	specs := make([]accSpec, 0, len(spec))
	for field, v := range spec {
		if field == "_id" {
			continue
		}
		m, ok := toM(v)
		if !ok || len(m) != 1 {
			return nil, fmt.Errorf("memory: the field '%s' must be an accumulator object", field)
		}
		for op, expr := range m {
			switch op {
			case "$sum", "$avg", "$min", "$max", "$first", "$last", "$push", "$addToSet":
			default:
				return nil, fmt.Errorf("memory: unknown group operator '%s'", op)
			}
			specs = append(specs, accSpec{field: field, op: op, expr: expr})
		}
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].field < specs[j].field })

	var groups []*groupState
	for _, d := range docs {
		key := eval(d, keyExpr)
		var g *groupState
		for _, cand := range groups {
			if equal(cand.key, key) {
				g = cand
				break
			}
		}
		if g == nil {
			g = &groupState{key: key, out: bson.M{"_id": key}, accs: make(map[string]*accumulator, len(specs))}
			for _, s := range specs {
				g.accs[s.field] = &accumulator{op: s.op}
			}
			groups = append(groups, g)
		}
		for _, s := range specs {
			g.accs[s.field].add(eval(d, s.expr))
		}
	}

	out := make([]bson.M, 0, len(groups))
	for _, g := range groups {
		for field, acc := range g.accs {
			g.out[field] = acc.result()
		}
		out = append(out, g.out)
	}
	return out, nil
}

type accumulator struct {
	op       string
	count    int64
	intSum   int64
	floatSum float64
	isFloat  bool
	value    any
	set      bool
	items    bson.A
}

func (a *accumulator) add(v any) {
	switch a.op {
	case "$sum", "$avg":
		if i, ok := integer(v); ok && !a.isFloat {
			a.intSum += i
			a.count++
			return
		}
		if f, ok := number(v); ok {
			if !a.isFloat {
				a.floatSum = float64(a.intSum)
				a.isFloat = true
			}
			a.floatSum += f
			a.count++
		}
	case "$min", "$max":
		if v == nil {
			return
		}
		if !a.set {
			a.value, a.set = v, true
			return
		}
		c := compare(v, a.value)
		if (a.op == "$min" && c < 0) || (a.op == "$max" && c > 0) {
			a.value = v
		}
	case "$first":
		if !a.set {
			a.value, a.set = v, true
		}
	case "$last":
		a.value, a.set = v, true
	case "$push":
		a.items = append(a.items, v)
	case "$addToSet":
		for _, e := range a.items {
			if equal(e, v) {
				return
			}
		}
		a.items = append(a.items, v)
	}
}

func (a *accumulator) result() any {
	switch a.op {
	case "$sum":
		if a.isFloat {
			return a.floatSum
		}
		return a.intSum
	case "$avg":
		if a.count == 0 {
			return nil
		}
		if a.isFloat {
			return a.floatSum / float64(a.count)
		}
		return float64(a.intSum) / float64(a.count)
	case "$push", "$addToSet":
		if a.items == nil {
			return bson.A{}
		}
		return a.items
	default:
		return a.value
	}
}

// sortSpec accepts bson.D (ordered) or a single-key document.
func sortSpec(spec any) (bson.D, error) {
	if d, ok := spec.(bson.D); ok {
		return d, nil
	}
	m, ok := toM(spec)
	if !ok || len(m) == 0 {
		return nil, fmt.Errorf("memory: $sort needs a nonempty document")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Unordered maps lose key order; fall back to a deterministic one.
	sort.Strings(keys)
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d, nil
}

func sortDocs(docs []bson.M, keys bson.D) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			dir := 1
			if f, ok := number(k.Value); ok && f < 0 {
				dir = -1
			}
			vi, _ := lookup(docs[i], k.Key)
			vj, _ := lookup(docs[j], k.Key)
			if c := compare(vi, vj) * dir; c != 0 {
				return c < 0
			}
		}
		return false
	})
}
