package typegoose

import (
	"bytes"
	"reflect"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// =====================================
// Document Values
// =====================================

// NormalizeValue converts the bson container types an engine may decode into
// (bson.M, bson.D, bson.A) into plain maps and slices, recursively.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case primitive.M:
		return NormalizeMap(t)
	case map[string]any:
		return NormalizeMap(t)
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = NormalizeValue(e.Value)
		}
		return out
	case primitive.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	case primitive.Binary:
		if t.Subtype == 0x00 {
			return t.Data
		}
		return t
	case primitive.DateTime:
		return t.Time().UTC()
	case []byte, nil:
		return v
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = NormalizeValue(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

// NormalizeMap applies NormalizeValue to every value of m
func NormalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = NormalizeValue(v)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = NormalizeValue(v)
	}
	return out
}

// LookupPath returns the value at a dotted path of doc
func LookupPath(doc map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := doc[head]
	if !ok || !nested {
		return v, ok
	}
	switch sub := NormalizeValue(v).(type) {
	case map[string]any:
		return LookupPath(sub, rest)
	default:
		return nil, false
	}
}

// NumberValue returns v as a float64 if it is a Go number of any type
func NumberValue(v any) (float64, bool) {
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

// ValuesEqual compares two document values. Numbers compare by value
// regardless of their Go type.
func ValuesEqual(a, b any) bool {
	a, b = NormalizeValue(a), NormalizeValue(b)
	if fa, ok := NumberValue(a); ok {
		fb, ok := NumberValue(b)
		return ok && fa == fb
	}
	switch ta := a.(type) {
	case []byte:
		tb, ok := b.([]byte)
		return ok && bytes.Equal(ta, tb)
	case time.Time:
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !ValuesEqual(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, v := range ta {
			if w, exists := tb[k]; !exists || !ValuesEqual(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// CompareValues orders two document values: nil first, then numbers,
// strings, object ids, booleans and dates. Values of different kinds compare
// by that rank.
func CompareValues(a, b any) int {
	a, b = NormalizeValue(a), NormalizeValue(b)
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ta := a.(type) {
	case string:
		return strings.Compare(ta, b.(string))
	case primitive.ObjectID:
		tb := b.(primitive.ObjectID)
		return bytes.Compare(ta[:], tb[:])
	case bool:
		tb := b.(bool)
		switch {
		case ta == tb:
			return 0
		case !ta:
			return -1
		default:
			return 1
		}
	case time.Time:
		return ta.Compare(b.(time.Time))
	}
	if fa, ok := NumberValue(a); ok {
		fb, _ := NumberValue(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	}
	return 0
}

func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := NumberValue(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case primitive.ObjectID:
		return 3
	case bool:
		return 4
	case time.Time:
		return 5
	default:
		return 6
	}
}

// MatchFilter reports whether doc matches filter. A filter maps dotted paths
// to a value, or to {"$in": [...]}. Array fields match when any element does.
func MatchFilter(doc, filter map[string]any) bool {
	for path, want := range filter {
		got, _ := LookupPath(doc, path)
		if in, ok := NormalizeValue(want).(map[string]any); ok {
			if values, ok := inValues(in); ok {
				if !matchAny(got, values) {
					return false
				}
				continue
			}
		}
		if !matchAny(got, []any{want}) {
			return false
		}
	}
	return true
}

func inValues(m map[string]any) ([]any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	raw, ok := m["$in"]
	if !ok {
		return nil, false
	}
	rv := reflect.ValueOf(NormalizeValue(raw))
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}

func matchAny(got any, candidates []any) bool {
	for _, c := range candidates {
		if ValuesEqual(got, c) {
			return true
		}
		if arr, ok := NormalizeValue(got).([]any); ok {
			for _, el := range arr {
				if ValuesEqual(el, c) {
					return true
				}
			}
		}
	}
	return false
}

// SortDocuments sorts docs in place by orders, keeping storage order for ties.
func SortDocuments(docs []map[string]any, orders []Order) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orders {
			a, _ := LookupPath(docs[i], o.Field)
			b, _ := LookupPath(docs[j], o.Field)
			c := CompareValues(a, b)
			if c == 0 {
				continue
			}
			if o.Direction == OrderDesc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// PageDocuments applies the skip and limit of q to docs.
func PageDocuments(docs []map[string]any, q *FindQuery) []map[string]any {
	if q == nil {
		return docs
	}
	if q.Skip != nil {
		if *q.Skip >= len(docs) {
			return nil
		}
		if *q.Skip > 0 {
			docs = docs[*q.Skip:]
		}
	}
	if q.Limit != nil && *q.Limit > 0 && *q.Limit < len(docs) {
		docs = docs[:*q.Limit]
	}
	return docs
}
