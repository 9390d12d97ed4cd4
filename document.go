package typegoose

import (
	"context"
	"maps"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// =====================================
// Documents
// =====================================

// Document is one runtime document of a model: a field map plus the behavior
// the model's schema attached to it.
type Document struct {
	model    *Model
	fields   map[string]any
	isNew    bool
	modified map[string]bool
}

// Model returns the model that produced the document
func (d *Document) Model() *Model { return d.model }

// ClassName returns the class of the model that produced the document
func (d *Document) ClassName() string { return d.model.name }

// IsNew reports whether the document has never been saved
func (d *Document) IsNew() bool { return d.isNew }

// ID returns the _id of the document, nil before the first save
func (d *Document) ID() any { return d.fields["_id"] }

// Get returns the value at path. A virtual with a getter takes precedence
// over a stored field of the same name.
func (d *Document) Get(path string) any {
	if v, ok := d.model.handle.Virtual(path); ok && v.Get != nil {
		return v.Get(d)
	}
	v, _ := LookupPath(d.fields, path)
	return v
}

// Has reports whether a stored value exists at path
func (d *Document) Has(path string) bool {
	_, ok := LookupPath(d.fields, path)
	return ok
}

// Set assigns the value at path, creating intermediate subdocuments. A
// virtual with a setter receives the value instead.
func (d *Document) Set(path string, value any) {
	if v, ok := d.model.handle.Virtual(path); ok && v.Set != nil {
		v.Set(d, value)
		return
	}
	setPath(d.fields, path, NormalizeValue(value))
	d.markModified(path)
}

func (d *Document) markModified(path string) {
	if d.modified == nil {
		d.modified = make(map[string]bool)
	}
	d.modified[path] = true
}

// IsModified reports whether path, or a path below or above it, was set or
// unset since the document was loaded or last saved.
func (d *Document) IsModified(path string) bool {
	for p := range d.modified {
		if p == path || strings.HasPrefix(p, path+".") || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

// ModifiedPaths returns the paths set or unset since the last save, sorted
func (d *Document) ModifiedPaths() []string {
	return sortedKeys(d.modified)
}

// Unset removes the value at path
func (d *Document) Unset(path string) {
	parent := d.fields
	segments := strings.Split(path, ".")
	for _, seg := range segments[:len(segments)-1] {
		next, ok := parent[seg].(map[string]any)
		if !ok {
			return
		}
		parent = next
	}
	delete(parent, segments[len(segments)-1])
	d.markModified(path)
}

// Map returns a copy of the stored fields
func (d *Document) Map() map[string]any {
	return copyMap(d.fields)
}

// Call invokes an instance method of the document's model
func (d *Document) Call(ctx context.Context, method string, args ...any) (any, error) {
	fn, ok := d.model.handle.Method(method)
	if !ok {
		return nil, NewErrorf(ErrorTypeNotFound, "class %s has no method %s", d.model.name, method)
	}
	return fn(ctx, d, args...)
}

// Decode copies the stored fields into out, usually a pointer to the struct
// the class was declared from.
func (d *Document) Decode(out any) error {
	raw, err := bson.Marshal(d.fields)
	if err != nil {
		return NewErrorWithCause(ErrorTypeInvalidArgument, "cannot encode document of class "+d.model.name, err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return NewErrorWithCause(ErrorTypeInvalidArgument, "cannot decode document of class "+d.model.name, err)
	}
	return nil
}

func setPath(m map[string]any, path string, value any) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		m[head] = value
		return
	}
	sub, ok := m[head].(map[string]any)
	if !ok {
		sub = make(map[string]any)
		m[head] = sub
	}
	setPath(sub, rest, value)
}

func copyMap(m map[string]any) map[string]any {
	out := maps.Clone(m)
	for k, v := range out {
		switch t := v.(type) {
		case map[string]any:
			out[k] = copyMap(t)
		case []any:
			s := make([]any, len(t))
			for i, el := range t {
				if sub, ok := el.(map[string]any); ok {
					s[i] = copyMap(sub)
				} else {
					s[i] = el
				}
			}
			out[k] = s
		}
	}
	return out
}

// structToMap encodes a struct value into document fields
func structToMap(v any) (map[string]any, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return NormalizeMap(m), nil
}
