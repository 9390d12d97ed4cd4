package typegoose

import "strings"

// Shape is an ordered set of field descriptors keyed by name
type Shape struct {
	fields []FieldDescriptor
	index  map[string]int
}

// NewShape builds a shape from fields; later fields shadow earlier ones with the same name.
func NewShape(fields ...FieldDescriptor) *Shape {
	s := &Shape{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		s.set(f)
	}
	return s
}

// set shadows an existing field in place or appends a new one
func (s *Shape) set(f FieldDescriptor) {
	f = f.clone()
	if i, exists := s.index[f.Name]; exists {
		s.fields[i] = f
		return
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
}

func (s *Shape) clone() *Shape {
	return NewShape(s.fields...)
}

// Extend returns a new shape: s with the fields of child shadowing
// same-named fields where they stand and new fields appended.
func (s *Shape) Extend(child *Shape) *Shape {
	out := s.clone()
	for _, f := range child.fields {
		out.set(f)
	}
	return out
}

// Append returns a new shape with the fields of s followed by the fields of
// other. A field of s redeclared by other moves to the position other gives it.
func (s *Shape) Append(other *Shape) *Shape {
	out := NewShape()
	for _, f := range s.fields {
		if _, redeclared := other.index[f.Name]; !redeclared {
			out.set(f)
		}
	}
	for _, f := range other.fields {
		out.set(f)
	}
	return out
}

// Len returns the number of top-level fields
func (s *Shape) Len() int { return len(s.fields) }

// Names returns the top-level field names in order
func (s *Shape) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the top-level fields in order
func (s *Shape) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.clone()
	}
	return out
}

// Field returns the field at a dotted path, descending into subdocuments
func (s *Shape) Field(path string) (FieldDescriptor, bool) {
	head, rest, nested := strings.Cut(path, ".")
	i, exists := s.index[head]
	if !exists {
		return FieldDescriptor{}, false
	}
	f := s.fields[i]
	if !nested {
		return f.clone(), true
	}
	if f.Type != TypeSubdocument {
		return FieldDescriptor{}, false
	}
	return NewShape(f.Fields...).Field(rest)
}

// walk visits every field depth-first, with its dotted path
func (s *Shape) walk(fn func(path string, f FieldDescriptor) error) error {
	return walkFields("", s.fields, fn)
}

func walkFields(prefix string, fields []FieldDescriptor, fn func(string, FieldDescriptor) error) error {
	for _, f := range fields {
		path := prefix + f.Name
		if err := fn(path, f); err != nil {
			return err
		}
		if len(f.Fields) > 0 {
			if err := walkFields(path+".", f.Fields, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
