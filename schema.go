package typegoose

import (
	"maps"
	"slices"
	"sort"
)

// Schema is a synthesized schema. It never changes after synthesis; every
// accessor hands out copies.
type Schema struct {
	name          string
	parent        string
	extended      bool
	discriminator string
	shape         *Shape
	options       SchemaOptions
	statics       map[string]StaticFunc
	methods       map[string]MethodFunc
	hooks         Hooks
	virtuals      map[string]Virtual
	plugins       []PluginBinding
}

// Name returns the class name the schema was synthesized for
func (s *Schema) Name() string { return s.name }

// Parent returns the class the schema was built on, if any
func (s *Schema) Parent() string { return s.parent }

// Extended reports whether the schema was composed discriminator-style
func (s *Schema) Extended() bool { return s.extended }

// Discriminator returns the discriminator key and this class's value for it.
// ok is false for schemas that are not tagged.
func (s *Schema) Discriminator() (key, value string, ok bool) {
	if s.discriminator == "" {
		return "", "", false
	}
	return s.discriminator, s.name, true
}

// Shape returns a copy of the merged field shape
func (s *Schema) Shape() *Shape { return s.shape.clone() }

// Field returns the field at a dotted path
func (s *Schema) Field(path string) (FieldDescriptor, bool) { return s.shape.Field(path) }

// Options returns a copy of the effective schema options
func (s *Schema) Options() SchemaOptions { return s.options.clone() }

// Statics returns a copy of the static method table
func (s *Schema) Statics() map[string]StaticFunc { return maps.Clone(s.statics) }

// Methods returns a copy of the instance method table
func (s *Schema) Methods() map[string]MethodFunc { return maps.Clone(s.methods) }

// Hooks returns a copy of the pre and post hook sequences
func (s *Schema) Hooks() Hooks { return s.hooks.clone() }

// Virtuals returns a copy of the virtual table
func (s *Schema) Virtuals() map[string]Virtual { return maps.Clone(s.virtuals) }

// Plugins returns a copy of the plugin sequence
func (s *Schema) Plugins() []PluginBinding { return slices.Clone(s.plugins) }

// SchemaDescription is a serializable view of a schema
type SchemaDescription struct {
	Name             string            `json:"name" yaml:"name"`
	Parent           string            `json:"parent,omitempty" yaml:"parent,omitempty"`
	Extended         bool              `json:"extended,omitempty" yaml:"extended,omitempty"`
	Collection       string            `json:"collection,omitempty" yaml:"collection,omitempty"`
	DiscriminatorKey string            `json:"discriminator_key,omitempty" yaml:"discriminator_key,omitempty"`
	Paths            []PathDescription `json:"paths" yaml:"paths"`
	Statics          []string          `json:"statics,omitempty" yaml:"statics,omitempty"`
	Methods          []string          `json:"methods,omitempty" yaml:"methods,omitempty"`
	Virtuals         []string          `json:"virtuals,omitempty" yaml:"virtuals,omitempty"`
	PreHooks         []string          `json:"pre_hooks,omitempty" yaml:"pre_hooks,omitempty"`
	PostHooks        []string          `json:"post_hooks,omitempty" yaml:"post_hooks,omitempty"`
	Plugins          int               `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// PathDescription is a serializable view of one field
type PathDescription struct {
	Name     string            `json:"name" yaml:"name"`
	Type     FieldType         `json:"type" yaml:"type"`
	Array    bool              `json:"array,omitempty" yaml:"array,omitempty"`
	Ref      string            `json:"ref,omitempty" yaml:"ref,omitempty"`
	KeyType  KeyType           `json:"key_type,omitempty" yaml:"key_type,omitempty"`
	Required bool              `json:"required,omitempty" yaml:"required,omitempty"`
	Unique   bool              `json:"unique,omitempty" yaml:"unique,omitempty"`
	Paths    []PathDescription `json:"paths,omitempty" yaml:"paths,omitempty"`
}

// Describe returns a serializable view of the schema
func (s *Schema) Describe() SchemaDescription {
	d := SchemaDescription{
		Name:             s.name,
		Parent:           s.parent,
		Extended:         s.extended,
		Collection:       s.options.Collection,
		DiscriminatorKey: s.discriminator,
		Paths:            describeFields(s.shape.fields),
		Statics:          sortedKeys(s.statics),
		Methods:          sortedKeys(s.methods),
		Virtuals:         sortedKeys(s.virtuals),
		Plugins:          len(s.plugins),
	}
	for _, h := range s.hooks.Pre {
		d.PreHooks = append(d.PreHooks, h.Event)
	}
	for _, h := range s.hooks.Post {
		d.PostHooks = append(d.PostHooks, h.Event)
	}
	return d
}

func describeFields(fields []FieldDescriptor) []PathDescription {
	out := make([]PathDescription, 0, len(fields))
	for _, f := range fields {
		p := PathDescription{
			Name:     f.Name,
			Type:     f.Type,
			Array:    f.IsArray,
			Required: f.Options.Required,
			Unique:   f.Options.Unique,
		}
		if f.Ref != nil {
			p.Ref, p.KeyType = f.Ref.Target, f.Ref.KeyType
		}
		if len(f.Fields) > 0 {
			p.Paths = describeFields(f.Fields)
		}
		out = append(out, p)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
