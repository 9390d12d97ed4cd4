package typegoose

import (
	"context"
	"maps"
	"reflect"
	"slices"
)

// =====================================
// Class Metadata
// =====================================

// MethodFunc is an instance method bound to documents of a model
type MethodFunc func(ctx context.Context, doc *Document, args ...any) (any, error)

// StaticFunc is a static method bound to a model
type StaticFunc func(ctx context.Context, model *Model, args ...any) (any, error)

// HookFunc runs before or after a model event
type HookFunc func(ctx context.Context, hc *HookContext) error

// Getter computes a virtual property
type Getter func(doc *Document) any

// Setter assigns a virtual property
type Setter func(doc *Document, value any)

// PluginFunc extends a schema handle before its model is built
type PluginFunc func(h *Handle, options map[string]any) error

// HookOptions is passed through to the hook binding untouched
type HookOptions map[string]any

// HookBinding is one registered hook
type HookBinding struct {
	Event   string
	Handler HookFunc
	Options HookOptions
}

// Hooks holds the ordered pre and post hook sequences
type Hooks struct {
	Pre  []HookBinding
	Post []HookBinding
}

func (h Hooks) clone() Hooks {
	return Hooks{Pre: slices.Clone(h.Pre), Post: slices.Clone(h.Post)}
}

// concat returns h followed by other, for both phases.
func (h Hooks) concat(other Hooks) Hooks {
	return Hooks{
		Pre:  append(slices.Clone(h.Pre), other.Pre...),
		Post: append(slices.Clone(h.Post), other.Post...),
	}
}

// Virtual is a getter/setter pair for a computed property
type Virtual struct {
	Get Getter
	Set Setter
}

// PluginBinding is one registered plugin with its options
type PluginBinding struct {
	Plugin  PluginFunc
	Options map[string]any
}

// SchemaOptions are schema-level settings
type SchemaOptions struct {
	Collection       string         `json:"collection,omitempty" yaml:"collection,omitempty"`
	DiscriminatorKey string         `json:"discriminator_key,omitempty" yaml:"discriminator_key,omitempty"`
	Timestamps       bool           `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
	Extra            map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func (o SchemaOptions) clone() SchemaOptions {
	o.Extra = maps.Clone(o.Extra)
	return o
}

// FieldDescriptor describes one declared field. A non-nil Ref makes the field
// a reference; IsArray makes the stored value a sequence of the element type.
type FieldDescriptor struct {
	Name    string
	Type    FieldType
	IsArray bool
	Ref     *Reference
	Fields  []FieldDescriptor // subdocument paths
	Options PropOptions
}

// IsReference reports whether the field points at another class
func (f FieldDescriptor) IsReference() bool {
	return f.Ref != nil
}

func (f FieldDescriptor) clone() FieldDescriptor {
	if f.Ref != nil {
		ref := *f.Ref
		f.Ref = &ref
	}
	if f.Fields != nil {
		fields := make([]FieldDescriptor, len(f.Fields))
		for i, sub := range f.Fields {
			fields[i] = sub.clone()
		}
		f.Fields = fields
	}
	f.Options.Enum = slices.Clone(f.Options.Enum)
	f.Options.Raw = maps.Clone(f.Options.Raw)
	return f
}

// ClassMetadata contains everything collected for one declared class
type ClassMetadata struct {
	Name    string
	Parent  string
	Extends string
	GoType  reflect.Type
	State   State

	Fields          []FieldDescriptor
	InstanceMethods map[string]MethodFunc
	StaticMethods   map[string]StaticFunc
	Hooks           Hooks
	Virtuals        map[string]Virtual
	Plugins         []PluginBinding
	SchemaOptions   *SchemaOptions
}

func newClassMetadata(name string) *ClassMetadata {
	return &ClassMetadata{
		Name:            name,
		State:           StateMetadataCollected,
		InstanceMethods: make(map[string]MethodFunc),
		StaticMethods:   make(map[string]StaticFunc),
		Virtuals:        make(map[string]Virtual),
	}
}

// Field returns the declared field with the given name
func (c *ClassMetadata) Field(name string) (FieldDescriptor, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// base returns the class this one builds on, and whether it is a
// discriminator-style extension rather than plain inheritance.
func (c *ClassMetadata) base() (string, bool) {
	if c.Extends != "" {
		return c.Extends, true
	}
	return c.Parent, false
}

func (c *ClassMetadata) clone() *ClassMetadata {
	cp := *c
	cp.Fields = make([]FieldDescriptor, len(c.Fields))
	for i, f := range c.Fields {
		cp.Fields[i] = f.clone()
	}
	cp.InstanceMethods = maps.Clone(c.InstanceMethods)
	cp.StaticMethods = maps.Clone(c.StaticMethods)
	cp.Virtuals = maps.Clone(c.Virtuals)
	cp.Hooks = c.Hooks.clone()
	cp.Plugins = slices.Clone(c.Plugins)
	if c.SchemaOptions != nil {
		opts := c.SchemaOptions.clone()
		cp.SchemaOptions = &opts
	}
	return &cp
}
