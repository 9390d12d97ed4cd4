package typegoose

import (
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Index describes a collection index
type Index struct {
	Name   string
	Keys   []string
	Unique bool
}

// Handle is the bindable form of a schema handed to an engine. NewHandle
// registers the schema's statics, methods, hooks, plugins and virtuals on it;
// plugins may add more before the model is built.
type Handle struct {
	schema   *Schema
	shape    *Shape
	statics  map[string]StaticFunc
	methods  map[string]MethodFunc
	pre      []HookBinding
	post     []HookBinding
	virtuals map[string]Virtual
	indexes  []Index
}

// NewHandle builds the engine handle of sch, applying plugins in order.
func NewHandle(sch *Schema) (*Handle, error) {
	h := &Handle{
		schema:   sch,
		shape:    sch.shape.clone(),
		statics:  make(map[string]StaticFunc),
		methods:  make(map[string]MethodFunc),
		virtuals: make(map[string]Virtual),
	}

	maps.Copy(h.statics, sch.statics)
	maps.Copy(h.methods, sch.methods)
	for _, b := range sch.hooks.Pre {
		h.Pre(b.Event, b.Handler, b.Options)
	}
	for _, b := range sch.hooks.Post {
		h.Post(b.Event, b.Handler, b.Options)
	}
	_ = sch.shape.walk(func(path string, f FieldDescriptor) error {
		if f.Options.Unique || f.Options.Index {
			h.AddIndex(Index{Keys: []string{path}, Unique: f.Options.Unique})
		}
		return nil
	})
	for i, p := range sch.plugins {
		if err := p.Plugin(h, maps.Clone(p.Options)); err != nil {
			return nil, NewErrorWithCause(ErrorTypeInvalidArgument, "plugin failed on schema "+sch.name, err)
		}
		Logger().Debug("plugin applied", zap.String("class", sch.name), zap.Int("plugin", i))
	}
	for name, v := range sch.virtuals {
		h.AddVirtual(name, v)
	}
	return h, nil
}

// Schema returns the synthesized schema behind the handle
func (h *Handle) Schema() *Schema { return h.schema }

// Name returns the class name
func (h *Handle) Name() string { return h.schema.name }

// CollectionName returns the collection the model is stored in: the
// Collection option, or the lowercased class name with an "s" suffix.
func (h *Handle) CollectionName() string {
	if c := h.schema.options.Collection; c != "" {
		return c
	}
	name := strings.ToLower(h.schema.name)
	if !strings.HasSuffix(name, "s") {
		name += "s"
	}
	return name
}

// AddField adds or shadows a top-level field
func (h *Handle) AddField(f FieldDescriptor) { h.shape.set(f) }

// Shape returns a copy of the handle's fields, including plugin additions
func (h *Handle) Shape() *Shape { return h.shape.clone() }

// Field returns the field at a dotted path
func (h *Handle) Field(path string) (FieldDescriptor, bool) { return h.shape.Field(path) }

// AddStatic adds or replaces a static method
func (h *Handle) AddStatic(name string, fn StaticFunc) { h.statics[name] = fn }

// AddMethod adds or replaces an instance method
func (h *Handle) AddMethod(name string, fn MethodFunc) { h.methods[name] = fn }

// Static returns a static method
func (h *Handle) Static(name string) (StaticFunc, bool) {
	fn, ok := h.statics[name]
	return fn, ok
}

// Method returns an instance method
func (h *Handle) Method(name string) (MethodFunc, bool) {
	fn, ok := h.methods[name]
	return fn, ok
}

// Pre appends a hook running before event
func (h *Handle) Pre(event string, fn HookFunc, opts HookOptions) {
	h.pre = append(h.pre, HookBinding{Event: event, Handler: fn, Options: opts})
}

// Post appends a hook running after event
func (h *Handle) Post(event string, fn HookFunc, opts HookOptions) {
	h.post = append(h.post, HookBinding{Event: event, Handler: fn, Options: opts})
}

// Hooks returns the hooks of one phase bound to event, in registration order
func (h *Handle) Hooks(phase Phase, event string) []HookBinding {
	src := h.pre
	if phase == PhasePost {
		src = h.post
	}
	var out []HookBinding
	for _, b := range src {
		if b.Event == event {
			out = append(out, b)
		}
	}
	return out
}

// AddVirtual sets the accessors of a virtual; nil accessors keep existing ones
func (h *Handle) AddVirtual(name string, v Virtual) {
	cur := h.virtuals[name]
	if v.Get != nil {
		cur.Get = v.Get
	}
	if v.Set != nil {
		cur.Set = v.Set
	}
	h.virtuals[name] = cur
}

// Virtual returns a virtual
func (h *Handle) Virtual(name string) (Virtual, bool) {
	v, ok := h.virtuals[name]
	return v, ok
}

// AddIndex adds an index; an index over the same keys is replaced
func (h *Handle) AddIndex(idx Index) {
	if idx.Name == "" {
		idx.Name = strings.Join(idx.Keys, "_") + "_1"
	}
	for i := range h.indexes {
		if slices.Equal(h.indexes[i].Keys, idx.Keys) {
			h.indexes[i] = idx
			return
		}
	}
	h.indexes = append(h.indexes, idx)
}

// Indexes returns the indexes to ensure on the collection
func (h *Handle) Indexes() []Index { return slices.Clone(h.indexes) }
