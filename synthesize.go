package typegoose

import (
	"maps"
	"slices"

	"go.uber.org/zap"
)

// Synthesizer turns collected class metadata into schemas. Each class is
// synthesized at most once per store; later calls, from this or any other
// synthesizer over the same store, return the cached schema.
type Synthesizer struct {
	store *Store
}

// NewSynthesizer creates a synthesizer reading from store
func NewSynthesizer(store *Store) *Synthesizer {
	return &Synthesizer{store: store}
}

// Synthesize returns the schema of class, building it and any missing
// ancestor schemas first.
func (s *Synthesizer) Synthesize(class string) (*Schema, error) {
	return s.SynthesizeWithOptions(class, nil)
}

// SynthesizeWithOptions is Synthesize with schema options that take
// precedence over the options the class declared. They are ignored when the
// class is already synthesized.
func (s *Synthesizer) SynthesizeWithOptions(class string, opts *SchemaOptions) (*Schema, error) {
	s.store.synthMutex.Lock()
	defer s.store.synthMutex.Unlock()
	return s.synthesize(class, opts, make(map[string]bool))
}

// Schema returns the cached schema of class without synthesizing
func (s *Synthesizer) Schema(class string) (*Schema, bool) {
	return s.store.schema(class)
}

func (s *Synthesizer) synthesize(class string, opts *SchemaOptions, visiting map[string]bool) (*Schema, error) {
	if sch, ok := s.store.schema(class); ok {
		return sch, nil
	}
	if visiting[class] {
		return nil, NewErrorf(ErrorTypeCyclicInheritance, "class %s inherits from itself", class)
	}
	meta, ok := s.store.begin(class)
	if !ok {
		return nil, NewErrorf(ErrorTypeNotFound, "class %s has no metadata", class)
	}

	visiting[class] = true
	defer delete(visiting, class)

	var base *Schema
	baseName, extended := meta.base()
	if baseName != "" && baseName != BaseName && s.store.Has(baseName) {
		var err error
		if base, err = s.synthesize(baseName, nil, visiting); err != nil {
			s.store.abort(class)
			return nil, err
		}
	}

	sch := compose(meta, base, extended, opts)
	if err := s.checkReferences(sch); err != nil {
		s.store.abort(class)
		return nil, err
	}

	s.store.finish(class, sch)
	Logger().Debug("schema synthesized",
		zap.String("class", class),
		zap.String("base", sch.parent),
		zap.Strings("paths", sch.shape.Names()))
	return sch, nil
}

// compose layers the class's own metadata over its base schema.
func compose(meta *ClassMetadata, base *Schema, extended bool, opts *SchemaOptions) *Schema {
	own := NewShape(meta.Fields...)
	sch := &Schema{
		name:     meta.Name,
		extended: base != nil && extended,
		shape:    own,
		statics:  maps.Clone(meta.StaticMethods),
		methods:  maps.Clone(meta.InstanceMethods),
		hooks:    meta.Hooks.clone(),
		virtuals: maps.Clone(meta.Virtuals),
		plugins:  slices.Clone(meta.Plugins),
	}

	switch {
	case opts != nil:
		sch.options = opts.clone()
	case meta.SchemaOptions != nil:
		sch.options = meta.SchemaOptions.clone()
	case base != nil:
		sch.options = base.options.clone()
	}

	if base == nil {
		return sch
	}

	sch.parent = base.name
	if extended {
		sch.shape = base.shape.Append(own)
	} else {
		sch.shape = base.shape.Extend(own)
	}

	sch.statics = overlay(base.statics, meta.StaticMethods)
	sch.methods = overlay(base.methods, meta.InstanceMethods)
	sch.virtuals = overlay(base.virtuals, meta.Virtuals)
	sch.hooks = base.hooks.concat(meta.Hooks)
	sch.plugins = append(slices.Clone(base.plugins), meta.Plugins...)

	if key := sch.options.DiscriminatorKey; key != "" {
		sch.discriminator = key
		tag, exists := sch.shape.Field(key)
		if !exists {
			tag = FieldDescriptor{Name: key, Type: TypeString}
		}
		tag.Options.Default = meta.Name
		sch.shape.set(tag)
	}
	return sch
}

func overlay[V any](parent, child map[string]V) map[string]V {
	out := make(map[string]V, len(parent)+len(child))
	maps.Copy(out, parent)
	maps.Copy(out, child)
	return out
}

func (s *Synthesizer) checkReferences(sch *Schema) error {
	return sch.shape.walk(func(path string, f FieldDescriptor) error {
		if f.Ref == nil || s.store.Has(f.Ref.Target) {
			return nil
		}
		return NewErrorf(ErrorTypeUnresolvedReference,
			"field %s of class %s references undeclared class %s", path, sch.name, f.Ref.Target)
	})
}
