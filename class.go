package typegoose

// =====================================
// Class Declaration
// =====================================

// Class declares one class into a metadata store. Every call records
// immediately; the first failure is kept and reported by Err, after which
// further calls are ignored.
//
// Example:
//
//	typegoose.Define("Dog").
//	    Inherits("Animal").
//	    Prop("tailLength", typegoose.PropOptions{Type: typegoose.TypeNumber}).
//	    Method("getSound", getSound)
type Class struct {
	name  string
	store *Store
	err   error
}

// Define declares (or reopens) class name in the process-wide store
func Define(name string) *Class {
	return Metadata().Define(name)
}

// Define declares (or reopens) class name in s
func (s *Store) Define(name string) *Class {
	c := &Class{name: name, store: s}
	c.do(func() error {
		return s.update(name, func(*ClassMetadata) error { return nil })
	})
	return c
}

// Name returns the class name
func (c *Class) Name() string { return c.name }

// Err returns the first error hit while declaring the class
func (c *Class) Err() error { return c.err }

func (c *Class) do(fn func() error) *Class {
	if c.err == nil {
		c.err = fn()
	}
	return c
}

// Inherits makes the class a subclass of parent (name, *Class or struct type).
func (c *Class) Inherits(parent any) *Class {
	return c.do(func() error {
		name, err := TargetName(parent)
		if err != nil {
			return err
		}
		return c.store.SetParent(c.name, name)
	})
}

// ExtendSchema composes the class with base discriminator-style: both share
// a collection and are told apart by the discriminator key.
func (c *Class) ExtendSchema(base any) *Class {
	return c.do(func() error {
		name, err := TargetName(base)
		if err != nil {
			return err
		}
		return c.store.SetExtends(c.name, name)
	})
}

// Options declares the schema-level options of the class
func (c *Class) Options(opts SchemaOptions) *Class {
	return c.do(func() error {
		return c.store.SetSchemaOptions(c.name, opts)
	})
}

// Prop declares a scalar field
func (c *Class) Prop(name string, opts PropOptions) *Class {
	return c.field(name, false, opts)
}

// ArrayProp declares an array field
func (c *Class) ArrayProp(name string, opts PropOptions) *Class {
	return c.field(name, true, opts)
}

func (c *Class) field(name string, isArray bool, opts PropOptions) *Class {
	return c.do(func() error {
		field, err := NewFieldDescriptor(name, isArray, opts)
		if err != nil {
			return err
		}
		return c.store.RecordField(c.name, field)
	})
}

// Method declares an instance method
func (c *Class) Method(name string, fn MethodFunc) *Class {
	return c.do(func() error {
		return c.store.RecordMethod(c.name, MethodInstance, name, fn)
	})
}

// Static declares a static method
func (c *Class) Static(name string, fn StaticFunc) *Class {
	return c.do(func() error {
		return c.store.RecordMethod(c.name, MethodStatic, name, fn)
	})
}

// Pre declares a hook that runs before event
func (c *Class) Pre(event string, fn HookFunc, opts ...HookOptions) *Class {
	return c.hook(PhasePre, event, fn, opts)
}

// Post declares a hook that runs after event
func (c *Class) Post(event string, fn HookFunc, opts ...HookOptions) *Class {
	return c.hook(PhasePost, event, fn, opts)
}

func (c *Class) hook(phase Phase, event string, fn HookFunc, opts []HookOptions) *Class {
	return c.do(func() error {
		var o HookOptions
		if len(opts) > 0 {
			o = opts[0]
		}
		return c.store.RecordHook(c.name, phase, event, fn, o)
	})
}

// Virtual declares a computed property; either accessor may be nil.
func (c *Class) Virtual(name string, get Getter, set Setter) *Class {
	if get == nil && set == nil {
		return c.do(func() error {
			return NewErrorf(ErrorTypeInvalidArgument, "virtual %s.%s has no accessor", c.name, name)
		})
	}
	if get != nil {
		c.do(func() error { return c.store.RecordVirtual(c.name, name, AccessorGet, get) })
	}
	if set != nil {
		c.do(func() error { return c.store.RecordVirtual(c.name, name, AccessorSet, set) })
	}
	return c
}

// Plugin attaches a plugin, applied in declaration order when the model is built
func (c *Class) Plugin(fn PluginFunc, opts map[string]any) *Class {
	return c.do(func() error {
		return c.store.RecordPlugin(c.name, fn, opts)
	})
}
