package typegoose

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

var (
	modelsOnce     sync.Once
	modelsInstance *ModelRegistry
)

// ModelRegistry binds synthesized schemas to engines, at most once per class.
// It also remembers which declaration produced each model.
type ModelRegistry struct {
	mutex   sync.Mutex
	store   *Store
	synth   *Synthesizer
	engines *EngineRegistry
	models  map[string]*Model
	classes map[string]*ClassMetadata
}

// NewModelRegistry creates a model registry over a metadata store and engines
func NewModelRegistry(store *Store, engines *EngineRegistry) *ModelRegistry {
	return &ModelRegistry{
		store:   store,
		synth:   NewSynthesizer(store),
		engines: engines,
		models:  make(map[string]*Model),
		classes: make(map[string]*ClassMetadata),
	}
}

// Models returns the process-wide model registry, bound to Metadata() and Engines()
func Models() *ModelRegistry {
	modelsOnce.Do(func() {
		modelsInstance = NewModelRegistry(Metadata(), Engines())
	})
	return modelsInstance
}

// Store returns the metadata store the registry reads from
func (r *ModelRegistry) Store() *Store { return r.store }

// Synthesizer returns the synthesizer shared by every model of the registry
func (r *ModelRegistry) Synthesizer() *Synthesizer { return r.synth }

// ModelOption configures how a model is bound
type ModelOption func(*modelOptions)

type modelOptions struct {
	schemaOptions *SchemaOptions
	engine        Engine
	connection    string
	strict        bool
}

// WithSchemaOptions overrides the schema options the class declared
func WithSchemaOptions(opts SchemaOptions) ModelOption {
	return func(o *modelOptions) {
		c := opts.clone()
		o.schemaOptions = &c
	}
}

// WithEngine binds the model to engine instead of a registered one
func WithEngine(engine Engine) ModelOption {
	return func(o *modelOptions) {
		o.engine = engine
	}
}

// WithConnection binds the model to a named engine of the engine registry
func WithConnection(name string) ModelOption {
	return func(o *modelOptions) {
		o.connection = name
	}
}

// Strict makes binding an already bound class an ErrorTypeDuplicateModel error
func Strict() ModelOption {
	return func(o *modelOptions) {
		o.strict = true
	}
}

// GetModelForClass returns the model of class (a name, *Class or declared
// struct type), binding it on first use. Once bound, the cached model is
// returned and opts are ignored.
func (r *ModelRegistry) GetModelForClass(class any, opts ...ModelOption) (*Model, error) {
	return r.bind(class, opts)
}

// SetModelForClass binds class like GetModelForClass. With Strict, a class
// that is already bound is an error instead of a cache hit.
func (r *ModelRegistry) SetModelForClass(class any, opts ...ModelOption) (*Model, error) {
	return r.bind(class, opts)
}

func (r *ModelRegistry) bind(class any, opts []ModelOption) (*Model, error) {
	name, err := TargetName(class)
	if err != nil {
		return nil, err
	}
	var o modelOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if m, exists := r.models[name]; exists {
		if o.strict {
			return nil, NewErrorf(ErrorTypeDuplicateModel, "class %s is already bound to a model", name)
		}
		return m, nil
	}

	sch, err := r.synth.SynthesizeWithOptions(name, o.schemaOptions)
	if err != nil {
		return nil, err
	}

	// Resolve the engine before NewHandle runs the plugins
	engine := o.engine
	if engine == nil {
		if engine, err = r.engines.Get(o.connection); err != nil {
			return nil, NewErrorWithCause(ErrorTypeConnection, "no engine for class "+name, err)
		}
	}
	h, err := NewHandle(sch)
	if err != nil {
		return nil, err
	}
	coll, err := engine.Collection(h.CollectionName(), h)
	if err != nil {
		return nil, err
	}

	meta, _ := r.store.Class(name)
	m := &Model{
		name:       name,
		handle:     h,
		engine:     engine,
		collection: coll,
		goType:     meta.GoType,
		registry:   r,
	}
	r.models[name] = m
	r.classes[name] = meta
	r.store.setState(name, StateModelBound)

	Logger().Debug("model bound",
		zap.String("class", name),
		zap.String("engine", engine.Name()),
		zap.String("collection", h.CollectionName()))
	return m, nil
}

// Model returns the bound model of class
func (r *ModelRegistry) Model(class string) (*Model, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	m, ok := r.models[class]
	return m, ok
}

// ClassForDocument returns the declaration that produced the model of doc,
// or false if doc did not come from a model of this registry.
func (r *ModelRegistry) ClassForDocument(doc *Document) (*ClassMetadata, bool) {
	if doc == nil || doc.model == nil {
		return nil, false
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	meta, ok := r.classes[doc.model.name]
	if !ok || r.models[doc.model.name] != doc.model {
		return nil, false
	}
	return meta.clone(), true
}

// TypeForDocument returns the struct type the class of doc was declared from
func (r *ModelRegistry) TypeForDocument(doc *Document) (reflect.Type, bool) {
	meta, ok := r.ClassForDocument(doc)
	if !ok || meta.GoType == nil {
		return nil, false
	}
	return meta.GoType, true
}

// Package-level functions

// GetModelForClass returns the model of class from the process-wide registry
func GetModelForClass(class any, opts ...ModelOption) (*Model, error) {
	return Models().GetModelForClass(class, opts...)
}

// SetModelForClass binds class in the process-wide registry
func SetModelForClass(class any, opts ...ModelOption) (*Model, error) {
	return Models().SetModelForClass(class, opts...)
}

// GetModel returns the model of the struct type T from the process-wide registry
// Usage: dogs, err := typegoose.GetModel[Dog]()
func GetModel[T any](opts ...ModelOption) (*Model, error) {
	return Models().GetModelForClass(reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

// ClassForDocument returns the declaration behind doc from the process-wide registry
func ClassForDocument(doc *Document) (*ClassMetadata, bool) {
	return Models().ClassForDocument(doc)
}
