package typegoose

import (
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"
)

var (
	storeOnce     sync.Once
	storeInstance *Store
)

// Store is the metadata store: class name to collected ClassMetadata.
// Fields, methods and virtuals are overwritten by name; hooks and plugins append.
// It also caches the synthesized schema of each class, so every Synthesizer
// over one store shares the same schemas.
type Store struct {
	mutex   sync.RWMutex
	classes map[string]*ClassMetadata
	order   []string
	schemas map[string]*Schema

	// held for a whole synthesis run
	synthMutex sync.Mutex
}

// NewStore creates an empty metadata store
func NewStore() *Store {
	return &Store{
		classes: make(map[string]*ClassMetadata),
		schemas: make(map[string]*Schema),
	}
}

// Metadata returns the process-wide metadata store
func Metadata() *Store {
	storeOnce.Do(func() {
		storeInstance = NewStore()
	})
	return storeInstance
}

// open returns the writable metadata for class, creating it on first use.
// Callers must hold the write lock.
func (s *Store) open(class string) (*ClassMetadata, error) {
	if class == "" {
		return nil, NewError(ErrorTypeInvalidArgument, "class name is required")
	}
	meta, exists := s.classes[class]
	if !exists {
		meta = newClassMetadata(class)
		s.classes[class] = meta
		s.order = append(s.order, class)
		Logger().Debug("class registered", zap.String("class", class))
		return meta, nil
	}
	if meta.State >= StateSynthesizing {
		return nil, NewErrorf(ErrorTypeSealed, "class %s is already synthesized", class)
	}
	return meta, nil
}

// RecordField records a field, replacing any field with the same name in place.
func (s *Store) RecordField(class string, field FieldDescriptor) error {
	if field.Name == "" {
		return NewErrorf(ErrorTypeInvalidArgument, "field of class %s has no name", class)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta, err := s.open(class)
	if err != nil {
		return err
	}
	field = field.clone()
	for i := range meta.Fields {
		if meta.Fields[i].Name == field.Name {
			meta.Fields[i] = field
			return nil
		}
	}
	meta.Fields = append(meta.Fields, field)
	return nil
}

// RecordMethod records an instance method (MethodFunc) or a static (StaticFunc).
func (s *Store) RecordMethod(class string, kind MethodKind, name string, fn any) error {
	if name == "" {
		return NewErrorf(ErrorTypeInvalidArgument, "method of class %s has no name", class)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta, err := s.open(class)
	if err != nil {
		return err
	}
	switch kind {
	case MethodInstance:
		m, ok := fn.(MethodFunc)
		if !ok || m == nil {
			return NewErrorf(ErrorTypeInvalidArgument, "instance method %s.%s must be a MethodFunc, got %T", class, name, fn)
		}
		meta.InstanceMethods[name] = m
	case MethodStatic:
		m, ok := fn.(StaticFunc)
		if !ok || m == nil {
			return NewErrorf(ErrorTypeInvalidArgument, "static %s.%s must be a StaticFunc, got %T", class, name, fn)
		}
		meta.StaticMethods[name] = m
	default:
		return NewErrorf(ErrorTypeInvalidArgument, "unknown method kind %q", kind)
	}
	return nil
}

// RecordHook appends a hook to the pre or post sequence of class.
func (s *Store) RecordHook(class string, phase Phase, event string, fn HookFunc, opts HookOptions) error {
	if event == "" || fn == nil {
		return NewErrorf(ErrorTypeInvalidArgument, "hook of class %s needs an event and a handler", class)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta, err := s.open(class)
	if err != nil {
		return err
	}
	binding := HookBinding{Event: event, Handler: fn, Options: opts}
	switch phase {
	case PhasePre:
		meta.Hooks.Pre = append(meta.Hooks.Pre, binding)
	case PhasePost:
		meta.Hooks.Post = append(meta.Hooks.Post, binding)
	default:
		return NewErrorf(ErrorTypeInvalidArgument, "unknown hook phase %q", phase)
	}
	return nil
}

// RecordVirtual records one accessor (Getter or Setter) of a virtual property.
func (s *Store) RecordVirtual(class, prop string, kind AccessorKind, fn any) error {
	if prop == "" {
		return NewErrorf(ErrorTypeInvalidArgument, "virtual of class %s has no name", class)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta, err := s.open(class)
	if err != nil {
		return err
	}
	v := meta.Virtuals[prop]
	switch kind {
	case AccessorGet:
		get, ok := fn.(Getter)
		if !ok || get == nil {
			return NewErrorf(ErrorTypeInvalidArgument, "getter %s.%s must be a Getter, got %T", class, prop, fn)
		}
		v.Get = get
	case AccessorSet:
		set, ok := fn.(Setter)
		if !ok || set == nil {
			return NewErrorf(ErrorTypeInvalidArgument, "setter %s.%s must be a Setter, got %T", class, prop, fn)
		}
		v.Set = set
	default:
		return NewErrorf(ErrorTypeInvalidArgument, "unknown accessor kind %q", kind)
	}
	meta.Virtuals[prop] = v
	return nil
}

// RecordPlugin appends a plugin to class.
func (s *Store) RecordPlugin(class string, fn PluginFunc, opts map[string]any) error {
	if fn == nil {
		return NewErrorf(ErrorTypeInvalidArgument, "plugin of class %s is nil", class)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta, err := s.open(class)
	if err != nil {
		return err
	}
	meta.Plugins = append(meta.Plugins, PluginBinding{Plugin: fn, Options: opts})
	return nil
}

// SetParent records the class that class inherits from.
func (s *Store) SetParent(class, parent string) error {
	return s.update(class, func(meta *ClassMetadata) error {
		if parent == class {
			return NewErrorf(ErrorTypeCyclicInheritance, "class %s cannot inherit from itself", class)
		}
		meta.Parent = parent
		return nil
	})
}

// SetExtends records the sibling schema that class extends discriminator-style.
func (s *Store) SetExtends(class, base string) error {
	return s.update(class, func(meta *ClassMetadata) error {
		if base == class {
			return NewErrorf(ErrorTypeCyclicInheritance, "class %s cannot extend itself", class)
		}
		meta.Extends = base
		return nil
	})
}

// SetSchemaOptions records the schema-level options declared by class.
func (s *Store) SetSchemaOptions(class string, opts SchemaOptions) error {
	return s.update(class, func(meta *ClassMetadata) error {
		o := opts.clone()
		meta.SchemaOptions = &o
		return nil
	})
}

// SetGoType records the struct type a class was declared from. A class name
// can only ever belong to one Go type.
func (s *Store) SetGoType(class string, t reflect.Type) error {
	return s.update(class, func(meta *ClassMetadata) error {
		if meta.GoType != nil && meta.GoType != t {
			return NewErrorf(ErrorTypeInvalidArgument, "class %s is already declared by %s", class, meta.GoType)
		}
		meta.GoType = t
		return nil
	})
}

func (s *Store) update(class string, fn func(meta *ClassMetadata) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta, err := s.open(class)
	if err != nil {
		return err
	}
	return fn(meta)
}

// Class returns a copy of the metadata of class
func (s *Store) Class(class string) (*ClassMetadata, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	meta, exists := s.classes[class]
	if !exists {
		return nil, false
	}
	return meta.clone(), true
}

// Has reports whether class has any metadata
func (s *Store) Has(class string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, exists := s.classes[class]
	return exists
}

// Names returns all class names in declaration order
func (s *Store) Names() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return slices.Clone(s.order)
}

// State returns the lifecycle state of class
func (s *Store) State(class string) State {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if meta, exists := s.classes[class]; exists {
		return meta.State
	}
	return StateUnregistered
}

// ClassForType returns the name of the class declared from t
func (s *Store) ClassForType(t reflect.Type) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, name := range s.order {
		if s.classes[name].GoType == t {
			return name, true
		}
	}
	return "", false
}

// begin returns a copy of the metadata of class and seals it for synthesis
// in one step, so no record can land between the read and the seal.
func (s *Store) begin(class string) (*ClassMetadata, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	meta, exists := s.classes[class]
	if !exists {
		return nil, false
	}
	meta.State = StateSynthesizing
	return meta.clone(), true
}

// finish caches the schema of class. States past Synthesized are kept.
func (s *Store) finish(class string, sch *Schema) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.schemas[class] = sch
	if meta, exists := s.classes[class]; exists && meta.State < StateSynthesized {
		meta.State = StateSynthesized
	}
}

// abort reopens class after a failed synthesis
func (s *Store) abort(class string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if meta, exists := s.classes[class]; exists && meta.State == StateSynthesizing {
		meta.State = StateMetadataCollected
	}
}

func (s *Store) schema(class string) (*Schema, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	sch, ok := s.schemas[class]
	return sch, ok
}

func (s *Store) setState(class string, state State) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if meta, exists := s.classes[class]; exists {
		meta.State = state
	}
}
