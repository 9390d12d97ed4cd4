package typegoose

import "reflect"

// PropOptions are the declared options of a field. Ref/RefType apply to
// scalar props, ItemsRef/ItemsRefType to array props.
type PropOptions struct {
	Type     FieldType
	Of       any // struct value or reflect.Type describing a subdocument
	Required bool
	Unique   bool
	Index    bool
	Default  any // a value, or a func() any evaluated per document
	Enum     []any
	NoID     bool

	Ref          any
	RefType      string
	ItemsRef     any
	ItemsRefType string

	Raw map[string]any
}

// NewFieldDescriptor builds the descriptor of a scalar (isArray false) or
// array field, resolving its reference and subdocument shape.
func NewFieldDescriptor(name string, isArray bool, opts PropOptions) (FieldDescriptor, error) {
	scalar, items, err := ResolveReference(RefOptions{
		Ref:          opts.Ref,
		RefType:      opts.RefType,
		ItemsRef:     opts.ItemsRef,
		ItemsRefType: opts.ItemsRefType,
	})
	if err != nil {
		return FieldDescriptor{}, err
	}

	field := FieldDescriptor{Name: name, Type: opts.Type, IsArray: isArray, Options: opts}
	switch {
	case isArray && scalar != nil:
		return FieldDescriptor{}, NewErrorf(ErrorTypeInvalidArgument, "array field %s must use ItemsRef, not Ref", name)
	case !isArray && items != nil:
		return FieldDescriptor{}, NewErrorf(ErrorTypeInvalidArgument, "scalar field %s must use Ref, not ItemsRef", name)
	case isArray:
		field.Ref = items
	default:
		field.Ref = scalar
	}

	if field.Ref != nil {
		field.Type = field.Ref.KeyType.FieldType()
	} else if opts.Of != nil {
		t, ok := opts.Of.(reflect.Type)
		if !ok {
			t = reflect.TypeOf(opts.Of)
		}
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return FieldDescriptor{}, NewErrorf(ErrorTypeInvalidArgument, "subdocument of field %s must be a struct, got %s", name, t)
		}
		fields, err := structFields(t, nil)
		if err != nil {
			return FieldDescriptor{}, err
		}
		field.Type = TypeSubdocument
		field.Fields = fields
	}

	if field.Type == "" {
		field.Type = TypeMixed
	}
	return field, nil
}
