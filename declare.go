package typegoose

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	baseType       = reflect.TypeOf(Base{})
	timeType       = reflect.TypeOf(time.Time{})
	objectIDType   = reflect.TypeOf(primitive.ObjectID{})
	decimalType    = reflect.TypeOf(primitive.Decimal128{})
	binaryType     = reflect.TypeOf(primitive.Binary{})
	bytesType      = reflect.TypeOf([]byte(nil))
	collectionName = reflect.TypeOf((*interface{ CollectionName() string })(nil)).Elem()
)

// Declare declares struct type T as a class in the process-wide store.
//
// Exported fields become props named after their bson tag (or the lowercased
// field name). The tg tag carries options:
//
//	required, unique, index, noid, type=Number, default=x, enum=a|b,
//	default=now (Date fields),
//	ref=Car, refType=string, itemsRef=Car, itemsRefType=number
//
// An embedded struct that is already declared becomes the parent class;
// embedding Base means no parent; any other embedded struct is flattened.
func Declare[T any]() *Class {
	return Metadata().DeclareType(reflect.TypeOf((*T)(nil)).Elem())
}

// DeclareType declares the struct type t as a class in s. See Declare.
func (s *Store) DeclareType(t reflect.Type) *Class {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t.Name() == "" {
		return &Class{name: t.String(), store: s, err: NewErrorf(ErrorTypeInvalidArgument, "%s is not a named struct type", t)}
	}

	c := s.Define(t.Name())
	c.do(func() error { return s.SetGoType(c.name, t) })

	var parent string
	c.do(func() error {
		fields, err := structFields(t, func(embedded reflect.Type) bool {
			name, ok := s.ClassForType(embedded)
			if ok && parent == "" {
				parent = name
			}
			return ok
		})
		if err != nil {
			return err
		}
		for _, f := range fields {
			if err := s.RecordField(c.name, f); err != nil {
				return err
			}
		}
		return nil
	})

	name, hasName := typeCollectionName(t)
	switch {
	case parent == "" && hasName:
		c.Options(SchemaOptions{Collection: name})
	case parent != "":
		c.Inherits(parent)
		// A CollectionName promoted from the parent returns the parent's name
		if hasName && name != s.collectionOf(parent) {
			opts := s.declaredOptions(parent)
			opts.Collection = name
			c.Options(opts)
		}
	}
	return c
}

func typeCollectionName(t reflect.Type) (string, bool) {
	if t == nil || !reflect.PointerTo(t).Implements(collectionName) {
		return "", false
	}
	return reflect.New(t).Interface().(interface{ CollectionName() string }).CollectionName(), true
}

// collectionOf returns the collection name the struct of class declares
func (s *Store) collectionOf(class string) string {
	meta, ok := s.Class(class)
	if !ok {
		return ""
	}
	name, _ := typeCollectionName(meta.GoType)
	return name
}

// declaredOptions returns the options declared nearest to class along its
// parent chain.
func (s *Store) declaredOptions(class string) SchemaOptions {
	seen := make(map[string]bool)
	for class != "" && !seen[class] {
		seen[class] = true
		meta, ok := s.Class(class)
		if !ok {
			break
		}
		if meta.SchemaOptions != nil {
			return meta.SchemaOptions.clone()
		}
		class, _ = meta.base()
	}
	return SchemaOptions{}
}

// structFields collects the fields of struct t. isParent is asked about every
// embedded struct; returning true keeps its fields out of the result.
func structFields(t reflect.Type, isParent func(reflect.Type) bool) ([]FieldDescriptor, error) {
	var fields []FieldDescriptor
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, inline, skip := bsonName(sf)
		if skip {
			continue
		}

		if sf.Anonymous || inline {
			et := sf.Type
			for et.Kind() == reflect.Ptr {
				et = et.Elem()
			}
			if et == baseType {
				continue
			}
			if et.Kind() == reflect.Struct {
				if isParent != nil && isParent(et) {
					continue
				}
				promoted, err := structFields(et, nil)
				if err != nil {
					return nil, err
				}
				for _, f := range promoted {
					fields = upsertField(fields, f)
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}

		opts, err := parseTag(sf.Tag.Get("tg"))
		if err != nil {
			return nil, NewErrorWithCause(ErrorTypeInvalidArgument, "invalid tg tag on "+t.Name()+"."+sf.Name, err)
		}
		field, err := fieldFromType(name, sf.Type, opts)
		if err != nil {
			return nil, err
		}
		fields = upsertField(fields, field)
	}
	return fields, nil
}

func upsertField(fields []FieldDescriptor, f FieldDescriptor) []FieldDescriptor {
	for i := range fields {
		if fields[i].Name == f.Name {
			fields[i] = f
			return fields
		}
	}
	return append(fields, f)
}

func bsonName(sf reflect.StructField) (name string, inline, skip bool) {
	tag := sf.Tag.Get("bson")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	for _, p := range parts[1:] {
		if p == "inline" {
			inline = true
		}
	}
	name = parts[0]
	if name == "" {
		name = strings.ToLower(sf.Name)
	}
	return name, inline, false
}

func fieldFromType(name string, t reflect.Type, opts PropOptions) (FieldDescriptor, error) {
	isArray := false
	et := t
	if (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t != bytesType && t != objectIDType {
		isArray = true
		et = t.Elem()
	}
	for et.Kind() == reflect.Ptr {
		et = et.Elem()
	}

	if isArray && opts.Ref != nil && opts.ItemsRef == nil {
		opts.ItemsRef, opts.ItemsRefType = opts.Ref, opts.RefType
		opts.Ref, opts.RefType = nil, ""
	}

	if opts.Type == "" && opts.Ref == nil && opts.ItemsRef == nil {
		if inferred := inferType(et); inferred == TypeSubdocument {
			opts.Of = et
		} else {
			opts.Type = inferred
		}
	}
	if s, ok := opts.Default.(string); ok {
		opts.Default = convertDefault(opts.Type, s)
	}
	return NewFieldDescriptor(name, isArray, opts)
}

func inferType(t reflect.Type) FieldType {
	switch t {
	case timeType:
		return TypeDate
	case objectIDType:
		return TypeObjectID
	case decimalType:
		return TypeDecimal128
	case binaryType, bytesType:
		return TypeBuffer
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Struct:
		return TypeSubdocument
	default:
		return TypeMixed
	}
}

func parseTag(tag string) (PropOptions, error) {
	var opts PropOptions
	if tag == "" {
		return opts, nil
	}
	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "":
		case "required":
			opts.Required = true
		case "unique":
			opts.Unique = true
		case "index":
			opts.Index = true
		case "noid":
			opts.NoID = true
		case "type":
			opts.Type = FieldType(value)
		case "default":
			opts.Default = value
		case "enum":
			for _, v := range strings.Split(value, "|") {
				opts.Enum = append(opts.Enum, v)
			}
		case "ref":
			opts.Ref = value
		case "refType":
			opts.RefType = value
		case "itemsRef":
			opts.ItemsRef = value
		case "itemsRefType":
			opts.ItemsRefType = value
		default:
			return opts, NewErrorf(ErrorTypeInvalidArgument, "unknown option %q", key)
		}
	}
	return opts, nil
}

func convertDefault(t FieldType, s string) any {
	switch t {
	case TypeNumber:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case TypeDate:
		if s == "now" {
			return func() any { return time.Now().UTC().Truncate(time.Millisecond) }
		}
		if d, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return d.UTC()
		}
	}
	return s
}
