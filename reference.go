package typegoose

import (
	"reflect"
	"strings"
)

// Reference is a normalized reference descriptor
type Reference struct {
	Target  string
	KeyType KeyType
}

// RefOptions is the raw reference option set of a field. Ref and ItemsRef
// accept a class name, a *Class, a reflect.Type, or a value of a declared
// struct type.
type RefOptions struct {
	Ref          any
	RefType      string
	ItemsRef     any
	ItemsRefType string
}

// ResolveReference normalizes the scalar and the items reference of opts.
// Either result is nil when the matching target is not set.
func ResolveReference(opts RefOptions) (scalar, items *Reference, err error) {
	if opts.Ref != nil {
		if scalar, err = resolveReference(opts.Ref, opts.RefType); err != nil {
			return nil, nil, err
		}
	}
	if opts.ItemsRef != nil {
		if items, err = resolveReference(opts.ItemsRef, opts.ItemsRefType); err != nil {
			return nil, nil, err
		}
	}
	return scalar, items, nil
}

func resolveReference(target any, tag string) (*Reference, error) {
	name, err := TargetName(target)
	if err != nil {
		return nil, err
	}
	keyType, err := ParseKeyType(tag)
	if err != nil {
		return nil, err
	}
	return &Reference{Target: name, KeyType: keyType}, nil
}

// TargetName returns the class name a reference target stands for.
func TargetName(target any) (string, error) {
	switch t := target.(type) {
	case string:
		if t == "" {
			return "", NewError(ErrorTypeInvalidArgument, "reference target name is empty")
		}
		return t, nil
	case *Class:
		return t.Name(), nil
	case reflect.Type:
		return typeName(t)
	case nil:
		return "", NewError(ErrorTypeInvalidArgument, "reference target is nil")
	default:
		return typeName(reflect.TypeOf(target))
	}
}

func typeName(t reflect.Type) (string, error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct || t.Name() == "" {
		return "", NewErrorf(ErrorTypeInvalidArgument, "reference target %v is not a named struct type", t)
	}
	return t.Name(), nil
}

// ParseKeyType maps a key type tag to a KeyType. The empty tag means KeyObjectID.
func ParseKeyType(tag string) (KeyType, error) {
	switch strings.ToLower(tag) {
	case "", "objectid", "object-id":
		return KeyObjectID, nil
	case "string":
		return KeyString, nil
	case "number":
		return KeyNumber, nil
	case "buffer", "binary":
		return KeyBinary, nil
	default:
		return "", NewErrorf(ErrorTypeInvalidArgument, "unknown reference key type %q", tag)
	}
}
