package typegoose

// =====================================
// Core Types and Constants
// =====================================

// BaseName is the class name of the library root type. A class whose parent
// is BaseName is synthesized without a parent.
const BaseName = "Base"

// Base is the library root type. Embedding it in a declared struct marks the
// struct as a root class, exactly like having no embedded parent at all.
type Base struct{}

// FieldType represents the storage type of a schema path
type FieldType string

const (
	TypeString      FieldType = "String"
	TypeNumber      FieldType = "Number"
	TypeBoolean     FieldType = "Boolean"
	TypeDate        FieldType = "Date"
	TypeObjectID    FieldType = "ObjectID"
	TypeBuffer      FieldType = "Buffer"
	TypeDecimal128  FieldType = "Decimal128"
	TypeMixed       FieldType = "Mixed"
	TypeSubdocument FieldType = "Subdocument"
)

// KeyType represents the primary key type of a referenced class
type KeyType string

const (
	KeyObjectID KeyType = "objectid"
	KeyString   KeyType = "string"
	KeyNumber   KeyType = "number"
	KeyBinary   KeyType = "buffer"
)

// FieldType returns the storage type used by a reference of this key type.
func (k KeyType) FieldType() FieldType {
	switch k {
	case KeyString:
		return TypeString
	case KeyNumber:
		return TypeNumber
	case KeyBinary:
		return TypeBuffer
	default:
		return TypeObjectID
	}
}

// Phase tells whether a hook runs before or after its event
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// MethodKind distinguishes document methods from model statics
type MethodKind string

const (
	MethodInstance MethodKind = "instance"
	MethodStatic   MethodKind = "static"
)

// AccessorKind distinguishes virtual getters from setters
type AccessorKind string

const (
	AccessorGet AccessorKind = "get"
	AccessorSet AccessorKind = "set"
)

// State is the synthesis lifecycle state of a class
type State int

const (
	StateUnregistered State = iota
	StateMetadataCollected
	StateSynthesizing
	StateSynthesized
	StateModelBound
)

func (s State) String() string {
	switch s {
	case StateMetadataCollected:
		return "metadata_collected"
	case StateSynthesizing:
		return "synthesizing"
	case StateSynthesized:
		return "synthesized"
	case StateModelBound:
		return "model_bound"
	default:
		return "unregistered"
	}
}

// OrderDirection represents sort direction
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeInvalidArgument     ErrorType = "invalid_argument"
	ErrorTypeUnresolvedReference ErrorType = "unresolved_reference"
	ErrorTypeCyclicInheritance   ErrorType = "cyclic_inheritance"
	ErrorTypeDuplicateModel      ErrorType = "duplicate_model"
	ErrorTypeSealed              ErrorType = "sealed"
	ErrorTypeConnection          ErrorType = "connection"
	ErrorTypeUnsupported         ErrorType = "unsupported"
)
