package typegoose

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// =====================================
// Runtime Models
// =====================================

// Timestamp paths written when the Timestamps schema option is set
const (
	CreatedAtPath = "createdAt"
	UpdatedAtPath = "updatedAt"
)

// Codes of the validation errors raised by Save
const (
	ValidationRequired = "required"
	ValidationEnum     = "enum"
	ValidationCast     = "cast"
)

// Model is a synthesized schema bound to an engine collection.
type Model struct {
	name       string
	handle     *Handle
	engine     Engine
	collection Collection
	goType     reflect.Type
	registry   *ModelRegistry
}

// Name returns the class name of the model
func (m *Model) Name() string { return m.name }

// Schema returns the synthesized schema of the model
func (m *Model) Schema() *Schema { return m.handle.schema }

// Handle returns the engine handle the model was built from
func (m *Model) Handle() *Handle { return m.handle }

// Engine returns the engine the model is bound to
func (m *Model) Engine() Engine { return m.engine }

// Collection returns the engine collection of the model
func (m *Model) Collection() Collection { return m.collection }

// CollectionName returns the name of the model's collection
func (m *Model) CollectionName() string { return m.handle.CollectionName() }

// New returns an unsaved document holding values, with defaults applied to
// the paths values leave unset.
func (m *Model) New(values map[string]any) *Document {
	doc := &Document{model: m, fields: make(map[string]any), isNew: true}
	for _, k := range sortedKeys(values) {
		doc.Set(k, values[k])
	}
	applyDefaults(doc.fields, m.handle.shape.fields)
	return doc
}

// NewFrom returns an unsaved document holding the fields of a struct value.
func (m *Model) NewFrom(v any) (*Document, error) {
	fields, err := structToMap(v)
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeInvalidArgument, "cannot encode value for class "+m.name, err)
	}
	return m.New(fields), nil
}

func applyDefaults(fields map[string]any, shape []FieldDescriptor) {
	for _, f := range shape {
		value, exists := fields[f.Name]
		if f.Type == TypeSubdocument && len(f.Fields) > 0 && exists {
			switch sub := value.(type) {
			case map[string]any:
				applySubdocumentDefaults(sub, f)
			case []any:
				for _, el := range sub {
					if m, ok := el.(map[string]any); ok {
						applySubdocumentDefaults(m, f)
					}
				}
			}
			continue
		}
		if exists || f.Options.Default == nil {
			continue
		}
		if fn, ok := f.Options.Default.(func() any); ok {
			fields[f.Name] = NormalizeValue(fn())
		} else {
			fields[f.Name] = NormalizeValue(f.Options.Default)
		}
	}
}

// applySubdocumentDefaults gives a subdocument its own _id unless the field
// was declared with NoID.
func applySubdocumentDefaults(sub map[string]any, f FieldDescriptor) {
	if _, ok := sub["_id"]; !ok && !f.Options.NoID {
		sub["_id"] = primitive.NewObjectID()
	}
	applyDefaults(sub, f.Fields)
}

// Create builds a document from values and saves it.
func (m *Model) Create(ctx context.Context, values map[string]any) (*Document, error) {
	doc := m.New(values)
	if err := m.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateMany creates one document per value map, stopping at the first failure.
func (m *Model) CreateMany(ctx context.Context, values ...map[string]any) ([]*Document, error) {
	docs := make([]*Document, 0, len(values))
	for _, v := range values {
		doc, err := m.Create(ctx, v)
		if err != nil {
			return docs, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Save validates doc and inserts it, or replaces the stored copy if it was
// saved before. Defaults are applied to paths still unset, including those of
// subdocuments added since the document was built. Errors from the engine are
// returned unchanged.
func (m *Model) Save(ctx context.Context, doc *Document) error {
	if doc == nil || doc.model != m {
		return NewErrorf(ErrorTypeInvalidArgument, "document does not belong to model %s", m.name)
	}
	applyDefaults(doc.fields, m.handle.shape.fields)
	if err := m.validate(ctx, doc); err != nil {
		return err
	}

	hc := &HookContext{Event: EventSave, Model: m, Document: doc}
	if err := runHooks(ctx, m.handle, PhasePre, hc); err != nil {
		return err
	}

	if key, value, ok := m.handle.schema.Discriminator(); ok {
		doc.fields[key] = value
	}
	if m.handle.schema.options.Timestamps {
		now := time.Now().UTC().Truncate(time.Millisecond)
		if doc.isNew {
			doc.fields[CreatedAtPath] = now
		}
		doc.fields[UpdatedAtPath] = now
	}
	if err := m.ensureID(doc); err != nil {
		return err
	}

	if doc.isNew {
		if _, err := m.collection.InsertOne(ctx, doc.fields); err != nil {
			return err
		}
	} else if err := m.collection.ReplaceOne(ctx, doc.ID(), doc.fields, true); err != nil {
		return err
	}
	doc.isNew = false
	doc.modified = nil
	Logger().Debug("document saved", zap.String("class", m.name), zap.Any("id", doc.ID()))

	return runHooks(ctx, m.handle, PhasePost, hc)
}

func (m *Model) ensureID(doc *Document) error {
	if id, exists := doc.fields["_id"]; exists && id != nil {
		return nil
	}
	idType := TypeObjectID
	if f, ok := m.handle.Field("_id"); ok {
		idType = f.Type
	}
	switch idType {
	case TypeString:
		doc.fields["_id"] = uuid.NewString()
	case TypeBuffer:
		id := uuid.New()
		doc.fields["_id"] = id[:]
	case TypeObjectID, TypeMixed:
		doc.fields["_id"] = primitive.NewObjectID()
	default:
		return NewErrorf(ErrorTypeValidation, "class %s requires an explicit _id of type %s", m.name, idType)
	}
	return nil
}

func (m *Model) validate(ctx context.Context, doc *Document) error {
	hc := &HookContext{Event: EventValidate, Model: m, Document: doc}
	if err := runHooks(ctx, m.handle, PhasePre, hc); err != nil {
		return err
	}
	if err := checkFields("", doc.fields, m.handle.shape.fields); err != nil {
		return err
	}
	if m.goType != nil {
		target := reflect.New(m.goType).Interface()
		if v, ok := target.(Validator); ok {
			if err := doc.Decode(target); err != nil {
				return err
			}
			if err := v.Validate(ctx); err != nil {
				return NewErrorWithCause(ErrorTypeValidation, "validation failed for class "+m.name, err)
			}
		}
	}
	return runHooks(ctx, m.handle, PhasePost, hc)
}

// checkFields casts the values of fields to their declared types in place and
// checks required and enum constraints.
func checkFields(prefix string, fields map[string]any, shape []FieldDescriptor) error {
	for _, f := range shape {
		path := prefix + f.Name
		value, exists := fields[f.Name]
		if f.Options.Required && (!exists || value == nil || value == "") {
			return NewErrorWithCode(ErrorTypeValidation, "path "+path+" is required", ValidationRequired)
		}
		if !exists || value == nil {
			continue
		}

		values := []any{value}
		arr, isArr := value.([]any)
		if f.IsArray && isArr {
			values = arr
		}
		for i, v := range values {
			cast, err := castValue(f, path, v)
			if err != nil {
				return err
			}
			if len(f.Options.Enum) > 0 && !inEnum(cast, f.Options.Enum) {
				return NewErrorWithCode(ErrorTypeValidation, fmt.Sprintf("value %v is not allowed for path %s", cast, path), ValidationEnum)
			}
			if sub, ok := cast.(map[string]any); ok && f.Type == TypeSubdocument {
				if err := checkFields(path+".", sub, f.Fields); err != nil {
					return err
				}
			}
			values[i] = cast
		}
		if f.IsArray && isArr {
			fields[f.Name] = values
		} else {
			fields[f.Name] = values[0]
		}
	}
	return nil
}

// castValue converts v to the storage type of f, the way a document store
// would cast user input.
func castValue(f FieldDescriptor, path string, v any) (any, error) {
	if doc, ok := v.(*Document); ok {
		if f.Ref != nil {
			v = doc.ID()
		} else {
			v = doc.fields
		}
	}
	failed := func() error {
		return NewErrorWithCode(ErrorTypeValidation, fmt.Sprintf("cast to %s failed for value %v at path %s", f.Type, v, path), ValidationCast)
	}

	switch f.Type {
	case TypeString:
		switch t := v.(type) {
		case string:
			return t, nil
		case bool:
			return strconv.FormatBool(t), nil
		}
		if n, ok := NumberValue(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64), nil
		}
		return nil, failed()
	case TypeNumber:
		if _, ok := NumberValue(v); ok {
			return v, nil
		}
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return n, nil
			}
		}
		return nil, failed()
	case TypeBoolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b, nil
			}
		}
		return nil, failed()
	case TypeDate:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			if d, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return d.UTC(), nil
			}
		}
		if n, ok := NumberValue(v); ok {
			return time.UnixMilli(int64(n)).UTC(), nil
		}
		return nil, failed()
	case TypeObjectID:
		switch t := v.(type) {
		case primitive.ObjectID:
			return t, nil
		case string:
			if id, err := primitive.ObjectIDFromHex(t); err == nil {
				return id, nil
			}
		}
		return nil, failed()
	case TypeBuffer:
		switch t := v.(type) {
		case []byte:
			return t, nil
		case string:
			return []byte(t), nil
		}
		return nil, failed()
	case TypeDecimal128:
		switch t := v.(type) {
		case primitive.Decimal128:
			return t, nil
		case string:
			if d, err := primitive.ParseDecimal128(t); err == nil {
				return d, nil
			}
		}
		if n, ok := NumberValue(v); ok {
			if d, err := primitive.ParseDecimal128(strconv.FormatFloat(n, 'f', -1, 64)); err == nil {
				return d, nil
			}
		}
		return nil, failed()
	case TypeSubdocument:
		if _, ok := v.(map[string]any); ok {
			return v, nil
		}
		return nil, failed()
	default:
		return v, nil
	}
}

func inEnum(v any, enum []any) bool {
	for _, e := range enum {
		if ValuesEqual(v, e) {
			return true
		}
	}
	return false
}

// scope adds the discriminator of the model to a copy of filter
func (m *Model) scope(filter map[string]any) map[string]any {
	out := make(map[string]any, len(filter)+1)
	for k, v := range filter {
		out[k] = v
	}
	if key, value, ok := m.handle.schema.Discriminator(); ok {
		out[key] = value
	}
	return out
}

// FindByID returns the document with the given _id
func (m *Model) FindByID(ctx context.Context, id any) (*Document, error) {
	return m.FindOne(ctx, map[string]any{"_id": id})
}

// FindOne returns the first document matching filter. It returns an
// ErrorTypeNotFound error when nothing matches.
func (m *Model) FindOne(ctx context.Context, filter map[string]any) (*Document, error) {
	hc := &HookContext{Event: EventFindOne, Model: m, Filter: m.scope(filter)}
	if err := runHooks(ctx, m.handle, PhasePre, hc); err != nil {
		return nil, err
	}
	raw, err := m.collection.FindOne(ctx, hc.Filter)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, NewErrorf(ErrorTypeNotFound, "no %s document matches %v", m.name, hc.Filter)
	}
	doc := m.hydrate(raw)
	hc.Document = doc
	hc.Documents = []*Document{doc}
	if err := runHooks(ctx, m.handle, PhasePost, hc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Find returns the documents matching filter and opts
func (m *Model) Find(ctx context.Context, filter map[string]any, opts ...FindOption) ([]*Document, error) {
	hc := &HookContext{Event: EventFind, Model: m, Filter: m.scope(filter)}
	if err := runHooks(ctx, m.handle, PhasePre, hc); err != nil {
		return nil, err
	}
	raws, err := m.collection.Find(ctx, NewFindQuery(hc.Filter, opts...))
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, len(raws))
	for i, raw := range raws {
		docs[i] = m.hydrate(raw)
	}
	hc.Documents = docs
	if err := runHooks(ctx, m.handle, PhasePost, hc); err != nil {
		return nil, err
	}
	return docs, nil
}

// Delete removes doc from the collection
func (m *Model) Delete(ctx context.Context, doc *Document) error {
	if doc == nil || doc.ID() == nil {
		return NewErrorf(ErrorTypeInvalidArgument, "cannot delete an unsaved %s document", m.name)
	}
	hc := &HookContext{Event: EventRemove, Model: m, Document: doc}
	if err := runHooks(ctx, m.handle, PhasePre, hc); err != nil {
		return err
	}
	n, err := m.collection.DeleteOne(ctx, doc.ID())
	if err != nil {
		return err
	}
	if n == 0 {
		return NewErrorf(ErrorTypeNotFound, "%s document %v does not exist", m.name, doc.ID())
	}
	return runHooks(ctx, m.handle, PhasePost, hc)
}

// Count returns the number of documents matching filter
func (m *Model) Count(ctx context.Context, filter map[string]any) (int64, error) {
	return m.collection.Count(ctx, m.scope(filter))
}

// EnsureIndexes creates the indexes declared by the schema and its plugins
func (m *Model) EnsureIndexes(ctx context.Context) error {
	for _, idx := range m.handle.Indexes() {
		if err := m.collection.CreateIndex(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index %s on %s: %w", idx.Name, m.CollectionName(), err)
		}
	}
	return nil
}

// Static invokes a static method of the model
func (m *Model) Static(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := m.handle.Static(name)
	if !ok {
		return nil, NewErrorf(ErrorTypeNotFound, "class %s has no static %s", m.name, name)
	}
	return fn(ctx, m, args...)
}

// hydrate wraps a stored document. A document tagged with the discriminator
// value of another model sharing the collection is handed to that model.
func (m *Model) hydrate(raw map[string]any) *Document {
	fields := NormalizeMap(raw)
	owner := m
	if key := m.handle.schema.options.DiscriminatorKey; key != "" && m.registry != nil {
		if class, ok := fields[key].(string); ok && class != m.name {
			if other, ok := m.registry.Model(class); ok && other.CollectionName() == m.CollectionName() {
				owner = other
			}
		}
	}
	return &Document{model: owner, fields: fields}
}
