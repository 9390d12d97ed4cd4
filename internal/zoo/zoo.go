// Package zoo declares the classes shared by the tests and the tgschema
// command: an animal hierarchy, reference fields of every key type, a user
// model with subdocuments, and classes with lifecycle hooks.
package zoo

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/lemmego/typegoose"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// =====================================
// Animals
// =====================================

// Animal is the root of the animal hierarchy. Every animal is stored in the
// same collection and tagged with its class under _type.
type Animal struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Type string             `bson:"_type,omitempty"`
}

// Dog inherits Animal
type Dog struct {
	Animal     `bson:",inline"`
	TailLength int `bson:"tailLength,omitempty"`
}

// GermanShepherd inherits Dog
type GermanShepherd struct {
	Dog      `bson:",inline"`
	FurColor string `bson:"furColor,omitempty"`
}

// Sounds returned by the getSound method of each animal class
const (
	DogSound            = "woof"
	GermanShepherdSound = "im a shepherd"
	CatSound            = "meow"
)

func sound(s any) typegoose.MethodFunc {
	return func(context.Context, *typegoose.Document, ...any) (any, error) {
		return s, nil
	}
}

func registerAnimals(store *typegoose.Store) []*typegoose.Class {
	animal := store.DeclareType(reflect.TypeOf(Animal{})).
		Options(typegoose.SchemaOptions{Collection: "animals", DiscriminatorKey: "_type"}).
		Method("getSound", sound(nil))

	dog := store.DeclareType(reflect.TypeOf(Dog{})).
		Method("getSound", sound(DogSound))

	shepherd := store.DeclareType(reflect.TypeOf(GermanShepherd{})).
		Method("getSound", sound(GermanShepherdSound))

	// Cat has no struct; it is composed onto Animal's schema.
	cat := store.Define("Cat").
		ExtendSchema(animal).
		Prop("lives", typegoose.PropOptions{Type: typegoose.TypeNumber, Default: 9}).
		Method("getSound", sound(CatSound))

	return []*typegoose.Class{animal, dog, shepherd, cat}
}

// =====================================
// References
// =====================================

// Key types exercised by RefTest, with the class each one points at
var refTargets = []struct {
	class string
	tag   string
	id    typegoose.FieldType
}{
	{"RefTestString", "string", typegoose.TypeString},
	{"RefTestNumber", "number", typegoose.TypeNumber},
	{"RefTestBuffer", "buffer", typegoose.TypeBuffer},
}

func registerRefs(store *typegoose.Store) []*typegoose.Class {
	var classes []*typegoose.Class
	targets := make(map[string]*typegoose.Class)
	for _, t := range refTargets {
		c := store.Define(t.class).Prop("_id", typegoose.PropOptions{Type: t.id})
		targets[t.class] = c
		classes = append(classes, c)
	}

	ref := store.Define("RefTest")
	ref.Prop("refField", typegoose.PropOptions{Ref: ref}).
		Prop("refField2", typegoose.PropOptions{Ref: "RefTest"}).
		ArrayProp("refArray", typegoose.PropOptions{ItemsRef: ref}).
		ArrayProp("refArray2", typegoose.PropOptions{ItemsRef: "RefTest"})

	for _, t := range refTargets {
		suffix := t.tag[:1]
		suffix = strings.ToUpper(suffix) + t.tag[1:]
		ref.Prop("refField"+suffix, typegoose.PropOptions{Ref: targets[t.class], RefType: t.tag}).
			Prop("refField"+suffix+"2", typegoose.PropOptions{Ref: t.class, RefType: t.tag}).
			ArrayProp("refArray"+suffix, typegoose.PropOptions{ItemsRef: targets[t.class], ItemsRefType: t.tag}).
			ArrayProp("refArray"+suffix+"2", typegoose.PropOptions{ItemsRef: t.class, ItemsRefType: t.tag})
	}
	return append(classes, ref)
}

// =====================================
// Users
// =====================================

// JobType is a subdocument of Job
type JobType struct {
	Field  string  `bson:"field" tg:"required"`
	Salary float64 `bson:"salary" tg:"required"`
}

// Job is a subdocument of User
type Job struct {
	Title     string    `bson:"title,omitempty"`
	Position  string    `bson:"position,omitempty"`
	StartedAt time.Time `bson:"startedAt,omitempty" tg:"required,default=now"`
	JobType   *JobType  `bson:"jobType,omitempty" tg:"noid"`
}

// Car is referenced by User and Person
type Car struct {
	ID    primitive.ObjectID   `bson:"_id,omitempty"`
	Model string               `bson:"model" tg:"required"`
	Price primitive.Decimal128 `bson:"price,omitempty"`
}

// CollectionName stores cars in the garage collection
func (Car) CollectionName() string { return "garage" }

// Sedans are the car models the isSedan virtual reports true for
var Sedans = []string{"Tesla Model S", "Audi A6"}

// User exercises defaults, enums, indexes, subdocuments and references
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	FirstName    string               `bson:"firstName" tg:"required"`
	LastName     string               `bson:"lastName" tg:"required"`
	Nick         string               `bson:"nick,omitempty" tg:"default=Nothing"`
	Age          int                  `bson:"age,omitempty" tg:"index"`
	UniqueID     string               `bson:"uniqueId,omitempty" tg:"unique"`
	Gender       string               `bson:"gender" tg:"required,enum=male|female"`
	Role         string               `bson:"role,omitempty" tg:"enum=guest|member|admin,default=guest"`
	Job          *Job                 `bson:"job,omitempty"`
	Car          *primitive.ObjectID  `bson:"car,omitempty" tg:"ref=Car"`
	Languages    []string             `bson:"languages,omitempty"`
	PreviousJobs []Job                `bson:"previousJobs,omitempty"`
	PreviousCars []primitive.ObjectID `bson:"previousCars,omitempty" tg:"itemsRef=Car"`
}

// ErrNegativeAge is returned when a user is saved with an age below zero
var ErrNegativeAge = errors.New("age cannot be negative")

// Validate implements typegoose.Validator
func (u *User) Validate(ctx context.Context) error {
	if u.Age < 0 {
		return ErrNegativeAge
	}
	return nil
}

// FindOrCreateResult is returned by the findOrCreate static
type FindOrCreateResult struct {
	Doc     *typegoose.Document
	Created bool
}

// FindOrCreate adds a findOrCreate static to the model: it returns the
// first document matching its map argument, creating one from it otherwise.
func FindOrCreate(h *typegoose.Handle, _ map[string]any) error {
	h.AddStatic("findOrCreate", func(ctx context.Context, model *typegoose.Model, args ...any) (any, error) {
		if len(args) == 0 {
			return nil, typegoose.NewError(typegoose.ErrorTypeInvalidArgument, "findOrCreate needs a condition")
		}
		cond, ok := args[0].(map[string]any)
		if !ok {
			return nil, typegoose.NewErrorf(typegoose.ErrorTypeInvalidArgument, "findOrCreate condition must be a map, got %T", args[0])
		}
		doc, err := model.FindOne(ctx, cond)
		if err == nil {
			return FindOrCreateResult{Doc: doc}, nil
		}
		if !typegoose.IsNotFound(err) {
			return nil, err
		}
		doc, err = model.Create(ctx, cond)
		if err != nil {
			return nil, err
		}
		return FindOrCreateResult{Doc: doc, Created: true}, nil
	})
	return nil
}

func appendTo(doc *typegoose.Document, path string, value any) {
	list, _ := doc.Get(path).([]any)
	doc.Set(path, append(list, value))
}

func registerUsers(store *typegoose.Store) []*typegoose.Class {
	car := store.DeclareType(reflect.TypeOf(Car{})).
		Virtual("isSedan", func(doc *typegoose.Document) any {
			model, _ := doc.Get("model").(string)
			for _, s := range Sedans {
				if model == s {
					return true
				}
			}
			return false
		}, nil)

	user := store.DeclareType(reflect.TypeOf(User{})).
		Method("incrementAge", func(ctx context.Context, doc *typegoose.Document, _ ...any) (any, error) {
			age, _ := typegoose.NumberValue(doc.Get("age"))
			doc.Set("age", int(age)+1)
			return doc, doc.Model().Save(ctx, doc)
		}).
		Method("addLanguage", func(ctx context.Context, doc *typegoose.Document, _ ...any) (any, error) {
			appendTo(doc, "languages", "Hungarian")
			return doc, doc.Model().Save(ctx, doc)
		}).
		Method("addJob", func(ctx context.Context, doc *typegoose.Document, args ...any) (any, error) {
			job := map[string]any{}
			if len(args) > 0 {
				if m, ok := args[0].(map[string]any); ok {
					job = m
				}
			}
			appendTo(doc, "previousJobs", job)
			return doc, doc.Model().Save(ctx, doc)
		}).
		Virtual("fullName",
			func(doc *typegoose.Document) any {
				first, _ := doc.Get("firstName").(string)
				last, _ := doc.Get("lastName").(string)
				return first + " " + last
			},
			func(doc *typegoose.Document, value any) {
				s, _ := value.(string)
				first, last, _ := strings.Cut(s, " ")
				doc.Set("firstName", first)
				doc.Set("lastName", last)
			}).
		Plugin(FindOrCreate, nil)

	return []*typegoose.Class{car, user}
}

// =====================================
// People
// =====================================

// Timestamped is a parent class that turns on createdAt and updatedAt
type Timestamped struct {
	CreatedAt time.Time `bson:"createdAt,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty"`
}

// Person inherits Timestamped
type Person struct {
	Timestamped `bson:",inline"`
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Email       string               `bson:"email" tg:"required,unique"`
	Cars        []primitive.ObjectID `bson:"cars,omitempty" tg:"itemsRef=Car"`
}

func registerPeople(store *typegoose.Store) []*typegoose.Class {
	stamped := store.DeclareType(reflect.TypeOf(Timestamped{})).
		Options(typegoose.SchemaOptions{Timestamps: true})

	person := store.DeclareType(reflect.TypeOf(Person{})).
		Method("addCar", func(ctx context.Context, doc *typegoose.Document, args ...any) (any, error) {
			if len(args) == 0 {
				return nil, typegoose.NewError(typegoose.ErrorTypeInvalidArgument, "addCar needs a car")
			}
			car, ok := args[0].(*typegoose.Document)
			if !ok {
				return nil, typegoose.NewErrorf(typegoose.ErrorTypeInvalidArgument, "addCar needs a car document, got %T", args[0])
			}
			appendTo(doc, "cars", car.ID())
			return doc, doc.Model().Save(ctx, doc)
		}).
		Method("getClassName", func(_ context.Context, doc *typegoose.Document, _ ...any) (any, error) {
			return doc.ClassName(), nil
		}).
		Static("getStaticName", func(_ context.Context, model *typegoose.Model, _ ...any) (any, error) {
			return model.Name(), nil
		})

	return []*typegoose.Class{stamped, person}
}

// =====================================
// Hooks
// =====================================

// Values written by the Hook and Dummy hooks
const (
	OldShape        = "oldShape"
	NewShape        = "newShape"
	SavedText       = "saved"
	FindOneHookText = "changed in post findOne hook"
	FindHookText    = "changed in post find hook"
)

func registerHooks(store *typegoose.Store) []*typegoose.Class {
	hook := store.Define("Hook").
		Prop("material", typegoose.PropOptions{Type: typegoose.TypeString}).
		Prop("shape", typegoose.PropOptions{Type: typegoose.TypeString}).
		Pre(typegoose.EventSave, func(_ context.Context, hc *typegoose.HookContext) error {
			if hc.Document.IsModified("shape") {
				hc.Document.Set("shape", NewShape)
			} else {
				hc.Document.Set("shape", OldShape)
			}
			return nil
		})

	dummy := store.Define("Dummy").
		Prop("text", typegoose.PropOptions{Type: typegoose.TypeString}).
		Pre(typegoose.EventSave, func(_ context.Context, hc *typegoose.HookContext) error {
			hc.Document.Set("text", SavedText)
			return nil
		}).
		Post(typegoose.EventFindOne, func(_ context.Context, hc *typegoose.HookContext) error {
			hc.Document.Set("text", FindOneHookText)
			return nil
		}).
		Post(typegoose.EventFind, func(_ context.Context, hc *typegoose.HookContext) error {
			if len(hc.Documents) > 0 {
				hc.Documents[0].Set("text", FindHookText)
			}
			return nil
		})

	return []*typegoose.Class{hook, dummy}
}

// Register declares every zoo class into store
func Register(store *typegoose.Store) error {
	var classes []*typegoose.Class
	classes = append(classes, registerAnimals(store)...)
	classes = append(classes, registerRefs(store)...)
	classes = append(classes, registerUsers(store)...)
	classes = append(classes, registerPeople(store)...)
	classes = append(classes, registerHooks(store)...)

	var errs []error
	for _, c := range classes {
		if err := c.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
