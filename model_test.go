package typegoose_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/lemmego/typegoose"
	"github.com/lemmego/typegoose/internal/zoo"
	"github.com/lemmego/typegoose/tgredis"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModelSuite binds the zoo classes to a Redis engine backed by miniredis
type ModelSuite struct {
	suite.Suite
	server   *miniredis.Miniredis
	registry *typegoose.ModelRegistry
	ctx      context.Context
}

func (s *ModelSuite) SetupTest() {
	server, err := miniredis.Run()
	s.Require().NoError(err)
	s.server = server

	engines := typegoose.NewEngineRegistry()
	engines.SetDefault(tgredis.NewWithClient(redis.NewClient(&redis.Options{Addr: server.Addr()})))

	store := typegoose.NewStore()
	s.Require().NoError(zoo.Register(store))
	s.registry = typegoose.NewModelRegistry(store, engines)
	s.ctx = context.Background()
}

func (s *ModelSuite) TearDownTest() {
	s.server.Close()
}

func (s *ModelSuite) model(class any) *typegoose.Model {
	m, err := s.registry.GetModelForClass(class)
	s.Require().NoError(err)
	return m
}

func (s *ModelSuite) validationCode(err error) string {
	var e typegoose.Error
	s.Require().True(errors.As(err, &e), "expected a typegoose error, got %v", err)
	s.Require().Equal(typegoose.ErrorTypeValidation, e.Type)
	return e.Code
}

func johnDoe() map[string]any {
	return map[string]any{
		"firstName": "John",
		"lastName":  "Doe",
		"gender":    "male",
		"age":       20,
		"languages": []string{"English"},
	}
}

// =====================================
// Users
// =====================================

func (s *ModelSuite) TestCreateAndFind() {
	users := s.model(zoo.User{})
	doc, err := users.Create(s.ctx, johnDoe())
	s.Require().NoError(err)
	s.False(doc.IsNew())
	s.IsType(primitive.ObjectID{}, doc.ID())

	found, err := users.FindByID(s.ctx, doc.ID())
	s.Require().NoError(err)
	s.Equal(doc.ID(), found.ID())
	s.Equal("John", found.Get("firstName"))
	s.EqualValues(20, found.Get("age"))
	s.Equal([]any{"English"}, found.Get("languages"))
	s.Equal("Nothing", found.Get("nick"))
	s.Equal("guest", found.Get("role"))
	s.False(found.Has("job"))

	var user zoo.User
	s.Require().NoError(found.Decode(&user))
	s.Equal("Doe", user.LastName)
	s.Equal(20, user.Age)
	s.Equal([]string{"English"}, user.Languages)

	_, err = users.FindOne(s.ctx, map[string]any{"firstName": "Nobody"})
	s.True(typegoose.IsNotFound(err))
}

func (s *ModelSuite) TestSubdocumentDefaults() {
	users := s.model(zoo.User{})
	values := johnDoe()
	values["job"] = map[string]any{
		"title":   "Developer",
		"jobType": map[string]any{"field": "IT", "salary": 100},
	}
	doc, err := users.Create(s.ctx, values)
	s.Require().NoError(err)

	found, err := users.FindByID(s.ctx, doc.ID())
	s.Require().NoError(err)
	s.Equal("Developer", found.Get("job.title"))
	s.IsType(primitive.ObjectID{}, found.Get("job._id"))
	s.IsType(time.Time{}, found.Get("job.startedAt"))
	s.EqualValues(100, found.Get("job.jobType.salary"))
	s.False(found.Has("job.jobType._id"), "jobType is declared without an _id")
}

func (s *ModelSuite) TestRequiredAndEnum() {
	users := s.model(zoo.User{})

	_, err := users.Create(s.ctx, map[string]any{"firstName": "John", "lastName": "Doe"})
	s.Equal(typegoose.ValidationRequired, s.validationCode(err))

	values := johnDoe()
	values["firstName"] = ""
	_, err = users.Create(s.ctx, values)
	s.Equal(typegoose.ValidationRequired, s.validationCode(err))

	values = johnDoe()
	values["gender"] = "other"
	_, err = users.Create(s.ctx, values)
	s.Equal(typegoose.ValidationEnum, s.validationCode(err))

	values = johnDoe()
	values["role"] = "root"
	_, err = users.Create(s.ctx, values)
	s.Equal(typegoose.ValidationEnum, s.validationCode(err))

	values = johnDoe()
	values["job"] = map[string]any{"jobType": map[string]any{"field": "IT"}}
	_, err = users.Create(s.ctx, values)
	s.Equal(typegoose.ValidationRequired, s.validationCode(err))
	s.Contains(err.Error(), "job.jobType.salary")

	count, err := users.Count(s.ctx, nil)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ModelSuite) TestValidatorRuns() {
	users := s.model(zoo.User{})
	values := johnDoe()
	values["age"] = -1

	_, err := users.Create(s.ctx, values)
	s.True(typegoose.IsValidation(err))
	s.ErrorIs(err, zoo.ErrNegativeAge)
}

func (s *ModelSuite) TestCasting() {
	users := s.model(zoo.User{})
	values := johnDoe()
	values["age"] = "33"
	values["languages"] = []any{"English", 42}

	doc, err := users.Create(s.ctx, values)
	s.Require().NoError(err)
	found, err := users.FindByID(s.ctx, doc.ID())
	s.Require().NoError(err)
	s.EqualValues(33, found.Get("age"))
	s.Equal([]any{"English", "42"}, found.Get("languages"))

	values = johnDoe()
	values["age"] = "old"
	_, err = users.Create(s.ctx, values)
	s.Equal(typegoose.ValidationCast, s.validationCode(err))
}

func (s *ModelSuite) TestMethods() {
	users := s.model(zoo.User{})
	doc, err := users.Create(s.ctx, johnDoe())
	s.Require().NoError(err)

	_, err = doc.Call(s.ctx, "incrementAge")
	s.Require().NoError(err)
	_, err = doc.Call(s.ctx, "addLanguage")
	s.Require().NoError(err)
	_, err = doc.Call(s.ctx, "addJob", map[string]any{"title": "Tester"})
	s.Require().NoError(err)

	found, err := users.FindByID(s.ctx, doc.ID())
	s.Require().NoError(err)
	s.EqualValues(21, found.Get("age"))
	s.Equal([]any{"English", "Hungarian"}, found.Get("languages"))

	jobs, ok := found.Get("previousJobs").([]any)
	s.Require().True(ok)
	s.Require().Len(jobs, 1)
	job := jobs[0].(map[string]any)
	s.Equal("Tester", job["title"])
	s.IsType(primitive.ObjectID{}, job["_id"])
	s.IsType(time.Time{}, job["startedAt"])

	_, err = doc.Call(s.ctx, "fly")
	s.True(typegoose.IsNotFound(err))
}

func (s *ModelSuite) TestVirtuals() {
	users := s.model(zoo.User{})
	doc := users.New(johnDoe())
	s.Equal("John Doe", doc.Get("fullName"))

	doc.Set("fullName", "Jane Roe")
	s.Equal("Jane", doc.Get("firstName"))
	s.Equal("Roe", doc.Get("lastName"))
	s.True(doc.IsModified("firstName"))

	cars := s.model(zoo.Car{})
	s.Equal("garage", cars.CollectionName())
	s.Equal(true, cars.New(map[string]any{"model": "Tesla Model S"}).Get("isSedan"))
	s.Equal(false, cars.New(map[string]any{"model": "Fiat Multipla"}).Get("isSedan"))
}

func (s *ModelSuite) TestFindOrCreatePlugin() {
	users := s.model(zoo.User{})
	cond := map[string]any{"firstName": "Ann", "lastName": "Lee", "gender": "female"}

	v, err := users.Static(s.ctx, "findOrCreate", cond)
	s.Require().NoError(err)
	first := v.(zoo.FindOrCreateResult)
	s.True(first.Created)

	v, err = users.Static(s.ctx, "findOrCreate", cond)
	s.Require().NoError(err)
	second := v.(zoo.FindOrCreateResult)
	s.False(second.Created)
	s.Equal(first.Doc.ID(), second.Doc.ID())

	_, err = users.Static(s.ctx, "findOrCreate")
	s.True(typegoose.IsErrorType(err, typegoose.ErrorTypeInvalidArgument))
	_, err = users.Static(s.ctx, "missing")
	s.True(typegoose.IsNotFound(err))
}

func (s *ModelSuite) TestFindSortAndPage() {
	users := s.model(zoo.User{})
	for _, age := range []int{30, 10, 20} {
		values := johnDoe()
		values["age"] = age
		_, err := users.Create(s.ctx, values)
		s.Require().NoError(err)
	}

	docs, err := users.Find(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(docs, 3)
	s.EqualValues(30, docs[0].Get("age"), "storage order without sort keys")

	docs, err = users.Find(s.ctx, map[string]any{"gender": "male"},
		typegoose.OrderBy("age", typegoose.OrderAsc), typegoose.Skip(1), typegoose.Limit(1))
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.EqualValues(20, docs[0].Get("age"))

	docs, err = users.Find(s.ctx, nil, typegoose.WhereIn("age", 10, 30), typegoose.OrderBy("age", typegoose.OrderDesc))
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.EqualValues(30, docs[0].Get("age"))

	s.Require().NoError(users.Delete(s.ctx, docs[0]))
	count, err := users.Count(s.ctx, nil)
	s.Require().NoError(err)
	s.EqualValues(2, count)
	s.True(typegoose.IsNotFound(users.Delete(s.ctx, docs[0])))
}

func (s *ModelSuite) TestDuplicateKeyIsPassedThrough() {
	users := s.model(zoo.User{})
	s.Require().NoError(users.EnsureIndexes(s.ctx))

	first := johnDoe()
	first["uniqueId"] = "u-1"
	_, err := users.Create(s.ctx, first)
	s.Require().NoError(err)

	second := johnDoe()
	second["uniqueId"] = "u-1"
	_, err = users.Create(s.ctx, second)
	s.Require().Error(err)
	dup, ok := err.(*tgredis.DuplicateKeyError)
	s.Require().True(ok, "expected the engine error unchanged, got %T", err)
	s.Equal(tgredis.DuplicateKeyCode, dup.Code())
	s.Equal("uniqueId_1", dup.Index)

	// Documents without the unique path do not collide
	_, err = users.Create(s.ctx, johnDoe())
	s.Require().NoError(err)
	_, err = users.Create(s.ctx, johnDoe())
	s.Require().NoError(err)
}

func (s *ModelSuite) TestReferences() {
	cars := s.model(zoo.Car{})
	users := s.model(zoo.User{})

	tesla, err := cars.Create(s.ctx, map[string]any{"model": "Tesla Model S", "price": "42000.50"})
	s.Require().NoError(err)
	audi, err := cars.Create(s.ctx, map[string]any{"model": "Audi A6", "price": 39000})
	s.Require().NoError(err)

	values := johnDoe()
	values["car"] = tesla
	values["previousCars"] = []any{tesla, audi.ID().(primitive.ObjectID).Hex()}
	doc, err := users.Create(s.ctx, values)
	s.Require().NoError(err)

	found, err := users.FindByID(s.ctx, doc.ID())
	s.Require().NoError(err)
	s.Equal(tesla.ID(), found.Get("car"))
	s.Equal([]any{tesla.ID(), audi.ID()}, found.Get("previousCars"))

	stored, err := cars.FindByID(s.ctx, tesla.ID())
	s.Require().NoError(err)
	price, ok := stored.Get("price").(primitive.Decimal128)
	s.Require().True(ok)
	s.Equal("42000.50", price.String())

	_, err = cars.Create(s.ctx, map[string]any{"model": "Trabant", "price": "cheap"})
	s.Equal(typegoose.ValidationCast, s.validationCode(err))

	values = johnDoe()
	values["car"] = "not-an-id"
	_, err = users.Create(s.ctx, values)
	s.Equal(typegoose.ValidationCast, s.validationCode(err))
}

func (s *ModelSuite) TestReferenceKeyTypes() {
	refs := s.model("RefTest")
	strs := s.model("RefTestString")
	nums := s.model("RefTestNumber")
	bufs := s.model("RefTestBuffer")

	str, err := strs.Create(s.ctx, map[string]any{"_id": "abc"})
	s.Require().NoError(err)
	num, err := nums.Create(s.ctx, map[string]any{"_id": 42})
	s.Require().NoError(err)
	buf, err := bufs.Create(s.ctx, nil)
	s.Require().NoError(err)
	s.IsType([]byte{}, buf.ID())

	self, err := refs.Create(s.ctx, nil)
	s.Require().NoError(err)
	doc, err := refs.Create(s.ctx, map[string]any{
		"refField":        self,
		"refArray2":       []any{self},
		"refFieldString":  str,
		"refArrayString2": []any{str, "def"},
		"refFieldNumber":  num,
		"refArrayNumber":  []any{num, "7"},
		"refFieldBuffer2": buf,
	})
	s.Require().NoError(err)

	found, err := refs.FindByID(s.ctx, doc.ID())
	s.Require().NoError(err)
	s.Equal(self.ID(), found.Get("refField"))
	s.Equal([]any{self.ID()}, found.Get("refArray2"))
	s.Equal("abc", found.Get("refFieldString"))
	s.Equal([]any{"abc", "def"}, found.Get("refArrayString2"))
	s.EqualValues(42, found.Get("refFieldNumber"))
	arr := found.Get("refArrayNumber").([]any)
	s.Require().Len(arr, 2)
	s.EqualValues(42, arr[0])
	s.EqualValues(7, arr[1])
	s.Equal(buf.ID(), found.Get("refFieldBuffer2"))

	byID, err := strs.FindByID(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal("RefTestString", byID.ClassName())
}

func (s *ModelSuite) TestClassForDocument() {
	users := s.model(zoo.User{})
	doc := users.New(johnDoe())

	meta, ok := s.registry.ClassForDocument(doc)
	s.Require().True(ok)
	s.Equal("User", meta.Name)

	typ, ok := s.registry.TypeForDocument(doc)
	s.Require().True(ok)
	s.Equal(reflect.TypeOf(zoo.User{}), typ)
}

// =====================================
// Animals
// =====================================

func (s *ModelSuite) TestInheritedMethods() {
	shepherds := s.model(zoo.GermanShepherd{})
	s.Equal("animals", shepherds.CollectionName())

	doc, err := shepherds.Create(s.ctx, map[string]any{"furColor": "black", "tailLength": 30})
	s.Require().NoError(err)
	s.Equal("GermanShepherd", doc.Get("_type"))

	sound, err := doc.Call(s.ctx, "getSound")
	s.Require().NoError(err)
	s.Equal(zoo.GermanShepherdSound, sound)

	found, err := shepherds.FindOne(s.ctx, map[string]any{"furColor": "black"})
	s.Require().NoError(err)
	s.EqualValues(30, found.Get("tailLength"))
	sound, err = found.Call(s.ctx, "getSound")
	s.Require().NoError(err)
	s.Equal(zoo.GermanShepherdSound, sound)

	var shepherd zoo.GermanShepherd
	s.Require().NoError(found.Decode(&shepherd))
	s.Equal("black", shepherd.FurColor)
	s.Equal(30, shepherd.TailLength)
	s.Equal(found.ID(), shepherd.ID)
}

func (s *ModelSuite) TestSharedCollectionHydratesSubclasses() {
	animals := s.model(zoo.Animal{})
	dogs := s.model(zoo.Dog{})
	shepherds := s.model(zoo.GermanShepherd{})
	cats := s.model("Cat")

	_, err := dogs.Create(s.ctx, map[string]any{"tailLength": 10})
	s.Require().NoError(err)
	_, err = shepherds.Create(s.ctx, map[string]any{"furColor": "brown"})
	s.Require().NoError(err)
	cat, err := cats.Create(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal("Cat", cat.Get("_type"))
	s.EqualValues(9, cat.Get("lives"))

	docs, err := animals.Find(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(docs, 3)

	expected := []struct {
		class string
		sound string
	}{
		{"Dog", zoo.DogSound},
		{"GermanShepherd", zoo.GermanShepherdSound},
		{"Cat", zoo.CatSound},
	}
	for i, e := range expected {
		s.Equal(e.class, docs[i].ClassName())
		sound, err := docs[i].Call(s.ctx, "getSound")
		s.Require().NoError(err)
		s.Equal(e.sound, sound)
	}

	count, err := dogs.Count(s.ctx, nil)
	s.Require().NoError(err)
	s.EqualValues(1, count, "dogs are scoped by their discriminator value")

	_, err = cats.FindOne(s.ctx, map[string]any{"tailLength": 10})
	s.True(typegoose.IsNotFound(err))
}

// =====================================
// People
// =====================================

func (s *ModelSuite) TestTimestampsAndPersonMethods() {
	persons := s.model(zoo.Person{})
	cars := s.model(zoo.Car{})
	s.Require().NoError(persons.EnsureIndexes(s.ctx))

	person, err := persons.Create(s.ctx, map[string]any{"email": "ann@example.com"})
	s.Require().NoError(err)
	createdAt, ok := person.Get("createdAt").(time.Time)
	s.Require().True(ok)
	s.Equal(createdAt, person.Get("updatedAt"))

	car, err := cars.Create(s.ctx, map[string]any{"model": "Audi A6"})
	s.Require().NoError(err)
	_, err = person.Call(s.ctx, "addCar", car)
	s.Require().NoError(err)

	found, err := persons.FindByID(s.ctx, person.ID())
	s.Require().NoError(err)
	s.Equal([]any{car.ID()}, found.Get("cars"))
	s.True(createdAt.Equal(found.Get("createdAt").(time.Time)))
	updatedAt := found.Get("updatedAt").(time.Time)
	s.False(updatedAt.Before(createdAt))

	name, err := found.Call(s.ctx, "getClassName")
	s.Require().NoError(err)
	s.Equal("Person", name)
	name, err = persons.Static(s.ctx, "getStaticName")
	s.Require().NoError(err)
	s.Equal("Person", name)

	_, err = persons.Create(s.ctx, map[string]any{"email": "ann@example.com"})
	s.True(tgredis.IsDuplicateKey(err))
}

// =====================================
// Hooks
// =====================================

func (s *ModelSuite) TestPreSaveSeesModifiedPaths() {
	hooks := s.model("Hook")
	doc, err := hooks.Create(s.ctx, map[string]any{"material": "steel"})
	s.Require().NoError(err)
	s.Equal(zoo.OldShape, doc.Get("shape"))

	doc.Set("shape", "circle")
	s.Require().NoError(hooks.Save(s.ctx, doc))

	found, err := hooks.FindByID(s.ctx, doc.ID())
	s.Require().NoError(err)
	s.Equal(zoo.NewShape, found.Get("shape"))
	s.Equal("steel", found.Get("material"))
}

func (s *ModelSuite) TestFindHooks() {
	dummies := s.model("Dummy")
	_, err := dummies.CreateMany(s.ctx, map[string]any{"text": "one"}, map[string]any{"text": "two"})
	s.Require().NoError(err)

	doc, err := dummies.FindOne(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(zoo.FindOneHookText, doc.Get("text"))

	docs, err := dummies.Find(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal(zoo.FindHookText, docs[0].Get("text"))
	s.Equal(zoo.SavedText, docs[1].Get("text"))
}

func TestModelSuite(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}
