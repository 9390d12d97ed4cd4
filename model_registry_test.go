package typegoose

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type regKitten struct {
	Base `bson:",inline"`
	Name string `bson:"name" tg:"required"`
}

// ModelRegistrySuite runs binding scenarios against an in-memory engine
type ModelRegistrySuite struct {
	suite.Suite
	store    *Store
	engine   *mockEngine
	registry *ModelRegistry
}

func (s *ModelRegistrySuite) SetupTest() {
	s.store = NewStore()
	s.engine = newMockEngine("mock")
	engines := NewEngineRegistry()
	engines.SetDefault(s.engine)
	s.registry = NewModelRegistry(s.store, engines)

	s.Require().NoError(s.store.Define("Car").Prop("model", PropOptions{Type: TypeString}).Err())
	s.Require().NoError(s.store.DeclareType(reflect.TypeOf(regKitten{})).Err())
}

func (s *ModelRegistrySuite) TestGetModelForClassIsIdempotent() {
	first, err := s.registry.GetModelForClass("Car")
	s.Require().NoError(err)
	second, err := s.registry.GetModelForClass("Car", WithSchemaOptions(SchemaOptions{Collection: "ignored"}))
	s.Require().NoError(err)

	s.Same(first, second)
	s.Equal("cars", second.CollectionName())
	s.Equal(1, s.engine.opened["cars"])
	s.Equal(StateModelBound, s.store.State("Car"))
}

func (s *ModelRegistrySuite) TestConcurrentBindingYieldsOneModel() {
	var wg sync.WaitGroup
	models := make([]*Model, 8)
	for i := range models {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			models[i], _ = s.registry.GetModelForClass("Car")
		}(i)
	}
	wg.Wait()

	for _, m := range models {
		s.Same(models[0], m)
	}
	s.Equal(1, s.engine.opened["cars"])
}

func (s *ModelRegistrySuite) TestStrictRejectsRebinding() {
	_, err := s.registry.SetModelForClass("Car", Strict())
	s.Require().NoError(err)

	_, err = s.registry.SetModelForClass("Car", Strict())
	s.True(IsDuplicateModel(err))

	m, err := s.registry.SetModelForClass("Car")
	s.NoError(err)
	s.NotNil(m)
}

func (s *ModelRegistrySuite) TestCallOptionsApplyToRequestedClass() {
	m, err := s.registry.GetModelForClass("Car", WithSchemaOptions(SchemaOptions{Collection: "garage"}))
	s.Require().NoError(err)
	s.Equal("garage", m.CollectionName())
}

func (s *ModelRegistrySuite) TestMissingEngine() {
	registry := NewModelRegistry(s.store, NewEngineRegistry())
	_, err := registry.GetModelForClass("Car")
	s.True(IsConnection(err))

	// Nothing was cached by the failure
	m, err := registry.GetModelForClass("Car", WithEngine(s.engine))
	s.Require().NoError(err)
	s.Equal("mock", m.Engine().Name())

	_, err = registry.GetModelForClass("Car", WithConnection("other"))
	s.NoError(err, "a bound class ignores options")
}

func (s *ModelRegistrySuite) TestPluginsRunOnceAcrossFailedBind() {
	runs := 0
	s.Require().NoError(s.store.Define("Bus").
		Prop("line", PropOptions{Type: TypeString}).
		Plugin(func(*Handle, map[string]any) error {
			runs++
			return nil
		}, nil).Err())

	registry := NewModelRegistry(s.store, NewEngineRegistry())
	_, err := registry.GetModelForClass("Bus")
	s.True(IsConnection(err))
	s.Zero(runs)

	_, err = registry.GetModelForClass("Bus", WithEngine(s.engine))
	s.Require().NoError(err)
	s.Equal(1, runs)
}

func (s *ModelRegistrySuite) TestBoundClassKeepsItsSchema() {
	cars, err := s.registry.GetModelForClass("Car")
	s.Require().NoError(err)
	s.Equal(StateModelBound, s.store.State("Car"))

	sch, err := NewSynthesizer(s.store).Synthesize("Car")
	s.Require().NoError(err)
	s.Same(cars.Schema(), sch)
	s.Equal(StateModelBound, s.store.State("Car"))
}

func (s *ModelRegistrySuite) TestUnknownClass() {
	_, err := s.registry.GetModelForClass("Boat")
	s.True(IsNotFound(err))
	_, err = s.registry.GetModelForClass(42)
	s.True(IsErrorType(err, ErrorTypeInvalidArgument))
}

func (s *ModelRegistrySuite) TestClassForDocument() {
	kittens, err := s.registry.GetModelForClass(regKitten{})
	s.Require().NoError(err)
	doc := kittens.New(map[string]any{"name": "Tom"})

	meta, ok := s.registry.ClassForDocument(doc)
	s.Require().True(ok)
	s.Equal("regKitten", meta.Name)
	s.Equal(StateModelBound, s.store.State("regKitten"))

	typ, ok := s.registry.TypeForDocument(doc)
	s.Require().True(ok)
	s.Equal(reflect.TypeOf(regKitten{}), typ)

	cars, err := s.registry.GetModelForClass("Car")
	s.Require().NoError(err)
	_, ok = s.registry.TypeForDocument(cars.New(nil))
	s.False(ok, "Car was not declared from a struct")

	other := NewModelRegistry(s.store, NewEngineRegistry())
	_, ok = other.ClassForDocument(doc)
	s.False(ok)
	_, ok = s.registry.ClassForDocument(nil)
	s.False(ok)
}

func TestModelRegistrySuite(t *testing.T) {
	suite.Run(t, new(ModelRegistrySuite))
}

func TestModelsSingleton(t *testing.T) {
	assert.Same(t, Models(), Models())
	assert.Same(t, Metadata(), Models().Store())
	require.NotNil(t, Models().Synthesizer())
}
