package typegoose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeExtendShadowsInPlace(t *testing.T) {
	parent := NewShape(
		FieldDescriptor{Name: "a", Type: TypeString},
		FieldDescriptor{Name: "b", Type: TypeString},
	)
	child := NewShape(
		FieldDescriptor{Name: "c", Type: TypeNumber},
		FieldDescriptor{Name: "a", Type: TypeNumber},
	)

	merged := parent.Extend(child)
	assert.Equal(t, []string{"a", "b", "c"}, merged.Names())
	a, _ := merged.Field("a")
	assert.Equal(t, TypeNumber, a.Type)

	// Neither input changes
	assert.Equal(t, []string{"a", "b"}, parent.Names())
	a, _ = parent.Field("a")
	assert.Equal(t, TypeString, a.Type)
	assert.Equal(t, 2, child.Len())
}

func TestShapeAppendMovesRedeclaredFields(t *testing.T) {
	base := NewShape(
		FieldDescriptor{Name: "a", Type: TypeString},
		FieldDescriptor{Name: "b", Type: TypeString},
		FieldDescriptor{Name: "c", Type: TypeString},
	)
	other := NewShape(
		FieldDescriptor{Name: "d", Type: TypeString},
		FieldDescriptor{Name: "a", Type: TypeBoolean},
	)

	merged := base.Append(other)
	assert.Equal(t, []string{"b", "c", "d", "a"}, merged.Names())
	a, _ := merged.Field("a")
	assert.Equal(t, TypeBoolean, a.Type)
}

func TestShapeNestedField(t *testing.T) {
	shape := NewShape(FieldDescriptor{
		Name: "job",
		Type: TypeSubdocument,
		Fields: []FieldDescriptor{
			{Name: "title", Type: TypeString},
			{Name: "jobType", Type: TypeSubdocument, Fields: []FieldDescriptor{
				{Name: "salary", Type: TypeNumber},
			}},
		},
	}, FieldDescriptor{Name: "name", Type: TypeString})

	salary, ok := shape.Field("job.jobType.salary")
	require.True(t, ok)
	assert.Equal(t, TypeNumber, salary.Type)

	_, ok = shape.Field("job.missing")
	assert.False(t, ok)
	_, ok = shape.Field("name.first")
	assert.False(t, ok)

	var paths []string
	require.NoError(t, shape.walk(func(path string, _ FieldDescriptor) error {
		paths = append(paths, path)
		return nil
	}))
	assert.Equal(t, []string{"job", "job.title", "job.jobType", "job.jobType.salary", "name"}, paths)
}

func TestShapeFieldsAreCopies(t *testing.T) {
	shape := NewShape(FieldDescriptor{Name: "tags", Type: TypeString, Options: PropOptions{Enum: []any{"x"}}})

	fields := shape.Fields()
	fields[0].Name = "changed"
	fields[0].Options.Enum[0] = "y"

	f, ok := shape.Field("tags")
	require.True(t, ok)
	assert.Equal(t, "x", f.Options.Enum[0])
	assert.Equal(t, []string{"tags"}, shape.Names())
}
