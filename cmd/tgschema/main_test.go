package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/lemmego/typegoose"
	"github.com/lemmego/typegoose/internal/zoo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWith(t, zoo.Register, args...)
}

func runWith(t *testing.T, register registerFunc, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(register)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func redisConfig(t *testing.T, mr *miniredis.Miniredis) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typegoose.yaml")
	content := fmt.Sprintf("driver: redis\nhost: %s\nport: %s\n", mr.Host(), mr.Port())
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tgschema version: dev\n", out)
}

func TestDump_YAML(t *testing.T) {
	out, err := run(t, "dump", "Dog", "Cat")
	require.NoError(t, err)

	var got []typegoose.SchemaDescription
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)

	assert.Equal(t, "Dog", got[0].Name)
	assert.Equal(t, "Animal", got[0].Parent)
	assert.Equal(t, "animals", got[0].Collection)
	assert.Contains(t, got[0].Methods, "getSound")

	assert.Equal(t, "Cat", got[1].Name)
	assert.True(t, got[1].Extended)
	assert.Equal(t, "_type", got[1].DiscriminatorKey)
}

func TestDump_JSONAllClasses(t *testing.T) {
	out, err := run(t, "dump", "--format", "json")
	require.NoError(t, err)

	var got []typegoose.SchemaDescription
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	names := make([]string, len(got))
	for i, d := range got {
		names[i] = d.Name
	}
	assert.Subset(t, names, []string{"Animal", "Dog", "GermanShepherd", "Cat", "Car", "User", "Person", "Hook", "Dummy"})
}

func TestDump_CustomRegister(t *testing.T) {
	register := func(store *typegoose.Store) error {
		return store.Define("Widget").
			Prop("sku", typegoose.PropOptions{Type: typegoose.TypeString, Unique: true}).Err()
	}
	out, err := runWith(t, register, "dump", "--format", "json")
	require.NoError(t, err)

	var got []typegoose.SchemaDescription
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Widget", got[0].Name)
	require.Len(t, got[0].Paths, 1)
	assert.Equal(t, "sku", got[0].Paths[0].Name)
	assert.True(t, got[0].Paths[0].Unique)

	_, err = runWith(t, register, "dump", "Dog")
	assert.True(t, typegoose.IsNotFound(err))

	_, err = runWith(t, func(*typegoose.Store) error { return assert.AnError }, "dump")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDump_Errors(t *testing.T) {
	_, err := run(t, "dump", "--format", "toml")
	assert.ErrorContains(t, err, `unknown format "toml"`)

	_, err = run(t, "dump", "Unicorn")
	assert.True(t, typegoose.IsNotFound(err))
}

func TestPing(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	out, err := run(t, "--config", redisConfig(t, mr), "ping")
	require.NoError(t, err)
	assert.Equal(t, "default: ok\n", out)
}

func TestPing_UnsupportedDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typegoose.yaml")
	require.NoError(t, os.WriteFile(path, []byte("driver: sqlite\n"), 0o600))

	_, err := run(t, "--config", path, "ping")
	assert.True(t, typegoose.IsErrorType(err, typegoose.ErrorTypeUnsupported))
}

func TestEnsureIndexes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	out, err := run(t, "--config", redisConfig(t, mr), "ensure-indexes", "User", "Person")
	require.NoError(t, err)
	assert.Contains(t, out, "User: 2 indexes on users\n")
	assert.Contains(t, out, "Person: 1 indexes on persons\n")
}
