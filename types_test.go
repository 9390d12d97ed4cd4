package typegoose

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKeyTypeFieldType(t *testing.T) {
	tests := map[KeyType]FieldType{
		KeyObjectID: TypeObjectID,
		KeyString:   TypeString,
		KeyNumber:   TypeNumber,
		KeyBinary:   TypeBuffer,
		"":          TypeObjectID,
	}
	for key, expected := range tests {
		if got := key.FieldType(); got != expected {
			t.Errorf("Expected %s for key type %q, got %s", expected, key, got)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateUnregistered:      "unregistered",
		StateMetadataCollected: "metadata_collected",
		StateSynthesizing:      "synthesizing",
		StateSynthesized:       "synthesized",
		StateModelBound:        "model_bound",
	}
	for state, expected := range tests {
		if state.String() != expected {
			t.Errorf("Expected %s, got %s", expected, state.String())
		}
	}
	if !(StateMetadataCollected < StateSynthesizing && StateSynthesized < StateModelBound) {
		t.Error("Expected lifecycle states to be ordered")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Expected no error without a config file, got %v", err)
	}
	if config.Driver != "mongodb" {
		t.Errorf("Expected driver 'mongodb', got '%s'", config.Driver)
	}
	if config.Database != "typegoose" {
		t.Errorf("Expected database 'typegoose', got '%s'", config.Database)
	}
	if config.ConnectTimeout != 10*time.Second {
		t.Errorf("Expected connect timeout 10s, got %s", config.ConnectTimeout)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typegoose.yaml")
	content := []byte("driver: redis\nhost: cache.local\nport: 6380\ndatabase: \"3\"\noptions:\n  redis:\n    prefix: zoo\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TYPEGOOSE_PASSWORD", "secret")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if config.Driver != "redis" || config.Host != "cache.local" || config.Port != 6380 {
		t.Errorf("Expected redis at cache.local:6380, got %s at %s:%d", config.Driver, config.Host, config.Port)
	}
	if config.Database != "3" {
		t.Errorf("Expected database '3', got '%s'", config.Database)
	}
	if config.Password != "secret" {
		t.Errorf("Expected password from the environment, got '%s'", config.Password)
	}
	redisOpts, ok := config.Options["redis"].(map[string]interface{})
	if !ok || redisOpts["prefix"] != "zoo" {
		t.Errorf("Expected redis options with prefix 'zoo', got %v", config.Options["redis"])
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for an explicit config file that does not exist")
	}
}
