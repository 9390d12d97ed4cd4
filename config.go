package typegoose

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents engine connection configuration
type Config struct {
	// Connection details
	Driver        string `json:"driver" yaml:"driver" mapstructure:"driver"`
	ConnectionURL string `json:"connection_url" yaml:"connection_url" mapstructure:"connection_url"`
	Host          string `json:"host" yaml:"host" mapstructure:"host"`
	Port          int    `json:"port" yaml:"port" mapstructure:"port"`
	Database      string `json:"database" yaml:"database" mapstructure:"database"`
	Username      string `json:"username" yaml:"username" mapstructure:"username"`
	Password      string `json:"password" yaml:"password" mapstructure:"password"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// Additional options
	Options map[string]interface{} `json:"options" yaml:"options" mapstructure:"options"`
}

// LoadConfig reads engine configuration from the given file, if any, and
// from TYPEGOOSE_* environment variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal
	v.SetDefault("driver", "mongodb")
	v.SetDefault("connection_url", "")
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 0)
	v.SetDefault("database", "typegoose")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("max_open_conns", 0)
	v.SetDefault("max_idle_conns", 0)
	v.SetDefault("conn_max_idle_time", time.Duration(0))
	v.SetDefault("connect_timeout", 10*time.Second)

	v.SetEnvPrefix("TYPEGOOSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("typegoose")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}
