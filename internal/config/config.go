// Package config loads racksum settings from defaults, an optional YAML file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. RACKSUM_SERVER_PORT
const EnvPrefix = "RACKSUM"

type Config struct {
	Server ServerConfig `mapstructure:"server"`

	Database DatabaseConfig `mapstructure:"database"`

	// Workspace is the local durable storage of the CLI
	Workspace WorkspaceConfig `mapstructure:"workspace"`

	Remote RemoteConfig `mapstructure:"remote"`

	Sync SyncConfig `mapstructure:"sync"`

	Catalog CatalogConfig `mapstructure:"catalog"`

	Log LogConfig `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	RateLimit       float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst       int           `mapstructure:"rate_burst" validate:"gte=0"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gte=0"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type WorkspaceConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// RemoteConfig points the CLI at a racksum server. An empty URL disables remote sync.
type RemoteConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type SyncConfig struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// Option adjusts the viper instance before unmarshalling, typically to bind flags
type Option func(v *viper.Viper) error

var validate = validator.New()

// Load reads the configuration. cfgFile may be empty, in which case config.yaml
// is looked up in the working directory and ~/.racksum; a missing file is fine
// unless cfgFile was given explicitly.
func Load(cfgFile string, opts ...Option) (*Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("ignoring unreadable .env file")
	}

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.racksum")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy variables, still honoured after the prefixed ones
	if err := v.BindEnv("database.path", EnvPrefix+"_DATABASE_PATH", "DB_PATH"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.max_body_bytes", 5<<20)

	v.SetDefault("database.path", "racksum.db")
	v.SetDefault("workspace.path", ".racksum")

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.timeout", "10s")

	v.SetDefault("sync.debounce", "2s")

	v.SetDefault("catalog.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
