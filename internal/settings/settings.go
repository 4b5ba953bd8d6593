// Package settings loads process configuration for the itinera binaries.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// ITINERA_* environment variables. A .env file, when present, is loaded into
// the environment before the overrides are read.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/itinera/kv/dynamokv"
	"github.com/jacentio/itinera/store"
)

// Backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendPebble   = "pebble"
	BackendMemory   = "memory"
)

// Config is the full process configuration.
type Config struct {
	// Backend selects the kv.Store implementation.
	// Default: "dynamodb"
	Backend string `yaml:"backend" validate:"oneof=dynamodb pebble memory"`

	// PebblePath is the database directory for the pebble backend.
	PebblePath string `yaml:"pebble_path" validate:"required_if=Backend pebble"`

	// AWSProfile is the shared config profile for the dynamodb backend.
	// Empty uses the default credential chain.
	AWSProfile string `yaml:"aws_profile"`

	DynamoDB dynamokv.Config `yaml:"dynamodb"`
	Store    store.Config    `yaml:"store"`
	Log      LogConfig       `yaml:"log"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level" validate:"omitempty,loglevel"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format" validate:"oneof=json text"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := parseLevel(fl.Field().String())
		return err == nil
	})
	return v
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:  BackendDynamoDB,
		DynamoDB: dynamokv.DefaultConfig(),
		Store:    store.DefaultConfig(),
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// LoadDotEnv loads variables from a .env file without overriding ones that
// are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration from the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays ITINERA_* variables onto c.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str("ITINERA_BACKEND", &c.Backend)
	str("ITINERA_PEBBLE_PATH", &c.PebblePath)
	str("ITINERA_AWS_PROFILE", &c.AWSProfile)
	str("ITINERA_TABLE", &c.DynamoDB.Table)
	str("ITINERA_LOG_LEVEL", &c.Log.Level)
	str("ITINERA_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("ITINERA_CONSISTENT_READ"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ITINERA_CONSISTENT_READ: %w", err)
		}
		c.DynamoDB.ConsistentRead = b
	}
	if v, ok := lookup("ITINERA_PENDING_DELETE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ITINERA_PENDING_DELETE_TTL: %w", err)
		}
		c.Store.PendingDeleteTTL = d
	}
	for name, dst := range map[string]*int{
		"ITINERA_SCAN_PAGE_SIZE":      &c.Store.ScanPageSize,
		"ITINERA_SUMMARY_CONCURRENCY": &c.Store.SummaryConcurrency,
	} {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}
	return nil
}

// Validate reports configuration that cannot be used to start a process.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	fe := fields[0]
	switch fe.StructNamespace() {
	case "Config.Backend":
		return fmt.Errorf("settings: unknown backend %q", c.Backend)
	case "Config.PebblePath":
		return errors.New("settings: pebble backend requires pebble_path")
	case "Config.Log.Level":
		return fmt.Errorf("settings: invalid log level %q", c.Log.Level)
	case "Config.Log.Format":
		return fmt.Errorf("settings: unknown log format %q", c.Log.Format)
	}
	return fmt.Errorf("settings: %s fails %q", fe.Namespace(), fe.Tag())
}
