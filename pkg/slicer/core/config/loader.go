package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lamina3d/lamina/pkg/slicer/support/util/exception"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/logger"

	"go.uber.org/fx"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// loadConfig loads configuration from the embedded YAML and environment
// variables. It is intended to be called once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// Unmarshal over the defaults; keys absent from the YAML keep them.
	if len(embeddedConfig) > 0 {
		if err := yaml.Unmarshal(embeddedConfig, cfg); err != nil {
			return nil, exception.NewSliceError(moduleName, "failed to unmarshal embedded config", err)
		}
	}

	// Override with environment variables, e.g. LAMINA_DATABASE_PASSWORD.
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewSliceError(moduleName, "failed to load config from environment variables", err)
	}
	return cfg, nil
}

// LoadConfig loads the application configuration outside of the fx graph.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	GlobalConfig = cfg
	logger.SetLogLevel(cfg.Lamina.System.Logging.Level)
	return cfg, nil
}

// loadStructFromEnv walks a struct value and overrides scalar fields from
// environment variables. The variable name is the uppercased yaml-tag path
// joined with underscores and prefixed with LAMINA (e.g. the database password
// becomes LAMINA_DATABASE_PASSWORD).
func loadStructFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("yaml"), ",")[0]
		if tag == "-" || tag == "" {
			continue
		}
		name := strings.ToUpper(tag)
		if prefix != "" {
			name = prefix + "_" + name
		}
		// The root "lamina" key becomes the LAMINA prefix itself.
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			if err := loadStructFromEnv(fv, name); err != nil {
				return err
			}
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if err := setScalarFromString(fv, raw); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}

// setScalarFromString assigns a string env value to a scalar struct field.
// Slice and map fields are configured through YAML only.
func setScalarFromString(fv reflect.Value, raw string) error {
	if !fv.CanSet() {
		return nil
	}
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	default:
		// Slices (nozzle diameters, wiping matrix) stay YAML-only.
	}
	return nil
}
