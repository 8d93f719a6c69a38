// Package config loads the YAML config file and validates it against an
// embedded CUE schema before any field is used. Unknown keys and
// out-of-range values are rejected at load time with the schema's position
// information, not discovered later as zero values.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the full CLI configuration. The zero value is not usable; start
// from Default.
type Config struct {
	DB      DB      `yaml:"db"`
	User    User    `yaml:"user"`
	Notify  Notify  `yaml:"notify"`
	Geocode Geocode `yaml:"geocode"`
	Log     Log     `yaml:"log"`
}

// DB locates the SQLite file.
type DB struct {
	Path string `yaml:"path"`
}

// User names the account the CLI acts as. Commands that need an identity
// fail when it is unset.
type User struct {
	ID string `yaml:"id"`
}

// Notify tunes the live-alert decision.
type Notify struct {
	FreshnessWindowSeconds int `yaml:"freshness_window_seconds"`
}

// FreshnessWindow returns the window as a duration.
func (n Notify) FreshnessWindow() time.Duration {
	return time.Duration(n.FreshnessWindowSeconds) * time.Second
}

// Geocode points at the reverse-geocoding service.
type Geocode struct {
	BaseURL string `yaml:"base_url"`
}

// Log controls slog verbosity.
type Log struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name onto slog's scale. Unknown names
// cannot occur post-validation; the zero value maps to info.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the configuration used when no file (or an empty file) is
// given.
func Default() Config {
	return Config{
		DB:      DB{Path: "lendhand.db"},
		Notify:  Notify{FreshnessWindowSeconds: 10},
		Geocode: Geocode{BaseURL: "https://nominatim.openstreetmap.org"},
		Log:     Log{Level: "info"},
	}
}

// Load reads, validates, and decodes the file at path. A missing file is an
// error; callers wanting "no file means defaults" check existence first.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data against the schema and decodes it over the defaults.
func Parse(data []byte) (Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := validate(doc); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode: %w", err)
	}
	return cfg, nil
}

// validate unifies the decoded document with the embedded schema. The
// schema is closed, so unknown keys fail here rather than being silently
// dropped by the struct decode.
func validate(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	unified := schema.Unify(ctx.Encode(doc))
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
